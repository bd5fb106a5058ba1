package extract

import (
	"context"
	"fmt"
	"log"

	"github.com/slack-go/slack"

	"github.com/olusolaa/connector/internal/slackapi"
)

// UsersExtractor fetches the workspace member roster via users.list. slack-go
// drives cursor pagination internally, so the roster arrives as one batch.
type UsersExtractor struct {
	client *slackapi.Client
	logger *log.Logger
}

// NewUsersExtractor constructs a UsersExtractor.
func NewUsersExtractor(client *slackapi.Client, logger *log.Logger) *UsersExtractor {
	if logger == nil {
		logger = log.Default()
	}
	return &UsersExtractor{client: client, logger: logger}
}

// Extract fetches all workspace members and emits them as a single batch.
func (e *UsersExtractor) Extract(ctx context.Context, emit func(batch []User) error) error {
	users, err := e.client.Users(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	batch := make([]User, 0, len(users))
	for _, u := range users {
		batch = append(batch, mapUser(u))
	}
	return emit(batch)
}

func mapUser(u slack.User) User {
	return User{
		ID:          u.ID,
		TeamID:      u.TeamID,
		Name:        u.Name,
		RealName:    u.RealName,
		DisplayName: u.Profile.DisplayName,
		Email:       u.Profile.Email,
		IsBot:       u.IsBot,
		IsAdmin:     u.IsAdmin,
		Deleted:     u.Deleted,
		UpdatedAt:   u.Updated.Time().UTC(),
	}
}
