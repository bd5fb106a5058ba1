package extract

import (
	"errors"
	"io"
	"log"
	"time"

	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"github.com/olusolaa/connector/internal/slackapi"
)

type mockWebAPI struct {
	conversationsFunc    func(params *slack.GetConversationsParameters) ([]slack.Channel, string, error)
	conversationInfoFunc func(input *slack.GetConversationInfoInput) (*slack.Channel, error)
	historyFunc          func(params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	repliesFunc          func(params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error)
	usersFunc            func() ([]slack.User, error)
	userInfoFunc         func(userID string) (*slack.User, error)
	membersFunc          func(params *slack.GetUsersInConversationParameters) ([]string, string, error)
	filesFunc            func(params slack.GetFilesParameters) ([]slack.File, *slack.Paging, error)
	permalinkFunc        func(params *slack.PermalinkParameters) (string, error)
}

func (m *mockWebAPI) GetConversations(params *slack.GetConversationsParameters) ([]slack.Channel, string, error) {
	if m.conversationsFunc != nil {
		return m.conversationsFunc(params)
	}
	return nil, "", nil
}

func (m *mockWebAPI) GetConversationInfo(input *slack.GetConversationInfoInput) (*slack.Channel, error) {
	if m.conversationInfoFunc != nil {
		return m.conversationInfoFunc(input)
	}
	return nil, errors.New("not implemented")
}

func (m *mockWebAPI) GetConversationHistory(params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
	if m.historyFunc != nil {
		return m.historyFunc(params)
	}
	return nil, errors.New("not implemented")
}

func (m *mockWebAPI) GetConversationReplies(params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error) {
	if m.repliesFunc != nil {
		return m.repliesFunc(params)
	}
	return nil, false, "", nil
}

func (m *mockWebAPI) GetUsers(options ...slack.GetUsersOption) ([]slack.User, error) {
	if m.usersFunc != nil {
		return m.usersFunc()
	}
	return nil, nil
}

func (m *mockWebAPI) GetUserInfo(userID string) (*slack.User, error) {
	if m.userInfoFunc != nil {
		return m.userInfoFunc(userID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockWebAPI) GetUsersInConversation(params *slack.GetUsersInConversationParameters) ([]string, string, error) {
	if m.membersFunc != nil {
		return m.membersFunc(params)
	}
	return nil, "", nil
}

func (m *mockWebAPI) GetFiles(params slack.GetFilesParameters) ([]slack.File, *slack.Paging, error) {
	if m.filesFunc != nil {
		return m.filesFunc(params)
	}
	return nil, nil, nil
}

func (m *mockWebAPI) GetPermalink(params *slack.PermalinkParameters) (string, error) {
	if m.permalinkFunc != nil {
		return m.permalinkFunc(params)
	}
	return "", errors.New("not implemented")
}

func testSlackClient(api slackapi.WebAPI) *slackapi.Client {
	return slackapi.New(
		api,
		slackapi.WithRateLimiter(rate.NewLimiter(rate.Every(time.Millisecond), 100)),
		slackapi.WithLogger(log.New(io.Discard, "", 0)),
		slackapi.WithBackoffBase(time.Millisecond),
	)
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newSlackChannel(id, name string) slack.Channel {
	return slack.Channel{
		GroupConversation: slack.GroupConversation{
			Conversation: slack.Conversation{
				ID:             id,
				NameNormalized: name,
			},
			Name: name,
		},
		IsChannel: true,
	}
}
