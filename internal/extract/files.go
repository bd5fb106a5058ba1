package extract

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/slack-go/slack"

	"github.com/olusolaa/connector/internal/slackapi"
)

// FilesExtractor pages through files.list for a channel. files.list uses
// classic page numbering, so the resume cursor holds the next page number.
type FilesExtractor struct {
	client   *slackapi.Client
	logger   *log.Logger
	pageSize int
}

// NewFilesExtractor constructs a FilesExtractor.
func NewFilesExtractor(client *slackapi.Client, pageSize int, logger *log.Logger) *FilesExtractor {
	if logger == nil {
		logger = log.Default()
	}
	if pageSize <= 0 || pageSize > 100 {
		// files.list caps count at 100.
		pageSize = 100
	}
	return &FilesExtractor{client: client, logger: logger, pageSize: pageSize}
}

// Extract walks the channel's files page by page, calling emit with each batch
// and the page number needed to resume after it.
func (e *FilesExtractor) Extract(ctx context.Context, channel Channel, resume Resume, emit func(batch []File, next Resume) error) error {
	page := 1
	if resume.Cursor != "" {
		parsed, err := strconv.Atoi(resume.Cursor)
		if err != nil || parsed < 1 {
			e.logger.Printf("warn: invalid files resume cursor %q, restarting from page 1", resume.Cursor)
		} else {
			page = parsed
		}
	}

	for {
		params := slack.GetFilesParameters{
			Channel: channel.ID,
			Count:   e.pageSize,
			Page:    page,
		}
		files, paging, err := e.client.Files(ctx, params)
		if err != nil {
			return fmt.Errorf("files channel=%s page=%d: %w", channel.ID, page, err)
		}

		batch := make([]File, 0, len(files))
		for _, f := range files {
			batch = append(batch, mapFile(f))
		}

		hasMore := paging != nil && paging.Page < paging.Pages
		next := Resume{}
		if hasMore {
			next.Cursor = strconv.Itoa(paging.Page + 1)
		}
		if err := emit(batch, next); err != nil {
			return err
		}

		if !hasMore {
			return nil
		}
		page = paging.Page + 1
	}
}

func mapFile(f slack.File) File {
	return File{
		ID:         f.ID,
		Name:       f.Name,
		Title:      f.Title,
		Filetype:   f.Filetype,
		Mimetype:   f.Mimetype,
		UserID:     f.User,
		Size:       f.Size,
		URLPrivate: f.URLPrivate,
		Permalink:  f.Permalink,
		Channels:   append([]string(nil), f.Channels...),
		CreatedAt:  f.Created.Time().UTC(),
	}
}
