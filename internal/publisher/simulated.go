package publisher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/maheshrc27/instaflow/internal/media"
	"github.com/maheshrc27/instaflow/internal/models"
)

// Simulated pretends to publish: it only checks that the media exists and
// hands back a random remote id.
type Simulated struct{}

func NewSimulated() *Simulated {
	return &Simulated{}
}

func (s *Simulated) CreatePost(ctx context.Context, session models.Session, m *media.Resolved, caption string, opts models.PostOptions) (Result, error) {
	slog.Info("simulating post", "user", sessionString(session, "username"), "media", m.Path)
	return s.publish(ctx, m)
}

func (s *Simulated) CreateStory(ctx context.Context, session models.Session, m *media.Resolved, caption string) (Result, error) {
	slog.Info("simulating story", "user", sessionString(session, "username"), "media", m.Path)
	return s.publish(ctx, m)
}

func (s *Simulated) publish(ctx context.Context, m *media.Resolved) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if _, err := os.Stat(m.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Rejected(fmt.Sprintf("media file not found at %s", m.Path)), nil
		}
		return Result{}, err
	}
	id, err := gonanoid.Generate("0123456789abcdef", 24)
	if err != nil {
		return Result{}, err
	}
	return Published(id), nil
}
