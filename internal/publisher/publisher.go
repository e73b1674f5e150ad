package publisher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	config "github.com/maheshrc27/instaflow/configs"
	"github.com/maheshrc27/instaflow/internal/media"
	"github.com/maheshrc27/instaflow/internal/models"
)

// Result is what a publish attempt reports back. Success false carries the
// platform's reason; a returned error means the attempt itself broke.
type Result struct {
	Success  bool   `json:"success"`
	RemoteID string `json:"mediaId,omitempty"`
	Reason   string `json:"error,omitempty"`
}

func Published(remoteID string) Result {
	return Result{Success: true, RemoteID: remoteID}
}

func Rejected(reason string) Result {
	return Result{Success: false, Reason: reason}
}

// Adapter publishes media to Instagram on behalf of an account session.
// Calls are not idempotent: calling twice may create two remote posts.
type Adapter interface {
	CreatePost(ctx context.Context, session models.Session, m *media.Resolved, caption string, opts models.PostOptions) (Result, error)
	CreateStory(ctx context.Context, session models.Session, m *media.Resolved, caption string) (Result, error)
}

// New builds the adapter selected by cfg.Publisher.
func New(cfg config.Config) (Adapter, error) {
	switch cfg.Publisher {
	case "", "simulate":
		return NewSimulated(), nil
	case "helper":
		return NewHelper(cfg.Helper), nil
	case "graph":
		return NewGraph(&http.Client{Timeout: cfg.PublishTimeout + 10*time.Second}, ""), nil
	default:
		return nil, fmt.Errorf("unknown publisher %q", cfg.Publisher)
	}
}

func sessionString(session models.Session, key string) string {
	if v, ok := session[key]; ok {
		switch t := v.(type) {
		case string:
			return t
		case fmt.Stringer:
			return t.String()
		case float64:
			return fmt.Sprintf("%.0f", t)
		}
	}
	return ""
}
