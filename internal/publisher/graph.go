package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/maheshrc27/instaflow/internal/media"
	"github.com/maheshrc27/instaflow/internal/models"
	"github.com/maheshrc27/instaflow/internal/transfer"
	"golang.org/x/time/rate"
)

const graphBaseURL = "https://graph.instagram.com/v21.0"

// Graph publishes through the Instagram Graph API container flow. The
// session must carry "access_token" and "user_id", and media must have a
// public URL.
type Graph struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

func NewGraph(client *http.Client, baseURL string) *Graph {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = graphBaseURL
	}
	return &Graph{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(rate.Every(time.Second), 3),
	}
}

// errRejected wraps a platform-side rejection so callers can report it as a
// Result rather than a broken attempt.
type errRejected struct{ reason string }

func (e *errRejected) Error() string { return e.reason }

func (g *Graph) CreatePost(ctx context.Context, session models.Session, m *media.Resolved, caption string, opts models.PostOptions) (Result, error) {
	accountID, accessToken, err := graphCredentials(session)
	if err != nil {
		return Rejected(err.Error()), nil
	}
	if m.URL == "" {
		return Rejected("media has no public URL"), nil
	}

	payload := map[string]interface{}{
		"caption":      caption,
		"access_token": accessToken,
	}
	if m.IsVideo() {
		payload["media_type"] = "REELS"
		payload["video_url"] = m.URL
	} else {
		payload["image_url"] = m.URL
		if len(opts.TaggedUsers) > 0 {
			tags := make([]map[string]interface{}, 0, len(opts.TaggedUsers))
			for _, u := range opts.TaggedUsers {
				tags = append(tags, map[string]interface{}{"username": u, "x": 0.5, "y": 0.5})
			}
			payload["user_tags"] = tags
		}
	}
	if opts.Location != "" {
		payload["location_id"] = opts.Location
	}
	if opts.HideLikeCount {
		slog.Debug("hide_like_count is not supported by the graph API, ignoring")
	}

	mediaID, err := g.publish(ctx, accountID, accessToken, payload)
	if err != nil {
		return rejectedOrError(err)
	}

	if opts.FirstComment != "" {
		if err := g.comment(ctx, mediaID, accessToken, opts.FirstComment); err != nil {
			// the post is live; a missing first comment does not undo it
			slog.Warn("failed to add first comment", "media_id", mediaID, "error", err)
		}
	}
	return Published(mediaID), nil
}

func (g *Graph) CreateStory(ctx context.Context, session models.Session, m *media.Resolved, caption string) (Result, error) {
	accountID, accessToken, err := graphCredentials(session)
	if err != nil {
		return Rejected(err.Error()), nil
	}
	if m.URL == "" {
		return Rejected("media has no public URL"), nil
	}

	payload := map[string]interface{}{
		"media_type":   "STORIES",
		"access_token": accessToken,
	}
	switch {
	case m.IsVideo():
		payload["video_url"] = m.URL
	case m.IsImage():
		payload["image_url"] = m.URL
	default:
		return Rejected("unsupported story media type"), nil
	}

	mediaID, err := g.publish(ctx, accountID, accessToken, payload)
	if err != nil {
		return rejectedOrError(err)
	}
	return Published(mediaID), nil
}

func (g *Graph) publish(ctx context.Context, accountID, accessToken string, container map[string]interface{}) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	if err := g.post(ctx, fmt.Sprintf("%s/%s/media", g.baseURL, accountID), container, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", errors.New("no media ID returned from Instagram")
	}

	var published struct {
		ID string `json:"id"`
	}
	payload := map[string]interface{}{
		"creation_id":  created.ID,
		"access_token": accessToken,
	}
	if err := g.post(ctx, fmt.Sprintf("%s/%s/media_publish", g.baseURL, accountID), payload, &published); err != nil {
		return "", err
	}
	if published.ID == "" {
		return "", errors.New("no published media ID returned from Instagram")
	}
	return published.ID, nil
}

func (g *Graph) comment(ctx context.Context, mediaID, accessToken, message string) error {
	payload := map[string]interface{}{
		"message":      message,
		"access_token": accessToken,
	}
	return g.post(ctx, fmt.Sprintf("%s/%s/comments", g.baseURL, mediaID), payload, nil)
}

func (g *Graph) post(ctx context.Context, url string, payload map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshalling payload: %w", err)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// The wait would outlast the deadline.
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr transfer.InstagramErrorResponse
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			return &errRejected{reason: apiErr.Error.Message}
		}
		return &errRejected{reason: fmt.Sprintf("unexpected status code from Instagram: %d", resp.StatusCode)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}
	return nil
}

func graphCredentials(session models.Session) (string, string, error) {
	accountID := sessionString(session, "user_id")
	accessToken := sessionString(session, "access_token")
	if accountID == "" || accessToken == "" {
		return "", "", errors.New("session is missing user_id or access_token")
	}
	return accountID, accessToken, nil
}

func rejectedOrError(err error) (Result, error) {
	var rej *errRejected
	if errors.As(err, &rej) {
		return Rejected(rej.reason), nil
	}
	return Result{}, err
}
