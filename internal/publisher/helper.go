package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	config "github.com/maheshrc27/instaflow/configs"
	"github.com/maheshrc27/instaflow/internal/media"
	"github.com/maheshrc27/instaflow/internal/models"
)

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Helper publishes through the out-of-process instagrapi scripts. Each script
// prints a single JSON object {"success", "mediaId", "error"} on stdout.
type Helper struct {
	cfg config.Helper
	run runFunc
}

func NewHelper(cfg config.Helper) *Helper {
	return &Helper{cfg: cfg, run: runCommand}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func (h *Helper) CreatePost(ctx context.Context, session models.Session, m *media.Resolved, caption string, opts models.PostOptions) (Result, error) {
	sessionFile, err := writeSessionFile(session)
	if err != nil {
		return Result{}, err
	}
	defer os.Remove(sessionFile)

	// Option values use the --flag=value form and the caption follows "--",
	// so text starting with "-" is never read as an option.
	args := []string{h.cfg.PostScript, sessionFile, m.Path}
	if opts.FirstComment != "" {
		args = append(args, "--first-comment="+opts.FirstComment)
	}
	if opts.Location != "" {
		args = append(args, "--location="+opts.Location)
	}
	if opts.HideLikeCount {
		args = append(args, "--hide-like-count")
	}
	if len(opts.TaggedUsers) > 0 {
		args = append(args, "--tagged-users="+strings.Join(opts.TaggedUsers, ","))
	}
	args = append(args, "--", caption)
	return h.invoke(ctx, args)
}

func (h *Helper) CreateStory(ctx context.Context, session models.Session, m *media.Resolved, caption string) (Result, error) {
	if !m.IsImage() && !m.IsVideo() {
		return Rejected("unsupported story media type"), nil
	}

	sessionFile, err := writeSessionFile(session)
	if err != nil {
		return Result{}, err
	}
	defer os.Remove(sessionFile)

	args := []string{h.cfg.StoryScript, sessionFile, m.Path}
	if caption != "" {
		args = append(args, "--caption="+caption)
	}
	return h.invoke(ctx, args)
}

func (h *Helper) invoke(ctx context.Context, args []string) (Result, error) {
	out, runErr := h.run(ctx, h.cfg.Python, args...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}

	res, parseErr := parseHelperOutput(out)
	if parseErr == nil {
		if !res.Success && res.Reason == "" {
			res.Reason = "helper reported failure without a reason"
		}
		return res, nil
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) && len(exitErr.Stderr) > 0 {
			slog.Error("publish helper failed", "stderr", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return Result{}, fmt.Errorf("publish helper failed: %w", runErr)
	}
	return Result{}, parseErr
}

// parseHelperOutput decodes the last non-empty stdout line; helpers may log before it.
func parseHelperOutput(out []byte) (Result, error) {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	last := bytes.TrimSpace(lines[len(lines)-1])
	if len(last) == 0 {
		return Result{}, errors.New("publish helper produced no output")
	}
	var res Result
	if err := json.Unmarshal(last, &res); err != nil {
		return Result{}, fmt.Errorf("invalid helper output %q: %w", last, err)
	}
	return res, nil
}

func writeSessionFile(session models.Session) (string, error) {
	f, err := os.CreateTemp("", "instaflow-session-*.json")
	if err != nil {
		return "", err
	}
	if session == nil {
		session = models.Session{}
	}
	if err := json.NewEncoder(f).Encode(map[string]any{"cookies": session}); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write session file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
