package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
)

var (
	ErrNotFound    = errors.New("media not found")
	ErrUnsupported = errors.New("unsupported media type")
)

var allowedTypes = map[string]struct{}{
	"mp4": {}, "mov": {}, "jpg": {}, "jpeg": {}, "png": {},
}

// Store persists uploaded media and resolves stored references back to a
// local file the publishing adapter can read.
type Store interface {
	Save(ctx context.Context, data []byte) (string, error)
	Resolve(ctx context.Context, ref string) (*Resolved, error)
	Remove(ctx context.Context, ref string) error
}

// Resolved is a media payload ready to hand to a publishing adapter.
// Callers must call Cleanup once done with Path.
type Resolved struct {
	Ref  string
	Path string
	URL  string
	MIME string

	cleanup func()
}

func (r *Resolved) Cleanup() {
	if r != nil && r.cleanup != nil {
		r.cleanup()
	}
}

func (r *Resolved) IsVideo() bool {
	return strings.HasPrefix(r.MIME, "video/")
}

func (r *Resolved) IsImage() bool {
	return strings.HasPrefix(r.MIME, "image/")
}

// Detect sniffs data and rejects anything that is not an allowed image or video.
func Detect(data []byte) (types.Type, error) {
	kind, err := filetype.Match(data)
	if err != nil {
		return types.Unknown, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if kind == types.Unknown {
		return types.Unknown, ErrUnsupported
	}
	if _, ok := allowedTypes[kind.Extension]; !ok {
		return types.Unknown, fmt.Errorf("%w: %s", ErrUnsupported, kind.Extension)
	}
	return kind, nil
}
