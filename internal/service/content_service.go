package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/maheshrc27/instaflow/internal/media"
	"github.com/maheshrc27/instaflow/internal/models"
	"github.com/maheshrc27/instaflow/internal/repository"
	"github.com/maheshrc27/instaflow/internal/transfer"
)

const (
	maxCaptionLength = 2200
	maxTaggedUsers   = 20
)

// Scheduler is the part of the publishing pipeline the services drive.
type Scheduler interface {
	Schedule(ctx context.Context, item *models.Content) error
	Reschedule(ctx context.Context, id int64) error
	Cancel(id int64) bool
}

type ContentService interface {
	CreateContent(ctx context.Context, cc *transfer.ContentCreation, file *multipart.FileHeader) (*models.Content, error)
	List(ctx context.Context) ([]*models.Content, error)
	Get(ctx context.Context, id int64) (*models.Content, error)
	Edit(ctx context.Context, id int64, edit *transfer.ContentEdit) (*models.Content, error)
	Remove(ctx context.Context, id int64) error
}

type contentService struct {
	cr    repository.ContentRepository
	ar    repository.AccountRepository
	store media.Store
	sched Scheduler
}

func NewContentService(cr repository.ContentRepository, ar repository.AccountRepository, store media.Store, sched Scheduler) ContentService {
	return &contentService{
		cr:    cr,
		ar:    ar,
		store: store,
		sched: sched,
	}
}

func (s *contentService) CreateContent(ctx context.Context, cc *transfer.ContentCreation, file *multipart.FileHeader) (*models.Content, error) {
	if cc == nil {
		return nil, fmt.Errorf("%w: content creation data is nil", ErrInvalidInput)
	}
	if file == nil {
		return nil, fmt.Errorf("%w: no media file uploaded", ErrInvalidInput)
	}

	kind := models.Kind(strings.ToLower(strings.TrimSpace(cc.Type)))
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: type must be post or story", ErrInvalidInput)
	}
	if err := validateCaption(cc.Caption); err != nil {
		return nil, err
	}
	scheduledAt, err := parseScheduledDate(cc.ScheduledDate)
	if err != nil {
		return nil, err
	}
	tagged, err := parseTaggedUsers(cc.TaggedUsers)
	if err != nil {
		return nil, err
	}
	if err := s.requireAccount(ctx, cc.AccountID); err != nil {
		return nil, err
	}

	data, err := readUpload(file)
	if err != nil {
		return nil, err
	}
	ref, err := s.store.Save(ctx, data)
	if err != nil {
		if errors.Is(err, media.ErrUnsupported) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("error saving media: %w", err)
	}

	item := &models.Content{
		AccountID:   cc.AccountID,
		Kind:        kind,
		Caption:     cc.Caption,
		MediaRef:    ref,
		ScheduledAt: scheduledAt,
		Status:      models.StatusScheduled,
	}
	// Stories carry no post metadata.
	if kind == models.KindPost {
		item.FirstComment = strings.TrimSpace(cc.FirstComment)
		item.Location = strings.TrimSpace(cc.Location)
		item.HideLikeCount = cc.HideLikeCount
		item.TaggedUsers = tagged
	}

	if _, err := s.cr.Create(ctx, item); err != nil {
		if rmErr := s.store.Remove(ctx, ref); rmErr != nil {
			slog.Warn("failed to remove orphaned media", "ref", ref, "error", rmErr)
		}
		return nil, fmt.Errorf("error creating scheduled content: %w", err)
	}

	if err := s.sched.Schedule(ctx, item); err != nil {
		return nil, fmt.Errorf("error scheduling content %d: %w", item.ID, err)
	}
	return s.current(ctx, item), nil
}

func (s *contentService) List(ctx context.Context) ([]*models.Content, error) {
	return s.cr.List(ctx)
}

func (s *contentService) Get(ctx context.Context, id int64) (*models.Content, error) {
	item, err := s.cr.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrContentNotFound
	}
	return item, nil
}

// Edit changes a scheduled item and re-arms its timer. The newest edit wins.
func (s *contentService) Edit(ctx context.Context, id int64, edit *transfer.ContentEdit) (*models.Content, error) {
	if edit == nil {
		return nil, fmt.Errorf("%w: empty edit", ErrInvalidInput)
	}

	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Status != models.StatusScheduled {
		return nil, ErrNotEditable
	}

	if edit.AccountID != nil && *edit.AccountID != item.AccountID {
		if err := s.requireAccount(ctx, *edit.AccountID); err != nil {
			return nil, err
		}
		item.AccountID = *edit.AccountID
	}
	if edit.Caption != nil {
		if err := validateCaption(*edit.Caption); err != nil {
			return nil, err
		}
		item.Caption = *edit.Caption
	}
	if edit.ScheduledDate != nil {
		scheduledAt, err := parseScheduledDate(*edit.ScheduledDate)
		if err != nil {
			return nil, err
		}
		item.ScheduledAt = scheduledAt
	}
	if item.Kind == models.KindPost {
		if edit.FirstComment != nil {
			item.FirstComment = strings.TrimSpace(*edit.FirstComment)
		}
		if edit.Location != nil {
			item.Location = strings.TrimSpace(*edit.Location)
		}
		if edit.HideLikeCount != nil {
			item.HideLikeCount = *edit.HideLikeCount
		}
		if edit.TaggedUsers != nil {
			users, err := cleanTaggedUsers(*edit.TaggedUsers)
			if err != nil {
				return nil, err
			}
			item.TaggedUsers = users
		}
	}

	updated, err := s.cr.Update(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("error updating content %d: %w", id, err)
	}
	if !updated {
		return nil, ErrNotEditable
	}

	// arm from the stored row, not from item: a concurrent edit may have written after us
	if err := s.sched.Reschedule(ctx, id); err != nil {
		return nil, fmt.Errorf("error rescheduling content %d: %w", id, err)
	}
	return s.current(ctx, item), nil
}

// Remove cancels the timer, then deletes the row and its media. A publish
// already running is not interrupted.
func (s *contentService) Remove(ctx context.Context, id int64) error {
	s.sched.Cancel(id)

	item, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.cr.Remove(ctx, id); err != nil {
		return fmt.Errorf("error removing content %d: %w", id, err)
	}
	if err := s.store.Remove(ctx, item.MediaRef); err != nil {
		slog.Warn("failed to remove media", "content_id", id, "ref", item.MediaRef, "error", err)
	}
	return nil
}

func (s *contentService) requireAccount(ctx context.Context, accountID int64) error {
	if accountID <= 0 {
		return fmt.Errorf("%w: account_id is required", ErrInvalidInput)
	}
	account, err := s.ar.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("error checking account %d: %w", accountID, err)
	}
	if account == nil {
		return ErrAccountNotFound
	}
	return nil
}

// current re-reads item so callers see the status scheduling may have written.
func (s *contentService) current(ctx context.Context, item *models.Content) *models.Content {
	fresh, err := s.cr.GetByID(ctx, item.ID)
	if err != nil || fresh == nil {
		return item
	}
	return fresh
}

func validateCaption(caption string) error {
	if utf8.RuneCountInString(caption) > maxCaptionLength {
		return fmt.Errorf("%w: caption exceeds %d characters", ErrInvalidInput, maxCaptionLength)
	}
	return nil
}

// parseScheduledDate accepts RFC 3339 and the minute-precision form browsers
// send from datetime-local inputs, read as UTC.
func parseScheduledDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: scheduled_date is required", ErrInvalidInput)
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02T15:04", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid scheduled_date format", ErrInvalidInput)
	}
	return t.UTC(), nil
}

func parseTaggedUsers(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var users []string
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		return nil, fmt.Errorf("%w: tagged_users must be a JSON array of usernames", ErrInvalidInput)
	}
	return cleanTaggedUsers(users)
}

func cleanTaggedUsers(users []string) ([]string, error) {
	var cleaned []string
	for _, u := range users {
		u = strings.TrimPrefix(strings.TrimSpace(u), "@")
		if u != "" {
			cleaned = append(cleaned, u)
		}
	}
	if len(cleaned) > maxTaggedUsers {
		return nil, fmt.Errorf("%w: at most %d tagged users", ErrInvalidInput, maxTaggedUsers)
	}
	return cleaned, nil
}

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("error reading file content: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: media file is empty", ErrInvalidInput)
	}
	return data, nil
}
