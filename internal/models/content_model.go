package models

import "time"

type Kind string

const (
	KindPost  Kind = "post"
	KindStory Kind = "story"
)

func (k Kind) Valid() bool {
	return k == KindPost || k == KindStory
}

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is absorbing for the publishing pipeline.
func (s Status) Terminal() bool {
	return s == StatusPublished || s == StatusFailed
}

type Content struct {
	ID            int64      `db:"id" json:"id"`
	AccountID     int64      `db:"account_id" json:"account_id"`
	Kind          Kind       `db:"type" json:"type"`
	Caption       string     `db:"caption" json:"caption"`
	MediaRef      string     `db:"media_url" json:"media_url"`
	ScheduledAt   time.Time  `db:"scheduled_date" json:"scheduled_date"`
	Status        Status     `db:"status" json:"status"`
	FirstComment  string     `db:"first_comment" json:"first_comment,omitempty"`
	Location      string     `db:"location" json:"location,omitempty"`
	HideLikeCount bool       `db:"hide_like_count" json:"hide_like_count"`
	TaggedUsers   []string   `db:"tagged_users" json:"tagged_users,omitempty"`
	RemoteID      string     `db:"remote_id" json:"remote_id,omitempty"`
	FailureReason string     `db:"failure_reason" json:"failure_reason,omitempty"`
	PublishedAt   *time.Time `db:"published_at" json:"published_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// PostOptions is the post-only metadata handed to the publishing adapter untouched.
type PostOptions struct {
	FirstComment  string   `json:"first_comment,omitempty"`
	Location      string   `json:"location,omitempty"`
	HideLikeCount bool     `json:"hide_like_count,omitempty"`
	TaggedUsers   []string `json:"tagged_users,omitempty"`
}

func (c *Content) PostOptions() PostOptions {
	return PostOptions{
		FirstComment:  c.FirstComment,
		Location:      c.Location,
		HideLikeCount: c.HideLikeCount,
		TaggedUsers:   c.TaggedUsers,
	}
}

// StatusUpdate is a terminal status write plus its audit fields.
type StatusUpdate struct {
	Status   Status    `json:"status"`
	Reason   string    `json:"reason,omitempty"`
	RemoteID string    `json:"remote_id,omitempty"`
	At       time.Time `json:"at"`
}

// Failure reasons recorded by the publishing pipeline.
const (
	ReasonElapsed        = "schedule time elapsed"
	ReasonAccountMissing = "account missing"
	ReasonMediaMissing   = "media missing"
	ReasonTimeout        = "publish timed out"
	ReasonUnknown        = "unknown error publishing content"
)
