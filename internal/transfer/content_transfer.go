package transfer

// ContentCreation carries the form fields of a new scheduled item.
type ContentCreation struct {
	AccountID     int64
	Type          string
	Caption       string
	ScheduledDate string
	FirstComment  string
	Location      string
	HideLikeCount bool
	TaggedUsers   string
}

// ContentEdit is the JSON body of an edit. Nil fields are left unchanged.
type ContentEdit struct {
	AccountID     *int64    `json:"account_id"`
	Caption       *string   `json:"caption"`
	ScheduledDate *string   `json:"scheduled_date"`
	FirstComment  *string   `json:"first_comment"`
	Location      *string   `json:"location"`
	HideLikeCount *bool     `json:"hide_like_count"`
	TaggedUsers   *[]string `json:"tagged_users"`
}

type AccountCreation struct {
	Username   string         `json:"username"`
	ProfilePic string         `json:"profile_pic"`
	Session    map[string]any `json:"session"`
}
