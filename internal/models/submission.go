package models

import "time"

// Submission sources recognised by the landing page.
const (
	SourceHero       = "hero"
	SourceFooter     = "footer"
	SourceCoursePage = "course_page"
	SourceUnknown    = "unknown"
)

// FormData is the in-memory representation of the waitlist form while a
// visitor edits it. Optional fields are pointers so an absent value can be
// distinguished from an explicitly empty one.
type FormData struct {
	Name                 string  `json:"name"`
	Email                string  `json:"email"`
	SubscribedNewsletter bool    `json:"subscribed_newsletter"`
	Message              *string `json:"message,omitempty"`
	Company              *string `json:"company,omitempty"`
	Phone                *string `json:"phone,omitempty"`
}

// Clone returns a deep copy of the form data so snapshots handed to
// callbacks cannot alias controller-owned state.
func (f FormData) Clone() FormData {
	out := f
	out.Message = cloneString(f.Message)
	out.Company = cloneString(f.Company)
	out.Phone = cloneString(f.Phone)
	return out
}

// SubmissionRecord is the server-assigned row created by a successful
// submission. Records are immutable on the client; the store guarantees
// email uniqueness.
type SubmissionRecord struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Email                string    `json:"email"`
	SubscribedNewsletter bool      `json:"subscribed_newsletter"`
	Message              *string   `json:"message,omitempty"`
	Company              *string   `json:"company,omitempty"`
	Phone                *string   `json:"phone,omitempty"`
	Source               string    `json:"source"`
	SubmittedAt          time.Time `json:"submitted_at"`
}

// Filters restricts count queries. Nil pointer fields mean "no constraint";
// the submitted-at bounds are inclusive.
type Filters struct {
	SubscribedNewsletter *bool
	Source               string
	SubmittedAfter       *time.Time
	SubmittedBefore      *time.Time
}

// Stats aggregates submission counts for the live counter widgets.
type Stats struct {
	Total                 int            `json:"total"`
	NewsletterSubscribers int            `json:"newsletter_subscribers"`
	ThisMonth             int            `json:"this_month"`
	SourceBreakdown       map[string]int `json:"source_breakdown"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
