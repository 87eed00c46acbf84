package outreach

import "time"

// Recipient is the inbound descriptor for one applicant, as produced by the
// import CLI or posted directly to the API.
type Recipient struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	JobTitle string `json:"job_title,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Country  string `json:"country,omitempty"`
}

type Action string

const ActionCreated Action = "created"
const ActionExisting Action = "existing"
const ActionSkipped Action = "skipped"

type SkipReason string

const SkipUnsubscribed SkipReason = "unsubscribed"
const SkipAlreadySent SkipReason = "already-sent"

// DeliveryResult is the per-applicant outcome of a send attempt.
type DeliveryResult struct {
	Success        bool   `json:"success"`
	ApplicantId    string `json:"applicant_id"`
	ApplicantEmail string `json:"applicant_email"`
	ErrorMessage   string `json:"error_message,omitempty"`

	Skipped    bool       `json:"skipped,omitempty"`
	SkipReason SkipReason `json:"skip_reason,omitempty"`
}

// UploadRequest is the body of POST /api/recipients.
type UploadRequest struct {
	Data     Recipient `json:"data"`
	Template string    `json:"template"`
	Force    bool      `json:"force,omitempty"`
	Country  string    `json:"country,omitempty"`
}

type EmailOutcome struct {
	Sent         bool       `json:"sent"`
	Skipped      bool       `json:"skipped"`
	Reason       SkipReason `json:"reason,omitempty"`
	RetryCount   int        `json:"retry_count,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

type UploadResponse struct {
	Success        bool         `json:"success"`
	Message        string       `json:"message"`
	ApplicantId    string       `json:"applicant_id"`
	ApplicantEmail string       `json:"applicant_email"`
	Action         Action       `json:"action"`
	EmailResult    EmailOutcome `json:"email_result"`
}

// TrackingStats is the engagement state of a single delivery.
type TrackingStats struct {
	DeliveryId string `json:"delivery_id"`

	OpenedAt   *time.Time `json:"opened_at"`
	OpenCount  int        `json:"open_count"`
	LastOpened *time.Time `json:"last_opened_at"`

	ClickedAt      *time.Time `json:"clicked_at"`
	ClickCount     int        `json:"click_count"`
	LastClicked    *time.Time `json:"last_clicked_at"`
	LastClickedURL string     `json:"last_clicked_url,omitempty"`
}

// DeliverySummary is one row of a delivery history listing, per applicant or
// per template.
type DeliverySummary struct {
	DeliveryId  string `json:"delivery_id"`
	ApplicantId string `json:"applicant_id"`
	Template    string `json:"template"`
	Status      string `json:"status"`

	SentAt     *time.Time `json:"sent_at"`
	OpenCount  int        `json:"open_count"`
	ClickCount int        `json:"click_count"`

	ErrorMessage string `json:"error_message,omitempty"`
}

type AggregateStats struct {
	TotalEmails  int `json:"total_emails"`
	TotalOpens   int `json:"total_opens"`
	TotalClicks  int `json:"total_clicks"`
	UniqueOpens  int `json:"unique_opens"`
	UniqueClicks int `json:"unique_clicks"`

	Deliveries struct {
		Total   int `json:"total"`
		Success int `json:"success"`
		Failed  int `json:"failed"`
	} `json:"deliveries"`
}
