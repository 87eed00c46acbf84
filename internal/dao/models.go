package dao

import "time"

type DeliveryStatus string

const StatusPending DeliveryStatus = "pending"
const StatusSuccess DeliveryStatus = "success"
const StatusFailed DeliveryStatus = "failed"

type Applicant struct {
	Id       string `db:"id"`
	Email    string `db:"email"`
	FullName string `db:"full_name"`
	JobTitle string `db:"job_title"`
	Phone    string `db:"phone"`
	Country  string `db:"country"`

	Unsubscribed     bool       `db:"unsubscribed"`
	UnsubscribedAt   *time.Time `db:"unsubscribed_at"`
	UnsubscribedFrom string     `db:"unsubscribed_from"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// DeliveryLog is one row per send attempt for an (applicant, template) pair.
// Its id doubles as the tracking id embedded in pixel and click URLs.
type DeliveryLog struct {
	Id          string         `db:"id"`
	ApplicantId string         `db:"applicant_id"`
	Template    string         `db:"template"`
	Status      DeliveryStatus `db:"status"`
	Subject     string         `db:"subject"`
	Body        string         `db:"body"`
	RetryCount  int            `db:"retry_count"`
	Error       string         `db:"error"`

	OpenedAt        *time.Time `db:"opened_at"`
	OpenCount       int        `db:"open_count"`
	LastOpenedAt    *time.Time `db:"last_opened_at"`
	OpenedIp        string     `db:"opened_ip"`
	OpenedUserAgent string     `db:"opened_user_agent"`

	ClickedAt        *time.Time `db:"clicked_at"`
	ClickCount       int        `db:"click_count"`
	LastClickedAt    *time.Time `db:"last_clicked_at"`
	LastClickedURL   string     `db:"last_clicked_url"`
	ClickedIp        string     `db:"clicked_ip"`
	ClickedUserAgent string     `db:"clicked_user_agent"`

	SentAt    *time.Time `db:"sent_at"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

type DeliveryStats struct {
	Total   int `db:"total"`
	Success int `db:"success"`
	Failed  int `db:"failed"`
}

type EngagementStats struct {
	TotalEmails  int `db:"total_emails"`
	TotalOpens   int `db:"total_opens"`
	TotalClicks  int `db:"total_clicks"`
	UniqueOpens  int `db:"unique_opens"`
	UniqueClicks int `db:"unique_clicks"`
}
