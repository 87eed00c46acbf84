package dao

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/acornlabs/outreach/tools"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("not found")

type DAO interface {
	CreateApplicant(a Applicant) (Applicant, error)
	GetApplicant(id string) (*Applicant, error)
	GetApplicantByEmail(email string) (*Applicant, error)
	ListApplicants(limit int, country string) ([]Applicant, error)
	CountApplicants(country string) (int, error)
	MarkUnsubscribed(applicantId, template string) error

	CreateDeliveryLog(d DeliveryLog) (DeliveryLog, error)
	SetDeliveryBody(id, body string) error
	FinishDelivery(id string, status DeliveryStatus, retryCount int, errMsg string) error
	HasSuccessfulDelivery(applicantId, template string) (bool, error)
	GetDeliveryLog(id string) (*DeliveryLog, error)
	ListDeliveriesByApplicant(applicantId string) ([]DeliveryLog, error)
	ListDeliveriesByTemplate(template string) ([]DeliveryLog, error)
	GetDeliveryStats() (DeliveryStats, error)

	RecordOpen(id, ip, userAgent string) error
	RecordClick(id, url, ip, userAgent string) error
	GetEngagementStats() (EngagementStats, error)
}

func NewSQLite(path string) (DAO, error) {
	lite := &sqlite{path: path}
	err := lite.ensureSchema()
	return lite, err
}

type sqlite struct {
	db   *sqlx.DB
	path string
}

func (s *sqlite) CreateApplicant(a Applicant) (Applicant, error) {
	if a.Id == "" {
		a.Id = uuid.New().String()
	}
	a.Email = tools.NormalizeEmail(a.Email)
	now := time.Now().In(time.UTC)
	a.CreatedAt = now
	a.UpdatedAt = now

	q := `
	INSERT INTO applicant (id, email, full_name, job_title, phone, country, created_at, updated_at)
	VALUES (:id, :email, :full_name, :job_title, :phone, :country, :created_at, :updated_at)
	`
	db, err := s.getDB()
	if err != nil {
		return Applicant{}, err
	}
	_, err = db.NamedExec(q, a)
	if err != nil {
		return Applicant{}, fmt.Errorf("failed to insert applicant, %w", err)
	}
	return a, nil
}

func (s *sqlite) GetApplicant(id string) (*Applicant, error) {
	q := `SELECT * FROM applicant WHERE id = ?`
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	var a Applicant
	err = db.Get(&a, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (s *sqlite) GetApplicantByEmail(email string) (*Applicant, error) {
	q := `SELECT * FROM applicant WHERE email = ?`
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	var a Applicant
	err = db.Get(&a, q, tools.NormalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (s *sqlite) ListApplicants(limit int, country string) ([]Applicant, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	var applicants []Applicant
	if country == "" {
		err = db.Select(&applicants, `SELECT * FROM applicant ORDER BY created_at LIMIT ?`, limit)
		return applicants, err
	}
	err = db.Select(&applicants, `SELECT * FROM applicant WHERE country = ? ORDER BY created_at LIMIT ?`, country, limit)
	return applicants, err
}

func (s *sqlite) CountApplicants(country string) (int, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	var count int
	if country == "" {
		err = db.Get(&count, `SELECT count(*) FROM applicant`)
		return count, err
	}
	err = db.Get(&count, `SELECT count(*) FROM applicant WHERE country = ?`, country)
	return count, err
}

func (s *sqlite) MarkUnsubscribed(applicantId, template string) error {
	q := `
	UPDATE applicant
	SET unsubscribed      = 1,
	    unsubscribed_at   = ?,
	    unsubscribed_from = ?,
	    updated_at        = ?
	WHERE id = ?
	`
	db, err := s.getDB()
	if err != nil {
		return err
	}
	now := time.Now().In(time.UTC)
	res, err := db.Exec(q, now, template, now, applicantId)
	if err != nil {
		return fmt.Errorf("failed to mark applicant %s unsubscribed, %w", applicantId, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlite) CreateDeliveryLog(d DeliveryLog) (DeliveryLog, error) {
	if d.Id == "" {
		d.Id = uuid.New().String()
	}
	if d.Status == "" {
		d.Status = StatusPending
	}
	now := time.Now().In(time.UTC)
	d.CreatedAt = now
	d.UpdatedAt = now

	q := `
	INSERT INTO delivery_log (id, applicant_id, template, status, subject, body, retry_count, error, created_at, updated_at)
	VALUES (:id, :applicant_id, :template, :status, :subject, :body, :retry_count, :error, :created_at, :updated_at)
	`
	db, err := s.getDB()
	if err != nil {
		return DeliveryLog{}, err
	}
	_, err = db.NamedExec(q, d)
	if err != nil {
		return DeliveryLog{}, fmt.Errorf("failed to insert delivery log, %w", err)
	}
	return d, nil
}

func (s *sqlite) SetDeliveryBody(id, body string) error {
	q := `UPDATE delivery_log SET body = ?, updated_at = ? WHERE id = ?`
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.Exec(q, body, time.Now().In(time.UTC), id)
	if err != nil {
		return fmt.Errorf("failed to update delivery body for %s, %w", id, err)
	}
	return nil
}

func (s *sqlite) FinishDelivery(id string, status DeliveryStatus, retryCount int, errMsg string) error {
	q := `
	UPDATE delivery_log
	SET status      = ?,
	    retry_count = ?,
	    error       = ?,
	    sent_at     = ?,
	    updated_at  = ?
	WHERE id = ?
	`
	db, err := s.getDB()
	if err != nil {
		return err
	}
	now := time.Now().In(time.UTC)
	// sent_at only exists for deliveries that actually left the transport
	var sentAt *time.Time
	if status == StatusSuccess {
		sentAt = &now
	}
	res, err := db.Exec(q, status, retryCount, errMsg, sentAt, now, id)
	if err != nil {
		return fmt.Errorf("failed to finish delivery %s, %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return fmt.Errorf("could not finish delivery %s, %d rows affected", id, affected)
	}
	return nil
}

func (s *sqlite) HasSuccessfulDelivery(applicantId, template string) (bool, error) {
	q := `
	SELECT count(*)
	FROM delivery_log
	WHERE applicant_id = ?
	  AND template = ?
	  AND status = ?
	`
	db, err := s.getDB()
	if err != nil {
		return false, err
	}
	var count int
	err = db.Get(&count, q, applicantId, template, StatusSuccess)
	return count > 0, err
}

func (s *sqlite) GetDeliveryLog(id string) (*DeliveryLog, error) {
	q := `SELECT * FROM delivery_log WHERE id = ?`
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	var d DeliveryLog
	err = db.Get(&d, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &d, err
}

func (s *sqlite) ListDeliveriesByApplicant(applicantId string) ([]DeliveryLog, error) {
	q := `SELECT * FROM delivery_log WHERE applicant_id = ? ORDER BY created_at DESC`
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	var logs []DeliveryLog
	err = db.Select(&logs, q, applicantId)
	return logs, err
}

func (s *sqlite) ListDeliveriesByTemplate(template string) ([]DeliveryLog, error) {
	q := `SELECT * FROM delivery_log WHERE template = ? ORDER BY created_at DESC`
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	var logs []DeliveryLog
	err = db.Select(&logs, q, template)
	return logs, err
}

func (s *sqlite) GetDeliveryStats() (DeliveryStats, error) {
	q := `
	SELECT count(*)                                        AS total,
	       count(CASE WHEN status = 'success' THEN 1 END)  AS success,
	       count(CASE WHEN status = 'failed' THEN 1 END)   AS failed
	FROM delivery_log
	`
	db, err := s.getDB()
	if err != nil {
		return DeliveryStats{}, err
	}
	var stats DeliveryStats
	err = db.Get(&stats, q)
	return stats, err
}

// RecordOpen applies the whole open event in one statement. The first-open
// timestamp is set-if-null and the counter increments in place, so two
// concurrent beacons cannot lose an update.
func (s *sqlite) RecordOpen(id, ip, userAgent string) error {
	q := `
	UPDATE delivery_log
	SET opened_at         = COALESCE(opened_at, ?),
	    open_count        = open_count + 1,
	    last_opened_at    = ?,
	    opened_ip         = ?,
	    opened_user_agent = ?,
	    updated_at        = ?
	WHERE id = ?
	`
	db, err := s.getDB()
	if err != nil {
		return err
	}
	now := time.Now().In(time.UTC)
	res, err := db.Exec(q, now, now, ip, userAgent, now, id)
	if err != nil {
		return fmt.Errorf("failed to record open for %s, %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlite) RecordClick(id, url, ip, userAgent string) error {
	q := `
	UPDATE delivery_log
	SET clicked_at         = COALESCE(clicked_at, ?),
	    click_count        = click_count + 1,
	    last_clicked_at    = ?,
	    last_clicked_url   = ?,
	    clicked_ip         = ?,
	    clicked_user_agent = ?,
	    updated_at         = ?
	WHERE id = ?
	`
	db, err := s.getDB()
	if err != nil {
		return err
	}
	now := time.Now().In(time.UTC)
	res, err := db.Exec(q, now, now, url, ip, userAgent, now, id)
	if err != nil {
		return fmt.Errorf("failed to record click for %s, %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlite) GetEngagementStats() (EngagementStats, error) {
	q := `
	SELECT count(*)                                          AS total_emails,
	       COALESCE(sum(open_count), 0)                      AS total_opens,
	       COALESCE(sum(click_count), 0)                     AS total_clicks,
	       count(CASE WHEN opened_at IS NOT NULL THEN 1 END)  AS unique_opens,
	       count(CASE WHEN clicked_at IS NOT NULL THEN 1 END) AS unique_clicks
	FROM delivery_log
	`
	db, err := s.getDB()
	if err != nil {
		return EngagementStats{}, err
	}
	var stats EngagementStats
	err = db.Get(&stats, q)
	return stats, err
}

func (s *sqlite) tuneDatabase() error {
	q := `pragma journal_mode = WAL;
			pragma synchronous = normal;
			pragma temp_store = memory;
			pragma foreign_keys = on;`

	if s.db == nil {
		return errors.New("db must be instantiated")
	}
	_, err := s.db.Exec(q)
	return err
}

func (s *sqlite) getDB() (*sqlx.DB, error) {

	var err error
	for s.db == nil || s.db.Ping() != nil {

		if s.db != nil {
			_ = s.db.Close()
			s.db = nil
		}

		s.db, err = sqlx.Connect("sqlite3", s.path)
		if err != nil {
			return nil, fmt.Errorf("error while connecting, %w", err)
		}
		err := s.tuneDatabase()
		if err != nil {
			return nil, fmt.Errorf("error while tuning db instance, %w", err)
		}
	}

	return s.db, nil
}

func (s *sqlite) ensureSchema() error {

	db, err := s.getDB()
	if err != nil {
		return fmt.Errorf("could not get db, %w", err)
	}

	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS applicant (
	    id    TEXT PRIMARY KEY,
	    email TEXT NOT NULL UNIQUE, -- stored lower cased

	    full_name TEXT NOT NULL,
	    job_title TEXT DEFAULT '',
	    phone     TEXT DEFAULT '',
	    country   TEXT DEFAULT '',

	    unsubscribed      INT NOT NULL DEFAULT 0,
	    unsubscribed_at   DATETIME,
	    unsubscribed_from TEXT DEFAULT '',

	    created_at DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now')),
	    updated_at DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
	);

	CREATE TABLE IF NOT EXISTS delivery_log (
	    id           TEXT PRIMARY KEY, -- doubles as the tracking id
	    applicant_id TEXT NOT NULL REFERENCES applicant (id),
	    template     TEXT NOT NULL,

	    status TEXT NOT NULL, -- pending, success, failed

	    subject     TEXT DEFAULT '',
	    body        TEXT DEFAULT '',
	    retry_count INT  DEFAULT 0,
	    error       TEXT DEFAULT '',

	    opened_at         DATETIME,
	    open_count        INT DEFAULT 0,
	    last_opened_at    DATETIME,
	    opened_ip         TEXT DEFAULT '',
	    opened_user_agent TEXT DEFAULT '',

	    clicked_at         DATETIME,
	    click_count        INT DEFAULT 0,
	    last_clicked_at    DATETIME,
	    last_clicked_url   TEXT DEFAULT '',
	    clicked_ip         TEXT DEFAULT '',
	    clicked_user_agent TEXT DEFAULT '',

	    sent_at    DATETIME,
	    created_at DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now')),
	    updated_at DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_delivery_applicant_template ON delivery_log(applicant_id, template, status);
	CREATE INDEX IF NOT EXISTS idx_applicant_country ON applicant(country);
`)
	if err != nil {
		return fmt.Errorf("could not upsert schema, %w", err)
	}

	return err
}
