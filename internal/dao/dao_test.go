package dao

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) DAO {
	t.Helper()
	dir, err := os.MkdirTemp("", "dao_test")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = os.RemoveAll(dir)
	})
	db, err := NewSQLite(filepath.Join(dir, "outreach.sqlite"))
	require.NoError(t, err)
	return db
}

func TestApplicantEmailIsCaseInsensitive(t *testing.T) {
	db := setup(t)

	created, err := db.CreateApplicant(Applicant{Email: "JANE@X.com", FullName: "Jane Doe"})
	require.NoError(t, err)
	assert.Equal(t, "jane@x.com", created.Email)
	assert.NotEmpty(t, created.Id)

	got, err := db.GetApplicantByEmail("Jane@X.COM")
	require.NoError(t, err)
	assert.Equal(t, created.Id, got.Id)
	assert.Equal(t, "jane@x.com", got.Email)
}

func TestApplicantEmailIsUnique(t *testing.T) {
	db := setup(t)

	_, err := db.CreateApplicant(Applicant{Email: "dup@example.com", FullName: "First"})
	require.NoError(t, err)

	_, err = db.CreateApplicant(Applicant{Email: "DUP@example.com", FullName: "Second"})
	assert.Error(t, err)
}

func TestGetApplicantNotFound(t *testing.T) {
	db := setup(t)

	_, err := db.GetApplicant("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.GetApplicantByEmail("nope@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndCountApplicants(t *testing.T) {
	db := setup(t)

	_, err := db.CreateApplicant(Applicant{Email: "a@example.com", FullName: "A", Country: "SE"})
	require.NoError(t, err)
	_, err = db.CreateApplicant(Applicant{Email: "b@example.com", FullName: "B", Country: "SE"})
	require.NoError(t, err)
	_, err = db.CreateApplicant(Applicant{Email: "c@example.com", FullName: "C", Country: "NO"})
	require.NoError(t, err)

	all, err := db.ListApplicants(10, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	swedes, err := db.ListApplicants(10, "SE")
	require.NoError(t, err)
	assert.Len(t, swedes, 2)

	limited, err := db.ListApplicants(1, "")
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	count, err := db.CountApplicants("NO")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMarkUnsubscribed(t *testing.T) {
	db := setup(t)

	a, err := db.CreateApplicant(Applicant{Email: "unsub@example.com", FullName: "U"})
	require.NoError(t, err)

	err = db.MarkUnsubscribed(a.Id, "welcome")
	require.NoError(t, err)

	got, err := db.GetApplicant(a.Id)
	require.NoError(t, err)
	assert.True(t, got.Unsubscribed)
	assert.NotNil(t, got.UnsubscribedAt)
	assert.Equal(t, "welcome", got.UnsubscribedFrom)

	err = db.MarkUnsubscribed("unknown", "welcome")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeliveryLifecycle(t *testing.T) {
	db := setup(t)

	a, err := db.CreateApplicant(Applicant{Email: "jane@x.com", FullName: "Jane Doe"})
	require.NoError(t, err)

	entry, err := db.CreateDeliveryLog(DeliveryLog{
		ApplicantId: a.Id,
		Template:    "welcome",
		Subject:     "Welcome, Jane Doe!",
		Body:        "<html><body>hi</body></html>",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.Id)
	assert.Equal(t, StatusPending, entry.Status)

	sent, err := db.HasSuccessfulDelivery(a.Id, "welcome")
	require.NoError(t, err)
	assert.False(t, sent)

	err = db.SetDeliveryBody(entry.Id, "<html><body>hi<img></body></html>")
	require.NoError(t, err)

	err = db.FinishDelivery(entry.Id, StatusSuccess, 0, "")
	require.NoError(t, err)

	got, err := db.GetDeliveryLog(entry.Id)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, got.Status)
	assert.Equal(t, "<html><body>hi<img></body></html>", got.Body)
	assert.NotNil(t, got.SentAt)

	sent, err = db.HasSuccessfulDelivery(a.Id, "welcome")
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = db.HasSuccessfulDelivery(a.Id, "marketing")
	require.NoError(t, err)
	assert.False(t, sent)
}

func TestFailedDeliveryCarriesNoSentAt(t *testing.T) {
	db := setup(t)

	a, err := db.CreateApplicant(Applicant{Email: "fail@example.com", FullName: "F"})
	require.NoError(t, err)
	entry, err := db.CreateDeliveryLog(DeliveryLog{ApplicantId: a.Id, Template: "welcome"})
	require.NoError(t, err)

	require.NoError(t, db.FinishDelivery(entry.Id, StatusFailed, 3, "connection refused"))

	got, err := db.GetDeliveryLog(entry.Id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Nil(t, got.SentAt, "a delivery that never left the transport has no send timestamp")
}

func TestListDeliveriesByTemplate(t *testing.T) {
	db := setup(t)

	a, err := db.CreateApplicant(Applicant{Email: "a@example.com", FullName: "A"})
	require.NoError(t, err)
	b, err := db.CreateApplicant(Applicant{Email: "b@example.com", FullName: "B"})
	require.NoError(t, err)

	_, err = db.CreateDeliveryLog(DeliveryLog{ApplicantId: a.Id, Template: "welcome"})
	require.NoError(t, err)
	_, err = db.CreateDeliveryLog(DeliveryLog{ApplicantId: b.Id, Template: "welcome"})
	require.NoError(t, err)
	_, err = db.CreateDeliveryLog(DeliveryLog{ApplicantId: a.Id, Template: "marketing"})
	require.NoError(t, err)

	welcome, err := db.ListDeliveriesByTemplate("welcome")
	require.NoError(t, err)
	assert.Len(t, welcome, 2)

	marketing, err := db.ListDeliveriesByTemplate("marketing")
	require.NoError(t, err)
	require.Len(t, marketing, 1)
	assert.Equal(t, a.Id, marketing[0].ApplicantId)

	none, err := db.ListDeliveriesByTemplate("missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecordOpenIsIdempotentOnFirstTimestamp(t *testing.T) {
	db := setup(t)

	a, err := db.CreateApplicant(Applicant{Email: "open@example.com", FullName: "O"})
	require.NoError(t, err)
	entry, err := db.CreateDeliveryLog(DeliveryLog{ApplicantId: a.Id, Template: "welcome"})
	require.NoError(t, err)

	err = db.RecordOpen(entry.Id, "10.0.0.1", "thunderbird")
	require.NoError(t, err)

	first, err := db.GetDeliveryLog(entry.Id)
	require.NoError(t, err)
	require.NotNil(t, first.OpenedAt)
	assert.Equal(t, 1, first.OpenCount)

	time.Sleep(10 * time.Millisecond)

	err = db.RecordOpen(entry.Id, "10.0.0.2", "gmail")
	require.NoError(t, err)

	second, err := db.GetDeliveryLog(entry.Id)
	require.NoError(t, err)
	assert.Equal(t, 2, second.OpenCount)
	assert.True(t, first.OpenedAt.Equal(*second.OpenedAt), "openedAt must be set exactly once")
	assert.True(t, second.LastOpenedAt.After(*second.OpenedAt))
	assert.Equal(t, "10.0.0.2", second.OpenedIp)
	assert.Equal(t, "gmail", second.OpenedUserAgent)
}

func TestRecordClick(t *testing.T) {
	db := setup(t)

	a, err := db.CreateApplicant(Applicant{Email: "click@example.com", FullName: "C"})
	require.NoError(t, err)
	entry, err := db.CreateDeliveryLog(DeliveryLog{ApplicantId: a.Id, Template: "welcome"})
	require.NoError(t, err)

	err = db.RecordClick(entry.Id, "https://example.com/a", "10.0.0.1", "safari")
	require.NoError(t, err)
	err = db.RecordClick(entry.Id, "https://example.com/b", "10.0.0.1", "safari")
	require.NoError(t, err)

	got, err := db.GetDeliveryLog(entry.Id)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ClickCount)
	assert.NotNil(t, got.ClickedAt)
	assert.Equal(t, "https://example.com/b", got.LastClickedURL)
}

func TestRecordUnknownDelivery(t *testing.T) {
	db := setup(t)

	assert.ErrorIs(t, db.RecordOpen("unknown", "", ""), ErrNotFound)
	assert.ErrorIs(t, db.RecordClick("unknown", "https://example.com", "", ""), ErrNotFound)
}

func TestStats(t *testing.T) {
	db := setup(t)

	a, err := db.CreateApplicant(Applicant{Email: "stats@example.com", FullName: "S"})
	require.NoError(t, err)

	ok, err := db.CreateDeliveryLog(DeliveryLog{ApplicantId: a.Id, Template: "welcome"})
	require.NoError(t, err)
	require.NoError(t, db.FinishDelivery(ok.Id, StatusSuccess, 0, ""))

	bad, err := db.CreateDeliveryLog(DeliveryLog{ApplicantId: a.Id, Template: "marketing"})
	require.NoError(t, err)
	require.NoError(t, db.FinishDelivery(bad.Id, StatusFailed, 3, "connection refused"))

	require.NoError(t, db.RecordOpen(ok.Id, "", ""))
	require.NoError(t, db.RecordOpen(ok.Id, "", ""))
	require.NoError(t, db.RecordClick(ok.Id, "https://example.com", "", ""))

	ds, err := db.GetDeliveryStats()
	require.NoError(t, err)
	assert.Equal(t, DeliveryStats{Total: 2, Success: 1, Failed: 1}, ds)

	es, err := db.GetEngagementStats()
	require.NoError(t, err)
	assert.Equal(t, EngagementStats{
		TotalEmails:  2,
		TotalOpens:   2,
		TotalClicks:  1,
		UniqueOpens:  1,
		UniqueClicks: 1,
	}, es)
}
