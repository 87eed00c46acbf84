package tracking

import (
	"bytes"
	"errors"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acornlabs/outreach/internal/dao"
)

type testDAO struct {
	dao.DAO
	openErr   error
	clickErr  error
	opens     int
	clicks    int
	lastURL   string
	lastAgent string
}

func (t *testDAO) RecordOpen(id, ip, userAgent string) error {
	if t.openErr != nil {
		return t.openErr
	}
	t.opens++
	t.lastAgent = userAgent
	return nil
}

func (t *testDAO) RecordClick(id, url, ip, userAgent string) error {
	if t.clickErr != nil {
		return t.clickErr
	}
	t.clicks++
	t.lastURL = url
	return nil
}

func TestRecorderRecordsEvents(t *testing.T) {
	db := &testDAO{}
	rec := NewRecorder(db, nil)

	rec.RecordOpen("tid", "10.0.0.1", "thunderbird")
	rec.RecordClick("tid", "https://example.com", "10.0.0.1", "thunderbird")

	assert.Equal(t, 1, db.opens)
	assert.Equal(t, 1, db.clicks)
	assert.Equal(t, "https://example.com", db.lastURL)
	assert.Equal(t, "thunderbird", db.lastAgent)
}

func TestRecorderIgnoresBlankTrackingId(t *testing.T) {
	db := &testDAO{}
	rec := NewRecorder(db, nil)

	rec.RecordOpen("", "", "")
	rec.RecordClick("", "https://example.com", "", "")

	assert.Zero(t, db.opens)
	assert.Zero(t, db.clicks)
}

func TestRecorderSwallowsErrors(t *testing.T) {
	db := &testDAO{
		openErr:  dao.ErrNotFound,
		clickErr: errors.New("database is locked"),
	}
	rec := NewRecorder(db, nil)

	// must not panic or propagate, the beacon response does not depend on it
	rec.RecordOpen("unknown", "", "")
	rec.RecordClick("tid", "https://example.com", "", "")

	assert.Zero(t, db.opens)
	assert.Zero(t, db.clicks)
}

func TestPixelIsAValidPNG(t *testing.T) {
	img, err := png.Decode(bytes.NewReader(Pixel))
	require.NoError(t, err)
	bounds := img.Bounds()
	assert.Equal(t, 1, bounds.Dx())
	assert.Equal(t, 1, bounds.Dy())
}
