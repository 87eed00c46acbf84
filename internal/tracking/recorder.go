package tracking

import (
	"errors"

	"github.com/acornlabs/outreach/internal/dao"
	"github.com/acornlabs/outreach/internal/metrics"
	"github.com/acornlabs/outreach/tools"
	"github.com/sirupsen/logrus"
)

// Recorder processes open and click beacons against a delivery log row.
//
// It never returns errors. The HTTP boundary must serve its pixel or redirect
// regardless of what happens here, so lookup and update failures are logged
// and swallowed. A lost event is acceptable, a broken pixel is not.
type Recorder struct {
	db  dao.DAO
	log *logrus.Logger
}

func NewRecorder(db dao.DAO, log *logrus.Logger) *Recorder {
	if log == nil {
		log = logrus.New()
		log.AddHook(tools.LoggerWho{Name: "tracking"})
	}
	return &Recorder{db: db, log: log}
}

func (r *Recorder) RecordOpen(trackingId, ip, userAgent string) {
	if trackingId == "" {
		r.log.Debug("open beacon without tracking id, ignoring")
		return
	}

	err := r.db.RecordOpen(trackingId, ip, userAgent)
	if errors.Is(err, dao.ErrNotFound) {
		r.log.WithField("tid", trackingId).Debug("open beacon for unknown delivery, ignoring")
		return
	}
	if err != nil {
		r.log.WithError(err).WithField("tid", trackingId).Error("could not record open event")
		return
	}
	metrics.Opens.Inc()
	r.log.WithField("tid", trackingId).Info("recorded open event")
}

func (r *Recorder) RecordClick(trackingId, url, ip, userAgent string) {
	if trackingId == "" {
		r.log.Debug("click beacon without tracking id, ignoring")
		return
	}

	err := r.db.RecordClick(trackingId, url, ip, userAgent)
	if errors.Is(err, dao.ErrNotFound) {
		r.log.WithField("tid", trackingId).Debug("click beacon for unknown delivery, ignoring")
		return
	}
	if err != nil {
		r.log.WithError(err).WithField("tid", trackingId).Error("could not record click event")
		return
	}
	metrics.Clicks.Inc()
	r.log.WithFields(logrus.Fields{"tid": trackingId, "url": url}).Info("recorded click event")
}
