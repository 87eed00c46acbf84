package sender

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/acornlabs/outreach"
	"github.com/acornlabs/outreach/internal/dao"
	"github.com/acornlabs/outreach/internal/metrics"
	"github.com/acornlabs/outreach/internal/templates"
	"github.com/acornlabs/outreach/internal/tracking"
	"github.com/acornlabs/outreach/tools"
	"github.com/modfin/henry/slicez"
	"github.com/sirupsen/logrus"
)

type CourierConfig struct {
	// BaseURL is the public address used for tracking pixels, click redirects
	// and unsubscribe links.
	BaseURL  string
	StartURL string

	Retry RetryConfig

	Logger *logrus.Logger
}

// Courier decides send-or-skip per (applicant, template) pair, renders and
// instruments the email, sends with retry and persists the outcome.
type Courier struct {
	db        dao.DAO
	renderer  templates.Renderer
	transport Transport
	cfg       CourierConfig
	log       *logrus.Logger

	// locks serializes deliveries per (applicant, template), the already-sent
	// check and the send are not atomic against the database.
	locks *tools.KeyedMutex
}

func NewCourier(db dao.DAO, renderer templates.Renderer, transport Transport, cfg CourierConfig) *Courier {
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
		log.AddHook(tools.LoggerWho{Name: "courier"})
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.BaseDelay == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	return &Courier{
		db:        db,
		renderer:  renderer,
		transport: transport,
		cfg:       cfg,
		log:       log,
		locks:     tools.NewKeyedMutex(),
	}
}

func (c *Courier) MaxRetries() int {
	return c.cfg.Retry.MaxRetries
}

func (c *Courier) UnsubscribeURL(applicantId, template string) string {
	return fmt.Sprintf("%s/unsubscribe/%s?email=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), applicantId, url.QueryEscape(template))
}

// Deliver produces exactly one outcome for an applicant and template: skipped
// (unsubscribed or already sent), or attempted with terminal success/failure.
//
// The unsubscribe check always runs first, before the already-sent check, and
// force never bypasses it.
//
// In dry-run mode the delivery log row is still created and instrumented but
// the transport is never invoked and the row stays pending.
func (c *Courier) Deliver(ctx context.Context, applicant dao.Applicant, template string, force, dryRun bool) outreach.DeliveryResult {

	unlock := c.locks.Lock(applicant.Id + "/" + template)
	defer unlock()

	result := outreach.DeliveryResult{
		ApplicantId:    applicant.Id,
		ApplicantEmail: applicant.Email,
	}

	if applicant.Unsubscribed {
		c.log.WithField("email", applicant.Email).Info("applicant is unsubscribed, skipping")
		metrics.EmailsSkipped.WithLabelValues(template, string(outreach.SkipUnsubscribed)).Inc()
		result.Success = true
		result.Skipped = true
		result.SkipReason = outreach.SkipUnsubscribed
		return result
	}

	if !force {
		sent, err := c.db.HasSuccessfulDelivery(applicant.Id, template)
		if err != nil {
			result.ErrorMessage = fmt.Sprintf("could not check delivery history: %v", err)
			return result
		}
		if sent {
			c.log.WithFields(logrus.Fields{"email": applicant.Email, "template": template}).
				Info("email already sent, skipping")
			metrics.EmailsSkipped.WithLabelValues(template, string(outreach.SkipAlreadySent)).Inc()
			result.Success = true
			result.Skipped = true
			result.SkipReason = outreach.SkipAlreadySent
			return result
		}
	}

	rendered, err := c.renderer.Render(template, templates.Data{
		FullName:       applicant.FullName,
		Email:          applicant.Email,
		JobTitle:       applicant.JobTitle,
		Country:        applicant.Country,
		UnsubscribeURL: c.UnsubscribeURL(applicant.Id, template),
		StartURL:       c.cfg.StartURL,
	})
	if err != nil {
		// No delivery log row exists for render failures, they are
		// reported straight back to the caller.
		c.log.WithError(err).WithField("template", template).Error("could not render template")
		result.ErrorMessage = err.Error()
		return result
	}

	// The row is created pending before the body is instrumented so the
	// tracking id exists before anything is transmitted.
	entry, err := c.db.CreateDeliveryLog(dao.DeliveryLog{
		ApplicantId: applicant.Id,
		Template:    template,
		Status:      dao.StatusPending,
		Subject:     rendered.Subject,
		Body:        rendered.HTML,
	})
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("could not create delivery log: %v", err)
		return result
	}

	instrumented := tracking.Instrument(rendered.HTML, entry.Id, c.cfg.BaseURL, c.cfg.BaseURL)
	err = c.db.SetDeliveryBody(entry.Id, instrumented)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("could not persist instrumented body: %v", err)
		_ = c.db.FinishDelivery(entry.Id, dao.StatusFailed, 0, result.ErrorMessage)
		return result
	}

	if dryRun {
		c.log.WithFields(logrus.Fields{"email": applicant.Email, "subject": rendered.Subject}).
			Info("dry run, would send email")
		result.Success = true
		return result
	}

	res := SendWithRetry(ctx, c.transport, Message{
		To:             applicant.Email,
		Subject:        rendered.Subject,
		HTML:           instrumented,
		UnsubscribeURL: c.UnsubscribeURL(applicant.Id, template),
	}, c.cfg.Retry, c.log)

	if res.Success {
		err = c.db.FinishDelivery(entry.Id, dao.StatusSuccess, 0, "")
		if err != nil {
			c.log.WithError(err).WithField("tid", entry.Id).Error("could not persist delivery success")
		}
		metrics.EmailsSent.WithLabelValues(template, string(dao.StatusSuccess)).Inc()
		result.Success = true
		return result
	}

	errMsg := "unknown error"
	if res.Err != nil {
		errMsg = res.Err.Error()
	}
	err = c.db.FinishDelivery(entry.Id, dao.StatusFailed, c.cfg.Retry.MaxRetries, errMsg)
	if err != nil {
		c.log.WithError(err).WithField("tid", entry.Id).Error("could not persist delivery failure")
	}
	metrics.EmailsSent.WithLabelValues(template, string(dao.StatusFailed)).Inc()
	result.ErrorMessage = errMsg
	return result
}

// SendBatch processes applicants sequentially, never short-circuiting on an
// individual failure.
func (c *Courier) SendBatch(ctx context.Context, applicants []dao.Applicant, template string, force, dryRun bool) []outreach.DeliveryResult {

	results := make([]outreach.DeliveryResult, 0, len(applicants))
	for i, applicant := range applicants {
		c.log.Infof("[%d/%d] processing %s", i+1, len(applicants), applicant.Email)
		results = append(results, c.Deliver(ctx, applicant, template, force, dryRun))
	}
	return results
}

type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
}

func Summarize(results []outreach.DeliveryResult) Summary {
	skipped := slicez.Filter(results, func(r outreach.DeliveryResult) bool {
		return r.Skipped
	})
	failed := slicez.Filter(results, func(r outreach.DeliveryResult) bool {
		return !r.Success
	})
	return Summary{
		Total:     len(results),
		Succeeded: len(results) - len(failed) - len(skipped),
		Failed:    len(failed),
		Skipped:   len(skipped),
	}
}
