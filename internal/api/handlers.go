package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/acornlabs/outreach"
	"github.com/acornlabs/outreach/internal/dao"
	"github.com/acornlabs/outreach/internal/metrics"
	"github.com/acornlabs/outreach/internal/tracking"
	"github.com/acornlabs/outreach/tools"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// uploadSingle stores (or reuses) an applicant from the posted row and runs
// one orchestrated delivery for it.
func (s *Server) uploadSingle(c echo.Context) error {

	var req outreach.UploadRequest
	err := c.Bind(&req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not parse request body")
	}

	if strings.TrimSpace(req.Data.FullName) == "" || strings.TrimSpace(req.Data.Email) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing required fields: full_name and email are required")
	}
	if req.Template == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "template is required")
	}
	if !tools.ValidEmail(req.Data.Email) {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s is not a valid email address", req.Data.Email))
	}

	email := tools.NormalizeEmail(req.Data.Email)
	country := strings.TrimSpace(req.Country)
	if country == "" {
		country = strings.TrimSpace(req.Data.Country)
	}

	s.log.WithFields(logrus.Fields{"email": email, "force": req.Force}).Info("processing recipient upload")

	action := outreach.ActionExisting
	applicant, err := s.db.GetApplicantByEmail(email)
	if errors.Is(err, dao.ErrNotFound) {
		var created dao.Applicant
		created, err = s.db.CreateApplicant(dao.Applicant{
			Email:    email,
			FullName: strings.TrimSpace(req.Data.FullName),
			JobTitle: strings.TrimSpace(req.Data.JobTitle),
			Phone:    strings.TrimSpace(req.Data.Phone),
			Country:  country,
		})
		if err == nil {
			s.log.WithField("email", email).Info("created new applicant")
			action = outreach.ActionCreated
			applicant = &created
		}
	}
	if err != nil {
		s.log.WithError(err).WithField("email", email).Error("could not resolve applicant")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not resolve applicant")
	}

	result := s.courier.Deliver(c.Request().Context(), *applicant, req.Template, req.Force, false)

	resp := outreach.UploadResponse{
		Success:        result.Success,
		ApplicantId:    applicant.Id,
		ApplicantEmail: applicant.Email,
		Action:         action,
	}
	switch {
	case result.Skipped:
		resp.Action = outreach.ActionSkipped
		resp.Message = "email skipped"
		resp.EmailResult = outreach.EmailOutcome{Skipped: true, Reason: result.SkipReason}
	case result.Success:
		resp.Message = "email sent successfully"
		resp.EmailResult = outreach.EmailOutcome{Sent: true}
	default:
		resp.Message = "email failed"
		resp.EmailResult = outreach.EmailOutcome{
			RetryCount:   s.courier.MaxRetries(),
			ErrorMessage: result.ErrorMessage,
		}
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) markUnsubscribed(c echo.Context) (*dao.Applicant, error) {
	applicantId := c.Param("applicantId")
	template := c.QueryParam("email")
	if template == "" {
		template = "unknown"
	}

	applicant, err := s.db.GetApplicant(applicantId)
	if err != nil {
		return nil, err
	}

	err = s.db.MarkUnsubscribed(applicantId, template)
	if err != nil {
		return nil, err
	}
	metrics.Unsubscribes.Inc()
	s.log.WithFields(logrus.Fields{"email": applicant.Email, "template": template}).Info("applicant unsubscribed")
	return applicant, nil
}

func (s *Server) unsubscribe(c echo.Context) error {
	_, err := s.markUnsubscribed(c)
	if errors.Is(err, dao.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "applicant not found")
	}
	if err != nil {
		s.log.WithError(err).Error("could not process unsubscribe")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to process unsubscribe request")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "You have been successfully unsubscribed.",
	})
}

func (s *Server) unsubscribePage(c echo.Context) error {
	_, err := s.markUnsubscribed(c)
	if errors.Is(err, dao.ErrNotFound) {
		return c.HTML(http.StatusNotFound, "<p>Applicant not found.</p>")
	}
	if err != nil {
		s.log.WithError(err).Error("could not process unsubscribe")
		return c.HTML(http.StatusInternalServerError, "<p>Failed to process unsubscribe request.</p>")
	}
	return c.HTML(http.StatusOK, "<p>You have been successfully unsubscribed.</p>")
}

// trackOpen records an open beacon and always answers with the pixel. Blank
// or unknown ids and recording failures never change the response, a garbled
// pixel breaks rendering in email clients.
func (s *Server) trackOpen(c echo.Context) error {
	trackingId := strings.TrimSuffix(c.Param("id"), ".png")

	s.recorder.RecordOpen(trackingId, c.RealIP(), c.Request().UserAgent())

	c.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	return c.Blob(http.StatusOK, "image/png", tracking.Pixel)
}

func (s *Server) trackClick(c echo.Context) error {
	trackingId := c.Param("id")
	target := c.QueryParam("url")
	if target == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing url parameter")
	}

	s.recorder.RecordClick(trackingId, target, c.RealIP(), c.Request().UserAgent())

	return c.Redirect(http.StatusFound, target)
}

func (s *Server) trackingStats(c echo.Context) error {
	engagement, err := s.db.GetEngagementStats()
	if err != nil {
		s.log.WithError(err).Error("could not fetch engagement stats")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch stats")
	}
	deliveries, err := s.db.GetDeliveryStats()
	if err != nil {
		s.log.WithError(err).Error("could not fetch delivery stats")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch stats")
	}

	stats := outreach.AggregateStats{
		TotalEmails:  engagement.TotalEmails,
		TotalOpens:   engagement.TotalOpens,
		TotalClicks:  engagement.TotalClicks,
		UniqueOpens:  engagement.UniqueOpens,
		UniqueClicks: engagement.UniqueClicks,
	}
	stats.Deliveries.Total = deliveries.Total
	stats.Deliveries.Success = deliveries.Success
	stats.Deliveries.Failed = deliveries.Failed

	return c.JSON(http.StatusOK, stats)
}

func (s *Server) trackingById(c echo.Context) error {
	entry, err := s.db.GetDeliveryLog(c.Param("id"))
	if errors.Is(err, dao.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "delivery not found")
	}
	if err != nil {
		s.log.WithError(err).Error("could not fetch delivery log")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch tracking data")
	}

	return c.JSON(http.StatusOK, outreach.TrackingStats{
		DeliveryId:     entry.Id,
		OpenedAt:       entry.OpenedAt,
		OpenCount:      entry.OpenCount,
		LastOpened:     entry.LastOpenedAt,
		ClickedAt:      entry.ClickedAt,
		ClickCount:     entry.ClickCount,
		LastClicked:    entry.LastClickedAt,
		LastClickedURL: entry.LastClickedURL,
	})
}

func summarize(logs []dao.DeliveryLog) []outreach.DeliverySummary {
	summaries := make([]outreach.DeliverySummary, 0, len(logs))
	for _, entry := range logs {
		summaries = append(summaries, outreach.DeliverySummary{
			DeliveryId:   entry.Id,
			ApplicantId:  entry.ApplicantId,
			Template:     entry.Template,
			Status:       string(entry.Status),
			SentAt:       entry.SentAt,
			OpenCount:    entry.OpenCount,
			ClickCount:   entry.ClickCount,
			ErrorMessage: entry.Error,
		})
	}
	return summaries
}

// trackingByApplicant lists the delivery history of one applicant, newest
// first.
func (s *Server) trackingByApplicant(c echo.Context) error {
	applicantId := c.Param("applicantId")

	_, err := s.db.GetApplicant(applicantId)
	if errors.Is(err, dao.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "applicant not found")
	}
	if err != nil {
		s.log.WithError(err).Error("could not fetch applicant")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch delivery history")
	}

	logs, err := s.db.ListDeliveriesByApplicant(applicantId)
	if err != nil {
		s.log.WithError(err).Error("could not fetch delivery history")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch delivery history")
	}

	return c.JSON(http.StatusOK, summarize(logs))
}

func (s *Server) trackingByTemplate(c echo.Context) error {
	logs, err := s.db.ListDeliveriesByTemplate(c.Param("template"))
	if err != nil {
		s.log.WithError(err).Error("could not fetch deliveries by template")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch delivery history")
	}

	return c.JSON(http.StatusOK, summarize(logs))
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "outreachd",
	})
}
