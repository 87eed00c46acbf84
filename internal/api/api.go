package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/acornlabs/outreach/internal/dao"
	"github.com/acornlabs/outreach/internal/sender"
	"github.com/acornlabs/outreach/internal/tracking"
	"github.com/acornlabs/outreach/tools"
	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/acme/autocert"
)

type Config struct {
	Port int

	AutoTLS      bool
	AutoTLSEmail string
	AutoTLSDir   string

	// BaseURL is used to derive the host for the AutoTLS certificate.
	BaseURL string

	Logger *logrus.Logger
}

type Server struct {
	cfg Config
	log *logrus.Logger

	db       dao.DAO
	courier  *sender.Courier
	recorder *tracking.Recorder

	e *echo.Echo
}

func New(cfg Config, db dao.DAO, courier *sender.Courier, recorder *tracking.Recorder) *Server {
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
		log.AddHook(tools.LoggerWho{Name: "api"})
	}
	return &Server{
		cfg:      cfg,
		log:      log,
		db:       db,
		courier:  courier,
		recorder: recorder,
	}
}

// beaconCORS answers preflight and relaxes origin checks on the beacon paths,
// web based email clients load the pixel and redirect cross origin.
func beaconCORS(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Response().Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Accept")
		h.Set("Access-Control-Max-Age", "86400")
		if c.Request().Method == http.MethodOptions {
			return c.NoContent(http.StatusNoContent)
		}
		return next(c)
	}
}

// router wires middleware and routes. Prometheus registration lives in Start,
// its collectors register globally and may only do so once per process.
func (s *Server) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())

	e.POST("/api/recipients", s.uploadSingle)

	e.GET("/unsubscribe/:applicantId", s.unsubscribePage)
	e.POST("/unsubscribe/:applicantId", s.unsubscribe)

	// the beacon paths answer OPTIONS themselves, a routed preflight must
	// reach beaconCORS instead of echo's default 204-without-headers
	e.GET("/t/open/:id", s.trackOpen, beaconCORS)
	e.OPTIONS("/t/open/:id", s.trackOpen, beaconCORS)
	e.GET("/c/:id", s.trackClick, beaconCORS)
	e.OPTIONS("/c/:id", s.trackClick, beaconCORS)

	e.GET("/api/tracking/stats", s.trackingStats)
	e.GET("/api/tracking/applicant/:applicantId", s.trackingByApplicant)
	e.GET("/api/tracking/template/:template", s.trackingByTemplate)
	e.GET("/api/tracking/:id", s.trackingById)
	e.GET("/api/health", s.health)

	return e
}

func (s *Server) Start() {

	e := s.router()

	prom := prometheus.NewPrometheus("outreach", nil)
	prom.Use(e)

	s.e = e

	go func() {
		var err error
		if s.cfg.AutoTLS {
			e.AutoTLSManager.Prompt = autocert.AcceptTOS
			e.AutoTLSManager.Email = s.cfg.AutoTLSEmail
			e.AutoTLSManager.Cache = autocert.DirCache(s.cfg.AutoTLSDir)
			if host := hostOf(s.cfg.BaseURL); host != "" {
				e.AutoTLSManager.HostPolicy = autocert.HostWhitelist(host)
			}
			s.log.Info("starting api server with auto tls")
			err = e.StartAutoTLS(":443")
		} else {
			s.log.Infof("starting api server on :%d", s.cfg.Port)
			err = e.Start(fmt.Sprintf(":%d", s.cfg.Port))
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("api server stopped")
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.e == nil {
		return nil
	}
	s.log.Info("shutting down api server")
	return s.e.Shutdown(ctx)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
