package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/acornlabs/outreach/internal/api"
	"github.com/acornlabs/outreach/internal/config"
	"github.com/acornlabs/outreach/internal/dao"
	"github.com/acornlabs/outreach/internal/sender"
	"github.com/acornlabs/outreach/internal/templates"
	"github.com/acornlabs/outreach/internal/tracking"
	"github.com/acornlabs/outreach/tools"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {

	app := &cli.App{
		Name:   "outreachd",
		Usage:  "a service for sending applicant emails and recording engagement",
		Action: start,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Action: start,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func start(c *cli.Context) error {
	l := log.New()
	l.AddHook(tools.LoggerWho{Name: "outreachd"})

	cfg := config.Get()

	level, err := log.ParseLevel(cfg.LogLevel)
	if err == nil {
		l.SetLevel(level)
	}

	var stopServer func()
	c.Context, stopServer = context.WithCancel(c.Context)
	defer stopServer()

	l.Infof("starting server")

	db, err := dao.NewSQLite(cfg.DbURI)
	if err != nil {
		l.WithError(err).Fatal("could not open database")
	}

	registry, err := templates.New()
	if err != nil {
		l.WithError(err).Fatal("could not load templates")
	}

	transport := sender.NewSMTP(sender.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, tools.SubLogger(l, "smtp"))

	courier := sender.NewCourier(db, registry, transport, sender.CourierConfig{
		BaseURL:  cfg.BaseURL,
		StartURL: cfg.BaseURL + "/start",
		Retry: sender.RetryConfig{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.BaseDelay,
			MaxDelay:   cfg.MaxDelay,
		},
		Logger: tools.SubLogger(l, "courier"),
	})

	recorder := tracking.NewRecorder(db, tools.SubLogger(l, "tracking"))

	server := api.New(api.Config{
		Port:         cfg.APIPort,
		AutoTLS:      cfg.APIAutoTLS,
		AutoTLSEmail: cfg.APIAutoTLSEmail,
		AutoTLSDir:   cfg.APIAutoTLSDir,
		BaseURL:      cfg.BaseURL,
		Logger:       tools.SubLogger(l, "api"),
	}, db, courier, recorder)
	server.Start()

	services := []Stoppable{server}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	sig := <-sigc
	l.Infof("got signal: %s, shutting down", sig)

	shutdownCtx, cancel := context.WithTimeout(c.Context, 30*time.Second)
	defer cancel()

	wg := &sync.WaitGroup{}
	for _, service := range services {
		wg.Add(1)
		service := service
		go func(service Stoppable) {
			defer wg.Done()
			err := service.Stop(shutdownCtx)
			if err != nil {
				l.WithError(err).Error("failed to stop service")
			}
		}(service)
	}

	go func() {
		<-shutdownCtx.Done()
		if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
			l.Warn("shutdown was forced, terminating now")
			os.Exit(1)
		}
	}()

	wg.Wait()
	l.Infof("shutdown complete")

	return nil
}

type Stoppable interface {
	Stop(ctx context.Context) error
}
