package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/acornlabs/outreach"
	"github.com/acornlabs/outreach/internal/config"
	"github.com/acornlabs/outreach/internal/dao"
	"github.com/acornlabs/outreach/internal/dnsx"
	"github.com/acornlabs/outreach/internal/sender"
	"github.com/acornlabs/outreach/internal/templates"
	"github.com/acornlabs/outreach/tools"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {

	app := &cli.App{
		Name:  "outreach",
		Usage: "a cli for sending applicant emails and importing recipient lists",
		Commands: []*cli.Command{
			{
				Name:  "send",
				Usage: "send a templated email to stored applicants",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Required: true, Usage: "maximum number of applicants to email"},
					&cli.StringFlag{Name: "template", Aliases: []string{"t"}, Required: true, Usage: "name of the email template to use"},
					&cli.StringFlag{Name: "country", Aliases: []string{"c"}, Usage: "only email applicants from this country"},
					&cli.BoolFlag{Name: "force", Usage: "resend even when a successful delivery exists"},
					&cli.BoolFlag{Name: "dry-run", Usage: "preview without sending actual emails"},
				},
				Action: send,
			},
			{
				Name:  "import",
				Usage: "import a csv of recipients and deliver through a running outreachd",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true, Usage: "path to csv file, header row Name,Email,Job Title,phone,country"},
					&cli.StringFlag{Name: "template", Aliases: []string{"t"}, Required: true, Usage: "name of the email template to use"},
					&cli.StringFlag{Name: "country", Aliases: []string{"c"}, Usage: "country to assign to all rows"},
					&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Value: "http://localhost:8080", Usage: "outreachd address"},
					&cli.BoolFlag{Name: "force", Usage: "force resend even if already sent"},
					&cli.BoolFlag{Name: "dry-run", Usage: "parse and preview without posting to the server"},
					&cli.BoolFlag{Name: "check-mx", Usage: "drop rows whose email domain has no mx record"},
					&cli.StringFlag{Name: "dns-resolver", Value: "1.1.1.1:53", Usage: "resolver used for mx checks"},
				},
				Action: importCSV,
			},
			{
				Name:  "stats",
				Usage: "print delivery and engagement aggregates",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Value: "http://localhost:8080", Usage: "outreachd address"},
				},
				Action: stats,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "got err", err)
		os.Exit(1)
	}
}

func send(c *cli.Context) error {
	l := log.New()
	l.AddHook(tools.LoggerWho{Name: "outreach"})

	cfg := config.Get()

	limit := c.Int("limit")
	if limit <= 0 {
		return fmt.Errorf("limit must be a positive number")
	}
	template := c.String("template")
	country := c.String("country")
	force := c.Bool("force")
	dryRun := c.Bool("dry-run")

	registry, err := templates.New()
	if err != nil {
		return err
	}
	if !registry.Has(template) {
		return fmt.Errorf("template %s not found, available templates: %s",
			template, strings.Join(registry.List(), ", "))
	}

	db, err := dao.NewSQLite(cfg.DbURI)
	if err != nil {
		return err
	}

	transport := sender.NewSMTP(sender.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, tools.SubLogger(l, "smtp"))

	if !dryRun {
		err = transport.Verify(c.Context)
		if err != nil {
			return fmt.Errorf("failed to verify smtp connection, check your configuration: %w", err)
		}
		l.Info("smtp connection verified")
	}

	applicants, err := db.ListApplicants(limit, country)
	if err != nil {
		return err
	}
	if len(applicants) == 0 {
		l.Warn("no applicants found matching the criteria")
		return nil
	}
	total, err := db.CountApplicants(country)
	if err != nil {
		return err
	}

	l.Infof("sending %s to %d of %d matching applicant(s)", template, len(applicants), total)
	for i, a := range applicants {
		l.Infof("  %d. %s (%s)", i+1, a.FullName, a.Email)
	}
	if dryRun {
		l.Info("dry run mode, no emails will be sent")
	}

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

	results := courier.SendBatch(c.Context, applicants, template, force, dryRun)

	summary := sender.Summarize(results)
	l.Infof("successful: %d", summary.Succeeded)
	l.Infof("skipped:    %d", summary.Skipped)
	if summary.Failed > 0 {
		l.Errorf("failed:     %d", summary.Failed)
	}
	l.Infof("total:      %d", summary.Total)

	if summary.Failed > 0 {
		return cli.Exit("some deliveries failed", 1)
	}
	return nil
}

func importCSV(c *cli.Context) error {
	l := log.New()
	l.AddHook(tools.LoggerWho{Name: "outreach"})

	path := c.String("file")
	template := c.String("template")
	country := c.String("country")
	force := c.Bool("force")
	dryRun := c.Bool("dry-run")

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not open file %s, %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return fmt.Errorf("could not parse csv, %w", err)
	}
	if len(rows) < 2 {
		return fmt.Errorf("no data rows found in %s", path)
	}

	col := map[string]int{}
	for i, name := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	get := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	if _, ok := col["name"]; !ok {
		return fmt.Errorf("csv is missing a Name column")
	}
	if _, ok := col["email"]; !ok {
		return fmt.Errorf("csv is missing an Email column")
	}

	var verifier dnsx.Client
	if c.Bool("check-mx") {
		verifier = dnsx.New(c.String("dns-resolver"), tools.SubLogger(l, "dnsx"))
		defer verifier.Stop(c.Context)
	}

	var valid []outreach.Recipient
	for i, row := range rows[1:] {
		r := outreach.Recipient{
			FullName: get(row, "name"),
			Email:    get(row, "email"),
			JobTitle: get(row, "job title"),
			Phone:    get(row, "phone"),
			Country:  get(row, "country"),
		}
		if r.FullName == "" || !tools.ValidEmail(r.Email) {
			l.Warnf("row %d: missing name or invalid email, skipping", i+2)
			continue
		}
		if verifier != nil {
			err = verifier.VerifyEmail(r.Email)
			if err != nil {
				l.WithError(err).Warnf("row %d: %s is not deliverable, skipping", i+2, r.Email)
				continue
			}
		}
		valid = append(valid, r)
	}
	l.Infof("parsed %d valid row(s) from %s", len(valid), path)

	if dryRun {
		for _, r := range valid {
			l.Infof("would upload %s (%s)", r.FullName, r.Email)
		}
		return nil
	}

	client := outreach.NewClient(c.String("url"))

	var created, existing, skipped, failed int
	for _, r := range valid {
		resp, err := client.Upload(c.Context, outreach.UploadRequest{
			Data:     r,
			Template: template,
			Force:    force,
			Country:  country,
		})
		if err != nil || !resp.Success {
			failed++
			if err != nil {
				l.WithError(err).Errorf("failed to upload %s", r.Email)
				continue
			}
			l.Errorf("failed to deliver to %s: %s", r.Email, resp.EmailResult.ErrorMessage)
			continue
		}
		switch resp.Action {
		case outreach.ActionCreated:
			created++
		case outreach.ActionExisting:
			existing++
		case outreach.ActionSkipped:
			skipped++
		}
	}

	l.Infof("created: %d, existing: %d, skipped: %d, failed: %d", created, existing, skipped, failed)
	if failed > 0 {
		return cli.Exit("some uploads failed", 1)
	}
	return nil
}

func stats(c *cli.Context) error {
	client := outreach.NewClient(c.String("url"))

	s, err := client.Stats(c.Context)
	if err != nil {
		return err
	}

	fmt.Printf("deliveries: %d total, %d success, %d failed\n",
		s.Deliveries.Total, s.Deliveries.Success, s.Deliveries.Failed)
	fmt.Printf("opens:      %d total, %d unique\n", s.TotalOpens, s.UniqueOpens)
	fmt.Printf("clicks:     %d total, %d unique\n", s.TotalClicks, s.UniqueClicks)
	return nil
}
