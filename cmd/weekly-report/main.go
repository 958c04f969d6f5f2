package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/hospicetrack/internal/caldate"
	"github.com/carebridge/hospicetrack/internal/compliance"
	"github.com/carebridge/hospicetrack/internal/notify"
	"github.com/carebridge/hospicetrack/internal/store"
)

func main() {
	dbFlag := flag.String("db", "", "path to SQLite database file (overrides DB_PATH env var)")
	asOfFlag := flag.String("as-of", "", "build the report as of this date (YYYY-MM-DD, defaults to today)")
	outFlag := flag.String("output", "", "write the report to this file (.md, .html, or .pdf by extension; defaults to markdown on stdout)")
	emailFlag := flag.Bool("email", false, "email the report (PDF attached) to REPORT_RECIPIENTS")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "weekly-report").Logger()

	dbPath := *dbFlag
	if dbPath == "" {
		dbPath = os.Getenv("DB_PATH")
	}
	if dbPath == "" {
		dbPath = "./data/hospicetrack.db"
	}

	asOf := caldate.Today(time.Now())
	if *asOfFlag != "" {
		asOf = caldate.Parse(*asOfFlag)
		if asOf.IsZero() {
			log.Fatal().Str("as_of", *asOfFlag).Msg("unparseable -as-of date")
		}
	}

	st, err := store.Open(dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", dbPath).Msg("open store")
	}
	defer st.Close()

	patients, err := st.ListPatients()
	if err != nil {
		log.Fatal().Err(err).Msg("list patients")
	}
	findings := make([]compliance.Finding, 0, len(patients))
	for _, p := range patients {
		findings = append(findings, compliance.Classify(p, asOf, compliance.ReportLeadDays))
	}
	markdown := compliance.BuildReportMarkdown(asOf, findings)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	renderer := compliance.NewReportRenderer()

	if *outFlag != "" {
		if err := writeReport(ctx, renderer, *outFlag, markdown); err != nil {
			log.Fatal().Err(err).Str("output", *outFlag).Msg("write report")
		}
		log.Info().Str("output", *outFlag).Msg("report written")
	} else if !*emailFlag {
		fmt.Print(markdown)
	}

	if *emailFlag {
		if err := emailReport(ctx, renderer, log, asOf, markdown); err != nil {
			log.Fatal().Err(err).Msg("email report")
		}
	}
}

func writeReport(ctx context.Context, r *compliance.ReportRenderer, path, markdown string) error {
	switch {
	case strings.HasSuffix(path, ".html"):
		htmlDoc, err := r.HTML(markdown)
		if err != nil {
			return err
		}
		return os.WriteFile(path, []byte(htmlDoc), 0o644)
	case strings.HasSuffix(path, ".pdf"):
		pdf, err := r.RenderPDF(ctx, markdown)
		if err != nil {
			return err
		}
		return os.WriteFile(path, pdf, 0o644)
	default:
		return os.WriteFile(path, []byte(markdown), 0o644)
	}
}

func emailReport(ctx context.Context, r *compliance.ReportRenderer, log zerolog.Logger, asOf caldate.Date, markdown string) error {
	recipients := splitList(os.Getenv("REPORT_RECIPIENTS"))
	if len(recipients) == 0 {
		return fmt.Errorf("REPORT_RECIPIENTS is not set")
	}

	var mailer notify.Mailer = notify.LogMailer{Log: log}
	if key := os.Getenv("SENDGRID_API_KEY"); key != "" {
		mailer = notify.NewSendGrid(key, os.Getenv("ALERT_FROM_EMAIL"), log)
	}

	pdf, err := r.RenderPDF(ctx, markdown)
	if err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}

	return mailer.Send(ctx, notify.Message{
		To:      recipients,
		Subject: "Weekly hospice compliance report for " + asOf.Format(),
		Text:    markdown,
		Attachments: []notify.Attachment{
			{Filename: "compliance-report-" + asOf.ISO() + ".pdf", MIMEType: "application/pdf", Content: pdf},
		},
	})
}

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
