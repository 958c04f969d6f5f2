package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/hospicetrack/internal/caldate"
	"github.com/carebridge/hospicetrack/internal/compliance"
	"github.com/carebridge/hospicetrack/internal/notify"
	"github.com/carebridge/hospicetrack/internal/store"
)

// Invoked once per run by cron or a systemd timer; there is no internal
// scheduler.
func main() {
	dbFlag := flag.String("db", "", "path to SQLite database file (overrides DB_PATH env var)")
	asOfFlag := flag.String("as-of", "", "run the sweep as of this date (YYYY-MM-DD, defaults to today)")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "compliance-sweep").Logger()

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

	var mailer notify.Mailer = notify.LogMailer{Log: log}
	if key := os.Getenv("SENDGRID_API_KEY"); key != "" {
		mailer = notify.NewSendGrid(key, os.Getenv("ALERT_FROM_EMAIL"), log)
	}

	sweep := &compliance.Sweep{
		Store:    st,
		LeadDays: compliance.SweepLeadDays,
		Log:      log,
	}
	if recipients := splitList(os.Getenv("ALERT_RECIPIENTS")); len(recipients) > 0 {
		sweep.Notifier = &compliance.EmailNotifier{Mailer: mailer, Recipients: recipients}
	} else {
		log.Warn().Msg("ALERT_RECIPIENTS not set; alerts will only appear in snapshots and logs")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	findings, err := sweep.Run(ctx, asOf)
	if err != nil {
		log.Fatal().Err(err).Msg("sweep failed")
	}

	sum := compliance.Summarize(asOf, findings)
	log.Info().
		Int("overdue", sum.Counts[compliance.StatusOverdue]).
		Int("at_risk", sum.Counts[compliance.StatusAtRisk]).
		Int("ok", sum.Counts[compliance.StatusOK]).
		Int("excluded", sum.Counts[compliance.StatusExcluded]).
		Msg("sweep summary")
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
