package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/hospicetrack/internal/docgen"
	"github.com/carebridge/hospicetrack/internal/httpapi"
	"github.com/carebridge/hospicetrack/internal/store"
	"github.com/carebridge/hospicetrack/internal/telemetry"
	"github.com/carebridge/hospicetrack/internal/templatestore"
)

func main() {
	dbFlag := flag.String("db", "", "path to SQLite database file (overrides DB_PATH env var)")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "hospicetrack").Logger()

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	dbPath := *dbFlag
	if dbPath == "" {
		dbPath = os.Getenv("DB_PATH")
	}
	if dbPath == "" {
		dbPath = "./data/hospicetrack.db"
	}

	st, err := store.Open(dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", dbPath).Msg("open store")
	}
	defer st.Close()
	log.Info().Str("db", dbPath).Msg("sqlite store ready")

	shutdown, err := telemetry.Setup(context.Background(), "hospicetrack")
	if err != nil {
		log.Fatal().Err(err).Msg("telemetry setup")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(ctx)
	}()

	opts := []httpapi.Option{}
	if tsURL := os.Getenv("TEMPLATE_STORE_URL"); tsURL != "" {
		adapter := templatestore.NewClient(tsURL, os.Getenv("TEMPLATE_STORE_TOKEN"))
		opts = append(opts, httpapi.WithTemplateStore(adapter))
		log.Info().Str("url", tsURL).Msg("template store delivery enabled")
	}

	h := httpapi.NewServer(st, docgen.NewGenerator(log), log, opts...)
	log.Info().Str("addr", addr).Msg("listening")
	if err := http.ListenAndServe(addr, h); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
