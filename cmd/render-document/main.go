package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/hospicetrack/internal/caldate"
	"github.com/carebridge/hospicetrack/internal/docgen"
	"github.com/carebridge/hospicetrack/internal/doctemplate"
	"github.com/carebridge/hospicetrack/internal/mergedata"
)

// Renders a single document from local JSON files, bypassing the server.
// Useful for checking template changes against a known patient payload.
func main() {
	patientPath := flag.String("patient", "", "path to patient JSON file")
	templatePath := flag.String("template", "", "path to template JSON file (defaults to the builtin for -type)")
	docType := flag.String("type", "cert", "document type: cert, f2f, visit_note, bereavement")
	outputPath := flag.String("output", "document.pdf", "path to write the PDF")
	asOfFlag := flag.String("as-of", "", "treat this date as today (YYYY-MM-DD)")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if *patientPath == "" {
		log.Fatal().Msg("missing required -patient")
	}
	dt := mergedata.DocumentType(*docType)
	if !dt.Valid() {
		log.Fatal().Str("type", *docType).Msg("unknown document type")
	}

	blob, err := os.ReadFile(*patientPath)
	if err != nil {
		log.Fatal().Err(err).Msg("read patient file")
	}
	var patient mergedata.Patient
	if err := json.Unmarshal(blob, &patient); err != nil {
		log.Fatal().Err(err).Msg("decode patient JSON")
	}

	var tpl *doctemplate.TemplateModel
	if *templatePath != "" {
		tpl, err = doctemplate.Load(*templatePath)
		if err != nil {
			log.Fatal().Err(err).Msg("load template")
		}
	} else {
		var ok bool
		tpl, ok = doctemplate.Builtin(dt)
		if !ok {
			log.Fatal().Str("type", *docType).Msg("no builtin template")
		}
	}

	asOf := caldate.Today(time.Now())
	if *asOfFlag != "" {
		asOf = caldate.Parse(*asOfFlag)
		if asOf.IsZero() {
			log.Fatal().Str("as_of", *asOfFlag).Msg("unparseable -as-of date")
		}
	}

	gen := docgen.NewGenerator(log)
	pdf, err := gen.Generate(context.Background(), docgen.Request{
		Patient:  patient,
		Template: tpl,
		Today:    asOf,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("generate")
	}

	if err := os.WriteFile(*outputPath, pdf, 0o644); err != nil {
		log.Fatal().Err(err).Msg("write pdf")
	}
	log.Info().Str("output", *outputPath).Int("bytes", len(pdf)).Msg("document rendered")
}
