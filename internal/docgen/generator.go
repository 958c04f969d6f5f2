package docgen

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/carebridge/hospicetrack/internal/caldate"
	"github.com/carebridge/hospicetrack/internal/cti"
	"github.com/carebridge/hospicetrack/internal/doctemplate"
	"github.com/carebridge/hospicetrack/internal/mergedata"
	"github.com/carebridge/hospicetrack/internal/render"
	"github.com/carebridge/hospicetrack/internal/templatestore"
)

// DefaultLeadDays is the certification lead time used when a request does
// not choose its own policy. The daily sweep uses the same value; the
// weekly report passes 10.
const DefaultLeadDays = 14

// StageError pins a pipeline failure to the stage it happened in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Request carries everything one document generation needs. Today is always
// supplied by the caller; the pipeline never reads a wall clock.
type Request struct {
	Patient      mergedata.Patient
	Organization mergedata.Organization
	Visit        mergedata.Visit
	Template     *doctemplate.TemplateModel
	Today        caldate.Date
	LeadDays     int
}

// Generator runs the four-step pipeline: normalize dates, compute the
// benefit-period snapshot, build the merge context, render. It is safe for
// concurrent use; all per-request state lives in the request and the render
// engine's per-call state.
type Generator struct {
	log    zerolog.Logger
	engine *render.Engine
	tracer trace.Tracer
}

func NewGenerator(log zerolog.Logger) *Generator {
	return &Generator{
		log:    log,
		engine: render.NewEngine(log),
		tracer: otel.Tracer("hospicetrack/docgen"),
	}
}

// Generate renders the document in-process with the layout engine and
// returns the PDF bytes.
func (g *Generator) Generate(ctx context.Context, req Request) ([]byte, error) {
	docType := ""
	if req.Template != nil {
		docType = string(req.Template.DocumentType)
	}
	_, span := g.tracer.Start(ctx, "docgen.Generate",
		trace.WithAttributes(
			attribute.String("document_type", docType),
			attribute.String("patient_id", req.Patient.ID),
		))
	defer span.End()

	mctx, err := g.buildContext(req)
	if err != nil {
		return nil, err
	}

	blob, err := g.engine.Render(req.Template, mctx)
	if err != nil {
		return nil, &StageError{Stage: "render", Err: err}
	}
	return blob, nil
}

// GenerateViaTemplateStore produces the PDF through the external
// template-store service instead of the in-process engine. Once the remote
// copy exists it is deleted exactly once, whether patching, export, or the
// caller's context fails.
func (g *Generator) GenerateViaTemplateStore(ctx context.Context, adapter templatestore.Adapter, templateID string, req Request) ([]byte, error) {
	ctx, span := g.tracer.Start(ctx, "docgen.GenerateViaTemplateStore",
		trace.WithAttributes(attribute.String("template_id", templateID)))
	defer span.End()

	mctx, err := g.buildContext(req)
	if err != nil {
		return nil, err
	}

	tempID, err := adapter.CopyTemplate(ctx, templateID)
	if err != nil {
		return nil, &StageError{Stage: "copy", Err: err}
	}
	defer func() {
		// Cleanup must fire even when ctx was cancelled mid-request.
		if derr := adapter.DeleteTemp(context.WithoutCancel(ctx), tempID); derr != nil {
			g.log.Error().Err(derr).Str("temp_id", tempID).Msg("template-store cleanup failed")
		}
	}()

	if err := adapter.ApplyReplacements(ctx, tempID, mctx); err != nil {
		return nil, &StageError{Stage: "replace", Err: err}
	}
	blob, err := adapter.ExportPDF(ctx, tempID)
	if err != nil {
		return nil, &StageError{Stage: "export", Err: err}
	}
	return blob, nil
}

func (g *Generator) buildContext(req Request) (mergedata.Context, error) {
	if req.Template == nil {
		return nil, &StageError{Stage: "template", Err: fmt.Errorf("no template for request")}
	}
	if err := req.Template.Validate(); err != nil {
		return nil, &StageError{Stage: "template", Err: err}
	}

	leadDays := req.LeadDays
	if leadDays <= 0 {
		leadDays = DefaultLeadDays
	}

	// A patient without an admission date is excluded from compliance
	// reporting but can still receive documents; their computed fields
	// render as N/A.
	var resPtr *cti.Result
	if res, ok := cti.Compute(req.Patient.Facts(), req.Today, leadDays); ok {
		resPtr = &res
	}

	return mergedata.Build(req.Patient, resPtr, req.Organization, req.Visit, req.Template.DocumentType, req.Today), nil
}
