package docgen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/hospicetrack/internal/caldate"
	"github.com/carebridge/hospicetrack/internal/doctemplate"
	"github.com/carebridge/hospicetrack/internal/mergedata"
)

func sampleRequest() Request {
	tpl, _ := doctemplate.Builtin(mergedata.DocTypeCert)
	return Request{
		Patient: mergedata.Patient{
			ID:            "p1",
			FirstName:     "Eleanor",
			LastName:      "Vance",
			MRN:           "MRN-4471",
			AdmissionDate: caldate.New(2024, time.January, 1),
		},
		Organization: mergedata.Organization{Name: "Willow Creek Hospice"},
		Template:     tpl,
		Today:        caldate.New(2024, time.February, 15),
	}
}

func TestGenerateProducesPDF(t *testing.T) {
	g := NewGenerator(zerolog.Nop())
	blob, err := g.Generate(context.Background(), sampleRequest())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(blob, []byte("%PDF")) {
		t.Fatalf("expected PDF bytes, got %d bytes", len(blob))
	}
}

func TestGenerateMissingTemplateIsFatal(t *testing.T) {
	g := NewGenerator(zerolog.Nop())
	req := sampleRequest()
	req.Template = nil
	_, err := g.Generate(context.Background(), req)
	var se *StageError
	if !errors.As(err, &se) || se.Stage != "template" {
		t.Fatalf("expected template stage error, got %v", err)
	}
}

func TestGeneratePatientWithoutAdmission(t *testing.T) {
	// Excluded from reporting, but document generation still succeeds with
	// N/A compliance fields.
	g := NewGenerator(zerolog.Nop())
	req := sampleRequest()
	req.Patient.AdmissionDate = caldate.Date{}
	blob, err := g.Generate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(blob) == 0 {
		t.Fatal("expected output")
	}
}

// fakeAdapter scripts the template-store collaborator and records calls.
type fakeAdapter struct {
	copyErr    error
	replaceErr error
	exportErr  error

	copies  int
	deletes []string
}

func (f *fakeAdapter) CopyTemplate(ctx context.Context, templateID string) (string, error) {
	if f.copyErr != nil {
		return "", f.copyErr
	}
	f.copies++
	return fmt.Sprintf("tmp-%d", f.copies), nil
}

func (f *fakeAdapter) ApplyReplacements(ctx context.Context, tempID string, repl map[string]string) error {
	return f.replaceErr
}

func (f *fakeAdapter) ExportPDF(ctx context.Context, tempID string) ([]byte, error) {
	if f.exportErr != nil {
		return nil, f.exportErr
	}
	return []byte("%PDF-1.4 external"), nil
}

func (f *fakeAdapter) DeleteTemp(ctx context.Context, tempID string) error {
	f.deletes = append(f.deletes, tempID)
	return nil
}

func TestTemplateStoreHappyPathCleansUp(t *testing.T) {
	g := NewGenerator(zerolog.Nop())
	a := &fakeAdapter{}
	blob, err := g.GenerateViaTemplateStore(context.Background(), a, "tpl-1", sampleRequest())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(blob, []byte("%PDF")) {
		t.Fatalf("bytes: %q", blob)
	}
	if len(a.deletes) != 1 || a.deletes[0] != "tmp-1" {
		t.Fatalf("temp copy must be deleted exactly once: %v", a.deletes)
	}
}

func TestTemplateStoreCleanupRunsOnExportFailure(t *testing.T) {
	g := NewGenerator(zerolog.Nop())
	a := &fakeAdapter{exportErr: errors.New("export exploded")}
	_, err := g.GenerateViaTemplateStore(context.Background(), a, "tpl-1", sampleRequest())
	var se *StageError
	if !errors.As(err, &se) || se.Stage != "export" {
		t.Fatalf("expected export stage error, got %v", err)
	}
	if len(a.deletes) != 1 {
		t.Fatalf("cleanup must still run on failure: %v", a.deletes)
	}
}

func TestTemplateStoreCleanupRunsOnReplaceFailure(t *testing.T) {
	g := NewGenerator(zerolog.Nop())
	a := &fakeAdapter{replaceErr: errors.New("patch rejected")}
	_, err := g.GenerateViaTemplateStore(context.Background(), a, "tpl-1", sampleRequest())
	var se *StageError
	if !errors.As(err, &se) || se.Stage != "replace" {
		t.Fatalf("expected replace stage error, got %v", err)
	}
	if len(a.deletes) != 1 {
		t.Fatalf("cleanup must still run on failure: %v", a.deletes)
	}
}

func TestTemplateStoreNoCleanupWhenCopyFails(t *testing.T) {
	g := NewGenerator(zerolog.Nop())
	a := &fakeAdapter{copyErr: errors.New("quota exceeded")}
	_, err := g.GenerateViaTemplateStore(context.Background(), a, "tpl-1", sampleRequest())
	var se *StageError
	if !errors.As(err, &se) || se.Stage != "copy" {
		t.Fatalf("expected copy stage error, got %v", err)
	}
	if len(a.deletes) != 0 {
		t.Fatalf("nothing was created, nothing to delete: %v", a.deletes)
	}
}

func TestTemplateStoreCleanupSurvivesCancellation(t *testing.T) {
	g := NewGenerator(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	a := &cancellingAdapter{fakeAdapter: &fakeAdapter{}, cancel: cancel}
	_, err := g.GenerateViaTemplateStore(ctx, a, "tpl-1", sampleRequest())
	if err == nil {
		t.Fatal("expected the cancelled export to fail")
	}
	if len(a.deletes) != 1 {
		t.Fatalf("cleanup must run after caller cancellation: %v", a.deletes)
	}
	if a.deleteCtxErr != nil {
		t.Fatalf("cleanup must not inherit the cancelled context: %v", a.deleteCtxErr)
	}
}

// cancellingAdapter cancels the caller's context mid-pipeline, after the
// temp copy exists.
type cancellingAdapter struct {
	*fakeAdapter
	cancel       context.CancelFunc
	deleteCtxErr error
}

func (a *cancellingAdapter) ApplyReplacements(ctx context.Context, tempID string, repl map[string]string) error {
	a.cancel()
	return ctx.Err()
}

func (a *cancellingAdapter) DeleteTemp(ctx context.Context, tempID string) error {
	a.deleteCtxErr = ctx.Err()
	return a.fakeAdapter.DeleteTemp(ctx, tempID)
}
