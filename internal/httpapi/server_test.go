package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/hospicetrack/internal/docgen"
	"github.com/carebridge/hospicetrack/internal/store"
)

func newServerForTest(t *testing.T, opts ...Option) http.Handler {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	return NewServer(st, docgen.NewGenerator(zerolog.Nop()), zerolog.Nop(), opts...)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return out
}

func createPatient(t *testing.T, h http.Handler, payload map[string]any) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/v1/patients", payload)
	if rec.Code != 200 {
		t.Fatalf("create patient: status %d body %s", rec.Code, rec.Body.String())
	}
	id, _ := decode(t, rec)["id"].(string)
	if id == "" {
		t.Fatal("create patient returned no id")
	}
	return id
}

func TestPatientCRUD(t *testing.T) {
	h := newServerForTest(t)

	id := createPatient(t, h, map[string]any{
		"first_name":     "Eleanor",
		"last_name":      "Vance",
		"admission_date": "2025-01-15",
	})

	rec := doJSON(t, h, http.MethodGet, "/v1/patients/"+id, nil)
	if rec.Code != 200 {
		t.Fatalf("get: status %d", rec.Code)
	}
	got := decode(t, rec)
	if got["first_name"] != "Eleanor" || got["admission_date"] != "2025-01-15" {
		t.Fatalf("get payload: %v", got)
	}

	rec = doJSON(t, h, http.MethodPut, "/v1/patients/"+id, map[string]any{
		"first_name":     "Eleanor",
		"last_name":      "Vance",
		"admission_date": "01/20/2025",
		"diagnosis":      "CHF",
	})
	if rec.Code != 200 {
		t.Fatalf("put: status %d body %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, h, http.MethodGet, "/v1/patients/"+id, nil)
	got = decode(t, rec)
	if got["admission_date"] != "2025-01-20" || got["diagnosis"] != "CHF" {
		t.Fatalf("update not applied: %v", got)
	}

	rec = doJSON(t, h, http.MethodDelete, "/v1/patients/"+id, nil)
	if rec.Code != 200 {
		t.Fatalf("delete: status %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/v1/patients/"+id, nil)
	if rec.Code != 404 {
		t.Fatalf("get after delete: status %d", rec.Code)
	}
}

func TestCreatePatientValidation(t *testing.T) {
	h := newServerForTest(t)
	rec := doJSON(t, h, http.MethodPost, "/v1/patients", map[string]any{"mrn": "X"})
	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400 for nameless patient", rec.Code)
	}
}

func TestComplianceEndpoint(t *testing.T) {
	h := newServerForTest(t)

	// Clock is pinned to 2025-06-01; admission 80 days earlier puts the
	// patient 10 days from the 90-day cert end.
	id := createPatient(t, h, map[string]any{
		"first_name":     "Marta",
		"last_name":      "Reyes",
		"admission_date": "2025-03-13",
	})

	rec := doJSON(t, h, http.MethodGet, "/v1/patients/"+id+"/compliance", nil)
	if rec.Code != 200 {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	got := decode(t, rec)
	if got["tracked"] != true {
		t.Fatalf("tracked = %v", got["tracked"])
	}
	res := got["result"].(map[string]any)
	if res["days_until_cert_end"].(float64) != 10 {
		t.Fatalf("days_until_cert_end = %v", res["days_until_cert_end"])
	}

	// as_of moves the clock; 2025-06-15 is past the cert end.
	rec = doJSON(t, h, http.MethodGet, "/v1/patients/"+id+"/compliance?as_of=2025-06-15", nil)
	res = decode(t, rec)["result"].(map[string]any)
	if res["is_overdue"] != true {
		t.Fatalf("expected overdue as of 2025-06-15: %v", res)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/patients/"+id+"/compliance?as_of=not-a-date", nil)
	if rec.Code != 400 {
		t.Fatalf("bad as_of: status %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/v1/patients/"+id+"/compliance?lead_days=-1", nil)
	if rec.Code != 400 {
		t.Fatalf("bad lead_days: status %d", rec.Code)
	}
}

func TestComplianceUntrackedPatient(t *testing.T) {
	h := newServerForTest(t)
	id := createPatient(t, h, map[string]any{"first_name": "No", "last_name": "Date"})

	rec := doJSON(t, h, http.MethodGet, "/v1/patients/"+id+"/compliance", nil)
	if rec.Code != 200 {
		t.Fatalf("status %d", rec.Code)
	}
	if decode(t, rec)["tracked"] != false {
		t.Fatal("patient without admission date should be untracked")
	}
}

func TestDocumentGeneration(t *testing.T) {
	h := newServerForTest(t)
	id := createPatient(t, h, map[string]any{
		"first_name":     "Eleanor",
		"last_name":      "Vance",
		"admission_date": "2025-01-15",
	})

	rec := doJSON(t, h, http.MethodPost, "/v1/patients/"+id+"/documents", map[string]any{
		"document_type": "cert",
	})
	if rec.Code != 200 {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type = %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatal("response is not a PDF")
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/patients/"+id+"/documents", map[string]any{
		"document_type": "treadmill_waiver",
	})
	if rec.Code != 400 {
		t.Fatalf("unknown type: status %d", rec.Code)
	}
}

type fakeAdapter struct {
	copies   int
	deletes  int
	replaced map[string]string
}

func (f *fakeAdapter) CopyTemplate(context.Context, string) (string, error) {
	f.copies++
	return "copy-1", nil
}

func (f *fakeAdapter) ApplyReplacements(_ context.Context, _ string, repl map[string]string) error {
	f.replaced = repl
	return nil
}

func (f *fakeAdapter) ExportPDF(context.Context, string) ([]byte, error) {
	return []byte("%PDF-remote"), nil
}

func (f *fakeAdapter) DeleteTemp(context.Context, string) error {
	f.deletes++
	return nil
}

func TestDocumentTemplateStoreDelivery(t *testing.T) {
	adapter := &fakeAdapter{}
	h := newServerForTest(t, WithTemplateStore(adapter))
	id := createPatient(t, h, map[string]any{
		"first_name":     "Eleanor",
		"last_name":      "Vance",
		"admission_date": "2025-01-15",
	})

	rec := doJSON(t, h, http.MethodPost, "/v1/patients/"+id+"/documents?delivery=template-store", map[string]any{
		"document_type":     "cert",
		"template_store_id": "tpl-42",
	})
	if rec.Code != 200 {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "%PDF-remote" {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if adapter.copies != 1 || adapter.deletes != 1 {
		t.Fatalf("adapter copies=%d deletes=%d", adapter.copies, adapter.deletes)
	}
	if adapter.replaced["PATIENT_NAME"] != "Eleanor Vance" {
		t.Fatalf("replacements missing patient name: %v", adapter.replaced)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/patients/"+id+"/documents?delivery=template-store", map[string]any{
		"document_type": "cert",
	})
	if rec.Code != 400 {
		t.Fatalf("missing template_store_id: status %d", rec.Code)
	}
}

func TestDocumentTemplateStoreUnconfigured(t *testing.T) {
	h := newServerForTest(t)
	id := createPatient(t, h, map[string]any{"first_name": "A", "last_name": "B", "admission_date": "2025-01-15"})

	rec := doJSON(t, h, http.MethodPost, "/v1/patients/"+id+"/documents?delivery=template-store", map[string]any{
		"document_type":     "cert",
		"template_store_id": "tpl-42",
	})
	if rec.Code != 503 {
		t.Fatalf("status %d, want 503", rec.Code)
	}
}

func TestComplianceReportEndpoint(t *testing.T) {
	h := newServerForTest(t)
	createPatient(t, h, map[string]any{"first_name": "Ok", "last_name": "T", "admission_date": "2025-05-22"})
	createPatient(t, h, map[string]any{"first_name": "Over", "last_name": "Due", "admission_date": "2025-02-26"})
	createPatient(t, h, map[string]any{"first_name": "No", "last_name": "Date"})

	rec := doJSON(t, h, http.MethodGet, "/v1/compliance/report", nil)
	if rec.Code != 200 {
		t.Fatalf("status %d", rec.Code)
	}
	got := decode(t, rec)
	counts := got["counts"].(map[string]any)
	if counts["ok"].(float64) != 1 || counts["overdue"].(float64) != 1 || counts["excluded"].(float64) != 1 {
		t.Fatalf("counts = %v", counts)
	}
	if got["as_of"] != "2025-06-01" {
		t.Fatalf("as_of = %v", got["as_of"])
	}
}

func TestOrganizations(t *testing.T) {
	h := newServerForTest(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/organizations", map[string]any{"name": "Riverbend Hospice"})
	if rec.Code != 200 {
		t.Fatalf("create org: status %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/organizations", map[string]any{"phone": "555"})
	if rec.Code != 400 {
		t.Fatalf("nameless org: status %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/organizations", nil)
	got := decode(t, rec)
	if len(got["organizations"].([]any)) != 1 {
		t.Fatalf("organizations = %v", got["organizations"])
	}
}

func TestTemplates(t *testing.T) {
	h := newServerForTest(t)

	// Builtin resolves before any override is stored.
	rec := doJSON(t, h, http.MethodGet, "/v1/templates?document_type=cert", nil)
	if rec.Code != 200 {
		t.Fatalf("builtin get: status %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/templates?document_type=mystery", nil)
	if rec.Code != 400 {
		t.Fatalf("unknown type: status %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/templates", map[string]any{
		"org_id": "org-1",
		"template": map[string]any{
			"name":          "Org Cert",
			"document_type": "cert",
			"sections":      []map[string]any{{"type": "title", "text": "Custom Cert"}},
		},
	})
	if rec.Code != 200 {
		t.Fatalf("save template: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/templates?org_id=org-1&document_type=cert", nil)
	got := decode(t, rec)
	if got["name"] != "Org Cert" {
		t.Fatalf("resolved template = %v", got["name"])
	}

	// Invalid template body rejected.
	rec = doJSON(t, h, http.MethodPost, "/v1/templates", map[string]any{
		"template": map[string]any{"name": "", "document_type": "cert"},
	})
	if rec.Code != 400 {
		t.Fatalf("invalid template: status %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	h := newServerForTest(t)
	rec := doJSON(t, h, http.MethodGet, "/v1/health", nil)
	if rec.Code != 200 {
		t.Fatalf("status %d", rec.Code)
	}
	got := decode(t, rec)
	if got["ok"] != true || !strings.HasPrefix(got["time"].(string), "2025-06-01") {
		t.Fatalf("health = %v", got)
	}
}

func TestErrorShape(t *testing.T) {
	h := newServerForTest(t)
	rec := doJSON(t, h, http.MethodGet, "/v1/patients/nope", nil)
	if rec.Code != 404 {
		t.Fatalf("status %d", rec.Code)
	}
	got := decode(t, rec)
	errObj := got["error"].(map[string]any)
	if got["ok"] != false || errObj["code"] != CodeNotFound {
		t.Fatalf("error payload = %v", got)
	}
}
