// Package httpapi serves the REST surface for the compliance tracker.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/hospicetrack/internal/caldate"
	"github.com/carebridge/hospicetrack/internal/compliance"
	"github.com/carebridge/hospicetrack/internal/cti"
	"github.com/carebridge/hospicetrack/internal/docgen"
	"github.com/carebridge/hospicetrack/internal/doctemplate"
	"github.com/carebridge/hospicetrack/internal/mergedata"
	"github.com/carebridge/hospicetrack/internal/store"
	"github.com/carebridge/hospicetrack/internal/templatestore"
)

type Server struct {
	store   *store.Store
	gen     *docgen.Generator
	adapter templatestore.Adapter
	log     zerolog.Logger
	now     func() time.Time
}

type Option func(*Server)

// WithTemplateStore enables the delivery=template-store mode on the
// document endpoint.
func WithTemplateStore(adapter templatestore.Adapter) Option {
	return func(s *Server) { s.adapter = adapter }
}

// WithClock overrides the wall clock. Tests pin it.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func NewServer(st *store.Store, gen *docgen.Generator, log zerolog.Logger, opts ...Option) http.Handler {
	s := &Server{store: st, gen: gen, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/patients", s.handlePatients)
	mux.HandleFunc("/v1/patients/", s.handlePatientByID)
	mux.HandleFunc("/v1/organizations", s.handleOrganizations)
	mux.HandleFunc("/v1/templates", s.handleTemplates)
	mux.HandleFunc("/v1/compliance/report", s.handleComplianceReport)
	mux.HandleFunc("/v1/health", s.handleHealth)
	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	var ae *Error
	if errors.As(err, &ae) {
		writeJSON(w, ae.Status, map[string]any{
			"ok": false,
			"error": map[string]any{
				"code":    ae.Code,
				"message": ae.Message,
			},
		})
		return
	}
	writeJSON(w, 500, map[string]any{
		"ok": false,
		"error": map[string]any{
			"code":    CodeInternal,
			"message": err.Error(),
		},
	})
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return []byte("{}"), nil
	}
	blob, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		blob = []byte("{}")
	}
	return blob, nil
}

func methodOnly(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// patientPayload is the wire shape for create/update. Dates arrive in any
// of the layouts caldate accepts.
type patientPayload struct {
	OrgID                 string `json:"org_id"`
	FirstName             string `json:"first_name"`
	LastName              string `json:"last_name"`
	MRN                   string `json:"mrn"`
	DateOfBirth           any    `json:"date_of_birth"`
	AdmissionDate         any    `json:"admission_date"`
	StartingBenefitPeriod int    `json:"starting_benefit_period"`
	IsReadmission         bool   `json:"is_readmission"`
	F2FCompleted          bool   `json:"f2f_completed"`
	Diagnosis             string `json:"diagnosis"`
	AttendingPhysician    string `json:"attending_physician"`
}

func (p patientPayload) toPatient(id string) mergedata.Patient {
	return mergedata.Patient{
		ID:                    id,
		OrgID:                 strings.TrimSpace(p.OrgID),
		FirstName:             strings.TrimSpace(p.FirstName),
		LastName:              strings.TrimSpace(p.LastName),
		MRN:                   strings.TrimSpace(p.MRN),
		DateOfBirth:           caldate.Normalize(p.DateOfBirth),
		AdmissionDate:         caldate.Normalize(p.AdmissionDate),
		StartingBenefitPeriod: p.StartingBenefitPeriod,
		IsReadmission:         p.IsReadmission,
		F2FCompleted:          p.F2FCompleted,
		Diagnosis:             strings.TrimSpace(p.Diagnosis),
		AttendingPhysician:    strings.TrimSpace(p.AttendingPhysician),
	}
}

func (s *Server) handlePatients(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		patients, err := s.store.ListPatients()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, 200, map[string]any{"patients": patients})
	case http.MethodPost:
		blob, err := readBody(r)
		if err != nil {
			writeError(w, NewValidationJSONError(err))
			return
		}
		var req patientPayload
		if err := json.Unmarshal(blob, &req); err != nil {
			writeError(w, NewValidationJSONError(err))
			return
		}
		p := req.toPatient("")
		if p.FirstName == "" && p.LastName == "" {
			writeError(w, NewValidationError("patient name is required"))
			return
		}
		if err := s.store.SavePatient(&p); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, 200, map[string]any{"ok": true, "id": p.ID})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handlePatientByID routes /v1/patients/{id}, /v1/patients/{id}/compliance,
// and /v1/patients/{id}/documents.
func (s *Server) handlePatientByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/patients/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch sub {
	case "":
		s.handlePatient(w, r, id)
	case "compliance":
		s.handlePatientCompliance(w, r, id)
	case "documents":
		s.handlePatientDocument(w, r, id)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Server) loadPatient(id string) (*mergedata.Patient, error) {
	p, err := s.store.GetPatient(id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, NewNotFoundError("patient not found")
	}
	return p, nil
}

func (s *Server) handlePatient(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		p, err := s.loadPatient(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, 200, p)
	case http.MethodPut:
		if _, err := s.loadPatient(id); err != nil {
			writeError(w, err)
			return
		}
		blob, err := readBody(r)
		if err != nil {
			writeError(w, NewValidationJSONError(err))
			return
		}
		var req patientPayload
		if err := json.Unmarshal(blob, &req); err != nil {
			writeError(w, NewValidationJSONError(err))
			return
		}
		p := req.toPatient(id)
		if err := s.store.SavePatient(&p); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, 200, map[string]any{"ok": true, "id": id})
	case http.MethodDelete:
		if _, err := s.loadPatient(id); err != nil {
			writeError(w, err)
			return
		}
		if err := s.store.DeletePatient(id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, 200, map[string]any{"ok": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handlePatientCompliance computes the live benefit-period state. It never
// reads the snapshot cache.
func (s *Server) handlePatientCompliance(w http.ResponseWriter, r *http.Request, id string) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	p, err := s.loadPatient(id)
	if err != nil {
		writeError(w, err)
		return
	}

	asOf := caldate.Today(s.now())
	if raw := strings.TrimSpace(r.URL.Query().Get("as_of")); raw != "" {
		asOf = caldate.Parse(raw)
		if asOf.IsZero() {
			writeError(w, NewValidationError("as_of must be a date"))
			return
		}
	}
	leadDays := compliance.SweepLeadDays
	if raw := strings.TrimSpace(r.URL.Query().Get("lead_days")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, NewValidationError("lead_days must be a non-negative integer"))
			return
		}
		leadDays = v
	}

	res, ok := cti.Compute(p.Facts(), asOf, leadDays)
	if !ok {
		writeJSON(w, 200, map[string]any{"tracked": false})
		return
	}
	writeJSON(w, 200, map[string]any{"tracked": true, "as_of": asOf.ISO(), "result": res})
}

type documentRequest struct {
	DocumentType string          `json:"document_type"`
	Visit        mergedata.Visit `json:"visit"`
	// Template overrides the stored/builtin resolution when present.
	Template *doctemplate.TemplateModel `json:"template,omitempty"`
	// TemplateStoreID selects the remote document when delivery=template-store.
	TemplateStoreID string `json:"template_store_id,omitempty"`
	AsOf            string `json:"as_of,omitempty"`
}

func (s *Server) handlePatientDocument(w http.ResponseWriter, r *http.Request, id string) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	p, err := s.loadPatient(id)
	if err != nil {
		writeError(w, err)
		return
	}
	blob, err := readBody(r)
	if err != nil {
		writeError(w, NewValidationJSONError(err))
		return
	}
	var req documentRequest
	if err := json.Unmarshal(blob, &req); err != nil {
		writeError(w, NewValidationJSONError(err))
		return
	}

	dt := mergedata.DocumentType(strings.TrimSpace(req.DocumentType))
	if !dt.Valid() {
		writeError(w, NewValidationError("unknown document_type"))
		return
	}

	tpl := req.Template
	if tpl == nil {
		tpl, err = s.store.GetTemplate(p.OrgID, dt)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	var org mergedata.Organization
	if p.OrgID != "" {
		stored, err := s.store.GetOrganization(p.OrgID)
		if err != nil {
			writeError(w, err)
			return
		}
		if stored != nil {
			org = *stored
		}
	}

	asOf := caldate.Today(s.now())
	if req.AsOf != "" {
		asOf = caldate.Parse(req.AsOf)
		if asOf.IsZero() {
			writeError(w, NewValidationError("as_of must be a date"))
			return
		}
	}

	genReq := docgen.Request{
		Patient:      *p,
		Organization: org,
		Visit:        req.Visit,
		Template:     tpl,
		Today:        asOf,
	}

	var pdf []byte
	if r.URL.Query().Get("delivery") == "template-store" {
		if s.adapter == nil {
			writeError(w, newError(CodeUnavailable, "template store not configured"))
			return
		}
		if strings.TrimSpace(req.TemplateStoreID) == "" {
			writeError(w, NewValidationError("template_store_id is required for template-store delivery"))
			return
		}
		pdf, err = s.gen.GenerateViaTemplateStore(r.Context(), s.adapter, req.TemplateStoreID, genReq)
	} else {
		pdf, err = s.gen.Generate(r.Context(), genReq)
	}
	if err != nil {
		var se *docgen.StageError
		if errors.As(err, &se) && se.Stage == "template" {
			writeError(w, NewValidationError(se.Err.Error()))
			return
		}
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+string(dt)+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (s *Server) handleOrganizations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		orgs, err := s.store.ListOrganizations()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, 200, map[string]any{"organizations": orgs})
	case http.MethodPost:
		blob, err := readBody(r)
		if err != nil {
			writeError(w, NewValidationJSONError(err))
			return
		}
		var org mergedata.Organization
		if err := json.Unmarshal(blob, &org); err != nil {
			writeError(w, NewValidationJSONError(err))
			return
		}
		if strings.TrimSpace(org.Name) == "" {
			writeError(w, NewValidationError("organization name is required"))
			return
		}
		if err := s.store.SaveOrganization(&org); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, 200, map[string]any{"ok": true, "id": org.ID})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		orgID := strings.TrimSpace(r.URL.Query().Get("org_id"))
		dt := mergedata.DocumentType(strings.TrimSpace(r.URL.Query().Get("document_type")))
		if !dt.Valid() {
			writeError(w, NewValidationError("unknown document_type"))
			return
		}
		tpl, err := s.store.GetTemplate(orgID, dt)
		if err != nil {
			writeError(w, err)
			return
		}
		if tpl == nil {
			writeError(w, NewNotFoundError("no template for document type"))
			return
		}
		writeJSON(w, 200, tpl)
	case http.MethodPost:
		blob, err := readBody(r)
		if err != nil {
			writeError(w, NewValidationJSONError(err))
			return
		}
		var req struct {
			OrgID    string                    `json:"org_id"`
			Template doctemplate.TemplateModel `json:"template"`
		}
		if err := json.Unmarshal(blob, &req); err != nil {
			writeError(w, NewValidationJSONError(err))
			return
		}
		if err := s.store.SaveTemplate(strings.TrimSpace(req.OrgID), &req.Template); err != nil {
			writeError(w, NewValidationError(err.Error()))
			return
		}
		writeJSON(w, 200, map[string]any{"ok": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleComplianceReport classifies the current census inline. It shares
// the sweep's classification but neither persists snapshots nor notifies.
func (s *Server) handleComplianceReport(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	asOf := caldate.Today(s.now())
	if raw := strings.TrimSpace(r.URL.Query().Get("as_of")); raw != "" {
		asOf = caldate.Parse(raw)
		if asOf.IsZero() {
			writeError(w, NewValidationError("as_of must be a date"))
			return
		}
	}

	patients, err := s.store.ListPatients()
	if err != nil {
		writeError(w, err)
		return
	}
	findings := make([]compliance.Finding, 0, len(patients))
	for _, p := range patients {
		findings = append(findings, compliance.Classify(p, asOf, compliance.SweepLeadDays))
	}
	writeJSON(w, 200, compliance.Summarize(asOf, findings))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "time": s.now().UTC().Format(time.RFC3339)})
}
