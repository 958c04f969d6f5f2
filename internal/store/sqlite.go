// Package store persists patients, organizations, document templates, and
// cached compliance snapshots in SQLite. Snapshots are a reporting cache
// only: the benefit-period snapshot is recomputed from patient facts on
// every authoritative read and rows here must be treated as stale.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/carebridge/hospicetrack/internal/caldate"
	"github.com/carebridge/hospicetrack/internal/cti"
	"github.com/carebridge/hospicetrack/internal/doctemplate"
	"github.com/carebridge/hospicetrack/internal/mergedata"
)

const schema = `
CREATE TABLE IF NOT EXISTS organizations (
	org_id   TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	address  TEXT NOT NULL DEFAULT '',
	phone    TEXT NOT NULL DEFAULT '',
	fax      TEXT NOT NULL DEFAULT '',
	email    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS patients (
	patient_id              TEXT PRIMARY KEY,
	org_id                  TEXT NOT NULL DEFAULT '',
	first_name              TEXT NOT NULL DEFAULT '',
	last_name               TEXT NOT NULL DEFAULT '',
	mrn                     TEXT NOT NULL DEFAULT '',
	date_of_birth           TEXT NOT NULL DEFAULT '',
	admission_date          TEXT NOT NULL DEFAULT '',
	starting_benefit_period INTEGER NOT NULL DEFAULT 1,
	is_readmission          INTEGER NOT NULL DEFAULT 0,
	f2f_completed           INTEGER NOT NULL DEFAULT 0,
	diagnosis               TEXT NOT NULL DEFAULT '',
	attending_physician     TEXT NOT NULL DEFAULT '',
	created_at              TEXT NOT NULL,
	updated_at              TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS templates (
	org_id        TEXT NOT NULL DEFAULT '',
	document_type TEXT NOT NULL,
	name          TEXT NOT NULL,
	model         TEXT NOT NULL,
	PRIMARY KEY (org_id, document_type)
);

CREATE TABLE IF NOT EXISTS compliance_snapshots (
	patient_id  TEXT PRIMARY KEY,
	computed_at TEXT NOT NULL,
	status      TEXT NOT NULL,
	payload     TEXT NOT NULL
);
`

type Store struct {
	db *sqlx.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// --- organizations ---

func (s *Store) SaveOrganization(org *mergedata.Organization) error {
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO organizations (org_id, name, address, phone, fax, email)
		VALUES (?, ?, ?, ?, ?, ?)`,
		org.ID, org.Name, org.Address, org.Phone, org.Fax, org.Email)
	return err
}

func (s *Store) GetOrganization(orgID string) (*mergedata.Organization, error) {
	row := s.db.QueryRow(`SELECT org_id, name, address, phone, fax, email FROM organizations WHERE org_id = ?`, orgID)
	var o mergedata.Organization
	if err := row.Scan(&o.ID, &o.Name, &o.Address, &o.Phone, &o.Fax, &o.Email); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (s *Store) ListOrganizations() ([]mergedata.Organization, error) {
	rows, err := s.db.Query(`SELECT org_id, name, address, phone, fax, email FROM organizations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []mergedata.Organization
	for rows.Next() {
		var o mergedata.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Address, &o.Phone, &o.Fax, &o.Email); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// --- patients ---

func (s *Store) SavePatient(p *mergedata.Patient) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := s.db.Exec(`INSERT INTO patients (patient_id, org_id, first_name, last_name, mrn,
		date_of_birth, admission_date, starting_benefit_period, is_readmission, f2f_completed,
		diagnosis, attending_physician, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(patient_id) DO UPDATE SET
			org_id = excluded.org_id,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			mrn = excluded.mrn,
			date_of_birth = excluded.date_of_birth,
			admission_date = excluded.admission_date,
			starting_benefit_period = excluded.starting_benefit_period,
			is_readmission = excluded.is_readmission,
			f2f_completed = excluded.f2f_completed,
			diagnosis = excluded.diagnosis,
			attending_physician = excluded.attending_physician,
			updated_at = excluded.updated_at`,
		p.ID, p.OrgID, p.FirstName, p.LastName, p.MRN,
		p.DateOfBirth.ISO(), p.AdmissionDate.ISO(), p.StartingBenefitPeriod,
		boolToInt(p.IsReadmission), boolToInt(p.F2FCompleted),
		p.Diagnosis, p.AttendingPhysician, now, now)
	return err
}

const patientColumns = `patient_id, org_id, first_name, last_name, mrn, date_of_birth,
	admission_date, starting_benefit_period, is_readmission, f2f_completed, diagnosis, attending_physician`

func scanPatient(scan func(dest ...any) error) (mergedata.Patient, error) {
	var p mergedata.Patient
	var dob, admission string
	var readmission, f2f int
	err := scan(&p.ID, &p.OrgID, &p.FirstName, &p.LastName, &p.MRN, &dob,
		&admission, &p.StartingBenefitPeriod, &readmission, &f2f, &p.Diagnosis, &p.AttendingPhysician)
	if err != nil {
		return p, err
	}
	p.DateOfBirth = caldate.Parse(dob)
	p.AdmissionDate = caldate.Parse(admission)
	p.IsReadmission = readmission != 0
	p.F2FCompleted = f2f != 0
	return p, nil
}

func (s *Store) GetPatient(patientID string) (*mergedata.Patient, error) {
	row := s.db.QueryRow(`SELECT `+patientColumns+` FROM patients WHERE patient_id = ?`, patientID)
	p, err := scanPatient(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListPatients() ([]mergedata.Patient, error) {
	rows, err := s.db.Query(`SELECT ` + patientColumns + ` FROM patients ORDER BY last_name, first_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []mergedata.Patient
	for rows.Next() {
		p, err := scanPatient(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) DeletePatient(patientID string) error {
	if _, err := s.db.Exec(`DELETE FROM patients WHERE patient_id = ?`, patientID); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM compliance_snapshots WHERE patient_id = ?`, patientID)
	return err
}

// --- templates ---

// SaveTemplate stores an organization's template override. An empty orgID
// stores a system-wide override.
func (s *Store) SaveTemplate(orgID string, tpl *doctemplate.TemplateModel) error {
	if err := tpl.Validate(); err != nil {
		return err
	}
	blob, err := json.Marshal(tpl)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO templates (org_id, document_type, name, model) VALUES (?, ?, ?, ?)`,
		orgID, string(tpl.DocumentType), tpl.Name, string(blob))
	return err
}

// GetTemplate resolves the template for an organization and document type:
// org override first, then system-wide override, then the builtin.
func (s *Store) GetTemplate(orgID string, dt mergedata.DocumentType) (*doctemplate.TemplateModel, error) {
	for _, scope := range []string{orgID, ""} {
		row := s.db.QueryRow(`SELECT model FROM templates WHERE org_id = ? AND document_type = ?`, scope, string(dt))
		var blob string
		err := row.Scan(&blob)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, err
		}
		var tpl doctemplate.TemplateModel
		if err := json.Unmarshal([]byte(blob), &tpl); err != nil {
			return nil, fmt.Errorf("stored template %s/%s: %w", scope, dt, err)
		}
		return &tpl, nil
	}
	if tpl, ok := doctemplate.Builtin(dt); ok {
		return tpl, nil
	}
	return nil, nil
}

// --- compliance snapshots (reporting cache) ---

// Snapshot is one cached sweep result for a patient.
type Snapshot struct {
	PatientID  string
	ComputedAt time.Time
	Status     string
	Result     *cti.Result
}

func (s *Store) SaveSnapshot(snap Snapshot) error {
	payload, err := json.Marshal(snap.Result)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO compliance_snapshots (patient_id, computed_at, status, payload)
		VALUES (?, ?, ?, ?)`,
		snap.PatientID, snap.ComputedAt.UTC().Format(time.RFC3339Nano), snap.Status, string(payload))
	return err
}

func (s *Store) ListSnapshots() ([]Snapshot, error) {
	rows, err := s.db.Query(`SELECT patient_id, computed_at, status, payload FROM compliance_snapshots`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var computedAt, payload string
		if err := rows.Scan(&snap.PatientID, &computedAt, &snap.Status, &payload); err != nil {
			return nil, err
		}
		snap.ComputedAt, _ = time.Parse(time.RFC3339Nano, computedAt)
		if payload != "" && payload != "null" {
			var res cti.Result
			if json.Unmarshal([]byte(payload), &res) == nil {
				snap.Result = &res
			}
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
