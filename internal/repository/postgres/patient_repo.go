package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/avarghese/clinicsync/internal/errs"
	"github.com/avarghese/clinicsync/internal/model"
)

// PatientRepo implements PatientRepository using PostgreSQL. The clinical
// record is schema-flexible, so the full document lives in a JSONB column with
// a few extracted columns for lookups.
type PatientRepo struct{ db *DB }

// NewPatientRepo constructs a patient repository.
func NewPatientRepo(db *DB) *PatientRepo { return &PatientRepo{db: db} }

// Upsert inserts or replaces a record keyed by its client-assigned id.
func (r *PatientRepo) Upsert(ctx context.Context, p model.PatientRecord) (model.PatientRecord, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(p)
	if err != nil {
		return model.PatientRecord{}, fmt.Errorf("encode patient: %w", err)
	}
	const q = `
INSERT INTO patients (id, mr_number, patient_name, mobile, status, doc, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  mr_number=EXCLUDED.mr_number, patient_name=EXCLUDED.patient_name,
  mobile=EXCLUDED.mobile, status=EXCLUDED.status, doc=EXCLUDED.doc,
  updated_at=EXCLUDED.updated_at`
	_, err = r.db.Pool.Exec(ctx, q,
		p.ID, p.MRNumber, p.PatientName, p.Mobile, p.Status, doc, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return model.PatientRecord{}, err
	}
	return p, nil
}

func scanDocs(rows pgx.Rows) ([]model.PatientRecord, error) {
	defer rows.Close()
	out := []model.PatientRecord{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var p model.PatientRecord
		if err := json.Unmarshal(doc, &p); err != nil {
			return nil, fmt.Errorf("decode patient: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// List returns all patient records.
func (r *PatientRepo) List(ctx context.Context) ([]model.PatientRecord, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT doc FROM patients ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	return scanDocs(rows)
}

// Get returns one record or errs.ErrNotFound.
func (r *PatientRepo) Get(ctx context.Context, id string) (*model.PatientRecord, error) {
	var doc []byte
	err := r.db.Pool.QueryRow(ctx, `SELECT doc FROM patients WHERE id=$1`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	var p model.PatientRecord
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("decode patient: %w", err)
	}
	return &p, nil
}

// Search matches query case-insensitively against MRN, mobile and name.
func (r *PatientRepo) Search(ctx context.Context, query string, limit int) ([]model.PatientRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
SELECT doc FROM patients
WHERE mr_number ILIKE '%'||$1||'%' OR mobile ILIKE '%'||$1||'%' OR patient_name ILIKE '%'||$1||'%'
ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.Pool.Query(ctx, q, query, limit)
	if err != nil {
		return nil, err
	}
	return scanDocs(rows)
}

// Delete removes the record; errs.ErrNotFound when nothing matched.
func (r *PatientRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM patients WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// MaxMRNSeq returns the highest minted MRN sequence for the year, 0 when none.
func (r *PatientRepo) MaxMRNSeq(ctx context.Context, year int) (int, error) {
	const q = `
SELECT COALESCE(MAX((substring(mr_number FROM '^AFEH(\d+)/\d{4}$'))::int), 0)
FROM patients WHERE mr_number LIKE 'AFEH%/'||$1::text`
	var seq int
	if err := r.db.Pool.QueryRow(ctx, q, year).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}
