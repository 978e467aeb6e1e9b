package postgres

import (
	"context"
	"time"

	"github.com/avarghese/clinicsync/internal/model"
)

// BookingRepo implements BookingRepository using PostgreSQL.
type BookingRepo struct{ db *DB }

// NewBookingRepo constructs a booking repository.
func NewBookingRepo(db *DB) *BookingRepo { return &BookingRepo{db: db} }

// Upsert inserts or replaces a booking keyed by its client-assigned id.
func (r *BookingRepo) Upsert(ctx context.Context, b model.Booking) (model.Booking, error) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	b.UpdatedAt = time.Now().UTC()
	const q = `
INSERT INTO bookings (id, booking_type, mr_number, patient_name, mobile, reference, appointment_date, token_number, synced, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  booking_type=EXCLUDED.booking_type, mr_number=EXCLUDED.mr_number,
  patient_name=EXCLUDED.patient_name, mobile=EXCLUDED.mobile,
  reference=EXCLUDED.reference, appointment_date=EXCLUDED.appointment_date,
  token_number=EXCLUDED.token_number, synced=EXCLUDED.synced,
  updated_at=EXCLUDED.updated_at`
	_, err := r.db.Pool.Exec(ctx, q,
		b.ID, b.BookingType, b.MRNumber, b.PatientName, b.Mobile,
		b.Reference, b.AppointmentDate, b.TokenNumber, b.Synced, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// List returns all bookings, newest first.
func (r *BookingRepo) List(ctx context.Context) ([]model.Booking, error) {
	const q = `
SELECT id, booking_type, mr_number, patient_name, mobile, reference, appointment_date, token_number, synced, created_at, updated_at
FROM bookings ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Booking{}
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.BookingType, &b.MRNumber, &b.PatientName, &b.Mobile,
			&b.Reference, &b.AppointmentDate, &b.TokenNumber, &b.Synced, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
