// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/avarghese/clinicsync/internal/model"
)

// BookingRepository stores visit bookings on the system of record.
type BookingRepository interface {
	// Upsert inserts or replaces a booking by its client-assigned identifier.
	Upsert(ctx context.Context, b model.Booking) (model.Booking, error)
	// List returns all bookings, newest first.
	List(ctx context.Context) ([]model.Booking, error)
}
