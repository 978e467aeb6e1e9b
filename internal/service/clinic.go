package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/avarghese/clinicsync/internal/errs"
	"github.com/avarghese/clinicsync/internal/model"
	"github.com/avarghese/clinicsync/internal/repository"
)

// mrnPrefix is the hospital code embedded in every medical record number,
// e.g. AFEH007/2026.
const mrnPrefix = "AFEH"

// SyncBatch is a bundle of offline-created records submitted in one request.
type SyncBatch struct {
	Bookings []model.Booking       `json:"bookings"`
	Patients []model.PatientRecord `json:"patients"`
}

// SyncReport counts what a batch submission accepted.
type SyncReport struct {
	Bookings int `json:"bookings"`
	Patients int `json:"patients"`
}

// ClinicService is the server-side workflow over bookings and patient records.
type ClinicService interface {
	ListBookings(ctx context.Context) ([]model.Booking, error)
	// SaveBooking upserts a booking, assigning an identifier when absent.
	SaveBooking(ctx context.Context, b model.Booking) (model.Booking, error)

	ListPatients(ctx context.Context) ([]model.PatientRecord, error)
	GetPatient(ctx context.Context, id string) (*model.PatientRecord, error)
	SearchPatients(ctx context.Context, query string) ([]model.PatientRecord, error)
	// CreatePatient stores a new record, minting an MRN for new patients.
	CreatePatient(ctx context.Context, p model.PatientRecord) (model.PatientRecord, error)
	UpdatePatient(ctx context.Context, p model.PatientRecord) (model.PatientRecord, error)
	DeletePatient(ctx context.Context, id string) error

	// SyncBatch accepts records accumulated offline and upserts them all.
	SyncBatch(ctx context.Context, batch SyncBatch) (SyncReport, error)
}

type ClinicServiceImpl struct {
	bookings  repository.BookingRepository
	patients  repository.PatientRepository
	maxSearch int
	now       func() time.Time
}

// NewClinicService constructs ClinicService with required dependencies.
func NewClinicService(bookings repository.BookingRepository, patients repository.PatientRepository, maxSearch int) *ClinicServiceImpl {
	if maxSearch <= 0 {
		maxSearch = 10
	}
	return &ClinicServiceImpl{bookings: bookings, patients: patients, maxSearch: maxSearch, now: time.Now}
}

func (s *ClinicServiceImpl) ListBookings(ctx context.Context) ([]model.Booking, error) {
	return s.bookings.List(ctx)
}

func (s *ClinicServiceImpl) SaveBooking(ctx context.Context, b model.Booking) (model.Booking, error) {
	if b.PatientName == "" || b.Mobile == "" {
		return model.Booking{}, fmt.Errorf("patient_name and mobile required: %w", errs.ErrInvalid)
	}
	if b.ID == "" {
		b.ID = uuid.Must(uuid.NewV4()).String()
	}
	if b.BookingType == "" {
		b.BookingType = model.BookingNew
	}
	b.Synced = true
	return s.bookings.Upsert(ctx, b)
}

func (s *ClinicServiceImpl) ListPatients(ctx context.Context) ([]model.PatientRecord, error) {
	return s.patients.List(ctx)
}

func (s *ClinicServiceImpl) GetPatient(ctx context.Context, id string) (*model.PatientRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("patient id required: %w", errs.ErrInvalid)
	}
	return s.patients.Get(ctx, id)
}

func (s *ClinicServiceImpl) SearchPatients(ctx context.Context, query string) ([]model.PatientRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.PatientRecord{}, nil
	}
	return s.patients.Search(ctx, query, s.maxSearch)
}

func (s *ClinicServiceImpl) CreatePatient(ctx context.Context, p model.PatientRecord) (model.PatientRecord, error) {
	if p.PatientName == "" || p.Mobile == "" {
		return model.PatientRecord{}, fmt.Errorf("patient_name and mobile required: %w", errs.ErrInvalid)
	}
	if p.ID == "" {
		p.ID = uuid.Must(uuid.NewV4()).String()
	}
	if p.Status == "" {
		p.Status = model.StatusOpen
	}
	if p.MRNumber == "" {
		mrn, err := s.mintMRN(ctx)
		if err != nil {
			return model.PatientRecord{}, fmt.Errorf("mint mrn: %w", err)
		}
		p.MRNumber = mrn
	}
	p.Synced = true
	return s.patients.Upsert(ctx, p)
}

func (s *ClinicServiceImpl) UpdatePatient(ctx context.Context, p model.PatientRecord) (model.PatientRecord, error) {
	if p.ID == "" {
		return model.PatientRecord{}, fmt.Errorf("patient id required: %w", errs.ErrInvalid)
	}
	if _, err := s.patients.Get(ctx, p.ID); err != nil {
		return model.PatientRecord{}, err
	}
	p.Synced = true
	return s.patients.Upsert(ctx, p)
}

func (s *ClinicServiceImpl) DeletePatient(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("patient id required: %w", errs.ErrInvalid)
	}
	return s.patients.Delete(ctx, id)
}

// SyncBatch upserts every record in the batch. A failing record aborts the
// batch; the client re-submits the whole queue on its next pass, and upserts
// keyed on client identifiers make the retry harmless.
func (s *ClinicServiceImpl) SyncBatch(ctx context.Context, batch SyncBatch) (SyncReport, error) {
	var rep SyncReport
	for _, b := range batch.Bookings {
		if _, err := s.SaveBooking(ctx, b); err != nil {
			return rep, fmt.Errorf("sync booking %s: %w", b.ID, err)
		}
		rep.Bookings++
	}
	for _, p := range batch.Patients {
		var err error
		if p.MRNumber == "" || p.ID == "" {
			_, err = s.CreatePatient(ctx, p)
		} else {
			p.Synced = true
			_, err = s.patients.Upsert(ctx, p)
		}
		if err != nil {
			return rep, fmt.Errorf("sync patient %s: %w", p.ID, err)
		}
		rep.Patients++
	}
	return rep, nil
}

// mintMRN assigns the next sequential medical record number for the current
// year, formatted as AFEH<seq, zero padded to three digits>/<year>.
func (s *ClinicServiceImpl) mintMRN(ctx context.Context) (string, error) {
	year := s.now().Year()
	seq, err := s.patients.MaxMRNSeq(ctx, year)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%03d/%d", mrnPrefix, seq+1, year), nil
}
