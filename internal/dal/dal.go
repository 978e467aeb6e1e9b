// Package dal is the single entry point UI code uses to read and write domain
// entities. It implements the offline-first policy: every write lands in the
// local store before the remote system is attempted, every read prefers the
// remote system and falls back to local state, and every failed remote write
// becomes a queued pending operation.
package dal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/avarghese/clinicsync/internal/errs"
	"github.com/avarghese/clinicsync/internal/model"
	"github.com/avarghese/clinicsync/internal/netwatch"
	"github.com/avarghese/clinicsync/internal/queue"
	"github.com/avarghese/clinicsync/internal/remote"
	"github.com/avarghese/clinicsync/internal/sequence"
	"github.com/avarghese/clinicsync/internal/store"
)

// Outcome tells the caller where a write ended up.
type Outcome int

const (
	// OutcomeSynced means the remote system accepted the record.
	OutcomeSynced Outcome = iota
	// OutcomeQueued means the record is durable locally and waits for a sync
	// pass ("saved locally, will sync when online").
	OutcomeQueued
)

func (o Outcome) String() string {
	if o == OutcomeSynced {
		return "synced"
	}
	return "queued"
}

// DAL ties the local store, the sync queue and the remote API together.
type DAL struct {
	bookings *store.Collection[model.Booking]
	patients *store.Collection[model.PatientRecord]
	session  *store.Scalar[model.Session]
	queue    *queue.Queue
	remote   remote.Client
	net      netwatch.Provider
	seq      *sequence.Generator
	log      *zap.Logger

	now   func() time.Time
	newID func() string
}

// New constructs the DAL over a shared local backend.
func New(kv store.KV, q *queue.Queue, rc remote.Client, net netwatch.Provider, seq *sequence.Generator, log *zap.Logger) *DAL {
	return &DAL{
		bookings: store.NewCollection[model.Booking](kv, store.KeyBookings),
		patients: store.NewCollection[model.PatientRecord](kv, store.KeyPatients),
		session:  store.NewScalar[model.Session](kv, store.KeyUser),
		queue:    q,
		remote:   rc,
		net:      net,
		seq:      seq,
		log:      log,
		now:      time.Now,
		newID:    func() string { return uuid.Must(uuid.NewV4()).String() },
	}
}

// SessionToken returns a remote.TokenFunc reading the persisted session, for
// wiring the HTTP client before the DAL itself exists.
func SessionToken(kv store.KV) remote.TokenFunc {
	slot := store.NewScalar[model.Session](kv, store.KeyUser)
	return func(ctx context.Context) string {
		sess, ok, err := slot.Get(ctx)
		if err != nil || !ok {
			return ""
		}
		return sess.Token
	}
}

// ---- auth ----

// Login authenticates against the remote system and persists the session.
// There is no offline login path: an existing persisted session keeps working
// while offline instead.
func (d *DAL) Login(ctx context.Context, username, password string) (model.Session, error) {
	res, err := d.remote.Login(ctx, username, password)
	if err != nil {
		return model.Session{}, err
	}
	if !res.Success || res.User == nil {
		if res.Message != "" {
			return model.Session{}, fmt.Errorf("%s: %w", res.Message, errs.ErrUnauthorized)
		}
		return model.Session{}, errs.ErrUnauthorized
	}

	sess := model.Session{User: *res.User, Token: res.Token, ExpiresAt: tokenExpiry(res.Token, d.now())}
	if err := d.session.Set(ctx, sess); err != nil {
		return model.Session{}, err
	}
	return sess, nil
}

// tokenExpiry reads exp from the JWT without verifying it; the server is the
// only verifier, the client just needs to know when to re-login.
func tokenExpiry(token string, now time.Time) time.Time {
	fallback := now.Add(12 * time.Hour)
	if token == "" {
		return fallback
	}
	var claims jwt.RegisteredClaims
	_, _ = jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return nil, nil },
		jwt.WithoutClaimsValidation(),
	)
	if claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return fallback
}

// Session returns the persisted session or errs.ErrNotFound.
func (d *DAL) Session(ctx context.Context) (model.Session, error) {
	sess, ok, err := d.session.Get(ctx)
	if err != nil {
		return model.Session{}, err
	}
	if !ok {
		return model.Session{}, errs.ErrNotFound
	}
	return sess, nil
}

// Logout removes the persisted session.
func (d *DAL) Logout(ctx context.Context) error {
	return d.session.Clear(ctx)
}

// ---- reads ----

// FetchPatients returns patient records, remote-first when online. Server
// records refresh local copies; locally created records the server has not seen
// yet are kept in the result so unsynced work never disappears from the UI.
func (d *DAL) FetchPatients(ctx context.Context) ([]model.PatientRecord, error) {
	if !d.net.Online() {
		return d.localPatients(ctx), nil
	}
	serverRecs, err := d.remote.ListPatients(ctx)
	if err != nil {
		d.log.Warn("patient fetch failed, serving local copy", zap.Error(err))
		return d.localPatients(ctx), nil
	}

	seen := make(map[string]bool, len(serverRecs))
	for i := range serverRecs {
		serverRecs[i].Synced = true
		seen[serverRecs[i].ID] = true
		if _, err := d.patients.Upsert(ctx, serverRecs[i]); err != nil {
			d.log.Warn("patient refresh write failed", zap.String("id", serverRecs[i].ID), zap.Error(err))
		}
	}

	out := make([]model.PatientRecord, 0, len(serverRecs))
	for _, p := range d.localPatients(ctx) {
		if !seen[p.ID] {
			out = append(out, p)
		}
	}
	return append(out, serverRecs...), nil
}

// FetchAppointments returns bookings with the same policy as FetchPatients.
func (d *DAL) FetchAppointments(ctx context.Context) ([]model.Booking, error) {
	if !d.net.Online() {
		return d.localBookings(ctx), nil
	}
	serverRecs, err := d.remote.ListBookings(ctx)
	if err != nil {
		d.log.Warn("appointment fetch failed, serving local copy", zap.Error(err))
		return d.localBookings(ctx), nil
	}

	seen := make(map[string]bool, len(serverRecs))
	for i := range serverRecs {
		serverRecs[i].Synced = true
		seen[serverRecs[i].ID] = true
		if _, err := d.bookings.Upsert(ctx, serverRecs[i]); err != nil {
			d.log.Warn("booking refresh write failed", zap.String("id", serverRecs[i].ID), zap.Error(err))
		}
	}

	out := make([]model.Booking, 0, len(serverRecs))
	for _, b := range d.localBookings(ctx) {
		if !seen[b.ID] {
			out = append(out, b)
		}
	}
	return append(out, serverRecs...), nil
}

// SearchPatients runs the typeahead lookup remotely when online, otherwise a
// substring match over MRN, mobile and name in the local store.
func (d *DAL) SearchPatients(ctx context.Context, query string) ([]model.PatientRecord, error) {
	if query == "" {
		return []model.PatientRecord{}, nil
	}
	if d.net.Online() {
		recs, err := d.remote.SearchPatients(ctx, query)
		if err == nil {
			return recs, nil
		}
		d.log.Warn("patient search failed, searching local copy", zap.Error(err))
	}
	q := strings.ToLower(query)
	var out []model.PatientRecord
	for _, p := range d.localPatients(ctx) {
		if strings.Contains(strings.ToLower(p.MRNumber), q) ||
			strings.Contains(p.Mobile, query) ||
			strings.Contains(strings.ToLower(p.PatientName), q) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (d *DAL) localPatients(ctx context.Context) []model.PatientRecord {
	recs, err := d.patients.All(ctx)
	if err != nil {
		d.log.Error("local patient read failed", zap.Error(err))
		return []model.PatientRecord{}
	}
	return recs
}

func (d *DAL) localBookings(ctx context.Context) []model.Booking {
	recs, err := d.bookings.All(ctx)
	if err != nil {
		d.log.Error("local booking read failed", zap.Error(err))
		return []model.Booking{}
	}
	return recs
}

// ---- writes ----

// CreateBooking persists the booking locally, assigns identity and a visit
// token when missing, then tries the remote system.
func (d *DAL) CreateBooking(ctx context.Context, b model.Booking) (model.Booking, Outcome, error) {
	if err := validateBooking(&b); err != nil {
		return model.Booking{}, OutcomeQueued, err
	}
	if b.ID == "" {
		b.ID = d.newID()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = d.now()
	}
	if b.TokenNumber == "" {
		b.TokenNumber = d.seq.NextToken(ctx)
	}
	b.Synced = false

	if _, err := d.bookings.Upsert(ctx, b); err != nil {
		return model.Booking{}, OutcomeQueued, err
	}

	if !d.net.Online() {
		d.enqueue(ctx, model.PendingOp{Kind: model.OpCreateBooking, Booking: &b})
		return b, OutcomeQueued, nil
	}
	resp, err := d.remote.CreateBooking(ctx, b)
	if err != nil {
		d.log.Warn("booking create failed remotely, queued for sync", zap.String("id", b.ID), zap.Error(err))
		d.enqueue(ctx, model.PendingOp{Kind: model.OpCreateBooking, Booking: &b})
		return b, OutcomeQueued, nil
	}
	resp.Synced = true
	if _, err := d.bookings.Upsert(ctx, resp); err != nil {
		d.log.Warn("booking refresh write failed", zap.String("id", resp.ID), zap.Error(err))
	}
	return resp, OutcomeSynced, nil
}

// CreatePatientRecord persists the record locally, then tries the remote
// system; the server may enrich the accepted record (assigned MRN).
func (d *DAL) CreatePatientRecord(ctx context.Context, p model.PatientRecord) (model.PatientRecord, Outcome, error) {
	if err := validatePatient(&p); err != nil {
		return model.PatientRecord{}, OutcomeQueued, err
	}
	if p.ID == "" {
		p.ID = d.newID()
	}
	if p.Status == "" {
		p.Status = model.StatusOpen
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = d.now()
	}
	p.UpdatedAt = d.now()
	p.Synced = false

	if _, err := d.patients.Upsert(ctx, p); err != nil {
		return model.PatientRecord{}, OutcomeQueued, err
	}

	if !d.net.Online() {
		d.enqueue(ctx, model.PendingOp{Kind: model.OpCreatePatient, Patient: &p})
		return p, OutcomeQueued, nil
	}
	resp, err := d.remote.CreatePatient(ctx, p)
	if err != nil {
		d.log.Warn("patient create failed remotely, queued for sync", zap.String("id", p.ID), zap.Error(err))
		d.enqueue(ctx, model.PendingOp{Kind: model.OpCreatePatient, Patient: &p})
		return p, OutcomeQueued, nil
	}
	resp.Synced = true
	if _, err := d.patients.Upsert(ctx, resp); err != nil {
		d.log.Warn("patient refresh write failed", zap.String("id", resp.ID), zap.Error(err))
	}
	return resp, OutcomeSynced, nil
}

// UpdatePatientRecord merges a partial update over the local record and
// propagates the merged result. Updates never materialize new entities: an
// unknown identifier is errs.ErrNotFound and callers must use the create path.
func (d *DAL) UpdatePatientRecord(ctx context.Context, id string, patch model.PatientPatch) (model.PatientRecord, Outcome, error) {
	cur, err := d.patients.Get(ctx, id)
	if err != nil {
		return model.PatientRecord{}, OutcomeQueued, fmt.Errorf("patient %s: %w", id, err)
	}
	patch.Apply(&cur)
	cur.UpdatedAt = d.now()
	cur.Synced = false

	if _, err := d.patients.Upsert(ctx, cur); err != nil {
		return model.PatientRecord{}, OutcomeQueued, err
	}

	if !d.net.Online() {
		d.enqueue(ctx, model.PendingOp{Kind: model.OpUpdatePatient, Patient: &cur})
		return cur, OutcomeQueued, nil
	}
	resp, err := d.remote.UpdatePatient(ctx, cur)
	if err != nil {
		d.log.Warn("patient update failed remotely, queued for sync", zap.String("id", id), zap.Error(err))
		d.enqueue(ctx, model.PendingOp{Kind: model.OpUpdatePatient, Patient: &cur})
		return cur, OutcomeQueued, nil
	}
	resp.Synced = true
	if _, err := d.patients.Upsert(ctx, resp); err != nil {
		d.log.Warn("patient refresh write failed", zap.String("id", id), zap.Error(err))
	}
	return resp, OutcomeSynced, nil
}

// enqueue records a pending operation. Queue persistence failures are logged
// and swallowed: the entity itself is already durable in the local store, only
// the replay intent may be lost.
func (d *DAL) enqueue(ctx context.Context, op model.PendingOp) {
	if err := d.queue.Enqueue(ctx, op); err != nil {
		d.log.Error("sync queue write failed", zap.String("kind", op.Kind), zap.Error(err))
	}
}

// ---- validation ----

func validateBooking(b *model.Booking) error {
	switch {
	case b.PatientName == "":
		return fmt.Errorf("patient name required: %w", errs.ErrInvalid)
	case b.Mobile == "":
		return fmt.Errorf("mobile required: %w", errs.ErrInvalid)
	case b.AppointmentDate == "":
		return fmt.Errorf("appointment date required: %w", errs.ErrInvalid)
	case b.Reference == "":
		return fmt.Errorf("reference required: %w", errs.ErrInvalid)
	case b.BookingType != model.BookingNew && b.BookingType != model.BookingReturning:
		return fmt.Errorf("booking type must be %q or %q: %w", model.BookingNew, model.BookingReturning, errs.ErrInvalid)
	case b.BookingType == model.BookingReturning && b.MRNumber == "":
		return fmt.Errorf("returning patient needs an MR number: %w", errs.ErrInvalid)
	}
	return nil
}

func validatePatient(p *model.PatientRecord) error {
	switch {
	case p.PatientName == "":
		return fmt.Errorf("patient name required: %w", errs.ErrInvalid)
	case p.Mobile == "":
		return fmt.Errorf("mobile required: %w", errs.ErrInvalid)
	case p.AppointmentDate == "":
		return fmt.Errorf("appointment date required: %w", errs.ErrInvalid)
	case p.Reference == "":
		return fmt.Errorf("reference required: %w", errs.ErrInvalid)
	case p.BookingType != model.BookingNew && p.BookingType != model.BookingReturning:
		return fmt.Errorf("booking type must be %q or %q: %w", model.BookingNew, model.BookingReturning, errs.ErrInvalid)
	}
	return nil
}
