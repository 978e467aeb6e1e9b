// Package remote implements the REST client for the clinic system of record.
// The DAL and the sync engine both consume the Client interface; the HTTP
// implementation is the only code in the client that touches the network.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avarghese/clinicsync/internal/errs"
	"github.com/avarghese/clinicsync/internal/model"
)

// LoginResult is the /auth/login response shape.
type LoginResult struct {
	Success bool        `json:"success"`
	User    *model.User `json:"user,omitempty"`
	Message string      `json:"message,omitempty"`
	Token   string      `json:"token,omitempty"`
}

// Client is the remote API surface used by the offline core.
type Client interface {
	Login(ctx context.Context, username, password string) (LoginResult, error)

	ListBookings(ctx context.Context) ([]model.Booking, error)
	CreateBooking(ctx context.Context, b model.Booking) (model.Booking, error)
	UpdateBooking(ctx context.Context, b model.Booking) (model.Booking, error)

	ListPatients(ctx context.Context) ([]model.PatientRecord, error)
	SearchPatients(ctx context.Context, query string) ([]model.PatientRecord, error)
	CreatePatient(ctx context.Context, p model.PatientRecord) (model.PatientRecord, error)
	UpdatePatient(ctx context.Context, p model.PatientRecord) (model.PatientRecord, error)
}

// TokenFunc supplies the current bearer token, or "" when not logged in.
type TokenFunc func(ctx context.Context) string

// HTTPClient talks JSON over HTTP to a base URL (e.g. http://host:8000/api).
type HTTPClient struct {
	base  string
	http  *http.Client
	token TokenFunc
}

var _ Client = (*HTTPClient)(nil)

// NewHTTP constructs a client. A nil token func means unauthenticated calls.
func NewHTTP(base string, token TokenFunc) *HTTPClient {
	return &HTTPClient{
		base:  strings.TrimRight(base, "/"),
		http:  &http.Client{Timeout: 15 * time.Second},
		token: token,
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s %s: encode: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if tok := c.token(ctx); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, errs.ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%s %s: %w", method, path, errs.ErrUnauthorized)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%s %s: %w", method, path, errs.ErrRateLimited)
	default:
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

// Login authenticates staff credentials.
func (c *HTTPClient) Login(ctx context.Context, username, password string) (LoginResult, error) {
	in := map[string]string{"username": username, "password": password}
	var out LoginResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", in, &out); err != nil {
		return LoginResult{}, err
	}
	return out, nil
}

// ListBookings fetches all bookings.
func (c *HTTPClient) ListBookings(ctx context.Context) ([]model.Booking, error) {
	var out []model.Booking
	if err := c.do(ctx, http.MethodGet, "/appointments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateBooking submits a client-identified booking.
func (c *HTTPClient) CreateBooking(ctx context.Context, b model.Booking) (model.Booking, error) {
	var out model.Booking
	if err := c.do(ctx, http.MethodPost, "/appointments", b, &out); err != nil {
		return model.Booking{}, err
	}
	return out, nil
}

// UpdateBooking replaces a booking by its identifier.
func (c *HTTPClient) UpdateBooking(ctx context.Context, b model.Booking) (model.Booking, error) {
	var out model.Booking
	if err := c.do(ctx, http.MethodPut, "/appointments/"+url.PathEscape(b.ID), b, &out); err != nil {
		return model.Booking{}, err
	}
	return out, nil
}

// ListPatients fetches all patient records.
func (c *HTTPClient) ListPatients(ctx context.Context) ([]model.PatientRecord, error) {
	var out []model.PatientRecord
	if err := c.do(ctx, http.MethodGet, "/patients", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchPatients runs the typeahead lookup.
func (c *HTTPClient) SearchPatients(ctx context.Context, query string) ([]model.PatientRecord, error) {
	var out []model.PatientRecord
	path := "/patients/search?query=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePatient submits a new patient record; the server may enrich it (MRN).
func (c *HTTPClient) CreatePatient(ctx context.Context, p model.PatientRecord) (model.PatientRecord, error) {
	var out model.PatientRecord
	if err := c.do(ctx, http.MethodPost, "/patients", p, &out); err != nil {
		return model.PatientRecord{}, err
	}
	return out, nil
}

// UpdatePatient replaces a patient record by its identifier.
func (c *HTTPClient) UpdatePatient(ctx context.Context, p model.PatientRecord) (model.PatientRecord, error) {
	var out model.PatientRecord
	if err := c.do(ctx, http.MethodPut, "/patients/"+url.PathEscape(p.ID), p, &out); err != nil {
		return model.PatientRecord{}, err
	}
	return out, nil
}
