package postgres

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/avarghese/clinicsync/internal/errs"
	"github.com/avarghese/clinicsync/internal/model"
)

func patientDoc(t *testing.T, p model.PatientRecord) []byte {
	t.Helper()
	doc, err := json.Marshal(p)
	require.NoError(t, err)
	return doc
}

func TestPatientRepo_Upsert(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPatientRepo(db)

	p := model.PatientRecord{
		ID:          "p1",
		MRNumber:    "AFEH001/2025",
		PatientName: "R. Menon",
		Mobile:      "9876543210",
		Status:      model.StatusOpen,
	}
	mock.ExpectExec(`INSERT INTO patients`).
		WithArgs(p.ID, p.MRNumber, p.PatientName, p.Mobile, p.Status,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	got, err := r.Upsert(context.Background(), p)
	require.NoError(t, err)
	require.False(t, got.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientRepo_GetNotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPatientRepo(db)

	mock.ExpectQuery(`SELECT doc FROM patients WHERE id=\$1`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err := r.Get(context.Background(), "ghost")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestPatientRepo_Search(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPatientRepo(db)

	doc := patientDoc(t, model.PatientRecord{ID: "p1", PatientName: "R. Menon"})
	mock.ExpectQuery(`SELECT doc FROM patients\s+WHERE mr_number ILIKE`).
		WithArgs("menon", 10).
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).AddRow(doc))

	got, err := r.Search(context.Background(), "menon", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "R. Menon", got[0].PatientName)
}

func TestPatientRepo_Delete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPatientRepo(db)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM patients WHERE id=\$1`).
		WithArgs("p1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, r.Delete(ctx, "p1"))

	mock.ExpectExec(`DELETE FROM patients WHERE id=\$1`).
		WithArgs("ghost").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, r.Delete(ctx, "ghost"), errs.ErrNotFound)
}

func TestPatientRepo_MaxMRNSeq(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPatientRepo(db)

	mock.ExpectQuery(`SELECT COALESCE\(MAX`).
		WithArgs(2025).
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(41))

	seq, err := r.MaxMRNSeq(context.Background(), 2025)
	require.NoError(t, err)
	require.Equal(t, 41, seq)
}
