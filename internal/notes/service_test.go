package notes_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mesikahq/clinical-warehouse/internal/audit"
	"github.com/mesikahq/clinical-warehouse/internal/auth"
	"github.com/mesikahq/clinical-warehouse/internal/notes"
	"github.com/mesikahq/clinical-warehouse/internal/store"
)

var sess = &auth.Session{ID: "test-session", Username: "tester", Role: auth.RoleClinician}

var notesHeader = []string{"patient_id", "note_date", "text"}

func newNoteService(t *testing.T) notes.Service {
	t.Helper()
	dir := t.TempDir()

	st := store.New(map[store.Dataset]string{
		store.DatasetNotes: filepath.Join(dir, "notes.csv"),
	}, zap.NewNop())

	rows := []store.Row{
		{"patient_id": "P1", "note_date": "2024-01-01", "text": "Morning rounds"},
		{"patient_id": "P1", "note_date": "2024-01-01 14:30:00", "text": "Afternoon follow-up"},
		{"patient_id": "P1", "note_date": "2024-01-02", "text": "Discharge summary"},
		{"patient_id": "P2", "note_date": "2024-01-01", "text": "Intake assessment"},
	}
	require.NoError(t, st.SaveAtomic(store.DatasetNotes, notesHeader, rows))

	return notes.NewService(st, audit.NewService(filepath.Join(dir, "audit_log.csv")), zap.NewNop())
}

func TestLookupMatchesPatientAndDate(t *testing.T) {
	svc := newNoteService(t)

	entries, err := svc.Lookup(context.Background(), sess, "P1", "2024-01-01")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Morning rounds", entries[0].Text)
	assert.Equal(t, "Afternoon follow-up", entries[1].Text)
}

func TestLookupEmptyIsNotAnError(t *testing.T) {
	svc := newNoteService(t)

	entries, err := svc.Lookup(context.Background(), sess, "P1", "2024-01-09")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)

	entries, err = svc.Lookup(context.Background(), sess, "P9", "2024-01-01")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLookupRejectsMalformedDate(t *testing.T) {
	svc := newNoteService(t)

	_, err := svc.Lookup(context.Background(), sess, "P1", "01/01/2024")
	assert.ErrorIs(t, err, notes.ErrInvalidDate)
}
