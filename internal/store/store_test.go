package store

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s := New(map[Dataset]string{
		DatasetPatients: filepath.Join(dir, "patients.csv"),
	}, zap.NewNop())
	return s, dir
}

func TestSaveAtomicLoadRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)

	header := []string{"patient_id", "first_name"}
	rows := []Row{
		{"patient_id": "P1", "first_name": "Ada"},
		{"patient_id": "P2", "first_name": "Grace"},
	}

	require.NoError(t, s.SaveAtomic(DatasetPatients, header, rows))

	gotHeader, gotRows, err := s.Load(DatasetPatients)
	require.NoError(t, err)
	assert.Equal(t, header, gotHeader)
	assert.Equal(t, rows, gotRows)
}

func TestLoadMissingFile(t *testing.T) {
	s, _ := newTestStore(t)

	_, _, err := s.Load(DatasetPatients)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataAccess)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoadMalformedFile(t *testing.T) {
	s, dir := newTestStore(t)

	path := filepath.Join(dir, "patients.csv")
	require.NoError(t, os.WriteFile(path, []byte("patient_id,first_name\nP1\n"), 0o644))

	_, _, err := s.Load(DatasetPatients)
	assert.ErrorIs(t, err, ErrDataAccess)
}

func TestLoadFieldsCommaAndQuotes(t *testing.T) {
	s, _ := newTestStore(t)

	header := []string{"patient_id", "text"}
	rows := []Row{{"patient_id": "P1", "text": "fever, chills\n\"quoted\""}}

	require.NoError(t, s.SaveAtomic(DatasetPatients, header, rows))

	_, gotRows, err := s.Load(DatasetPatients)
	require.NoError(t, err)
	assert.Equal(t, rows, gotRows)
}

func TestSaveAtomicReplacesWithoutTempResidue(t *testing.T) {
	s, dir := newTestStore(t)

	header := []string{"patient_id"}
	require.NoError(t, s.SaveAtomic(DatasetPatients, header, []Row{{"patient_id": "P1"}}))
	require.NoError(t, s.SaveAtomic(DatasetPatients, header, []Row{{"patient_id": "P2"}}))

	_, rows, err := s.Load(DatasetPatients)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "P2", rows[0]["patient_id"])

	_, err = os.Stat(filepath.Join(dir, "patients.csv.tmp"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestStaleTempFileLeavesTableIntact(t *testing.T) {
	s, dir := newTestStore(t)

	header := []string{"patient_id"}
	require.NoError(t, s.SaveAtomic(DatasetPatients, header, []Row{{"patient_id": "P1"}}))

	// A crash before the rename step leaves a partial temp file behind; the
	// original table must stay fully readable.
	tmp := filepath.Join(dir, "patients.csv.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("patient_id\nP9"), 0o644))

	_, rows, err := s.Load(DatasetPatients)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "P1", rows[0]["patient_id"])

	require.NoError(t, s.SaveAtomic(DatasetPatients, header, []Row{{"patient_id": "P2"}}))
	_, err = os.Stat(tmp)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestUnknownDataset(t *testing.T) {
	s, _ := newTestStore(t)

	_, _, err := s.Load(Dataset("nope"))
	assert.ErrorIs(t, err, ErrUnknownDataset)

	err = s.SaveAtomic(Dataset("nope"), []string{"x"}, nil)
	assert.ErrorIs(t, err, ErrUnknownDataset)
}
