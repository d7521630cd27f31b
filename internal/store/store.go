package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

var (
	ErrDataAccess     = errors.New("data access error")
	ErrUnknownDataset = errors.New("unknown dataset")
)

// Dataset names the tables managed by the store.
type Dataset string

const (
	DatasetCredentials Dataset = "credentials"
	DatasetPatients    Dataset = "patients"
	DatasetNotes       Dataset = "notes"
)

// Row is one record keyed by column name. Column order lives in the table
// header, not the row.
type Row map[string]string

type Store struct {
	paths  map[Dataset]string
	logger *zap.Logger
}

func New(paths map[Dataset]string, logger *zap.Logger) *Store {
	return &Store{
		paths:  paths,
		logger: logger,
	}
}

func (s *Store) Path(dataset Dataset) (string, error) {
	path, ok := s.paths[dataset]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownDataset, dataset)
	}
	return path, nil
}

// Load reads a whole table into memory. The first line is the header; every
// following line becomes a Row keyed by it. Missing or malformed files fail
// with an error wrapping ErrDataAccess.
func (s *Store) Load(dataset Dataset) ([]string, []Row, error) {
	path, err := s.Path(dataset)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrDataAccess, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: parsing %s: %w", ErrDataAccess, path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: %s has no header row", ErrDataAccess, path)
	}

	header := records[0]
	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) != len(header) {
			return nil, nil, fmt.Errorf("%w: %s row has %d columns, header has %d",
				ErrDataAccess, path, len(record), len(header))
		}
		row := make(Row, len(header))
		for i, column := range header {
			row[column] = record[i]
		}
		rows = append(rows, row)
	}

	s.logger.Debug("dataset loaded",
		zap.String("dataset", string(dataset)),
		zap.Int("rows", len(rows)))

	return header, rows, nil
}

// SaveAtomic rewrites a whole table. The data is written to a temporary
// file beside the target and renamed over it, so a crash mid-write never
// leaves a truncated table on disk.
func (s *Store) SaveAtomic(dataset Dataset, header []string, rows []Row) error {
	path, err := s.Path(dataset)
	if err != nil {
		return err
	}

	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		record := make([]string, len(header))
		for i, column := range header {
			record[i] = row[column]
		}
		records = append(records, record)
	}

	if err := SaveAtomicPath(path, header, records); err != nil {
		return err
	}

	s.logger.Debug("dataset saved",
		zap.String("dataset", string(dataset)),
		zap.Int("rows", len(rows)))

	return nil
}

// SaveAtomicPath writes header and records to an arbitrary CSV file with the
// same temp-file-then-rename pattern used for the datasets. Used for output
// artifacts such as the stats export.
func SaveAtomicPath(path string, header []string, records [][]string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %w", ErrDataAccess, err)
		}
	}

	tmp := path + ".tmp"
	if err := writeCSV(tmp, header, records); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %w", ErrDataAccess, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %w", ErrDataAccess, err)
	}

	return nil
}

func writeCSV(path string, header []string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		f.Close()
		return err
	}
	if err := writer.WriteAll(records); err != nil {
		f.Close()
		return err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
