package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesikahq/clinical-warehouse/internal/audit"
	"github.com/mesikahq/clinical-warehouse/internal/auth"
	"github.com/mesikahq/clinical-warehouse/internal/store"
)

var (
	ErrNotFound      = errors.New("patient not found")
	ErrDuplicateID   = errors.New("patient id already exists")
	ErrInvalidRecord = errors.New("invalid patient data")
	ErrInvalidDate   = errors.New("invalid date, expected YYYY-MM-DD")
)

type Service interface {
	Find(ctx context.Context, sess *auth.Session, id string) (*Record, error)
	Add(ctx context.Context, sess *auth.Session, record *Record) error
	Remove(ctx context.Context, sess *auth.Session, id string) error
	RecordVisit(ctx context.Context, sess *auth.Session, id, date string) error
	All(ctx context.Context) ([]Record, error)
}

type service struct {
	store  *store.Store
	audit  audit.Service
	logger *zap.Logger
}

func NewService(st *store.Store, auditService audit.Service, logger *zap.Logger) Service {
	return &service{
		store:  st,
		audit:  auditService,
		logger: logger,
	}
}

func (s *service) load() ([]Record, error) {
	_, rows, err := s.store.Load(store.DatasetPatients)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, fromRow(row))
	}
	return records, nil
}

func (s *service) save(records []Record) error {
	rows := make([]store.Row, 0, len(records))
	for i := range records {
		rows = append(rows, records[i].toRow())
	}
	return s.store.SaveAtomic(store.DatasetPatients, Header, rows)
}

func (s *service) Find(ctx context.Context, sess *auth.Session, id string) (*Record, error) {
	records, err := s.load()
	if err != nil {
		return nil, err
	}

	for i := range records {
		if records[i].PatientID == id {
			s.audit.Append(audit.Event{
				Type:   audit.EventAccess,
				Actor:  sess.Username,
				Action: "view_patient",
				Detail: fmt.Sprintf("patient %s", id),
			})
			return &records[i], nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Add appends a new patient and rewrites the table. The whole table is
// persisted atomically; on a duplicate id nothing is written.
func (s *service) Add(ctx context.Context, sess *auth.Session, record *Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	records, err := s.load()
	if err != nil {
		return err
	}

	for i := range records {
		if records[i].PatientID == record.PatientID {
			return fmt.Errorf("%w: %s", ErrDuplicateID, record.PatientID)
		}
	}

	record.sortVisits()
	records = append(records, *record)
	if err := s.save(records); err != nil {
		return err
	}

	s.audit.Append(audit.Event{
		Type:   audit.EventModify,
		Actor:  sess.Username,
		Action: "add_patient",
		Detail: fmt.Sprintf("patient %s", record.PatientID),
	})
	s.logger.Info("patient added",
		zap.String("patient_id", record.PatientID),
		zap.String("actor", sess.Username))

	return nil
}

// Remove deletes a patient and rewrites the table. Notes referring to the
// removed patient are left in place and become orphaned; the notes archive
// is append-only and has no referential tie to the patients table.
func (s *service) Remove(ctx context.Context, sess *auth.Session, id string) error {
	records, err := s.load()
	if err != nil {
		return err
	}

	kept := records[:0]
	for i := range records {
		if records[i].PatientID != id {
			kept = append(kept, records[i])
		}
	}
	if len(kept) == len(records) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := s.save(kept); err != nil {
		return err
	}

	s.audit.Append(audit.Event{
		Type:   audit.EventDelete,
		Actor:  sess.Username,
		Action: "remove_patient",
		Detail: fmt.Sprintf("patient %s", id),
	})
	s.logger.Info("patient removed",
		zap.String("patient_id", id),
		zap.String("actor", sess.Username))

	return nil
}

// RecordVisit appends a visit date to an existing patient, keeping the
// visit list date-ordered.
func (s *service) RecordVisit(ctx context.Context, sess *auth.Session, id, date string) error {
	if _, err := time.Parse(DateFormat, date); err != nil {
		return ErrInvalidDate
	}

	records, err := s.load()
	if err != nil {
		return err
	}

	found := false
	for i := range records {
		if records[i].PatientID == id {
			records[i].VisitDates = append(records[i].VisitDates, date)
			records[i].sortVisits()
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := s.save(records); err != nil {
		return err
	}

	s.audit.Append(audit.Event{
		Type:   audit.EventModify,
		Actor:  sess.Username,
		Action: "record_visit",
		Detail: fmt.Sprintf("patient %s visited %s", id, date),
	})

	return nil
}

func (s *service) All(ctx context.Context) ([]Record, error) {
	return s.load()
}
