package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mesikahq/clinical-warehouse/internal/audit"
	"github.com/mesikahq/clinical-warehouse/internal/auth"
	"github.com/mesikahq/clinical-warehouse/internal/patient"
	"github.com/mesikahq/clinical-warehouse/internal/store"
)

var ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

// Entry is one clinical note. The archive is read-only for this tool.
type Entry struct {
	PatientID string
	NoteDate  string
	Text      string
}

type Service interface {
	// Lookup returns every note for the patient on the given date, zero or
	// more. An empty result is not an error.
	Lookup(ctx context.Context, sess *auth.Session, patientID, date string) ([]Entry, error)
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

func (s *service) Lookup(ctx context.Context, sess *auth.Session, patientID, date string) ([]Entry, error) {
	if _, err := time.Parse(patient.DateFormat, date); err != nil {
		return nil, ErrInvalidDate
	}

	_, rows, err := s.store.Load(store.DatasetNotes)
	if err != nil {
		return nil, err
	}

	// Prefix match so note dates stamped with a time component still hit.
	matches := make([]Entry, 0)
	for _, row := range rows {
		if row["patient_id"] == patientID && strings.HasPrefix(row["note_date"], date) {
			matches = append(matches, Entry{
				PatientID: row["patient_id"],
				NoteDate:  row["note_date"],
				Text:      row["text"],
			})
		}
	}

	s.audit.Append(audit.Event{
		Type:   audit.EventAccess,
		Actor:  sess.Username,
		Action: "view_notes",
		Detail: fmt.Sprintf("patient %s on %s, %d note(s)", patientID, date, len(matches)),
	})

	return matches, nil
}
