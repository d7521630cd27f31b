package audit

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

type EventType string

const (
	EventAccess EventType = "ACCESS"
	EventModify EventType = "MODIFY"
	EventDelete EventType = "DELETE"
	EventLogin  EventType = "LOGIN"
	EventExport EventType = "EXPORT"
)

var header = []string{"timestamp", "actor", "action", "detail"}

const timestampFormat = "2006-01-02 15:04:05"

// Event is one audit log entry. EventType is carried on the redundant
// logger only; the on-disk table keeps the four fixed columns.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Actor     string
	Action    string
	Detail    string
}

type Service interface {
	// Append records an event, best effort. A failure to write the log is
	// itself logged when possible and never propagated: audit trouble must
	// not abort the operation that triggered it.
	Append(event Event)
	// Tail returns the most recent n entries, oldest first.
	Tail(n int) ([]Event, error)
}

type service struct {
	path   string
	logger *logrus.Logger
}

func NewService(path string) Service {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	return &service{
		path:   path,
		logger: logger,
	}
}

func (s *service) Append(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := s.appendRow(event); err != nil {
		s.logger.WithError(err).Error("Failed to append audit entry")
	}

	// Also log to system logger for redundancy
	s.logger.WithFields(logrus.Fields{
		"event_type": event.Type,
		"actor":      event.Actor,
		"action":     event.Action,
		"detail":     event.Detail,
	}).Info("Audit event logged")
}

func (s *service) appendRow(event Event) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	writer := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := writer.Write(header); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{
		event.Timestamp.Format(timestampFormat),
		event.Actor,
		event.Action,
		event.Detail,
	}); err != nil {
		return err
	}

	writer.Flush()
	return writer.Error()
}

func (s *service) Tail(n int) ([]Event, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Event{}, nil
		}
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) <= 1 {
		return []Event{}, nil
	}

	rows := records[1:]
	if n > 0 && len(rows) > n {
		rows = rows[len(rows)-n:]
	}

	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		if len(row) != len(header) {
			continue
		}
		timestamp, _ := time.ParseInLocation(timestampFormat, row[0], time.Local)
		events = append(events, Event{
			Timestamp: timestamp,
			Actor:     row[1],
			Action:    row[2],
			Detail:    row[3],
		})
	}

	return events, nil
}
