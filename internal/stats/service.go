package stats

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mesikahq/clinical-warehouse/internal/audit"
	"github.com/mesikahq/clinical-warehouse/internal/auth"
	"github.com/mesikahq/clinical-warehouse/internal/patient"
	"github.com/mesikahq/clinical-warehouse/internal/store"
)

var ErrInvalidRange = errors.New("invalid date range")

var exportHeader = []string{"date", "visit_count"}

// VisitCount is a derived aggregate, never persisted except by an explicit
// export.
type VisitCount struct {
	Date  string
	Count int
}

type Service interface {
	// CountVisits counts visits across all patients on the given date.
	CountVisits(ctx context.Context, date string) (int, error)
	// Trend returns one VisitCount per calendar day in [start, end]
	// inclusive, in ascending date order, zero-filled so the series stays
	// contiguous for charting.
	Trend(ctx context.Context, start, end string) ([]VisitCount, error)
	// ExportTrend writes the trend series to visit_stats.csv in the output
	// directory and returns the file path.
	ExportTrend(ctx context.Context, sess *auth.Session, start, end string) (string, error)
	// TrendWorkbook renders the trend series into an xlsx workbook with a
	// bar chart and returns the file path.
	TrendWorkbook(ctx context.Context, sess *auth.Session, start, end string) (string, error)
}

type service struct {
	patients  patient.Service
	audit     audit.Service
	outputDir string
	logger    *zap.Logger
}

func NewService(patients patient.Service, auditService audit.Service, outputDir string, logger *zap.Logger) Service {
	return &service{
		patients:  patients,
		audit:     auditService,
		outputDir: outputDir,
		logger:    logger,
	}
}

func (s *service) CountVisits(ctx context.Context, date string) (int, error) {
	if _, err := time.Parse(patient.DateFormat, date); err != nil {
		return 0, patient.ErrInvalidDate
	}

	records, err := s.patients.All(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, record := range records {
		for _, visit := range record.VisitDates {
			if visit == date {
				count++
			}
		}
	}
	return count, nil
}

func (s *service) Trend(ctx context.Context, start, end string) ([]VisitCount, error) {
	from, err := time.Parse(patient.DateFormat, start)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRange, start)
	}
	to, err := time.Parse(patient.DateFormat, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRange, end)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s is before %s", ErrInvalidRange, end, start)
	}

	records, err := s.patients.All(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, record := range records {
		for _, visit := range record.VisitDates {
			counts[visit]++
		}
	}

	var series []VisitCount
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		date := day.Format(patient.DateFormat)
		series = append(series, VisitCount{Date: date, Count: counts[date]})
	}
	return series, nil
}

func (s *service) ExportTrend(ctx context.Context, sess *auth.Session, start, end string) (string, error) {
	series, err := s.Trend(ctx, start, end)
	if err != nil {
		return "", err
	}

	records := make([][]string, 0, len(series))
	for _, point := range series {
		records = append(records, []string{point.Date, strconv.Itoa(point.Count)})
	}

	path := filepath.Join(s.outputDir, "visit_stats.csv")
	if err := store.SaveAtomicPath(path, exportHeader, records); err != nil {
		return "", err
	}

	s.audit.Append(audit.Event{
		Type:   audit.EventExport,
		Actor:  sess.Username,
		Action: "export_visit_stats",
		Detail: fmt.Sprintf("%s to %s, %d day(s), %s", start, end, len(series), path),
	})

	return path, nil
}

func (s *service) TrendWorkbook(ctx context.Context, sess *auth.Session, start, end string) (string, error) {
	series, err := s.Trend(ctx, start, end)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.outputDir, "visit_trends.xlsx")
	if err := writeTrendWorkbook(path, series); err != nil {
		return "", err
	}

	s.audit.Append(audit.Event{
		Type:   audit.EventExport,
		Actor:  sess.Username,
		Action: "export_visit_trends",
		Detail: fmt.Sprintf("%s to %s, %s", start, end, path),
	})
	s.logger.Info("trend workbook written",
		zap.String("path", path),
		zap.Int("days", len(series)))

	return path, nil
}
