package patient

import (
	"sort"
	"strings"
	"time"

	"github.com/mesikahq/clinical-warehouse/internal/store"
)

// DateFormat is the on-disk date layout for every dataset.
const DateFormat = "2006-01-02"

// visit_dates cell delimiter; visits stay inside one CSV cell.
const visitDelimiter = ";"

// Header is the column layout of the patients table.
var Header = []string{
	"patient_id",
	"first_name",
	"last_name",
	"gender",
	"date_of_birth",
	"department",
	"visit_dates",
}

// Record is one patient with their demographic fields and the ordered list
// of visit dates.
type Record struct {
	PatientID   string
	FirstName   string
	LastName    string
	Gender      string
	DateOfBirth string
	Department  string
	VisitDates  []string
}

// Validate performs basic validation of patient data.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.PatientID) == "" {
		return ErrInvalidRecord
	}
	if r.FirstName == "" || r.LastName == "" {
		return ErrInvalidRecord
	}
	if _, err := time.Parse(DateFormat, r.DateOfBirth); err != nil {
		return ErrInvalidDate
	}
	for _, visit := range r.VisitDates {
		if _, err := time.Parse(DateFormat, visit); err != nil {
			return ErrInvalidDate
		}
	}
	return nil
}

// sortVisits keeps visit dates ascending. ISO dates sort correctly as
// strings.
func (r *Record) sortVisits() {
	sort.Strings(r.VisitDates)
}

func (r *Record) toRow() store.Row {
	return store.Row{
		"patient_id":    r.PatientID,
		"first_name":    r.FirstName,
		"last_name":     r.LastName,
		"gender":        r.Gender,
		"date_of_birth": r.DateOfBirth,
		"department":    r.Department,
		"visit_dates":   strings.Join(r.VisitDates, visitDelimiter),
	}
}

func fromRow(row store.Row) Record {
	record := Record{
		PatientID:   row["patient_id"],
		FirstName:   row["first_name"],
		LastName:    row["last_name"],
		Gender:      row["gender"],
		DateOfBirth: row["date_of_birth"],
		Department:  row["department"],
	}
	if cell := row["visit_dates"]; cell != "" {
		record.VisitDates = strings.Split(cell, visitDelimiter)
	}
	return record
}
