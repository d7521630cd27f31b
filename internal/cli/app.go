package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mesikahq/clinical-warehouse/internal/audit"
	"github.com/mesikahq/clinical-warehouse/internal/auth"
	"github.com/mesikahq/clinical-warehouse/internal/notes"
	"github.com/mesikahq/clinical-warehouse/internal/patient"
	"github.com/mesikahq/clinical-warehouse/internal/stats"
)

const maxLoginPrompts = 3

var actionLabels = map[auth.Action]string{
	auth.ActionViewPatient:   "Retrieve Patient",
	auth.ActionAddPatient:    "Add Patient",
	auth.ActionRemovePatient: "Remove Patient",
	auth.ActionRecordVisit:   "Record Visit",
	auth.ActionViewNotes:     "View Clinical Notes",
	auth.ActionCountVisits:   "Count Visits",
	auth.ActionVisitTrends:   "Visit Trends",
	auth.ActionViewAuditLog:  "View Audit Log",
}

// auditTailLength is how many audit entries the admin view shows.
const auditTailLength = 20

// App drives the interactive session. It holds no business logic: every
// menu choice maps to exactly one service call.
type App struct {
	auth     auth.Service
	patients patient.Service
	notes    notes.Service
	stats    stats.Service
	audit    audit.Service
	logger   *zap.Logger
	in       *bufio.Scanner
	out      io.Writer
}

func New(
	authService auth.Service,
	patientService patient.Service,
	noteService notes.Service,
	statsService stats.Service,
	auditService audit.Service,
	logger *zap.Logger,
	in io.Reader,
	out io.Writer,
) *App {
	return &App{
		auth:     authService,
		patients: patientService,
		notes:    noteService,
		stats:    statsService,
		audit:    auditService,
		logger:   logger,
		in:       bufio.NewScanner(in),
		out:      out,
	}
}

// Run blocks until the user exits. A non-empty username and password skip
// the login prompt, mirroring the scripted-login flags of the entry point.
func (a *App) Run(ctx context.Context, username, password string) error {
	session, err := a.login(ctx, username, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "\nWelcome, %s (%s)\n", session.Username, session.Role)

	for {
		actions := auth.Permitted(session.Role)
		fmt.Fprintln(a.out)
		for i, action := range actions {
			fmt.Fprintf(a.out, "%d. %s\n", i+1, actionLabels[action])
		}
		fmt.Fprintln(a.out, "0. Exit")

		choice := a.prompt("Select: ")
		if choice == "0" || choice == "" {
			a.logger.Info("session ended", zap.String("session", session.ID))
			return nil
		}

		n, err := strconv.Atoi(choice)
		if err != nil || n < 1 || n > len(actions) {
			fmt.Fprintln(a.out, "Invalid selection")
			continue
		}

		if err := a.dispatch(ctx, session, actions[n-1]); err != nil {
			fmt.Fprintf(a.out, "Error: %v\n", err)
		}
	}
}

func (a *App) login(ctx context.Context, username, password string) (*auth.Session, error) {
	if username != "" && password != "" {
		return a.auth.Login(ctx, username, password)
	}

	for attempt := 0; attempt < maxLoginPrompts; attempt++ {
		username = a.prompt("Username: ")
		password = a.prompt("Password: ")

		session, err := a.auth.Login(ctx, username, password)
		if err == nil {
			return session, nil
		}
		if errors.Is(err, auth.ErrInvalidCredentials) {
			fmt.Fprintln(a.out, "Invalid username or password")
			continue
		}
		return nil, err
	}

	return nil, auth.ErrInvalidCredentials
}

// dispatch is the single permission gate: the role table is consulted here
// and nowhere else.
func (a *App) dispatch(ctx context.Context, session *auth.Session, action auth.Action) error {
	if !auth.Can(session.Role, action) {
		return auth.ErrNotPermitted
	}

	switch action {
	case auth.ActionViewPatient:
		return a.viewPatient(ctx, session)
	case auth.ActionAddPatient:
		return a.addPatient(ctx, session)
	case auth.ActionRemovePatient:
		return a.removePatient(ctx, session)
	case auth.ActionRecordVisit:
		return a.recordVisit(ctx, session)
	case auth.ActionViewNotes:
		return a.viewNotes(ctx, session)
	case auth.ActionCountVisits:
		return a.countVisits(ctx)
	case auth.ActionVisitTrends:
		return a.visitTrends(ctx, session)
	case auth.ActionViewAuditLog:
		return a.viewAuditLog()
	}
	return auth.ErrNotPermitted
}

func (a *App) viewPatient(ctx context.Context, session *auth.Session) error {
	id := a.prompt("Patient ID: ")
	record, err := a.patients.Find(ctx, session, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Patient ID: %s\n", record.PatientID)
	fmt.Fprintf(a.out, "Name: %s %s\n", record.FirstName, record.LastName)
	fmt.Fprintf(a.out, "Gender: %s\n", record.Gender)
	fmt.Fprintf(a.out, "Date of Birth: %s\n", record.DateOfBirth)
	fmt.Fprintf(a.out, "Department: %s\n", record.Department)
	fmt.Fprintf(a.out, "Visits: %s\n", strings.Join(record.VisitDates, ", "))
	return nil
}

func (a *App) addPatient(ctx context.Context, session *auth.Session) error {
	record := &patient.Record{
		PatientID:   a.prompt("Patient ID: "),
		FirstName:   a.prompt("First Name: "),
		LastName:    a.prompt("Last Name: "),
		Gender:      a.prompt("Gender: "),
		DateOfBirth: a.prompt("Date of Birth (YYYY-MM-DD): "),
		Department:  a.prompt("Department: "),
	}

	if err := a.patients.Add(ctx, session, record); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Patient %s added\n", record.PatientID)
	return nil
}

func (a *App) removePatient(ctx context.Context, session *auth.Session) error {
	id := a.prompt("Patient ID: ")
	if a.prompt(fmt.Sprintf("Remove patient %s? (y/N): ", id)) != "y" {
		return nil
	}

	if err := a.patients.Remove(ctx, session, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Patient %s removed\n", id)
	return nil
}

func (a *App) recordVisit(ctx context.Context, session *auth.Session) error {
	id := a.prompt("Patient ID: ")
	date := a.prompt("Visit Date (YYYY-MM-DD): ")

	if err := a.patients.RecordVisit(ctx, session, id, date); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Visit on %s recorded for patient %s\n", date, id)
	return nil
}

func (a *App) viewNotes(ctx context.Context, session *auth.Session) error {
	id := a.prompt("Patient ID: ")
	date := a.prompt("Visit Date (YYYY-MM-DD): ")

	entries, err := a.notes.Lookup(ctx, session, id, date)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(a.out, "No notes found for patient %s on %s\n", id, date)
		return nil
	}

	fmt.Fprintf(a.out, "Found %d note(s)\n", len(entries))
	for i, entry := range entries {
		fmt.Fprintf(a.out, "--- Note %d (%s) ---\n%s\n", i+1, entry.NoteDate, entry.Text)
	}
	return nil
}

func (a *App) countVisits(ctx context.Context) error {
	date := a.prompt("Date (YYYY-MM-DD): ")
	count, err := a.stats.CountVisits(ctx, date)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Number of visits on %s: %d\n", date, count)
	return nil
}

func (a *App) visitTrends(ctx context.Context, session *auth.Session) error {
	start := a.prompt("Start Date (YYYY-MM-DD): ")
	end := a.prompt("End Date (YYYY-MM-DD): ")

	series, err := a.stats.Trend(ctx, start, end)
	if err != nil {
		return err
	}
	for _, point := range series {
		fmt.Fprintf(a.out, "%s  %d\n", point.Date, point.Count)
	}

	csvPath, err := a.stats.ExportTrend(ctx, session, start, end)
	if err != nil {
		return err
	}
	chartPath, err := a.stats.TrendWorkbook(ctx, session, start, end)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Series written to %s, chart written to %s\n", csvPath, chartPath)
	return nil
}

func (a *App) viewAuditLog() error {
	events, err := a.audit.Tail(auditTailLength)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(a.out, "Audit log is empty")
		return nil
	}

	for _, event := range events {
		fmt.Fprintf(a.out, "%s  %-12s %-20s %s\n",
			event.Timestamp.Format("2006-01-02 15:04:05"),
			event.Actor, event.Action, event.Detail)
	}
	return nil
}

func (a *App) prompt(label string) string {
	fmt.Fprint(a.out, label)
	if !a.in.Scan() {
		return ""
	}
	return strings.TrimSpace(a.in.Text())
}
