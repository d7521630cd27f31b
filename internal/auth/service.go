package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/mesikahq/clinical-warehouse/internal/audit"
	"github.com/mesikahq/clinical-warehouse/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTooManyAttempts    = errors.New("too many failed login attempts")
	ErrNotPermitted       = errors.New("action not permitted for role")
	ErrUnknownRole        = errors.New("unknown role")
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManagement Role = "management"
	RoleNurse      Role = "nurse"
	RoleClinician  Role = "clinician"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleManagement, RoleNurse, RoleClinician:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

type Action string

const (
	ActionViewPatient   Action = "view_patient"
	ActionAddPatient    Action = "add_patient"
	ActionRemovePatient Action = "remove_patient"
	ActionRecordVisit   Action = "record_visit"
	ActionViewNotes     Action = "view_notes"
	ActionCountVisits   Action = "count_visits"
	ActionVisitTrends   Action = "visit_trends"
	ActionViewAuditLog  Action = "view_audit_log"
)

// AllActions is the menu order presented to an unrestricted session.
var AllActions = []Action{
	ActionViewPatient,
	ActionAddPatient,
	ActionRemovePatient,
	ActionRecordVisit,
	ActionViewNotes,
	ActionCountVisits,
	ActionVisitTrends,
	ActionViewAuditLog,
}

// RolePermissions maps each role to its permitted actions. Dispatch checks
// this table once per action; there is no per-role branch logic anywhere
// else.
var RolePermissions = map[Role][]Action{
	RoleAdmin:      AllActions,
	RoleManagement: {ActionViewPatient, ActionVisitTrends},
	RoleNurse:      {ActionViewPatient, ActionViewNotes, ActionCountVisits},
	RoleClinician:  {ActionViewPatient, ActionViewNotes},
}

// Can reports whether role may perform action.
func Can(role Role, action Action) bool {
	for _, permitted := range RolePermissions[role] {
		if permitted == action {
			return true
		}
	}
	return false
}

// Permitted returns role's actions in menu order.
func Permitted(role Role) []Action {
	actions := make([]Action, 0, len(RolePermissions[role]))
	for _, action := range AllActions {
		if Can(role, action) {
			actions = append(actions, action)
		}
	}
	return actions
}

// Session identifies an authenticated user for the lifetime of the process.
// It is threaded explicitly through service calls; there is no ambient
// current-user state.
type Session struct {
	ID        string
	Username  string
	Role      Role
	LoginTime time.Time
}

type Service interface {
	Login(ctx context.Context, username, password string) (*Session, error)
}

type Config struct {
	// LoginEvery throttles repeated login attempts per username; LoginBurst
	// attempts are allowed before the limiter kicks in.
	LoginEvery time.Duration
	LoginBurst int
}

type service struct {
	store    *store.Store
	audit    audit.Service
	logger   *zap.Logger
	limiters sync.Map // username -> *rate.Limiter
	every    time.Duration
	burst    int

	mu     sync.Mutex
	failed map[string]int
}

func NewService(st *store.Store, auditService audit.Service, config Config, logger *zap.Logger) Service {
	if config.LoginEvery <= 0 {
		config.LoginEvery = time.Minute
	}
	if config.LoginBurst <= 0 {
		config.LoginBurst = 5
	}
	return &service{
		store:  st,
		audit:  auditService,
		logger: logger,
		every:  config.LoginEvery,
		burst:  config.LoginBurst,
		failed: make(map[string]int),
	}
}

// Login checks username and password against the credentials table and
// returns a session carrying the stored role. Unknown users and wrong
// passwords are indistinguishable to the caller but audited distinctly.
func (s *service) Login(ctx context.Context, username, password string) (*Session, error) {
	limiterI, _ := s.limiters.LoadOrStore(username, rate.NewLimiter(rate.Every(s.every), s.burst))
	limiter := limiterI.(*rate.Limiter)

	if !limiter.Allow() {
		s.audit.Append(audit.Event{
			Type:   audit.EventLogin,
			Actor:  username,
			Action: "login",
			Detail: "throttled after repeated failures",
		})
		return nil, ErrTooManyAttempts
	}

	_, rows, err := s.store.Load(store.DatasetCredentials)
	if err != nil {
		return nil, err
	}

	var credential store.Row
	for _, row := range rows {
		if row["username"] == username {
			credential = row
			break
		}
	}

	if credential == nil {
		s.recordFailure(username)
		s.audit.Append(audit.Event{
			Type:   audit.EventLogin,
			Actor:  username,
			Action: "login",
			Detail: "failed: user not found",
		})
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(credential["password"]), []byte(password)); err != nil {
		s.recordFailure(username)
		s.audit.Append(audit.Event{
			Type:   audit.EventLogin,
			Actor:  username,
			Action: "login",
			Detail: "failed: incorrect password",
		})
		return nil, ErrInvalidCredentials
	}

	role, err := ParseRole(credential["role"])
	if err != nil {
		s.logger.Warn("credential row carries unknown role",
			zap.String("username", username),
			zap.String("role", credential["role"]))
		return nil, ErrInvalidCredentials
	}

	s.resetFailures(username)

	session := &Session{
		ID:        uuid.New().String(),
		Username:  username,
		Role:      role,
		LoginTime: time.Now(),
	}

	s.audit.Append(audit.Event{
		Type:   audit.EventLogin,
		Actor:  username,
		Action: "login",
		Detail: fmt.Sprintf("successful login, role=%s session=%s", role, session.ID),
	})

	s.logger.Info("user logged in",
		zap.String("username", username),
		zap.String("role", string(role)),
		zap.String("session", session.ID))

	return session, nil
}

func (s *service) recordFailure(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[username]++
}

func (s *service) resetFailures(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failed, username)
}
