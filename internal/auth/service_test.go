package auth_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mesikahq/clinical-warehouse/internal/audit"
	"github.com/mesikahq/clinical-warehouse/internal/auth"
	"github.com/mesikahq/clinical-warehouse/internal/store"
)

var credentialsHeader = []string{"username", "password", "role"}

func hash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newAuthService(t *testing.T, cfg auth.Config) auth.Service {
	t.Helper()
	dir := t.TempDir()

	st := store.New(map[store.Dataset]string{
		store.DatasetCredentials: filepath.Join(dir, "credentials.csv"),
	}, zap.NewNop())

	rows := []store.Row{
		{"username": "alice", "password": hash(t, "admin-pass"), "role": "admin"},
		{"username": "bob", "password": hash(t, "mgmt-pass"), "role": "management"},
		{"username": "carol", "password": hash(t, "nurse-pass"), "role": "nurse"},
		{"username": "dave", "password": hash(t, "clin-pass"), "role": "clinician"},
	}
	require.NoError(t, st.SaveAtomic(store.DatasetCredentials, credentialsHeader, rows))

	auditService := audit.NewService(filepath.Join(dir, "audit_log.csv"))
	return auth.NewService(st, auditService, cfg, zap.NewNop())
}

func TestLoginReturnsStoredRole(t *testing.T) {
	svc := newAuthService(t, auth.Config{})

	tests := []struct {
		username string
		password string
		role     auth.Role
	}{
		{"alice", "admin-pass", auth.RoleAdmin},
		{"bob", "mgmt-pass", auth.RoleManagement},
		{"carol", "nurse-pass", auth.RoleNurse},
		{"dave", "clin-pass", auth.RoleClinician},
	}

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			session, err := svc.Login(context.Background(), tt.username, tt.password)
			require.NoError(t, err)
			assert.Equal(t, tt.role, session.Role)
			assert.Equal(t, tt.username, session.Username)
			assert.NotEmpty(t, session.ID)
			assert.False(t, session.LoginTime.IsZero())
		})
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newAuthService(t, auth.Config{})

	_, err := svc.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "nobody", "admin-pass")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLoginThrottlesBursts(t *testing.T) {
	svc := newAuthService(t, auth.Config{LoginEvery: time.Hour, LoginBurst: 2})

	for i := 0; i < 2; i++ {
		_, err := svc.Login(context.Background(), "alice", "wrong")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	}

	_, err := svc.Login(context.Background(), "alice", "admin-pass")
	assert.ErrorIs(t, err, auth.ErrTooManyAttempts)

	// Other usernames are unaffected
	_, err = svc.Login(context.Background(), "bob", "mgmt-pass")
	assert.NoError(t, err)
}

func TestRolePermissions(t *testing.T) {
	expected := map[auth.Role][]auth.Action{
		auth.RoleAdmin: {
			auth.ActionViewPatient,
			auth.ActionAddPatient,
			auth.ActionRemovePatient,
			auth.ActionRecordVisit,
			auth.ActionViewNotes,
			auth.ActionCountVisits,
			auth.ActionVisitTrends,
			auth.ActionViewAuditLog,
		},
		auth.RoleManagement: {auth.ActionViewPatient, auth.ActionVisitTrends},
		auth.RoleNurse:      {auth.ActionViewPatient, auth.ActionViewNotes, auth.ActionCountVisits},
		auth.RoleClinician:  {auth.ActionViewPatient, auth.ActionViewNotes},
	}

	for role, actions := range expected {
		assert.Equal(t, actions, auth.Permitted(role), "role %s", role)
		for _, action := range actions {
			assert.True(t, auth.Can(role, action), "%s should allow %s", role, action)
		}
	}

	assert.False(t, auth.Can(auth.RoleClinician, auth.ActionRemovePatient))
	assert.False(t, auth.Can(auth.RoleManagement, auth.ActionViewNotes))
	assert.False(t, auth.Can(auth.RoleNurse, auth.ActionAddPatient))
}

func TestParseRole(t *testing.T) {
	role, err := auth.ParseRole("nurse")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleNurse, role)

	_, err = auth.ParseRole("superuser")
	assert.ErrorIs(t, err, auth.ErrUnknownRole)
}
