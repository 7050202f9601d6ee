package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/hospitalops/internal/auth"
	"github.com/lalith-99/hospitalops/internal/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type stubSessions struct {
	sessions map[string]*models.Session
}

func (s *stubSessions) Create(context.Context, uuid.UUID, uuid.UUID, time.Duration) (*models.Session, error) {
	return nil, nil
}

func (s *stubSessions) Get(_ context.Context, id string) (*models.Session, error) {
	return s.sessions[id], nil
}

func (s *stubSessions) Delete(_ context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

type stubUsers struct {
	users map[uuid.UUID]*models.User
}

func (s *stubUsers) Create(context.Context, models.User) (*models.User, error) { return nil, nil }

func (s *stubUsers) GetByID(_ context.Context, tenantID, userID uuid.UUID) (*models.User, error) {
	u, ok := s.users[userID]
	if !ok || u.TenantID != tenantID {
		return nil, nil
	}
	return u, nil
}

func (s *stubUsers) GetByEmail(context.Context, string) (*models.User, error) { return nil, nil }

func (s *stubUsers) UpdateAssignment(context.Context, uuid.UUID, uuid.UUID, models.UserAssignment) (*models.User, error) {
	return nil, nil
}

type fixture struct {
	router   *gin.Engine
	sessions *stubSessions
	users    *stubUsers
	user     *models.User
	session  *models.Session
	token    string
}

func newFixture(t *testing.T, role string, perms ...string) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	user := &models.User{
		ID:          uuid.New(),
		TenantID:    uuid.New(),
		Email:       "nurse@example.com",
		Role:        role,
		Permissions: perms,
		IsActive:    true,
	}
	sess := &models.Session{ID: "sess-1", UserID: user.ID, TenantID: user.TenantID}
	token, err := auth.GenerateToken(user.ID, sess.ID, user.Email, testSecret, time.Hour)
	require.NoError(t, err)

	f := &fixture{
		sessions: &stubSessions{sessions: map[string]*models.Session{sess.ID: sess}},
		users:    &stubUsers{users: map[uuid.UUID]*models.User{user.ID: user}},
		user:     user,
		session:  sess,
		token:    token,
	}

	logger := zap.NewNop()
	r := gin.New()
	authed := r.Group("/", AuthMiddleware(testSecret, f.sessions, logger))
	authed.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tenantId": GetTenantID(c), "userId": GetUserID(c)})
	})
	guarded := authed.Group("/", LoadIdentity(f.users, logger))
	guarded.GET("/org", Require(auth.Permission(auth.PermOrgRead)), func(c *gin.Context) {
		id, _ := GetIdentity(c)
		c.JSON(http.StatusOK, gin.H{"role": id.Role})
	})
	f.router = r
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) request(path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+f.token)
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAuthMiddleware_RejectsMissingAndMalformedTokens(t *testing.T) {
	f := newFixture(t, "staff")

	w := f.do(httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "UNAUTHORIZED", decode(t, w)["code"])

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Token abc")
	require.Equal(t, http.StatusUnauthorized, f.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	require.Equal(t, http.StatusUnauthorized, f.do(req).Code)
}

func TestAuthMiddleware_TenantComesFromSessionOnly(t *testing.T) {
	f := newFixture(t, "staff")

	req := f.request("/whoami?tenantId=" + uuid.NewString())
	req.Header.Set("X-Tenant-ID", uuid.NewString())
	w := f.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, f.session.TenantID.String(), body["tenantId"])
	require.Equal(t, f.user.ID.String(), body["userId"])
}

func TestAuthMiddleware_AcceptsCookie(t *testing.T) {
	f := newFixture(t, "staff")

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: f.token})
	require.Equal(t, http.StatusOK, f.do(req).Code)
}

func TestAuthMiddleware_RevokedOrForeignSession(t *testing.T) {
	f := newFixture(t, "staff")

	f.session.UserID = uuid.New()
	require.Equal(t, http.StatusUnauthorized, f.do(f.request("/whoami")).Code)

	delete(f.sessions.sessions, f.session.ID)
	require.Equal(t, http.StatusUnauthorized, f.do(f.request("/whoami")).Code)
}

func TestRequire(t *testing.T) {
	cases := []struct {
		name   string
		role   string
		perms  []string
		status int
	}{
		{"admin role bypasses", auth.SuperRole, nil, http.StatusOK},
		{"exact permission", "staff", []string{auth.PermOrgRead}, http.StatusOK},
		{"namespace wildcard", "staff", []string{"structure.*"}, http.StatusOK},
		{"admin.users permission", "staff", []string{auth.PermAdminUsers}, http.StatusOK},
		{"unrelated permission", "staff", []string{"policies.read"}, http.StatusForbidden},
		{"no permissions", "viewer", nil, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.role, tc.perms...)
			w := f.do(f.request("/org"))
			require.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusForbidden {
				require.Equal(t, "FORBIDDEN", decode(t, w)["code"])
			}
		})
	}
}

func TestLoadIdentity_InactiveOrUnknownUser(t *testing.T) {
	f := newFixture(t, auth.SuperRole)
	f.user.IsActive = false
	require.Equal(t, http.StatusUnauthorized, f.do(f.request("/org")).Code)

	f = newFixture(t, auth.SuperRole)
	delete(f.users.users, f.user.ID)
	require.Equal(t, http.StatusUnauthorized, f.do(f.request("/org")).Code)
}

func TestUnauthenticatedRequestNeverReachesRoleCheck(t *testing.T) {
	f := newFixture(t, auth.SuperRole)

	req := httptest.NewRequest(http.MethodGet, "/org", nil)
	w := f.do(req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
