package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/hospitalops/internal/models"
	"github.com/lalith-99/hospitalops/internal/orgtree"
	"github.com/lalith-99/hospitalops/internal/realtime"
	"github.com/lalith-99/hospitalops/internal/repository/memory"
	"github.com/lalith-99/hospitalops/internal/repository/redisstore"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "router-test-secret"

type testServer struct {
	router http.Handler
	store  *memory.Store
	hub    *realtime.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := zap.NewNop()
	store := memory.New()
	users := store.Users()
	sessions := redisstore.NewSessionStore(rdb)
	hub := realtime.NewHub(nil, logger)
	svc := orgtree.NewService(store, store, store, logger).WithEvents(hub)

	router := NewRouter(RouterDeps{
		Logger:    logger,
		JWTSecret: testSecret,
		HealthChecks: map[string]HealthCheck{
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
		Sessions: sessions,
		Users:    users,
		Auth: NewAuthHandler(store, users, store.Tenants(), sessions, AuthConfig{
			JWTSecret:  testSecret,
			TokenTTL:   time.Hour,
			SessionTTL: 8 * time.Hour,
		}, logger),
		Org:       NewOrgHandler(svc, logger),
		Structure: NewStructureHandler(orgtree.NewLegacyView(store), logger),
		User:      NewUserHandler(users, store, logger),
		Events:    NewEventsHandler(hub, logger),
	})
	return &testServer{router: router, store: store, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type errorBody struct {
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Details json.RawMessage `json:"details"`
}

type nodeBody struct {
	Node struct {
		ID           uuid.UUID  `json:"id"`
		Path         string     `json:"path"`
		Level        int        `json:"level"`
		IsActive     bool       `json:"isActive"`
		DepartmentID *uuid.UUID `json:"departmentId"`
	} `json:"node"`
}

func (s *testServer) signup(t *testing.T, email string) authResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/v1/auth/signup", "", gin.H{
		"email":       email,
		"password":    "correct-horse",
		"displayName": "Admin",
		"tenantName":  "St. Mary",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[authResponse](t, w)
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[authResponse](t, w).Token
}

func (s *testServer) createNode(t *testing.T, token string, body gin.H) nodeBody {
	t.Helper()
	w := s.do(t, http.MethodPost, "/v1/structure/org", token, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[nodeBody](t, w)
}

func (s *testServer) createStaff(t *testing.T, token, email string, permissions []string) uuid.UUID {
	t.Helper()
	w := s.do(t, http.MethodPost, "/v1/users", token, gin.H{
		"email":       email,
		"password":    "staff-password",
		"displayName": "Nurse",
		"permissions": permissions,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var user struct {
		ID   uuid.UUID `json:"id"`
		Role string    `json:"role"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	require.Equal(t, "staff", user.Role)
	return user.ID
}

func TestRouter_OrgLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "admin@stmary.example").Token

	dept := s.createNode(t, token, gin.H{"type": "department", "name": "Cardiology", "code": "CARD"})
	require.Equal(t, "/Cardiology", dept.Node.Path)
	unit := s.createNode(t, token, gin.H{"type": "unit", "name": "ICU", "parentId": dept.Node.ID})
	require.Equal(t, "/Cardiology/ICU", unit.Node.Path)
	require.Equal(t, &dept.Node.ID, unit.Node.DepartmentID)

	w := s.do(t, http.MethodDelete, "/v1/structure/org/"+dept.Node.ID.String()+"?dryRun=true", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	preview := decode[orgtree.RemovalResult](t, w)
	require.False(t, preview.Allowed)
	require.Equal(t, 1, preview.Dependencies.Counts["children"])

	w = s.do(t, http.MethodDelete, "/v1/structure/org/"+dept.Node.ID.String(), token, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	body := decode[errorBody](t, w)
	require.Equal(t, orgtree.CodeHasDependencies, body.Code)
	require.Contains(t, string(body.Details), `"blocked":true`)

	w = s.do(t, http.MethodPost, "/v1/structure/org/"+unit.Node.ID.String()+"/move", token, gin.H{"newParentId": nil})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	moved := decode[orgtree.MoveResult](t, w)
	require.Equal(t, 0, moved.Node.Level)
	require.Equal(t, "/ICU", moved.Node.Path)
	require.Nil(t, moved.Node.DepartmentID)

	w = s.do(t, http.MethodDelete, "/v1/structure/org/"+dept.Node.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/v1/structure/org/"+dept.Node.ID.String(), token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, orgtree.CodeNotFound, decode[errorBody](t, w).Code)

	w = s.do(t, http.MethodGet, "/v1/structure/org", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Nodes []struct {
			Name string `json:"name"`
		} `json:"nodes"`
	}](t, w)
	require.Len(t, list.Nodes, 1)
	require.Equal(t, "ICU", list.Nodes[0].Name)
}

func TestRouter_ValidationDetailsUseJSONNames(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "admin@stmary.example").Token

	w := s.do(t, http.MethodPost, "/v1/structure/org", token, gin.H{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[errorBody](t, w)
	require.Equal(t, orgtree.CodeInvalidBody, body.Code)

	var fields []fieldError
	require.NoError(t, json.Unmarshal(body.Details, &fields))
	require.Equal(t, []fieldError{{Field: "type", Rule: "required"}, {Field: "name", Rule: "required"}}, fields)

	w = s.do(t, http.MethodPost, "/v1/structure/org", token, gin.H{"type": "wing", "name": "East"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, orgtree.CodeInvalidType, decode[errorBody](t, w).Code)

	w = s.do(t, http.MethodGet, "/v1/structure/org/not-a-uuid", token, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/v1/structure/org?includeInactive=maybe", token, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_RequiresAuthentication(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/v1/structure/org", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "UNAUTHORIZED", decode[errorBody](t, w).Code)

	w = s.do(t, http.MethodGet, "/v1/structure/floors", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_StaffPermissions(t *testing.T) {
	s := newTestServer(t)
	admin := s.signup(t, "admin@stmary.example").Token
	s.createNode(t, admin, gin.H{"type": "floor", "name": "Level 1"})

	s.createStaff(t, admin, "nurse@stmary.example", nil)
	staff := s.login(t, "nurse@stmary.example", "staff-password")

	w := s.do(t, http.MethodPost, "/v1/structure/org", staff, gin.H{"type": "floor", "name": "Level 2"})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "FORBIDDEN", decode[errorBody](t, w).Code)

	w = s.do(t, http.MethodGet, "/v1/structure/org", staff, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/v1/users", staff, gin.H{"email": "x@stmary.example", "password": "whatever1", "displayName": "X"})
	require.Equal(t, http.StatusForbidden, w.Code)

	// older screens stay open to the staff role
	w = s.do(t, http.MethodGet, "/v1/structure/floors", staff, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	s.createStaff(t, admin, "reader@stmary.example", []string{"structure.org.read"})
	reader := s.login(t, "reader@stmary.example", "staff-password")
	w = s.do(t, http.MethodGet, "/v1/structure/org", reader, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodPost, "/v1/structure/org", reader, gin.H{"type": "floor", "name": "Level 2"})
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_TenantsAreIsolated(t *testing.T) {
	s := newTestServer(t)
	first := s.signup(t, "admin@first.example").Token
	second := s.signup(t, "admin@second.example").Token

	dept := s.createNode(t, first, gin.H{"type": "department", "name": "Cardiology"})

	w := s.do(t, http.MethodGet, "/v1/structure/org/"+dept.Node.ID.String(), second, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/v1/structure/org", second, gin.H{"type": "unit", "name": "ICU", "parentId": dept.Node.ID})
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, orgtree.CodeParentNotFound, decode[errorBody](t, w).Code)
}

func TestRouter_LoginReplacesSession(t *testing.T) {
	s := newTestServer(t)
	first := s.signup(t, "admin@stmary.example")
	require.Equal(t, "admin", first.User.Role)

	w := s.do(t, http.MethodGet, "/v1/users/me", first.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	second := s.login(t, "admin@stmary.example", "correct-horse")

	w = s.do(t, http.MethodGet, "/v1/users/me", first.Token, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(t, http.MethodGet, "/v1/users/me", second, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/v1/auth/logout", second, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodGet, "/v1/users/me", second, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "admin@stmary.example", "password": "wrong-password"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/v1/auth/signup", "", gin.H{
		"email": "ADMIN@stmary.example", "password": "correct-horse", "displayName": "Again", "tenantName": "Other",
	})
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestRouter_AssignmentBlocksDeactivation(t *testing.T) {
	s := newTestServer(t)
	signup := s.signup(t, "admin@stmary.example")
	admin := signup.Token

	oldDept := s.createNode(t, admin, gin.H{"type": "department", "name": "Old Cardiology"})
	newDept := s.createNode(t, admin, gin.H{"type": "department", "name": "Cardiology"})
	nurse := s.createStaff(t, admin, "nurse@stmary.example", nil)

	missing := uuid.New()
	w := s.do(t, http.MethodPut, "/v1/users/"+nurse.String()+"/assignment", admin, gin.H{"departmentId": missing})
	require.Equal(t, http.StatusNotFound, w.Code)

	room := s.createNode(t, admin, gin.H{"type": "room", "name": "101"})
	w = s.do(t, http.MethodPut, "/v1/users/"+nurse.String()+"/assignment", admin, gin.H{"departmentId": room.Node.ID})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	require.Equal(t, "ASSIGNMENT_TYPE_MISMATCH", decode[errorBody](t, w).Code)
	w = s.do(t, http.MethodPut, "/v1/users/"+nurse.String()+"/assignment", admin, gin.H{"roomId": room.Node.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPut, "/v1/users/"+nurse.String()+"/assignment", admin, gin.H{"departmentId": oldDept.Node.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/v1/structure/org/"+oldDept.Node.ID.String()+"/dependencies", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	deps := decode[struct {
		Dependencies struct {
			Counts  map[string]int `json:"counts"`
			Blocked bool           `json:"blocked"`
		} `json:"dependencies"`
	}](t, w)
	require.Equal(t, 1, deps.Dependencies.Counts["users"])
	require.True(t, deps.Dependencies.Blocked)

	w = s.do(t, http.MethodPost, "/v1/structure/org/"+oldDept.Node.ID.String()+"/deactivate", admin, nil)
	require.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/v1/structure/org/"+oldDept.Node.ID.String()+"/deactivate", admin, gin.H{"reassignTo": newDept.Node.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[orgtree.RemovalResult](t, w)
	require.Equal(t, int64(1), res.RecordsReassigned["users"])

	user, err := s.store.Users().GetByID(context.Background(), signup.User.TenantID, nurse)
	require.NoError(t, err)
	require.Equal(t, &newDept.Node.ID, user.DepartmentID)

	got, ok := s.store.Node(oldDept.Node.ID)
	require.True(t, ok)
	require.False(t, got.IsActive)
}

type rulesBody struct {
	Node struct {
		ID               uuid.UUID              `json:"id"`
		ValidationRules  models.ValidationRules `json:"validationRules"`
		EffectiveEndDate *time.Time             `json:"effectiveEndDate"`
	} `json:"node"`
}

func TestRouter_PartialValidationRules(t *testing.T) {
	s := newTestServer(t)
	admin := s.signup(t, "admin@stmary.example").Token

	w := s.do(t, http.MethodPost, "/v1/structure/org", admin, gin.H{
		"type":            "department",
		"name":            "Oncology",
		"validationRules": gin.H{"allowDeletion": false},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[rulesBody](t, w)
	require.Equal(t, models.ValidationRules{AllowDeletion: false, RequireReassignment: true}, created.Node.ValidationRules)

	dept := s.createNode(t, admin, gin.H{"type": "department", "name": "Cardiology"})
	nurse := s.createStaff(t, admin, "nurse@stmary.example", nil)
	w = s.do(t, http.MethodPut, "/v1/users/"+nurse.String()+"/assignment", admin, gin.H{"departmentId": dept.Node.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPatch, "/v1/structure/org/"+dept.Node.ID.String(), admin, gin.H{
		"validationRules": gin.H{"allowDeletion": false},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	patched := decode[rulesBody](t, w)
	require.Equal(t, models.ValidationRules{AllowDeletion: false, RequireReassignment: true}, patched.Node.ValidationRules)

	// the assigned nurse still blocks a plain deactivation
	w = s.do(t, http.MethodPost, "/v1/structure/org/"+dept.Node.ID.String()+"/deactivate", admin, nil)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	require.Equal(t, orgtree.CodeHasDependencies, decode[errorBody](t, w).Code)

	w = s.do(t, http.MethodDelete, "/v1/structure/org/"+dept.Node.ID.String(), admin, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, orgtree.CodeDeletionNotAllowed, decode[errorBody](t, w).Code)

	w = s.do(t, http.MethodPatch, "/v1/structure/org/"+dept.Node.ID.String(), admin, gin.H{
		"validationRules": gin.H{"requireReassignment": false},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	patched = decode[rulesBody](t, w)
	require.Equal(t, models.ValidationRules{AllowDeletion: false, RequireReassignment: false}, patched.Node.ValidationRules)

	w = s.do(t, http.MethodPost, "/v1/structure/org/"+dept.Node.ID.String()+"/deactivate", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRouter_NullEffectiveDateClears(t *testing.T) {
	s := newTestServer(t)
	admin := s.signup(t, "admin@stmary.example").Token

	w := s.do(t, http.MethodPost, "/v1/structure/org", admin, gin.H{
		"type":               "committee",
		"name":               "Infection Control",
		"effectiveStartDate": "2026-01-01T00:00:00Z",
		"effectiveEndDate":   "2026-12-31T00:00:00Z",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[rulesBody](t, w).Node.ID.String()

	w = s.do(t, http.MethodPatch, "/v1/structure/org/"+id, admin, gin.H{"description": "Quarterly"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, decode[rulesBody](t, w).Node.EffectiveEndDate)

	w = s.do(t, http.MethodPatch, "/v1/structure/org/"+id, admin, gin.H{"effectiveEndDate": nil})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Nil(t, decode[rulesBody](t, w).Node.EffectiveEndDate)

	w = s.do(t, http.MethodPatch, "/v1/structure/org/"+id, admin, gin.H{"effectiveStartDate": "soon"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_LegacyFloors(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "admin@stmary.example").Token

	s.createNode(t, token, gin.H{"type": "floor", "name": "Ground", "code": "GF"})
	s.createNode(t, token, gin.H{"type": "floor", "name": "Level 2"})

	w := s.do(t, http.MethodGet, "/v1/structure/floors", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Floors []struct {
			Name string `json:"name"`
			Key  string `json:"key"`
		} `json:"floors"`
	}](t, w)
	keys := map[string]string{}
	for _, f := range body.Floors {
		keys[f.Name] = f.Key
	}
	require.Equal(t, map[string]string{"Ground": "GF", "Level 2": "FLOOR_LEVEL_2"}, keys)
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/v1/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok","checks":{"redis":"ok"}}`, w.Body.String())
}

func TestRouter_EventStream(t *testing.T) {
	s := newTestServer(t)
	signup := s.signup(t, "admin@stmary.example")

	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/structure/org/events"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": []string{"Bearer " + signup.Token}})
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return s.hub.Clients(signup.User.TenantID) == 1 }, time.Second, 10*time.Millisecond)

	// another tenant's change must not show up on this stream
	other := s.signup(t, "admin@other.example").Token
	s.createNode(t, other, gin.H{"type": "floor", "name": "Elsewhere"})
	created := s.createNode(t, signup.Token, gin.H{"type": "floor", "name": "Level 1"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var evt models.OrgEvent
	require.NoError(t, conn.ReadJSON(&evt))
	require.Equal(t, models.OrgNodeCreated, evt.Type)
	require.Equal(t, created.Node.ID, evt.NodeID)
	require.Equal(t, "/Level 1", evt.Path)
}
