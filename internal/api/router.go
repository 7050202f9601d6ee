package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lalith-99/hospitalops/internal/auth"
	"github.com/lalith-99/hospitalops/internal/middleware"
	"github.com/lalith-99/hospitalops/internal/observ"
	"github.com/lalith-99/hospitalops/internal/repository"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthCheck pings one backing service.
type HealthCheck func(ctx context.Context) error

type RouterDeps struct {
	Logger       *zap.Logger
	JWTSecret    string
	CORSOrigins  []string
	HealthChecks map[string]HealthCheck

	Sessions repository.SessionRepository
	Users    repository.UserRepository

	Auth      *AuthHandler
	Org       *OrgHandler
	Structure *StructureHandler
	User      *UserHandler
	Events    *EventsHandler
}

// legacyRead admits the roles older screens were opened to, anyone who can
// read the org tree, and anyone holding a structure permission.
var legacyRead = auth.Requirement{
	Roles:       []string{"supervisor", "staff", "viewer"},
	Permissions: []string{auth.PermOrgRead, auth.PermAdminUsers},
	Prefixes:    []string{"structure."},
}

func NewRouter(d RouterDeps) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observ.GinLogger(d.Logger, middleware.ContextKeyTenantID))
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     d.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/v1/health", healthHandler(d.HealthChecks))

	v1 := r.Group("/v1")
	v1.POST("/auth/signup", d.Auth.Signup)
	v1.POST("/auth/login", d.Auth.Login)

	authed := v1.Group("", middleware.AuthMiddleware(d.JWTSecret, d.Sessions, d.Logger))
	authed.POST("/auth/logout", d.Auth.Logout)

	secured := authed.Group("", middleware.LoadIdentity(d.Users, d.Logger))
	secured.GET("/users/me", d.User.GetMe)

	admin := secured.Group("", middleware.Require(auth.Requirement{Permissions: []string{auth.PermAdminUsers}}))
	admin.POST("/users", d.User.Create)
	admin.PUT("/users/:id/assignment", d.User.UpdateAssignment)

	org := secured.Group("/structure/org")
	org.GET("", middleware.Require(auth.Permission(auth.PermOrgRead)), d.Org.List)
	org.GET("/events", middleware.Require(auth.Permission(auth.PermOrgRead)), d.Events.Stream)
	org.POST("", middleware.Require(auth.Permission(auth.PermOrgCreate)), d.Org.Create)
	org.GET("/:id", middleware.Require(auth.Permission(auth.PermOrgRead)), d.Org.Get)
	org.PATCH("/:id", middleware.Require(auth.Permission(auth.PermOrgUpdate)), d.Org.Update)
	org.POST("/:id/move", middleware.Require(auth.Permission(auth.PermOrgUpdate)), d.Org.Move)
	org.GET("/:id/dependencies", middleware.Require(auth.Permission(auth.PermOrgRead)), d.Org.Dependencies)
	org.POST("/:id/deactivate", middleware.Require(auth.Permission(auth.PermOrgDelete)), d.Org.Deactivate)
	org.POST("/:id/activate", middleware.Require(auth.Permission(auth.PermOrgUpdate)), d.Org.Activate)
	org.DELETE("/:id", middleware.Require(auth.Permission(auth.PermOrgDelete)), d.Org.Delete)

	legacy := secured.Group("/structure", middleware.Require(legacyRead))
	legacy.GET("/floors", d.Structure.Floors)
	legacy.GET("/departments", d.Structure.Departments)
	legacy.GET("/rooms", d.Structure.Rooms)

	return r
}

// healthHandler is public so load balancers can reach it. Any failing
// check turns the answer into a 503.
func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := gin.H{}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		c.JSON(status, gin.H{"status": overall, "checks": results})
	}
}
