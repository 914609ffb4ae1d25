// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	endorsementsfeature "github.com/tkeshelashvili/ateuli/internal/app/features/endorsements"
	groupsfeature "github.com/tkeshelashvili/ateuli/internal/app/features/groups"
	healthfeature "github.com/tkeshelashvili/ateuli/internal/app/features/health"
	loginfeature "github.com/tkeshelashvili/ateuli/internal/app/features/login"
	verificationfeature "github.com/tkeshelashvili/ateuli/internal/app/features/verification"
	auditstore "github.com/tkeshelashvili/ateuli/internal/app/store/audit"
	endorsementstore "github.com/tkeshelashvili/ateuli/internal/app/store/endorsements"
	groupstore "github.com/tkeshelashvili/ateuli/internal/app/store/groups"
	membershipstore "github.com/tkeshelashvili/ateuli/internal/app/store/memberships"
	quotastore "github.com/tkeshelashvili/ateuli/internal/app/store/quotas"
	userstore "github.com/tkeshelashvili/ateuli/internal/app/store/users"
	"github.com/tkeshelashvili/ateuli/internal/app/system/auditlog"
	"github.com/tkeshelashvili/ateuli/internal/app/system/auth"
	"github.com/tkeshelashvili/ateuli/internal/app/system/httpjson"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this
// WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup,
// and the Startup hook have completed. The stores are wired here once
// and shared by every handler: the membership store consults the group
// store inside its transactions, and the endorsement store composes the
// user, quota, and membership stores so its cascades commit atomically.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	// Session manager with signed cookies; secure outside dev.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	sessionMgr.SetUserFetcher(userstore.NewFetcher(db))

	// Stores.
	users := userstore.New(db)
	quotas := quotastore.New(db)
	groups := groupstore.NewWithCapacity(db, appCfg.GroupCapacity)
	members := membershipstore.New(db, groups, logger)
	endorsements := endorsementstore.New(db, users, quotas, members, logger)

	// Audit trail.
	audit := auditlog.New(auditstore.New(db), logger, auditlog.Config{
		Auth:         appCfg.AuditLogAuth,
		Membership:   appCfg.AuditLogMembership,
		Verification: appCfg.AuditLogVerification,
	})

	r := chi.NewRouter()
	r.Use(httpjson.RequestID)
	r.Use(sessionMgr.LoadSessionUser)

	// Health endpoints stay public.
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Session entry point: login is unauthenticated by nature, logout
	// tolerates a missing session.
	loginHandler := loginfeature.NewHandler(users, sessionMgr, audit, logger)
	r.Mount("/", loginfeature.Routes(loginHandler))

	// Everything else requires a signed-in user.
	r.Group(func(r chi.Router) {
		r.Use(sessionMgr.RequireSignedIn)

		groupsHandler := groupsfeature.NewHandler(groups, members, audit, logger)
		r.Mount("/groups", groupsfeature.Routes(groupsHandler))

		endorsementsHandler := endorsementsfeature.NewHandler(endorsements, quotas, audit, logger)
		r.Mount("/endorsements", endorsementsfeature.Routes(endorsementsHandler))

		verificationHandler := verificationfeature.NewHandler(db, users, quotas, appCfg.DefaultMaxSlots, audit, logger)
		r.Mount("/verification", verificationfeature.Routes(verificationHandler))
	})

	return r, nil
}
