// internal/app/features/verification/handler.go

// Package verification is the staff-operated seam where the external
// identity process lands: promoting a user to geder (which provisions
// their endorsement quota) and suspending or reinstating a geder's
// quota as a penalty.
package verification

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
	"github.com/tkeshelashvili/ateuli/internal/app/policy/endorsepolicy"
	"github.com/tkeshelashvili/ateuli/internal/app/store/quotas"
	"github.com/tkeshelashvili/ateuli/internal/app/store/users"
	"github.com/tkeshelashvili/ateuli/internal/app/system/auditlog"
	"github.com/tkeshelashvili/ateuli/internal/app/system/authz"
	"github.com/tkeshelashvili/ateuli/internal/app/system/httpjson"
	"github.com/tkeshelashvili/ateuli/internal/app/system/txn"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	DB       *mongo.Database
	Users    *userstore.Store
	Quotas   *quotastore.Store
	MaxSlots int
	Audit    *auditlog.Logger
	Log      *zap.Logger

	sanitizer *bluemonday.Policy
}

func NewHandler(db *mongo.Database, users *userstore.Store, quotas *quotastore.Store, maxSlots int, audit *auditlog.Logger, log *zap.Logger) *Handler {
	return &Handler{
		DB:        db,
		Users:     users,
		Quotas:    quotas,
		MaxSlots:  maxSlots,
		Audit:     audit,
		Log:       log,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func (h *Handler) requireStaff(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	user, actorID, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Error(w, r, http.StatusUnauthorized, httpjson.CodeUnauthorized, "sign in required")
		return primitive.NilObjectID, false
	}
	if allowed, reason := endorsepolicy.CanOperateVerification(user); !allowed {
		httpjson.Error(w, r, http.StatusForbidden, httpjson.CodeForbidden, reason)
		return primitive.NilObjectID, false
	}
	return actorID, true
}

// PromoteGeDer handles POST /verification/geder. The promotion and the
// quota provisioning commit together: a geder without a quota record
// would be unable to endorse anyone.
func (h *Handler) PromoteGeDer(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireStaff(w, r)
	if !ok {
		return
	}

	var req promoteGeDerRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, r, http.StatusUnprocessableEntity, httpjson.CodeValidation, "invalid request body")
		return
	}
	userID, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.UserID))
	if err != nil {
		httpjson.Error(w, r, http.StatusUnprocessableEntity, httpjson.CodeValidation, "user_id must be a valid id")
		return
	}

	err = txn.RunWithRetry(r.Context(), h.DB, h.Log, func(ctx context.Context) error {
		if err := h.Users.PromoteGeDer(ctx, userID); err != nil {
			return err
		}
		return h.Quotas.Ensure(ctx, userID, h.MaxSlots)
	})
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			httpjson.Error(w, r, http.StatusNotFound, httpjson.CodeNotFound, "user not found")
		case errors.Is(err, txn.ErrConflict):
			httpjson.Error(w, r, http.StatusConflict, httpjson.CodeConflict, "promotion conflicted with concurrent changes, retry")
		default:
			h.Log.Error("verification: geder promotion failed", zap.Error(err))
			httpjson.Internal(w, r)
		}
		return
	}

	h.Audit.GeDerPromoted(r.Context(), r, actor, userID)
	httpjson.Write(w, http.StatusOK, map[string]string{"status": "promoted"})
}

// SuspendQuota handles POST /verification/quota/{gederID}/suspend.
func (h *Handler) SuspendQuota(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireStaff(w, r)
	if !ok {
		return
	}

	gederID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "gederID"))
	if err != nil {
		httpjson.Error(w, r, http.StatusUnprocessableEntity, httpjson.CodeValidation, "invalid geder id")
		return
	}

	var req suspendQuotaRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, r, http.StatusUnprocessableEntity, httpjson.CodeValidation, "invalid request body")
		return
	}
	reason := strings.TrimSpace(h.sanitizer.Sanitize(req.Reason))
	if reason == "" {
		httpjson.Error(w, r, http.StatusUnprocessableEntity, httpjson.CodeValidation, "reason is required")
		return
	}

	if err := h.Quotas.Suspend(r.Context(), gederID, reason); err != nil {
		if errors.Is(err, quotastore.ErrNotFound) {
			httpjson.Error(w, r, http.StatusNotFound, codeQuotaNotFound, "no endorsement quota on record")
			return
		}
		h.Log.Error("verification: quota suspend failed", zap.Error(err))
		httpjson.Internal(w, r)
		return
	}

	h.Audit.QuotaSuspended(r.Context(), r, actor, gederID, reason)
	httpjson.Write(w, http.StatusOK, map[string]string{"status": "suspended"})
}

// ReinstateQuota handles POST /verification/quota/{gederID}/reinstate.
func (h *Handler) ReinstateQuota(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireStaff(w, r)
	if !ok {
		return
	}

	gederID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "gederID"))
	if err != nil {
		httpjson.Error(w, r, http.StatusUnprocessableEntity, httpjson.CodeValidation, "invalid geder id")
		return
	}

	if err := h.Quotas.Reinstate(r.Context(), gederID); err != nil {
		if errors.Is(err, quotastore.ErrNotFound) {
			httpjson.Error(w, r, http.StatusNotFound, codeQuotaNotFound, "no endorsement quota on record")
			return
		}
		h.Log.Error("verification: quota reinstate failed", zap.Error(err))
		httpjson.Internal(w, r)
		return
	}

	h.Audit.QuotaReinstated(r.Context(), r, actor, gederID)
	httpjson.Write(w, http.StatusOK, map[string]string{"status": "reinstated"})
}
