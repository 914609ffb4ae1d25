// internal/app/features/endorsements/handler.go

// Package endorsements exposes the vouching API: a geder endorsing an
// applicant, revoking that endorsement, and reading their own quota.
// The atomic cascade (quota slot, role transition, group ejection) lives
// in the endorsement store; the handlers translate its errors into the
// envelope.
package endorsements

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
	"github.com/tkeshelashvili/ateuli/internal/app/policy/endorsepolicy"
	"github.com/tkeshelashvili/ateuli/internal/app/store/endorsements"
	"github.com/tkeshelashvili/ateuli/internal/app/store/quotas"
	"github.com/tkeshelashvili/ateuli/internal/app/system/auditlog"
	"github.com/tkeshelashvili/ateuli/internal/app/system/authz"
	"github.com/tkeshelashvili/ateuli/internal/app/system/httpjson"
	"github.com/tkeshelashvili/ateuli/internal/app/system/timeouts"
	"github.com/tkeshelashvili/ateuli/internal/app/system/txn"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const maxReasonLen = 500

type Handler struct {
	Endorsements *endorsementstore.Store
	Quotas       *quotastore.Store
	Audit        *auditlog.Logger
	Log          *zap.Logger

	sanitizer *bluemonday.Policy
}

func NewHandler(endorsements *endorsementstore.Store, quotas *quotastore.Store, audit *auditlog.Logger, log *zap.Logger) *Handler {
	return &Handler{
		Endorsements: endorsements,
		Quotas:       quotas,
		Audit:        audit,
		Log:          log,
		sanitizer:    bluemonday.StrictPolicy(),
	}
}

// Create handles POST /endorsements.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, guarantorID, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Error(w, r, http.StatusUnauthorized, httpjson.CodeUnauthorized, "sign in required")
		return
	}
	if allowed, reason := endorsepolicy.CanEndorse(user); !allowed {
		httpjson.Error(w, r, http.StatusForbidden, httpjson.CodeForbidden, reason)
		return
	}

	var req createEndorsementRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, r, http.StatusUnprocessableEntity, httpjson.CodeValidation, "invalid request body")
		return
	}

	supporterID, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.SupporterID))
	if err != nil {
		httpjson.Error(w, r, http.StatusUnprocessableEntity, httpjson.CodeValidation, "supporter_id must be a valid id")
		return
	}
	if supporterID == guarantorID {
		httpjson.Error(w, r, http.StatusUnprocessableEntity, httpjson.CodeValidation, "cannot endorse yourself")
		return
	}

	e, err := h.Endorsements.Create(r.Context(), guarantorID, supporterID)
	if err != nil {
		switch {
		case errors.Is(err, endorsementstore.ErrAlreadyEndorsed):
			httpjson.Error(w, r, http.StatusConflict, codeAlreadyEndorsed, "user already has an active endorsement")
		case errors.Is(err, endorsementstore.ErrIneligibleRole):
			httpjson.Error(w, r, http.StatusUnprocessableEntity, codeIneligibleRole, "only unverified users can be endorsed")
		case errors.Is(err, quotastore.ErrExhausted):
			httpjson.Error(w, r, http.StatusConflict, codeQuotaExhausted, "endorsement limit reached")
		case errors.Is(err, quotastore.ErrSuspended):
			httpjson.Error(w, r, http.StatusForbidden, codeQuotaSuspended, "endorsement rights are suspended")
		case errors.Is(err, quotastore.ErrNotFound):
			httpjson.Error(w, r, http.StatusConflict, codeQuotaNotFound, "no endorsement quota on record")
		case errors.Is(err, mongo.ErrNoDocuments):
			httpjson.Error(w, r, http.StatusNotFound, httpjson.CodeNotFound, "user not found")
		case errors.Is(err, txn.ErrConflict):
			httpjson.Error(w, r, http.StatusConflict, httpjson.CodeConflict, "endorsement conflicted with concurrent changes, retry")
		default:
			h.Log.Error("endorsements: create failed", zap.Error(err))
			httpjson.Internal(w, r)
		}
		return
	}

	h.Audit.EndorsementCreated(r.Context(), r, guarantorID, supporterID, e.ID)
	httpjson.Write(w, http.StatusCreated, e)
}

// Revoke handles POST /endorsements/{id}/revoke.
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	user, callerID, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Error(w, r, http.StatusUnauthorized, httpjson.CodeUnauthorized, "sign in required")
		return
	}
	if allowed, reason := endorsepolicy.CanRevoke(user); !allowed {
		httpjson.Error(w, r, http.StatusForbidden, httpjson.CodeForbidden, reason)
		return
	}

	endorsementID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.Error(w, r, http.StatusUnprocessableEntity, httpjson.CodeValidation, "invalid endorsement id")
		return
	}

	var req revokeEndorsementRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, r, http.StatusUnprocessableEntity, httpjson.CodeValidation, "invalid request body")
		return
	}
	reason := strings.TrimSpace(h.sanitizer.Sanitize(req.Reason))
	if len(reason) > maxReasonLen {
		httpjson.Error(w, r, http.StatusUnprocessableEntity, httpjson.CodeValidation, "reason is too long")
		return
	}

	e, err := h.Endorsements.Revoke(r.Context(), endorsementID, callerID, reason)
	if err != nil {
		switch {
		case errors.Is(err, endorsementstore.ErrNotGuarantor):
			httpjson.Error(w, r, http.StatusForbidden, codeNotGuarantor, "only the guarantor can revoke an endorsement")
		case errors.Is(err, endorsementstore.ErrAlreadyRevoked):
			httpjson.Error(w, r, http.StatusConflict, codeAlreadyRevoked, "endorsement is already revoked")
		case errors.Is(err, mongo.ErrNoDocuments):
			httpjson.Error(w, r, http.StatusNotFound, httpjson.CodeNotFound, "endorsement not found")
		case errors.Is(err, txn.ErrConflict):
			httpjson.Error(w, r, http.StatusConflict, httpjson.CodeConflict, "revoke conflicted with concurrent changes, retry")
		default:
			h.Log.Error("endorsements: revoke failed", zap.Error(err))
			httpjson.Internal(w, r)
		}
		return
	}

	h.Audit.EndorsementRevoked(r.Context(), r, callerID, e.SupporterID, e.ID, reason)
	httpjson.Write(w, http.StatusOK, e)
}

// List handles GET /endorsements: the endorsements the caller
// participates in, on either side, including the terminal history.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Error(w, r, http.StatusUnauthorized, httpjson.CodeUnauthorized, "sign in required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Endorsements.ListForUser(ctx, userID)
	if err != nil {
		h.Log.Error("endorsements: list failed", zap.Error(err))
		httpjson.Internal(w, r)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"endorsements": list})
}

// Quota handles GET /endorsements/quota: the caller's own slot ledger.
func (h *Handler) Quota(w http.ResponseWriter, r *http.Request) {
	user, gederID, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Error(w, r, http.StatusUnauthorized, httpjson.CodeUnauthorized, "sign in required")
		return
	}
	if allowed, reason := endorsepolicy.CanReadQuota(user); !allowed {
		httpjson.Error(w, r, http.StatusForbidden, httpjson.CodeForbidden, reason)
		return
	}

	q, err := h.Quotas.Get(r.Context(), gederID)
	if err != nil {
		if errors.Is(err, quotastore.ErrNotFound) {
			httpjson.Error(w, r, http.StatusNotFound, codeQuotaNotFound, "no endorsement quota on record")
			return
		}
		h.Log.Error("endorsements: quota read failed", zap.Error(err))
		httpjson.Internal(w, r)
		return
	}

	available := q.MaxSlots - q.UsedSlots
	if available < 0 {
		available = 0
	}
	httpjson.Write(w, http.StatusOK, quotaResponse{
		MaxSlots:       q.MaxSlots,
		UsedSlots:      q.UsedSlots,
		AvailableSlots: available,
		IsSuspended:    q.IsSuspended,
	})
}
