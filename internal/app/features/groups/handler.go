// internal/app/features/groups/handler.go

// Package groups exposes the group-of-ten membership API: listing and
// creating groups, joining, and leaving. Eligibility is decided by
// grouppolicy on the session user; capacity and single-membership
// invariants are enforced inside the membership store's transactions,
// so the handlers only translate store errors into the envelope.
package groups

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
	"github.com/tkeshelashvili/ateuli/internal/app/policy/grouppolicy"
	"github.com/tkeshelashvili/ateuli/internal/app/store/groups"
	"github.com/tkeshelashvili/ateuli/internal/app/store/memberships"
	"github.com/tkeshelashvili/ateuli/internal/app/system/auditlog"
	"github.com/tkeshelashvili/ateuli/internal/app/system/auth"
	"github.com/tkeshelashvili/ateuli/internal/app/system/authz"
	"github.com/tkeshelashvili/ateuli/internal/app/system/httpjson"
	"github.com/tkeshelashvili/ateuli/internal/app/system/normalize"
	"github.com/tkeshelashvili/ateuli/internal/app/system/timeouts"
	"github.com/tkeshelashvili/ateuli/internal/app/system/txn"
	"github.com/tkeshelashvili/ateuli/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const maxGroupNameLen = 100

type Handler struct {
	Groups  *groupstore.Store
	Members *membershipstore.Store
	Audit   *auditlog.Logger
	Log     *zap.Logger

	sanitizer *bluemonday.Policy
}

func NewHandler(groups *groupstore.Store, members *membershipstore.Store, audit *auditlog.Logger, log *zap.Logger) *Handler {
	return &Handler{
		Groups:    groups,
		Members:   members,
		Audit:     audit,
		Log:       log,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// List handles GET /groups. An optional ?precinct=<hex> query narrows
// the listing to one precinct.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	if ok, reason := grouppolicy.CanListGroups(user); !ok {
		httpjson.Error(w, r, http.StatusForbidden, httpjson.CodeForbidden, reason)
		return
	}

	var precinctID *primitive.ObjectID
	if raw := normalize.QueryParam(r.URL.Query().Get("precinct")); raw != "" {
		oid, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			httpjson.Error(w, r, http.StatusUnprocessableEntity, httpjson.CodeValidation, "precinct must be a valid id")
			return
		}
		precinctID = &oid
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Groups.List(ctx, precinctID)
	if err != nil {
		h.Log.Error("groups: list failed", zap.Error(err))
		httpjson.Internal(w, r)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"groups": list})
}

// Get handles GET /groups/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	if ok, reason := grouppolicy.CanListGroups(user); !ok {
		httpjson.Error(w, r, http.StatusForbidden, httpjson.CodeForbidden, reason)
		return
	}

	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.Error(w, r, http.StatusUnprocessableEntity, httpjson.CodeValidation, "invalid group id")
		return
	}

	g, err := h.Groups.GetWithCount(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, r, http.StatusNotFound, httpjson.CodeNotFound, "group not found")
			return
		}
		h.Log.Error("groups: get failed", zap.Error(err))
		httpjson.Internal(w, r)
		return
	}
	httpjson.Write(w, http.StatusOK, g)
}

// Create handles POST /groups. Only an onboarded geder may open a
// group, and a geder with a precinct assignment only in that precinct.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, actorID, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Error(w, r, http.StatusUnauthorized, httpjson.CodeUnauthorized, "sign in required")
		return
	}
	if allowed, reason := grouppolicy.CanCreateGroup(user); !allowed {
		httpjson.Error(w, r, http.StatusForbidden, httpjson.CodeForbidden, reason)
		return
	}

	var req createGroupRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, r, http.StatusUnprocessableEntity, httpjson.CodeValidation, "invalid request body")
		return
	}

	// Name is optional; precinct context identifies an unnamed group.
	name := strings.TrimSpace(h.sanitizer.Sanitize(req.Name))
	if len(name) > maxGroupNameLen {
		httpjson.Error(w, r, http.StatusUnprocessableEntity, httpjson.CodeValidation, "name is too long")
		return
	}

	precinctID, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.PrecinctID))
	if err != nil {
		httpjson.Error(w, r, http.StatusUnprocessableEntity, httpjson.CodeValidation, "precinct_id must be a valid id")
		return
	}
	if ok, reason := grouppolicy.OwnPrecinct(user, precinctID.Hex()); !ok {
		httpjson.Error(w, r, http.StatusForbidden, httpjson.CodeForbidden, reason)
		return
	}

	g, err := h.Groups.Create(r.Context(), models.Group{Name: name, PrecinctID: precinctID})
	if err != nil {
		if errors.Is(err, groupstore.ErrPrecinctNotFound) {
			httpjson.Error(w, r, http.StatusUnprocessableEntity, httpjson.CodeValidation, "precinct not found")
			return
		}
		h.Log.Error("groups: create failed", zap.Error(err))
		httpjson.Internal(w, r)
		return
	}

	h.Audit.GroupCreated(r.Context(), r, actorID, g.ID, g.Name)
	httpjson.Write(w, http.StatusCreated, g)
}

// Join handles POST /groups/{id}/join.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	user, userID, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Error(w, r, http.StatusUnauthorized, httpjson.CodeUnauthorized, "sign in required")
		return
	}
	if allowed, reason := grouppolicy.CanJoinGroup(user); !allowed {
		httpjson.Error(w, r, http.StatusForbidden, httpjson.CodeForbidden, reason)
		return
	}

	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.Error(w, r, http.StatusUnprocessableEntity, httpjson.CodeValidation, "invalid group id")
		return
	}

	if _, err := h.Groups.GetByID(r.Context(), groupID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, r, http.StatusNotFound, httpjson.CodeNotFound, "group not found")
			return
		}
		h.Log.Error("groups: join lookup failed", zap.Error(err))
		httpjson.Internal(w, r)
		return
	}

	m, err := h.Members.Join(r.Context(), userID, groupID)
	if err != nil {
		switch {
		case errors.Is(err, membershipstore.ErrGroupFull):
			httpjson.Error(w, r, http.StatusConflict, codeGroupFull, "group is full")
		case errors.Is(err, membershipstore.ErrAlreadyMember):
			httpjson.Error(w, r, http.StatusConflict, codeAlreadyMember, "already a member of a group; leave it first")
		case errors.Is(err, txn.ErrConflict):
			httpjson.Error(w, r, http.StatusConflict, httpjson.CodeConflict, "join conflicted with concurrent changes, retry")
		default:
			h.Log.Error("groups: join failed", zap.Error(err))
			httpjson.Internal(w, r)
		}
		return
	}

	h.Audit.MemberJoinedGroup(r.Context(), r, userID, groupID)
	httpjson.Write(w, http.StatusOK, membershipResponse{
		ID:       m.ID.Hex(),
		UserID:   m.UserID.Hex(),
		GroupID:  m.GroupID.Hex(),
		JoinedAt: m.JoinedAt.Format(time.RFC3339),
	})
}

// Leave handles POST /groups/{id}/leave.
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Error(w, r, http.StatusUnauthorized, httpjson.CodeUnauthorized, "sign in required")
		return
	}

	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.Error(w, r, http.StatusUnprocessableEntity, httpjson.CodeValidation, "invalid group id")
		return
	}

	if err := h.Members.Leave(r.Context(), userID, groupID); err != nil {
		switch {
		case errors.Is(err, membershipstore.ErrNotAMember):
			httpjson.Error(w, r, http.StatusConflict, codeNotAMember, "not an active member of this group")
		case errors.Is(err, txn.ErrConflict):
			httpjson.Error(w, r, http.StatusConflict, httpjson.CodeConflict, "leave conflicted with concurrent changes, retry")
		default:
			h.Log.Error("groups: leave failed", zap.Error(err))
			httpjson.Internal(w, r)
		}
		return
	}

	h.Audit.MemberLeftGroup(r.Context(), r, userID, groupID)
	httpjson.Write(w, http.StatusOK, map[string]string{"status": "left"})
}
