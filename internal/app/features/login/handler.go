// internal/app/features/login/handler.go

// Package login is the session entry point of the API. Phone/OTP
// verification happens in an external collaborator; by the time a phone
// number reaches this handler it is expected to already be verified, and
// the handler refuses to mint sessions for numbers that are not.
package login

import (
	"errors"
	"net/http"

	"github.com/tkeshelashvili/ateuli/internal/app/store/users"
	"github.com/tkeshelashvili/ateuli/internal/app/system/auditlog"
	"github.com/tkeshelashvili/ateuli/internal/app/system/auth"
	"github.com/tkeshelashvili/ateuli/internal/app/system/httpjson"
	"github.com/tkeshelashvili/ateuli/internal/app/system/normalize"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Users      *userstore.Store
	SessionMgr *auth.SessionManager
	Audit      *auditlog.Logger
	Log        *zap.Logger
}

func NewHandler(users *userstore.Store, sm *auth.SessionManager, audit *auditlog.Logger, log *zap.Logger) *Handler {
	return &Handler{Users: users, SessionMgr: sm, Audit: audit, Log: log}
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, r, http.StatusUnprocessableEntity, httpjson.CodeValidation, "invalid request body")
		return
	}

	phone := normalize.Phone(req.Phone)
	if phone == "" {
		httpjson.Error(w, r, http.StatusUnprocessableEntity, httpjson.CodeValidation, "phone is required")
		return
	}

	u, err := h.Users.GetByPhone(r.Context(), phone)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			h.Audit.LoginFailedUserNotFound(r.Context(), r, phone)
			httpjson.Error(w, r, http.StatusUnauthorized, httpjson.CodeUnauthorized, "invalid credentials")
			return
		}
		h.Log.Error("login: user lookup failed", zap.Error(err))
		httpjson.Internal(w, r)
		return
	}

	if !u.IsPhoneVerified {
		h.Audit.LoginFailedUnverified(r.Context(), r, u.ID, phone)
		httpjson.Error(w, r, http.StatusUnauthorized, httpjson.CodeUnauthorized, "phone number not verified")
		return
	}

	if err := h.SessionMgr.SignIn(w, r, u.ID.Hex()); err != nil {
		httpjson.Internal(w, r)
		return
	}

	h.Audit.LoginSuccess(r.Context(), r, u.ID, phone)
	httpjson.Write(w, http.StatusOK, loginResponse{
		ID:           u.ID.Hex(),
		PhoneNumber:  u.PhoneNumber,
		FullName:     u.FullName,
		Role:         u.Role,
		MemberStatus: u.MemberStatus,
	})
}

// Logout handles POST /logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.CurrentUser(r); ok {
		h.Audit.Logout(r.Context(), r, u.ID)
	}
	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Error("logout: session clear failed", zap.Error(err))
		httpjson.Internal(w, r)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]string{"status": "signed_out"})
}
