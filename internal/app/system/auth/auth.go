// internal/app/system/auth/auth.go

// Package auth provides cookie-session authentication for the API.
//
// Identity verification itself (phone/OTP) is an external collaborator;
// this package only issues and reads the session once the collaborator
// has vouched for the phone number, and reloads the user document on
// every request so role changes take effect immediately.
package auth

import (
	"context"
	"net/http"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	isAuthKey = "is_authenticated"
	userIDKey = "user_id"
)

// SessionUser is the per-request user snapshot injected into context.
// It carries exactly the fields the policy guards need.
type SessionUser struct {
	ID           string
	PhoneNumber  string
	FullName     string
	Role         string // unverified | supporter | geder
	MemberStatus string // passive | active
	PrecinctID   string // hex, empty when unassigned

	IsDiaspora          bool
	IsPhoneVerified     bool
	OnboardingCompleted bool
	IsStaff             bool
}

// UserFetcher loads a fresh SessionUser by user ID. Returning nil means
// the session is no longer valid (user deleted or lookup failed) and the
// request proceeds unauthenticated.
type UserFetcher interface {
	FetchUser(ctx context.Context, userID string) *SessionUser
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// SessionManager owns the cookie store and the auth middleware.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	fetcher UserFetcher
	log     *zap.Logger
}

// NewSessionManager builds a SessionManager with a signed cookie store.
// Secure cookies should be enabled outside dev.
func NewSessionManager(sessionKey, sessionName, domain string, secure bool, log *zap.Logger) (*SessionManager, error) {
	store := sessions.NewCookieStore([]byte(sessionKey))
	store.Options = &sessions.Options{
		Path:     "/",
		Domain:   domain,
		MaxAge:   86400 * 30,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionManager{store: store, name: sessionName, log: log}, nil
}

// SetUserFetcher installs the fetcher used by LoadSessionUser. Without a
// fetcher, sessions resolve to no user (fail closed).
func (sm *SessionManager) SetUserFetcher(f UserFetcher) { sm.fetcher = f }

// CurrentUser returns the user from the request context and a found flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

// WithTestUser injects a user into the request context, bypassing the
// session store. Test helper only.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

// LoadSessionUser resolves the session cookie to a fresh user snapshot
// and injects it into the request context. Requests without a valid
// session pass through unauthenticated.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := sm.store.Get(r, sm.name)

		if isAuth, _ := sess.Values[isAuthKey].(bool); isAuth && sm.fetcher != nil {
			if id, _ := sess.Values[userIDKey].(string); id != "" {
				if u := sm.fetcher.FetchUser(r.Context(), id); u != nil {
					r = withUser(r, u)
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSignedIn rejects unauthenticated requests with a plain 401.
// This is an API-only service; there is no login page to redirect to.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":"unauthorized","message":"sign in required"}}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SignIn writes an authenticated session for the given user ID.
func (sm *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, userID string) error {
	sess, _ := sm.store.Get(r, sm.name)
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = userID
	if err := sess.Save(r, w); err != nil {
		sm.log.Error("session save failed", zap.Error(err))
		return err
	}
	return nil
}

// SignOut clears the session.
func (sm *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, _ := sm.store.Get(r, sm.name)
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}
