// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/tkeshelashvili/ateuli/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCtx returns the current user's snapshot and Mongo ObjectID with a
// found flag. If no user is present or the session's user ID is
// malformed, it returns (nil, NilObjectID, false) so that ok=true always
// means a valid, authenticated user with a parseable ObjectID.
func UserCtx(r *http.Request) (*auth.SessionUser, primitive.ObjectID, bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return nil, primitive.NilObjectID, false
	}
	uid, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		// Malformed user ID in session. Fail closed.
		return nil, primitive.NilObjectID, false
	}
	return user, uid, true
}

// Role returns the current user's role, normalized to lowercase, or
// "visitor" when unauthenticated.
func Role(r *http.Request) string {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "visitor"
	}
	return strings.ToLower(user.Role)
}

// IsStaff reports whether the current request's user is a staff operator.
func IsStaff(r *http.Request) bool {
	user, ok := auth.CurrentUser(r)
	return ok && user.IsStaff
}
