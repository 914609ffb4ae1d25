package authz_test

import (
	"net/http/httptest"
	"testing"

	"github.com/tkeshelashvili/ateuli/internal/app/system/auth"
	"github.com/tkeshelashvili/ateuli/internal/app/system/authz"
	"github.com/tkeshelashvili/ateuli/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestUserCtx(t *testing.T) {
	id := primitive.NewObjectID()
	req := httptest.NewRequest("GET", "/", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: id.Hex(), Role: models.RoleGeDer})

	user, oid, ok := authz.UserCtx(req)
	if !ok {
		t.Fatal("expected a user in context")
	}
	if oid != id {
		t.Errorf("object id: got %s, want %s", oid.Hex(), id.Hex())
	}
	if user.Role != models.RoleGeDer {
		t.Errorf("role: got %q, want %q", user.Role, models.RoleGeDer)
	}
}

func TestUserCtx_NoUser(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if _, _, ok := authz.UserCtx(req); ok {
		t.Error("expected no user")
	}
}

func TestUserCtx_MalformedID(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: "not-an-object-id"})

	if _, _, ok := authz.UserCtx(req); ok {
		t.Error("malformed session ID should fail closed")
	}
}

func TestRole(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if got := authz.Role(req); got != "visitor" {
		t.Errorf("unauthenticated role: got %q, want %q", got, "visitor")
	}

	req = auth.WithTestUser(req, &auth.SessionUser{ID: primitive.NewObjectID().Hex(), Role: "Supporter"})
	if got := authz.Role(req); got != models.RoleSupporter {
		t.Errorf("role: got %q, want %q", got, models.RoleSupporter)
	}
}

func TestIsStaff(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if authz.IsStaff(req) {
		t.Error("unauthenticated request is not staff")
	}

	req = auth.WithTestUser(req, &auth.SessionUser{ID: primitive.NewObjectID().Hex(), IsStaff: true})
	if !authz.IsStaff(req) {
		t.Error("staff flag should be honored")
	}
}
