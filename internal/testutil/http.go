package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tkeshelashvili/ateuli/internal/app/system/auth"
	"github.com/tkeshelashvili/ateuli/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TestUser represents user data for testing HTTP handlers.
type TestUser struct {
	ID                  string
	PhoneNumber         string
	FullName            string
	Role                string
	MemberStatus        string
	PrecinctID          string
	IsDiaspora          bool
	IsPhoneVerified     bool
	OnboardingCompleted bool
	IsStaff             bool
}

// GeDerUser returns a TestUser with the geder role, onboarded and
// phone-verified.
func GeDerUser(precinctID primitive.ObjectID) TestUser {
	return TestUser{
		ID:                  primitive.NewObjectID().Hex(),
		PhoneNumber:         "+995555000001",
		FullName:            "Test GeDer",
		Role:                models.RoleGeDer,
		MemberStatus:        models.MemberStatusPassive,
		PrecinctID:          precinctID.Hex(),
		IsPhoneVerified:     true,
		OnboardingCompleted: true,
	}
}

// SupporterUser returns a TestUser with the supporter role.
func SupporterUser(precinctID primitive.ObjectID) TestUser {
	return TestUser{
		ID:                  primitive.NewObjectID().Hex(),
		PhoneNumber:         "+995555000002",
		FullName:            "Test Supporter",
		Role:                models.RoleSupporter,
		MemberStatus:        models.MemberStatusPassive,
		PrecinctID:          precinctID.Hex(),
		IsPhoneVerified:     true,
		OnboardingCompleted: true,
	}
}

// UnverifiedUser returns a TestUser with the unverified role.
func UnverifiedUser() TestUser {
	return TestUser{
		ID:                  primitive.NewObjectID().Hex(),
		PhoneNumber:         "+995555000003",
		FullName:            "Test Unverified",
		Role:                models.RoleUnverified,
		MemberStatus:        models.MemberStatusPassive,
		IsPhoneVerified:     true,
		OnboardingCompleted: true,
	}
}

// StaffUser returns a TestUser flagged as a staff operator.
func StaffUser() TestUser {
	return TestUser{
		ID:                  primitive.NewObjectID().Hex(),
		PhoneNumber:         "+995555000004",
		FullName:            "Test Staff",
		Role:                models.RoleGeDer,
		MemberStatus:        models.MemberStatusPassive,
		IsPhoneVerified:     true,
		OnboardingCompleted: true,
		IsStaff:             true,
	}
}

// ForUser builds a TestUser mirroring a fixture-created user so handler
// tests act as a user that actually exists in the database.
func ForUser(u models.User) TestUser {
	tu := TestUser{
		ID:                  u.ID.Hex(),
		PhoneNumber:         u.PhoneNumber,
		FullName:            u.FullName,
		Role:                u.Role,
		MemberStatus:        u.MemberStatus,
		IsDiaspora:          u.IsDiaspora,
		IsPhoneVerified:     u.IsPhoneVerified,
		OnboardingCompleted: u.OnboardingCompleted,
		IsStaff:             u.IsStaff,
	}
	if u.PrecinctID != nil {
		tu.PrecinctID = u.PrecinctID.Hex()
	}
	return tu
}

// WithUser adds a user to the request context for testing authenticated handlers.
// This bypasses the session middleware and injects the user directly.
func WithUser(r *http.Request, user TestUser) *http.Request {
	sessionUser := &auth.SessionUser{
		ID:                  user.ID,
		PhoneNumber:         user.PhoneNumber,
		FullName:            user.FullName,
		Role:                user.Role,
		MemberStatus:        user.MemberStatus,
		PrecinctID:          user.PrecinctID,
		IsDiaspora:          user.IsDiaspora,
		IsPhoneVerified:     user.IsPhoneVerified,
		OnboardingCompleted: user.OnboardingCompleted,
		IsStaff:             user.IsStaff,
	}
	return auth.WithTestUser(r, sessionUser)
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewJSONRequest creates an HTTP request with a JSON-encoded body.
func NewJSONRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		rd = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewAuthenticatedRequest creates an HTTP request with a user in context.
func NewAuthenticatedRequest(method, target string, user TestUser) *http.Request {
	return WithUser(httptest.NewRequest(method, target, nil), user)
}

// NewAuthenticatedJSONRequest creates a JSON request with a user in context.
func NewAuthenticatedJSONRequest(t *testing.T, method, target string, body any, user TestUser) *http.Request {
	t.Helper()
	return WithUser(NewJSONRequest(t, method, target, body), user)
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d", r.Code, expected)
	}
}

// AssertErrorCode checks the machine-readable error code in the response
// envelope.
func (r *ResponseRecorder) AssertErrorCode(t interface{ Errorf(string, ...any) }, expected string) {
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(r.Body.Bytes(), &envelope); err != nil {
		t.Errorf("response body is not an error envelope: %v (body %q)", err, r.Body.String())
		return
	}
	if envelope.Error.Code != expected {
		t.Errorf("error code: got %q, want %q", envelope.Error.Code, expected)
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	if !strings.Contains(r.Body.String(), expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}

// DecodeJSON unmarshals the response body into out.
func (r *ResponseRecorder) DecodeJSON(t *testing.T, out any) {
	t.Helper()
	if err := json.Unmarshal(r.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode response body: %v (body %q)", err, r.Body.String())
	}
}
