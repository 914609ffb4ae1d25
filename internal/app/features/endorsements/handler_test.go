package endorsements_test

import (
	"net/http"
	"testing"

	"github.com/tkeshelashvili/ateuli/internal/app/features/endorsements"
	endorsementstore "github.com/tkeshelashvili/ateuli/internal/app/store/endorsements"
	groupstore "github.com/tkeshelashvili/ateuli/internal/app/store/groups"
	membershipstore "github.com/tkeshelashvili/ateuli/internal/app/store/memberships"
	quotastore "github.com/tkeshelashvili/ateuli/internal/app/store/quotas"
	userstore "github.com/tkeshelashvili/ateuli/internal/app/store/users"
	"github.com/tkeshelashvili/ateuli/internal/app/system/httpjson"
	"github.com/tkeshelashvili/ateuli/internal/domain/models"
	"github.com/tkeshelashvili/ateuli/internal/testutil"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*endorsements.Handler, *testutil.Fixtures) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	log := zap.NewNop()
	users := userstore.New(db)
	quotas := quotastore.New(db)
	gs := groupstore.New(db)
	members := membershipstore.New(db, gs, log)
	es := endorsementstore.New(db, users, quotas, members, log)

	h := endorsements.NewHandler(es, quotas, nil, log)
	return h, testutil.NewFixtures(t, db)
}

func TestCreate(t *testing.T) {
	h, f := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := f.CreatePrecinct(ctx, "Vake 4")
	geder := f.CreateGeDer(ctx, "Nino Beridze", "+995555300001", precinct.ID)
	f.CreateQuota(ctx, geder.ID, 10, 0)
	applicant := f.CreateUnverified(ctx, "Giorgi K", "+995555300002", precinct.ID)

	body := map[string]string{"supporter_id": applicant.ID.Hex()}
	req := testutil.NewAuthenticatedJSONRequest(t, "POST", "/endorsements", body, testutil.ForUser(geder))
	rec := testutil.NewRecorder()

	h.Create(rec, req)

	rec.AssertStatus(t, http.StatusCreated)
	var created models.Endorsement
	rec.DecodeJSON(t, &created)
	if created.GuarantorID != geder.ID || created.SupporterID != applicant.ID {
		t.Errorf("endorsement links wrong parties: %+v", created)
	}
	if created.Status != models.EndorsementActive {
		t.Errorf("status: got %q, want %q", created.Status, models.EndorsementActive)
	}
}

func TestCreate_SupporterDenied(t *testing.T) {
	h, f := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := f.CreatePrecinct(ctx, "Vake 4")
	applicant := f.CreateUnverified(ctx, "Giorgi K", "+995555300003", precinct.ID)

	body := map[string]string{"supporter_id": applicant.ID.Hex()}
	req := testutil.NewAuthenticatedJSONRequest(t, "POST", "/endorsements", body, testutil.SupporterUser(precinct.ID))
	rec := testutil.NewRecorder()

	h.Create(rec, req)

	rec.AssertStatus(t, http.StatusForbidden)
	rec.AssertErrorCode(t, httpjson.CodeForbidden)
}

func TestCreate_SelfEndorsement(t *testing.T) {
	h, f := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := f.CreatePrecinct(ctx, "Vake 4")
	geder := f.CreateGeDer(ctx, "Nino Beridze", "+995555300004", precinct.ID)
	f.CreateQuota(ctx, geder.ID, 10, 0)

	body := map[string]string{"supporter_id": geder.ID.Hex()}
	req := testutil.NewAuthenticatedJSONRequest(t, "POST", "/endorsements", body, testutil.ForUser(geder))
	rec := testutil.NewRecorder()

	h.Create(rec, req)

	rec.AssertStatus(t, http.StatusUnprocessableEntity)
	rec.AssertErrorCode(t, httpjson.CodeValidation)
}

func TestCreate_AlreadyEndorsed(t *testing.T) {
	h, f := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := f.CreatePrecinct(ctx, "Vake 4")
	first := f.CreateGeDer(ctx, "First Geder", "+995555300005", precinct.ID)
	second := f.CreateGeDer(ctx, "Second Geder", "+995555300006", precinct.ID)
	f.CreateQuota(ctx, second.ID, 10, 0)
	applicant := f.CreateUnverified(ctx, "Giorgi K", "+995555300007", precinct.ID)
	f.CreateEndorsement(ctx, first.ID, applicant.ID, models.EndorsementActive)

	body := map[string]string{"supporter_id": applicant.ID.Hex()}
	req := testutil.NewAuthenticatedJSONRequest(t, "POST", "/endorsements", body, testutil.ForUser(second))
	rec := testutil.NewRecorder()

	h.Create(rec, req)

	rec.AssertStatus(t, http.StatusConflict)
	rec.AssertErrorCode(t, "already_endorsed")
}

func TestCreate_IneligibleRole(t *testing.T) {
	h, f := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := f.CreatePrecinct(ctx, "Vake 4")
	geder := f.CreateGeDer(ctx, "Nino Beridze", "+995555300008", precinct.ID)
	f.CreateQuota(ctx, geder.ID, 10, 0)
	supporter := f.CreateSupporter(ctx, "Already In", "+995555300009", precinct.ID)

	body := map[string]string{"supporter_id": supporter.ID.Hex()}
	req := testutil.NewAuthenticatedJSONRequest(t, "POST", "/endorsements", body, testutil.ForUser(geder))
	rec := testutil.NewRecorder()

	h.Create(rec, req)

	rec.AssertStatus(t, http.StatusUnprocessableEntity)
	rec.AssertErrorCode(t, "ineligible_role")
}

func TestCreate_QuotaExhausted(t *testing.T) {
	h, f := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := f.CreatePrecinct(ctx, "Vake 4")
	geder := f.CreateGeDer(ctx, "Nino Beridze", "+995555300010", precinct.ID)
	f.CreateQuota(ctx, geder.ID, 2, 2)
	applicant := f.CreateUnverified(ctx, "Giorgi K", "+995555300011", precinct.ID)

	body := map[string]string{"supporter_id": applicant.ID.Hex()}
	req := testutil.NewAuthenticatedJSONRequest(t, "POST", "/endorsements", body, testutil.ForUser(geder))
	rec := testutil.NewRecorder()

	h.Create(rec, req)

	rec.AssertStatus(t, http.StatusConflict)
	rec.AssertErrorCode(t, "quota_exhausted")
}

func TestCreate_QuotaSuspended(t *testing.T) {
	h, f := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := f.CreatePrecinct(ctx, "Vake 4")
	geder := f.CreateGeDer(ctx, "Nino Beridze", "+995555300012", precinct.ID)
	f.CreateQuota(ctx, geder.ID, 10, 0)

	quotas := quotastore.New(f.DB())
	if err := quotas.Suspend(ctx, geder.ID, "fraudulent endorsements"); err != nil {
		t.Fatalf("failed to suspend quota: %v", err)
	}

	applicant := f.CreateUnverified(ctx, "Giorgi K", "+995555300013", precinct.ID)

	body := map[string]string{"supporter_id": applicant.ID.Hex()}
	req := testutil.NewAuthenticatedJSONRequest(t, "POST", "/endorsements", body, testutil.ForUser(geder))
	rec := testutil.NewRecorder()

	h.Create(rec, req)

	rec.AssertStatus(t, http.StatusForbidden)
	rec.AssertErrorCode(t, "quota_suspended")
}

func TestRevoke(t *testing.T) {
	h, f := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := f.CreatePrecinct(ctx, "Vake 4")
	geder := f.CreateGeDer(ctx, "Nino Beridze", "+995555300014", precinct.ID)
	f.CreateQuota(ctx, geder.ID, 10, 1)
	supporter := f.CreateSupporter(ctx, "Giorgi K", "+995555300015", precinct.ID)
	e := f.CreateEndorsement(ctx, geder.ID, supporter.ID, models.EndorsementActive)

	body := map[string]string{"reason": "relationship ended"}
	req := testutil.NewAuthenticatedJSONRequest(t, "POST", "/endorsements/"+e.ID.Hex()+"/revoke", body, testutil.ForUser(geder))
	req = testutil.WithChiURLParam(req, "id", e.ID.Hex())
	rec := testutil.NewRecorder()

	h.Revoke(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	var revoked models.Endorsement
	rec.DecodeJSON(t, &revoked)
	if revoked.Status != models.EndorsementRevoked {
		t.Errorf("status: got %q, want %q", revoked.Status, models.EndorsementRevoked)
	}
	if revoked.RevokeReason != "relationship ended" {
		t.Errorf("revoke_reason: got %q", revoked.RevokeReason)
	}
}

func TestRevoke_NotGuarantor(t *testing.T) {
	h, f := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := f.CreatePrecinct(ctx, "Vake 4")
	guarantor := f.CreateGeDer(ctx, "Nino Beridze", "+995555300016", precinct.ID)
	other := f.CreateGeDer(ctx, "Other Geder", "+995555300017", precinct.ID)
	supporter := f.CreateSupporter(ctx, "Giorgi K", "+995555300018", precinct.ID)
	e := f.CreateEndorsement(ctx, guarantor.ID, supporter.ID, models.EndorsementActive)

	req := testutil.NewAuthenticatedJSONRequest(t, "POST", "/endorsements/"+e.ID.Hex()+"/revoke", map[string]string{}, testutil.ForUser(other))
	req = testutil.WithChiURLParam(req, "id", e.ID.Hex())
	rec := testutil.NewRecorder()

	h.Revoke(rec, req)

	rec.AssertStatus(t, http.StatusForbidden)
	rec.AssertErrorCode(t, "not_guarantor")
}

func TestRevoke_AlreadyRevoked(t *testing.T) {
	h, f := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := f.CreatePrecinct(ctx, "Vake 4")
	geder := f.CreateGeDer(ctx, "Nino Beridze", "+995555300019", precinct.ID)
	supporter := f.CreateUnverified(ctx, "Giorgi K", "+995555300020", precinct.ID)
	e := f.CreateEndorsement(ctx, geder.ID, supporter.ID, models.EndorsementRevoked)

	req := testutil.NewAuthenticatedJSONRequest(t, "POST", "/endorsements/"+e.ID.Hex()+"/revoke", map[string]string{}, testutil.ForUser(geder))
	req = testutil.WithChiURLParam(req, "id", e.ID.Hex())
	rec := testutil.NewRecorder()

	h.Revoke(rec, req)

	rec.AssertStatus(t, http.StatusConflict)
	rec.AssertErrorCode(t, "already_revoked")
}

func TestList(t *testing.T) {
	h, f := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := f.CreatePrecinct(ctx, "Vake 4")
	geder := f.CreateGeDer(ctx, "Nino Beridze", "+995555300021", precinct.ID)
	a := f.CreateSupporter(ctx, "First", "+995555300022", precinct.ID)
	b := f.CreateUnverified(ctx, "Second", "+995555300023", precinct.ID)
	f.CreateEndorsement(ctx, geder.ID, a.ID, models.EndorsementActive)
	f.CreateEndorsement(ctx, geder.ID, b.ID, models.EndorsementRevoked)

	req := testutil.NewAuthenticatedRequest("GET", "/endorsements", testutil.ForUser(geder))
	rec := testutil.NewRecorder()

	h.List(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	var resp struct {
		Endorsements []models.Endorsement `json:"endorsements"`
	}
	rec.DecodeJSON(t, &resp)
	if len(resp.Endorsements) != 2 {
		t.Errorf("endorsements: got %d, want 2 (terminal history included)", len(resp.Endorsements))
	}
}

func TestQuota(t *testing.T) {
	h, f := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := f.CreatePrecinct(ctx, "Vake 4")
	geder := f.CreateGeDer(ctx, "Nino Beridze", "+995555300024", precinct.ID)
	f.CreateQuota(ctx, geder.ID, 10, 3)

	req := testutil.NewAuthenticatedRequest("GET", "/endorsements/quota", testutil.ForUser(geder))
	rec := testutil.NewRecorder()

	h.Quota(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	var resp struct {
		MaxSlots       int `json:"max_slots"`
		UsedSlots      int `json:"used_slots"`
		AvailableSlots int `json:"available_slots"`
	}
	rec.DecodeJSON(t, &resp)
	if resp.MaxSlots != 10 || resp.UsedSlots != 3 || resp.AvailableSlots != 7 {
		t.Errorf("quota: got %+v", resp)
	}
}

func TestQuota_NotFound(t *testing.T) {
	h, f := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := f.CreatePrecinct(ctx, "Vake 4")
	geder := f.CreateGeDer(ctx, "Nino Beridze", "+995555300025", precinct.ID)

	req := testutil.NewAuthenticatedRequest("GET", "/endorsements/quota", testutil.ForUser(geder))
	rec := testutil.NewRecorder()

	h.Quota(rec, req)

	rec.AssertStatus(t, http.StatusNotFound)
	rec.AssertErrorCode(t, "quota_not_found")
}

func TestQuota_SupporterDenied(t *testing.T) {
	h, f := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := f.CreatePrecinct(ctx, "Vake 4")

	req := testutil.NewAuthenticatedRequest("GET", "/endorsements/quota", testutil.SupporterUser(precinct.ID))
	rec := testutil.NewRecorder()

	h.Quota(rec, req)

	rec.AssertStatus(t, http.StatusForbidden)
	rec.AssertErrorCode(t, httpjson.CodeForbidden)
}
