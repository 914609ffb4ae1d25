package endorsementstore_test

import (
	"fmt"
	"sync"
	"testing"

	endorsementstore "github.com/tkeshelashvili/ateuli/internal/app/store/endorsements"
	groupstore "github.com/tkeshelashvili/ateuli/internal/app/store/groups"
	membershipstore "github.com/tkeshelashvili/ateuli/internal/app/store/memberships"
	quotastore "github.com/tkeshelashvili/ateuli/internal/app/store/quotas"
	userstore "github.com/tkeshelashvili/ateuli/internal/app/store/users"
	"github.com/tkeshelashvili/ateuli/internal/domain/models"
	"github.com/tkeshelashvili/ateuli/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type stores struct {
	endorsements *endorsementstore.Store
	users        *userstore.Store
	quotas       *quotastore.Store
	memberships  *membershipstore.Store
	groups       *groupstore.Store
}

func newTestStores(t *testing.T) (stores, *testutil.Fixtures) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	log := zap.NewNop()

	users := userstore.New(db)
	quotas := quotastore.New(db)
	groups := groupstore.New(db)
	memberships := membershipstore.New(db, groups, log)
	endorsements := endorsementstore.New(db, users, quotas, memberships, log)

	return stores{
		endorsements: endorsements,
		users:        users,
		quotas:       quotas,
		memberships:  memberships,
		groups:       groups,
	}, testutil.NewFixtures(t, db)
}

func TestStore_Create(t *testing.T) {
	s, fixtures := newTestStores(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := fixtures.CreatePrecinct(ctx, "Vake 1")
	geder := fixtures.CreateGeDer(ctx, "Tamar", "+995555300001", precinct.ID)
	applicant := fixtures.CreateUnverified(ctx, "Nino", "+995555300002", precinct.ID)
	fixtures.CreateQuota(ctx, geder.ID, 10, 0)

	e, err := s.endorsements.Create(ctx, geder.ID, applicant.ID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if e.Status != models.EndorsementActive {
		t.Errorf("Status: got %q, want %q", e.Status, models.EndorsementActive)
	}

	// Supporter promoted.
	u, _ := s.users.GetByID(ctx, applicant.ID)
	if u.Role != models.RoleSupporter {
		t.Errorf("applicant role: got %q, want %q", u.Role, models.RoleSupporter)
	}

	// Slot reserved.
	q, _ := s.quotas.Get(ctx, geder.ID)
	if q.UsedSlots != 1 {
		t.Errorf("UsedSlots: got %d, want 1", q.UsedSlots)
	}
}

func TestStore_Create_AlreadyEndorsed(t *testing.T) {
	s, fixtures := newTestStores(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := fixtures.CreatePrecinct(ctx, "Vake 1")
	g1 := fixtures.CreateGeDer(ctx, "Tamar", "+995555300101", precinct.ID)
	g2 := fixtures.CreateGeDer(ctx, "Levan", "+995555300102", precinct.ID)
	applicant := fixtures.CreateUnverified(ctx, "Nino", "+995555300103", precinct.ID)
	fixtures.CreateQuota(ctx, g1.ID, 10, 0)
	fixtures.CreateQuota(ctx, g2.ID, 10, 0)

	if _, err := s.endorsements.Create(ctx, g1.ID, applicant.ID); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	// A second endorsement, even from another geder, rejects, and the
	// second geder's quota must stay untouched.
	_, err := s.endorsements.Create(ctx, g2.ID, applicant.ID)
	if err != endorsementstore.ErrAlreadyEndorsed {
		t.Errorf("expected ErrAlreadyEndorsed, got %v", err)
	}

	q, _ := s.quotas.Get(ctx, g2.ID)
	if q.UsedSlots != 0 {
		t.Errorf("second geder UsedSlots: got %d, want 0", q.UsedSlots)
	}
}

func TestStore_Create_IneligibleRole(t *testing.T) {
	s, fixtures := newTestStores(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := fixtures.CreatePrecinct(ctx, "Vake 1")
	geder := fixtures.CreateGeDer(ctx, "Tamar", "+995555300201", precinct.ID)
	fixtures.CreateQuota(ctx, geder.ID, 10, 0)

	supporter := fixtures.CreateSupporter(ctx, "Giorgi", "+995555300202", precinct.ID)
	otherGeder := fixtures.CreateGeDer(ctx, "Levan", "+995555300203", precinct.ID)

	for _, target := range []primitive.ObjectID{supporter.ID, otherGeder.ID} {
		if _, err := s.endorsements.Create(ctx, geder.ID, target); err != endorsementstore.ErrIneligibleRole {
			t.Errorf("expected ErrIneligibleRole, got %v", err)
		}
	}

	// Failed attempts must not consume quota.
	q, _ := s.quotas.Get(ctx, geder.ID)
	if q.UsedSlots != 0 {
		t.Errorf("UsedSlots: got %d, want 0", q.UsedSlots)
	}
}

func TestStore_Create_QuotaExhausted(t *testing.T) {
	s, fixtures := newTestStores(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := fixtures.CreatePrecinct(ctx, "Vake 1")
	geder := fixtures.CreateGeDer(ctx, "Tamar", "+995555300301", precinct.ID)
	fixtures.CreateQuota(ctx, geder.ID, 1, 1)
	applicant := fixtures.CreateUnverified(ctx, "Nino", "+995555300302", precinct.ID)

	_, err := s.endorsements.Create(ctx, geder.ID, applicant.ID)
	if err != quotastore.ErrExhausted {
		t.Errorf("expected ErrExhausted, got %v", err)
	}

	// The applicant stays unverified: no partial effects.
	u, _ := s.users.GetByID(ctx, applicant.ID)
	if u.Role != models.RoleUnverified {
		t.Errorf("applicant role: got %q, want %q", u.Role, models.RoleUnverified)
	}
}

func TestStore_Create_QuotaSuspended(t *testing.T) {
	s, fixtures := newTestStores(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := fixtures.CreatePrecinct(ctx, "Vake 1")
	geder := fixtures.CreateGeDer(ctx, "Tamar", "+995555300401", precinct.ID)
	fixtures.CreateQuota(ctx, geder.ID, 10, 0)
	if err := s.quotas.Suspend(ctx, geder.ID, "penalized"); err != nil {
		t.Fatalf("Suspend failed: %v", err)
	}
	applicant := fixtures.CreateUnverified(ctx, "Nino", "+995555300402", precinct.ID)

	_, err := s.endorsements.Create(ctx, geder.ID, applicant.ID)
	if err != quotastore.ErrSuspended {
		t.Errorf("expected ErrSuspended, got %v", err)
	}
}

func TestStore_Create_QuotaNotFound(t *testing.T) {
	s, fixtures := newTestStores(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := fixtures.CreatePrecinct(ctx, "Vake 1")
	geder := fixtures.CreateGeDer(ctx, "Tamar", "+995555300501", precinct.ID)
	applicant := fixtures.CreateUnverified(ctx, "Nino", "+995555300502", precinct.ID)

	_, err := s.endorsements.Create(ctx, geder.ID, applicant.ID)
	if err != quotastore.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Create_AfterRevoke_NewRecord(t *testing.T) {
	s, fixtures := newTestStores(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := fixtures.CreatePrecinct(ctx, "Vake 1")
	geder := fixtures.CreateGeDer(ctx, "Tamar", "+995555300601", precinct.ID)
	fixtures.CreateQuota(ctx, geder.ID, 10, 0)
	applicant := fixtures.CreateUnverified(ctx, "Nino", "+995555300602", precinct.ID)

	first, err := s.endorsements.Create(ctx, geder.ID, applicant.ID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := s.endorsements.Revoke(ctx, first.ID, geder.ID, "moving away"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	// Re-endorsement creates a fresh active record; the revoked one
	// stays as audit trail.
	second, err := s.endorsements.Create(ctx, geder.ID, applicant.ID)
	if err != nil {
		t.Fatalf("re-endorse failed: %v", err)
	}
	if second.ID == first.ID {
		t.Error("re-endorsement should create a new document")
	}

	list, err := s.endorsements.ListForUser(ctx, applicant.ID)
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("endorsement history: got %d records, want 2", len(list))
	}
}

// Last-slot race on the endorsement flow end to end: concurrent creates
// against a quota with one remaining slot. Exactly one may succeed, and
// only its applicant may be promoted.
func TestStore_Create_Concurrent_LastSlot(t *testing.T) {
	s, fixtures := newTestStores(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := fixtures.CreatePrecinct(ctx, "Vake 1")
	geder := fixtures.CreateGeDer(ctx, "Tamar", "+995555300701", precinct.ID)
	fixtures.CreateQuota(ctx, geder.ID, 10, 9)

	const applicants = 6
	ids := make([]primitive.ObjectID, applicants)
	for i := range ids {
		u := fixtures.CreateUnverified(ctx, "Applicant", fmt.Sprintf("+9955553008%02d", i), precinct.ID)
		ids[i] = u.ID
	}

	var wg sync.WaitGroup
	results := make(chan error, applicants)
	for _, id := range ids {
		wg.Add(1)
		go func(uid primitive.ObjectID) {
			defer wg.Done()
			_, err := s.endorsements.Create(ctx, geder.ID, uid)
			results <- err
		}(id)
	}
	wg.Wait()
	close(results)

	var won, exhausted int
	for err := range results {
		switch err {
		case nil:
			won++
		case quotastore.ErrExhausted:
			exhausted++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("winners: got %d, want exactly 1", won)
	}

	q, _ := s.quotas.Get(ctx, geder.ID)
	if q.UsedSlots != q.MaxSlots {
		t.Errorf("UsedSlots: got %d, want %d", q.UsedSlots, q.MaxSlots)
	}

	promoted := 0
	for _, id := range ids {
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if u.Role == models.RoleSupporter {
			promoted++
		}
	}
	if promoted != 1 {
		t.Errorf("promoted applicants: got %d, want 1", promoted)
	}
}

func TestStore_Revoke(t *testing.T) {
	s, fixtures := newTestStores(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := fixtures.CreatePrecinct(ctx, "Vake 1")
	geder := fixtures.CreateGeDer(ctx, "Tamar", "+995555300901", precinct.ID)
	fixtures.CreateQuota(ctx, geder.ID, 10, 0)
	applicant := fixtures.CreateUnverified(ctx, "Nino", "+995555300902", precinct.ID)

	e, err := s.endorsements.Create(ctx, geder.ID, applicant.ID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// The now-supporter joins a group; revoking must eject them.
	group := fixtures.CreateGroup(ctx, "Vake Group", precinct.ID)
	if _, err := s.memberships.Join(ctx, applicant.ID, group.ID); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	revoked, err := s.endorsements.Revoke(ctx, e.ID, geder.ID, "lost confidence")
	if err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if revoked.Status != models.EndorsementRevoked {
		t.Errorf("Status: got %q, want %q", revoked.Status, models.EndorsementRevoked)
	}
	if revoked.RevokedAt == nil {
		t.Error("RevokedAt should be stamped")
	}

	// Demoted back to unverified.
	u, _ := s.users.GetByID(ctx, applicant.ID)
	if u.Role != models.RoleUnverified {
		t.Errorf("role after revoke: got %q, want %q", u.Role, models.RoleUnverified)
	}

	// Removed from the group.
	if _, err := s.memberships.ActiveByUser(ctx, applicant.ID); err == nil {
		t.Error("supporter should be removed from their group on revoke")
	}
	n, _ := s.groups.ActiveMemberCount(ctx, group.ID)
	if n != 0 {
		t.Errorf("group active members: got %d, want 0", n)
	}

	// Slot released.
	q, _ := s.quotas.Get(ctx, geder.ID)
	if q.UsedSlots != 0 {
		t.Errorf("UsedSlots: got %d, want 0", q.UsedSlots)
	}
}

func TestStore_Revoke_NotGuarantor(t *testing.T) {
	s, fixtures := newTestStores(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := fixtures.CreatePrecinct(ctx, "Vake 1")
	geder := fixtures.CreateGeDer(ctx, "Tamar", "+995555301001", precinct.ID)
	other := fixtures.CreateGeDer(ctx, "Levan", "+995555301002", precinct.ID)
	fixtures.CreateQuota(ctx, geder.ID, 10, 0)
	applicant := fixtures.CreateUnverified(ctx, "Nino", "+995555301003", precinct.ID)

	e, err := s.endorsements.Create(ctx, geder.ID, applicant.ID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err = s.endorsements.Revoke(ctx, e.ID, other.ID, "not mine to revoke")
	if err != endorsementstore.ErrNotGuarantor {
		t.Errorf("expected ErrNotGuarantor, got %v", err)
	}

	// Supporter untouched.
	u, _ := s.users.GetByID(ctx, applicant.ID)
	if u.Role != models.RoleSupporter {
		t.Errorf("role: got %q, want %q", u.Role, models.RoleSupporter)
	}
}

func TestStore_Revoke_AlreadyRevoked(t *testing.T) {
	s, fixtures := newTestStores(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := fixtures.CreatePrecinct(ctx, "Vake 1")
	geder := fixtures.CreateGeDer(ctx, "Tamar", "+995555301101", precinct.ID)
	fixtures.CreateQuota(ctx, geder.ID, 10, 0)
	applicant := fixtures.CreateUnverified(ctx, "Nino", "+995555301102", precinct.ID)

	e, err := s.endorsements.Create(ctx, geder.ID, applicant.ID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := s.endorsements.Revoke(ctx, e.ID, geder.ID, "first"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	// Second revoke rejects, and critically must not release a second
	// slot.
	_, err = s.endorsements.Revoke(ctx, e.ID, geder.ID, "second")
	if err != endorsementstore.ErrAlreadyRevoked {
		t.Errorf("expected ErrAlreadyRevoked, got %v", err)
	}

	q, _ := s.quotas.Get(ctx, geder.ID)
	if q.UsedSlots != 0 {
		t.Errorf("UsedSlots: got %d, want 0 (released exactly once)", q.UsedSlots)
	}
}

func TestStore_Revoke_SupporterNotInGroup(t *testing.T) {
	s, fixtures := newTestStores(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := fixtures.CreatePrecinct(ctx, "Vake 1")
	geder := fixtures.CreateGeDer(ctx, "Tamar", "+995555301201", precinct.ID)
	fixtures.CreateQuota(ctx, geder.ID, 10, 0)
	applicant := fixtures.CreateUnverified(ctx, "Nino", "+995555301202", precinct.ID)

	e, err := s.endorsements.Create(ctx, geder.ID, applicant.ID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Revoking a supporter who never joined a group succeeds; the group
	// ejection is a conditional side effect.
	if _, err := s.endorsements.Revoke(ctx, e.ID, geder.ID, "no group involved"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
}

func TestStore_ListForUser_BothSides(t *testing.T) {
	s, fixtures := newTestStores(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	precinct := fixtures.CreatePrecinct(ctx, "Vake 1")
	geder := fixtures.CreateGeDer(ctx, "Tamar", "+995555301301", precinct.ID)
	fixtures.CreateQuota(ctx, geder.ID, 10, 0)

	a1 := fixtures.CreateUnverified(ctx, "Nino", "+995555301302", precinct.ID)
	a2 := fixtures.CreateUnverified(ctx, "Dato", "+995555301303", precinct.ID)

	if _, err := s.endorsements.Create(ctx, geder.ID, a1.ID); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := s.endorsements.Create(ctx, geder.ID, a2.ID); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Guarantor sees both; each supporter sees their own.
	asGuarantor, err := s.endorsements.ListForUser(ctx, geder.ID)
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if len(asGuarantor) != 2 {
		t.Errorf("guarantor list: got %d, want 2", len(asGuarantor))
	}

	asSupporter, err := s.endorsements.ListForUser(ctx, a1.ID)
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if len(asSupporter) != 1 {
		t.Errorf("supporter list: got %d, want 1", len(asSupporter))
	}
}
