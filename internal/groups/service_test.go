package groups

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"studysphere/internal/identity"
	"studysphere/internal/logger"
	"studysphere/internal/xp"

	"github.com/gin-gonic/gin"
)

const (
	alice = "11111111-1111-1111-1111-111111111111"
	bob   = "22222222-2222-2222-2222-222222222222"
	staff = "33333333-3333-3333-3333-333333333333"
)

type memoryRepo struct {
	mu      sync.Mutex
	nextID  int64
	groups  map[int64]*Group
	members map[int64]map[string]bool
	staff   map[string]bool
	awards  []xp.Reason
	joined  map[string]bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		groups:  map[int64]*Group{},
		members: map[int64]map[string]bool{},
		staff:   map[string]bool{staff: true},
		joined:  map[string]bool{},
	}
}

func (r *memoryRepo) view(g *Group, viewerID string) Group {
	out := *g
	out.MembersCount = len(r.members[g.ID])
	out.IsMember = r.members[g.ID][viewerID]
	return out
}

func (r *memoryRepo) award(userID string, reason xp.Reason) *xp.Award {
	r.awards = append(r.awards, reason)
	return &xp.Award{UserID: userID, Reason: reason, Amount: xp.RewardFor(reason)}
}

func (r *memoryRepo) Create(_ context.Context, g *Group) (*Group, *xp.Award, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	cp := *g
	cp.ID = r.nextID
	r.groups[cp.ID] = &cp
	r.members[cp.ID] = map[string]bool{g.CreatorID: true}
	v := r.view(&cp, g.CreatorID)
	return &v, r.award(g.CreatorID, xp.ReasonCreateGroup), nil
}

func (r *memoryRepo) Get(_ context.Context, id int64, viewerID string) (*Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return nil, ErrGroupNotFound
	}
	v := r.view(g, viewerID)
	return &v, nil
}

func (r *memoryRepo) List(_ context.Context, viewerID string, all bool) ([]Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Group{}
	for id := int64(1); id <= r.nextID; id++ {
		g, ok := r.groups[id]
		if !ok {
			continue
		}
		if all || g.Status == StatusApproved || g.CreatorID == viewerID {
			out = append(out, r.view(g, viewerID))
		}
	}
	return out, nil
}

func (r *memoryRepo) IsMember(_ context.Context, groupID int64, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[groupID][userID], nil
}

func (r *memoryRepo) Join(_ context.Context, groupID int64, userID string) (*xp.Award, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[groupID][userID] {
		return nil, ErrAlreadyMember
	}
	r.members[groupID][userID] = true
	key := fmt.Sprintf("%s/%d", userID, groupID)
	if r.joined[key] {
		return nil, nil
	}
	r.joined[key] = true
	return r.award(userID, xp.ReasonJoinGroup), nil
}

func (r *memoryRepo) Leave(_ context.Context, groupID int64, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.members[groupID][userID] {
		return ErrNotMember
	}
	delete(r.members[groupID], userID)
	return nil
}

func (r *memoryRepo) SetStatus(_ context.Context, id int64, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return ErrGroupNotFound
	}
	g.Status = status
	return nil
}

func (r *memoryRepo) IsStaff(_ context.Context, userID string) (bool, error) {
	return r.staff[userID], nil
}

func (r *memoryRepo) SessionStats(context.Context) (int, int, error) {
	return 4, 2, nil
}

func newTestService() (Service, *memoryRepo) {
	repo := newMemoryRepo()
	return NewService(repo, xp.NewAnnouncer(nil, nil, logger.Discard()), logger.Discard()), repo
}

func TestCreate_PendingWithCreatorMember(t *testing.T) {
	svc, repo := newTestService()
	g, err := svc.Create(context.Background(), alice, CreateGroupRequest{Name: "  Algorithms  "})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if g.Status != StatusPending || !g.IsMember || g.Name != "Algorithms" {
		t.Errorf("unexpected group %+v", g)
	}
	if len(repo.awards) != 1 || repo.awards[0] != xp.ReasonCreateGroup {
		t.Errorf("expected create_group award, got %v", repo.awards)
	}
}

func TestVisibility(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	g, _ := svc.Create(ctx, alice, CreateGroupRequest{Name: "Pending"})

	if _, err := svc.Get(ctx, bob, g.ID); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("other users must not see pending groups, got %v", err)
	}
	if _, err := svc.Get(ctx, alice, g.ID); err != nil {
		t.Errorf("creator should see own pending group: %v", err)
	}
	if _, err := svc.Get(ctx, staff, g.ID); err != nil {
		t.Errorf("staff should see pending group: %v", err)
	}

	list, _ := svc.List(ctx, bob)
	if len(list) != 0 {
		t.Errorf("bob should see no groups, got %d", len(list))
	}
	list, _ = svc.List(ctx, staff)
	if len(list) != 1 {
		t.Errorf("staff should see 1 group, got %d", len(list))
	}
}

func TestJoin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	g, _ := svc.Create(ctx, alice, CreateGroupRequest{Name: "Algorithms"})

	if _, err := svc.Join(ctx, alice, g.ID); !errors.Is(err, ErrNotApproved) {
		t.Errorf("joining a pending group should fail with ErrNotApproved, got %v", err)
	}

	if err := svc.Approve(ctx, staff, g.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	earned, err := svc.Join(ctx, bob, g.ID)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if earned != xp.RewardFor(xp.ReasonJoinGroup) {
		t.Errorf("xp earned = %d", earned)
	}

	if _, err := svc.Join(ctx, bob, g.ID); !errors.Is(err, ErrAlreadyMember) {
		t.Errorf("second join should fail with ErrAlreadyMember, got %v", err)
	}

	if err := svc.Leave(ctx, bob, g.ID); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if err := svc.Leave(ctx, bob, g.ID); !errors.Is(err, ErrNotMember) {
		t.Errorf("second leave should fail with ErrNotMember, got %v", err)
	}
}

func TestJoin_RejoinEarnsNothing(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService()
	g, _ := svc.Create(ctx, alice, CreateGroupRequest{Name: "Algorithms"})
	if err := svc.Approve(ctx, staff, g.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if earned, err := svc.Join(ctx, bob, g.ID); err != nil || earned != xp.RewardFor(xp.ReasonJoinGroup) {
		t.Fatalf("first join: earned=%d err=%v", earned, err)
	}
	if err := svc.Leave(ctx, bob, g.ID); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	earned, err := svc.Join(ctx, bob, g.ID)
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if earned != 0 {
		t.Errorf("rejoin earned %d xp, want 0", earned)
	}

	joins := 0
	for _, reason := range repo.awards {
		if reason == xp.ReasonJoinGroup {
			joins++
		}
	}
	if joins != 1 {
		t.Errorf("expected one join_group award, got %d", joins)
	}
}

func TestModerationRequiresStaff(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	g, _ := svc.Create(ctx, alice, CreateGroupRequest{Name: "Algorithms"})

	if err := svc.Approve(ctx, alice, g.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-staff approve should be forbidden, got %v", err)
	}
	if _, err := svc.AdminOverview(ctx, bob); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-staff overview should be forbidden, got %v", err)
	}
	if err := svc.Reject(ctx, staff, 999); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("rejecting a missing group should be not found, got %v", err)
	}

	_ = svc.Reject(ctx, staff, g.ID)
	overview, err := svc.AdminOverview(ctx, staff)
	if err != nil {
		t.Fatalf("AdminOverview: %v", err)
	}
	if len(overview.Rejected) != 1 || overview.Stats.TotalGroups != 1 || overview.Stats.RejectedGroups != 1 {
		t.Errorf("unexpected overview %+v", overview)
	}
	if overview.Stats.TotalSessions != 4 || overview.Stats.ActiveSessions != 2 {
		t.Errorf("unexpected session stats %+v", overview.Stats)
	}
}

func TestHandler_JoinFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _ := newTestService()
	if _, err := svc.Create(context.Background(), alice, CreateGroupRequest{Name: "Algorithms"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	r := gin.New()
	api := r.Group("/api", identity.Middleware(identity.Options{TrustHeaders: true}))
	NewHandler(svc, logger.Discard()).RegisterRoutes(api)

	do := func(method, path, user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set(identity.HeaderUserID, user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	if w := do(http.MethodPatch, "/api/admin/groups/1/approve", alice); w.Code != http.StatusForbidden {
		t.Errorf("approve by non-staff: expected 403, got %d", w.Code)
	}
	if w := do(http.MethodPatch, "/api/admin/groups/1/approve", staff); w.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d", w.Code)
	}

	w := do(http.MethodPost, "/api/groups/1/join", bob)
	if w.Code != http.StatusCreated {
		t.Fatalf("join: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Detail   string `json:"detail"`
		XPEarned int    `json:"xp_earned"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.XPEarned != 10 {
		t.Errorf("xp_earned = %d", body.XPEarned)
	}

	w = do(http.MethodPost, "/api/groups/1/join", bob)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "You are already a member of this group") {
		t.Errorf("second join: got %d %s", w.Code, w.Body.String())
	}

	if w := do(http.MethodGet, "/api/groups/abc", bob); w.Code != http.StatusNotFound {
		t.Errorf("bad id: expected 404, got %d", w.Code)
	}
}
