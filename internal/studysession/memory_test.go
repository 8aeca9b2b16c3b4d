package studysession

import (
	"context"
	"sort"
	"sync"
	"time"

	"studysphere/internal/xp"
)

type user struct {
	username  string
	firstName string
	lastName  string
}

type rsvp struct {
	attended bool
	order    int
}

// memoryRepo is an in-memory Repository with the same transactional guarantees as
// the postgres implementation.
type memoryRepo struct {
	mu         sync.Mutex
	nextID     int64
	sessions   map[int64]*Session
	rsvps      map[int64]map[string]*rsvp
	resources  map[int64]*Resource
	messages   []Message
	users      map[string]user
	groupUsers map[int64]map[string]bool
	awards     []xp.Award
	clock      int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		sessions:   map[int64]*Session{},
		rsvps:      map[int64]map[string]*rsvp{},
		resources:  map[int64]*Resource{},
		users:      map[string]user{},
		groupUsers: map[int64]map[string]bool{},
	}
}

func (r *memoryRepo) addUser(id, username, first, last string) {
	r.users[id] = user{username: username, firstName: first, lastName: last}
}

func (r *memoryRepo) credit(userID string, reason xp.Reason, ref string) *xp.Award {
	r.nextID++
	a := xp.Award{ID: r.nextID, UserID: userID, Reason: reason, Amount: xp.RewardFor(reason), RefID: ref}
	r.awards = append(r.awards, a)
	return &a
}

func (r *memoryRepo) awardsFor(userID string, reason xp.Reason) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.awards {
		if a.UserID == userID && a.Reason == reason {
			n++
		}
	}
	return n
}

func (r *memoryRepo) record(s *Session, viewerID string) *Record {
	rec := &Record{Session: *s}
	rec.HostUsername = r.users[s.HostID].username
	if s.GroupID != nil {
		rec.ViewerInGroup = r.groupUsers[*s.GroupID][viewerID]
	}

	ids := make([]string, 0, len(r.rsvps[s.ID]))
	for id := range r.rsvps[s.ID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return r.rsvps[s.ID][ids[i]].order < r.rsvps[s.ID][ids[j]].order })
	for _, id := range ids {
		u := r.users[id]
		rec.Attendees = append(rec.Attendees, Attendee{
			UserID:    id,
			Username:  u.username,
			FirstName: u.firstName,
			LastName:  u.lastName,
			Attended:  r.rsvps[s.ID][id].attended,
		})
	}
	return rec
}

func (r *memoryRepo) Create(_ context.Context, s *Session) (*Record, *xp.Award, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	cp := *s
	cp.ID = r.nextID
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.sessions[cp.ID] = &cp
	return r.record(&cp, s.HostID), r.credit(s.HostID, xp.ReasonCreateSession, ""), nil
}

func (r *memoryRepo) Get(_ context.Context, id int64, viewerID string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return r.record(s, viewerID), nil
}

func (r *memoryRepo) list(viewerID string, keep func(*Session) bool) []Record {
	ids := make([]int64, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	out := []Record{}
	for _, id := range ids {
		if s := r.sessions[id]; keep(s) {
			out = append(out, *r.record(s, viewerID))
		}
	}
	return out
}

func (r *memoryRepo) List(_ context.Context, viewerID string) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(viewerID, func(*Session) bool { return true }), nil
}

func (r *memoryRepo) ListForGroup(_ context.Context, groupID int64, viewerID string) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(viewerID, func(s *Session) bool { return s.GroupID != nil && *s.GroupID == groupID }), nil
}

func (r *memoryRepo) ListAttending(_ context.Context, userID string, now time.Time, limit int) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.list(userID, func(s *Session) bool {
		if _, ok := r.rsvps[s.ID][userID]; !ok {
			return false
		}
		return s.StartsAt == nil || !s.StartsAt.Before(now)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepo) RSVPState(_ context.Context, sessionID int64, userID string) (bool, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.rsvps[sessionID][userID]
	if !ok {
		return false, false, nil
	}
	return true, v.attended, nil
}

func (r *memoryRepo) AddRSVP(_ context.Context, sessionID int64, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rsvps[sessionID] == nil {
		r.rsvps[sessionID] = map[string]*rsvp{}
	}
	if _, ok := r.rsvps[sessionID][userID]; ok {
		return ErrAlreadyRSVPd
	}
	r.clock++
	r.rsvps[sessionID][userID] = &rsvp{order: r.clock}
	return nil
}

func (r *memoryRepo) RemoveRSVP(_ context.Context, sessionID int64, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.rsvps[sessionID][userID]
	if !ok || v.attended {
		return ErrNotRSVPd
	}
	delete(r.rsvps[sessionID], userID)
	return nil
}

func (r *memoryRepo) MarkAttended(_ context.Context, sessionID int64, userID string) (*xp.Award, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.rsvps[sessionID][userID]
	if !ok {
		return nil, ErrNotRSVPd
	}
	if v.attended {
		return nil, ErrAlreadyAttended
	}
	v.attended = true
	return r.credit(userID, xp.ReasonAttendSession, "session:"), nil
}

func (r *memoryRepo) ListResources(_ context.Context, sessionID int64) ([]Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Resource{}
	for _, res := range r.resources {
		if res.SessionID == sessionID {
			out = append(out, *res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryRepo) GetResource(_ context.Context, sessionID, resourceID int64) (*Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.resources[resourceID]
	if !ok || res.SessionID != sessionID {
		return nil, ErrResourceNotFound
	}
	cp := *res
	return &cp, nil
}

func (r *memoryRepo) AddResource(_ context.Context, res *Resource) (*Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	cp := *res
	cp.ID = r.nextID
	cp.Username = r.users[res.AddedByID].username
	cp.CreatedAt = time.Now()
	r.resources[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memoryRepo) DeleteResource(_ context.Context, resourceID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.resources[resourceID]; !ok {
		return ErrResourceNotFound
	}
	delete(r.resources, resourceID)
	return nil
}

func (r *memoryRepo) ListMessages(_ context.Context, sessionID int64) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Message{}
	for _, m := range r.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryRepo) AddMessage(_ context.Context, m *Message) (*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	cp := *m
	cp.ID = r.nextID
	u := r.users[m.SenderID]
	cp.Username, cp.FirstName, cp.LastName = u.username, u.firstName, u.lastName
	cp.CreatedAt = time.Now()
	r.messages = append(r.messages, cp)
	return &cp, nil
}

func (r *memoryRepo) Stats(_ context.Context, userID string) (DashboardStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var st DashboardStats
	for id, s := range r.sessions {
		if s.HostID == userID {
			st.SessionsHosted++
		}
		if v, ok := r.rsvps[id][userID]; ok && v.attended {
			st.SessionsAttended++
		}
	}
	for _, members := range r.groupUsers {
		if members[userID] {
			st.GroupsJoined++
		}
	}
	for _, a := range r.awards {
		if a.UserID == userID {
			st.XP += a.Amount
		}
	}
	st.Level = xp.LevelFor(st.XP)
	return st, nil
}

// IsMember makes memoryRepo its own MembershipChecker.
func (r *memoryRepo) IsMember(_ context.Context, groupID int64, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.groupUsers[groupID][userID], nil
}

func (r *memoryRepo) join(groupID int64, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.groupUsers[groupID] == nil {
		r.groupUsers[groupID] = map[string]bool{}
	}
	r.groupUsers[groupID][userID] = true
}
