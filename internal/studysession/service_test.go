package studysession

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"studysphere/internal/logger"
	"studysphere/internal/storage"
	"studysphere/internal/xp"
)

const (
	host  = "11111111-1111-1111-1111-111111111111"
	alice = "22222222-2222-2222-2222-222222222222"
	bob   = "33333333-3333-3333-3333-333333333333"
)

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

type fakeFiles struct {
	uploads []string
}

func (f *fakeFiles) NewUpload(_ context.Context, prefix, filename, contentType string) (*storage.Upload, error) {
	if err := storage.ValidateContentType(contentType); err != nil {
		return nil, err
	}
	key := prefix + "/abc-" + filename
	f.uploads = append(f.uploads, key)
	return &storage.Upload{UploadURL: "https://s3.local/put/" + key, FileKey: key, ExpiresAt: testNow.Add(time.Hour)}, nil
}

func (f *fakeFiles) DownloadURL(_ context.Context, key string) (string, error) {
	return "https://s3.local/get/" + key, nil
}

type testEnv struct {
	repo  *memoryRepo
	files *fakeFiles
	svc   Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := newMemoryRepo()
	repo.addUser(host, "hoster", "Hana", "Host")
	repo.addUser(alice, "alice", "Alice", "Smith")
	repo.addUser(bob, "bob", "", "")

	files := &fakeFiles{}
	svc := NewService(repo, repo, xp.NewAnnouncer(nil, nil, logger.Discard()), Options{
		Files:         files,
		PublicBaseURL: "https://study.example/",
		Now:           func() time.Time { return testNow },
	}, logger.Discard())
	return &testEnv{repo: repo, files: files, svc: svc}
}

func (e *testEnv) create(t *testing.T, group *int64, startsAt time.Time) *View {
	t.Helper()
	v, err := e.svc.Create(context.Background(), host, CreateSessionRequest{
		Title:       "Linear algebra review",
		CourseCode:  "MATH 221",
		Description: "Eigenvalues",
		Date:        "Friday, March 13th",
		Time:        "3:00 PM - 5:00 PM",
		StartsAt:    &startsAt,
		Location:    "Library 2F",
		Group:       group,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return v
}

func (e *testEnv) code(t *testing.T, id int64) string {
	t.Helper()
	v, err := e.svc.Get(context.Background(), host, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return v.VerificationCode
}

func TestCreate_GeneratesCodeAndAwardsHost(t *testing.T) {
	e := newTestEnv(t)
	v := e.create(t, nil, testNow.Add(72*time.Hour))

	if len(v.VerificationCode) != CodeLength {
		t.Errorf("expected %d digit code for host, got %q", CodeLength, v.VerificationCode)
	}
	if v.HostName != "hoster" {
		t.Errorf("expected host_name hoster, got %q", v.HostName)
	}
	if n := e.repo.awardsFor(host, xp.ReasonCreateSession); n != 1 {
		t.Errorf("expected one create_session award, got %d", n)
	}
}

func TestCreate_DerivesStartsAtFromFreeText(t *testing.T) {
	e := newTestEnv(t)
	v, err := e.svc.Create(context.Background(), host, CreateSessionRequest{
		Title: "t", CourseCode: "c", Description: "d", Location: "l",
		Date: "Friday, March 13th", Time: "3:00 PM - 5:00 PM",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if v.StartsAt == nil {
		t.Fatal("expected starts_at to be derived")
	}
	if v.StartsAt.Month() != time.March || v.StartsAt.Day() != 13 || v.StartsAt.Hour() != 15 {
		t.Errorf("unexpected starts_at %v", v.StartsAt)
	}
}

func TestCreate_GroupRequiresHostMembership(t *testing.T) {
	e := newTestEnv(t)
	group := int64(7)

	_, err := e.svc.Create(context.Background(), host, CreateSessionRequest{
		Title: "t", CourseCode: "c", Description: "d", Date: "x", Time: "y", Location: "l", Group: &group,
	})
	if !errors.Is(err, ErrHostNotGroupMember) {
		t.Fatalf("expected ErrHostNotGroupMember, got %v", err)
	}
}

func TestGet_CodeOnlyVisibleToHost(t *testing.T) {
	e := newTestEnv(t)
	v := e.create(t, nil, testNow.Add(72*time.Hour))

	other, err := e.svc.Get(context.Background(), alice, v.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if other.VerificationCode != "" {
		t.Errorf("non-host must not see the code, got %q", other.VerificationCode)
	}
	if e.code(t, v.ID) == "" {
		t.Error("host must see the code")
	}
}

func TestGet_NotFound(t *testing.T) {
	e := newTestEnv(t)
	if _, err := e.svc.Get(context.Background(), alice, 999); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRSVP(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	v := e.create(t, nil, testNow.Add(72*time.Hour))

	if err := e.svc.RSVP(ctx, alice, v.ID); err != nil {
		t.Fatalf("RSVP: %v", err)
	}
	if err := e.svc.RSVP(ctx, alice, v.ID); !errors.Is(err, ErrAlreadyRSVPd) {
		t.Fatalf("expected ErrAlreadyRSVPd, got %v", err)
	}

	got, _ := e.svc.Get(ctx, alice, v.ID)
	if !got.IsAttending || got.HasAttended {
		t.Errorf("expected attending and not attended, got %+v", got)
	}
	if got.AttendeesCount != 1 || got.AttendeesList[0].Name != "Alice Smith" {
		t.Errorf("unexpected attendees %+v", got.AttendeesList)
	}
}

func TestRSVP_GroupSessionRequiresMembership(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	group := int64(4)
	e.repo.join(group, host)
	v := e.create(t, &group, testNow.Add(72*time.Hour))

	got, _ := e.svc.Get(ctx, alice, v.ID)
	if got.IsGroupMember {
		t.Error("alice is not a group member yet")
	}
	if err := e.svc.RSVP(ctx, alice, v.ID); !errors.Is(err, ErrNotGroupMember) {
		t.Fatalf("expected ErrNotGroupMember, got %v", err)
	}

	e.repo.join(group, alice)
	if err := e.svc.RSVP(ctx, alice, v.ID); err != nil {
		t.Fatalf("RSVP after joining: %v", err)
	}
}

func TestRSVP_EventPassed(t *testing.T) {
	e := newTestEnv(t)
	v := e.create(t, nil, testNow.Add(-time.Hour))

	if err := e.svc.RSVP(context.Background(), alice, v.ID); !errors.Is(err, ErrEventPassed) {
		t.Fatalf("expected ErrEventPassed, got %v", err)
	}
}

func TestMarkAttendance_ErrorOrder(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	v := e.create(t, nil, testNow.Add(72*time.Hour))
	code := e.code(t, v.ID)

	if _, err := e.svc.MarkAttendance(ctx, alice, v.ID, code); !errors.Is(err, ErrNotRSVPd) {
		t.Fatalf("expected ErrNotRSVPd before RSVP, got %v", err)
	}

	if err := e.svc.RSVP(ctx, alice, v.ID); err != nil {
		t.Fatalf("RSVP: %v", err)
	}

	if _, err := e.svc.MarkAttendance(ctx, alice, v.ID, "  "); !errors.Is(err, ErrCodeRequired) {
		t.Errorf("expected ErrCodeRequired, got %v", err)
	}

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for _, bad := range []string{wrong, "12ab56", code + "1"} {
		if _, err := e.svc.MarkAttendance(ctx, alice, v.ID, bad); !errors.Is(err, ErrInvalidCode) {
			t.Errorf("code %q: expected ErrInvalidCode, got %v", bad, err)
		}
	}

	res, err := e.svc.MarkAttendance(ctx, alice, v.ID, code)
	if err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}
	if res.XPEarned != xp.RewardFor(xp.ReasonAttendSession) {
		t.Errorf("expected xp_earned %d, got %d", xp.RewardFor(xp.ReasonAttendSession), res.XPEarned)
	}
	if res.Detail != "Attendance marked successfully" {
		t.Errorf("unexpected detail %q", res.Detail)
	}

	if _, err := e.svc.MarkAttendance(ctx, alice, v.ID, code); !errors.Is(err, ErrAlreadyAttended) {
		t.Fatalf("expected ErrAlreadyAttended, got %v", err)
	}
	if n := e.repo.awardsFor(alice, xp.ReasonAttendSession); n != 1 {
		t.Errorf("expected exactly one attendance award, got %d", n)
	}

	got, _ := e.svc.Get(ctx, alice, v.ID)
	if !got.HasAttended || !got.IsAttending {
		t.Errorf("expected attended view, got is_attending=%v has_attended=%v", got.IsAttending, got.HasAttended)
	}
}

func TestCancelRSVP(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	v := e.create(t, nil, testNow.Add(72*time.Hour))

	if err := e.svc.CancelRSVP(ctx, alice, v.ID); !errors.Is(err, ErrNotRSVPd) {
		t.Fatalf("expected ErrNotRSVPd, got %v", err)
	}

	_ = e.svc.RSVP(ctx, alice, v.ID)
	if err := e.svc.CancelRSVP(ctx, alice, v.ID); err != nil {
		t.Fatalf("CancelRSVP: %v", err)
	}

	_ = e.svc.RSVP(ctx, alice, v.ID)
	if _, err := e.svc.MarkAttendance(ctx, alice, v.ID, e.code(t, v.ID)); err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}
	if err := e.svc.CancelRSVP(ctx, alice, v.ID); !errors.Is(err, ErrAlreadyAttended) {
		t.Fatalf("expected ErrAlreadyAttended, got %v", err)
	}
}

func TestResources(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	v := e.create(t, nil, testNow.Add(72*time.Hour))
	req := AddResourceRequest{Title: "Notes", Link: "https://example.com/notes.pdf"}

	if _, err := e.svc.AddResource(ctx, alice, v.ID, req); !errors.Is(err, ErrNotAttending) {
		t.Fatalf("expected ErrNotAttending, got %v", err)
	}
	if _, err := e.svc.Resources(ctx, alice, v.ID); !errors.Is(err, ErrNotAttending) {
		t.Fatalf("expected ErrNotAttending, got %v", err)
	}

	_ = e.svc.RSVP(ctx, alice, v.ID)
	_ = e.svc.RSVP(ctx, bob, v.ID)
	_ = e.svc.RSVP(ctx, host, v.ID)

	res, err := e.svc.AddResource(ctx, alice, v.ID, req)
	if err != nil {
		t.Fatalf("AddResource: %v", err)
	}
	if !res.IsOwner || !res.CanDelete {
		t.Errorf("owner should own and be able to delete: %+v", res)
	}

	list, err := e.svc.Resources(ctx, bob, v.ID)
	if err != nil {
		t.Fatalf("Resources: %v", err)
	}
	if len(list) != 1 || list[0].CanDelete || list[0].IsOwner {
		t.Fatalf("bob should see one undeletable resource, got %+v", list)
	}

	hostList, _ := e.svc.Resources(ctx, host, v.ID)
	if !hostList[0].CanDelete {
		t.Error("host should be able to delete any resource")
	}

	if err := e.svc.DeleteResource(ctx, bob, v.ID, res.ID); !errors.Is(err, ErrCannotDelete) {
		t.Fatalf("expected ErrCannotDelete, got %v", err)
	}
	if err := e.svc.DeleteResource(ctx, host, v.ID, res.ID); err != nil {
		t.Fatalf("host delete: %v", err)
	}
	if err := e.svc.DeleteResource(ctx, host, v.ID, res.ID); !errors.Is(err, ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound, got %v", err)
	}
}

func TestAttachmentUpload(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	v := e.create(t, nil, testNow.Add(72*time.Hour))
	_ = e.svc.RSVP(ctx, alice, v.ID)

	up, err := e.svc.NewAttachmentUpload(ctx, alice, v.ID, UploadURLRequest{FileName: "notes.pdf", ContentType: "application/pdf"})
	if err != nil {
		t.Fatalf("NewAttachmentUpload: %v", err)
	}
	if !strings.HasPrefix(up.Link, "https://study.example/api/sessions/") || !strings.HasSuffix(up.Link, "/attachments/abc-notes.pdf") {
		t.Errorf("unexpected link %q", up.Link)
	}

	url, err := e.svc.AttachmentURL(ctx, alice, v.ID, "abc-notes.pdf")
	if err != nil {
		t.Fatalf("AttachmentURL: %v", err)
	}
	if !strings.HasSuffix(url, up.FileKey) {
		t.Errorf("download url %q does not point at %q", url, up.FileKey)
	}

	if _, err := e.svc.AttachmentURL(ctx, alice, v.ID, "../other"); !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("expected traversal to be rejected, got %v", err)
	}
	if _, err := e.svc.NewAttachmentUpload(ctx, bob, v.ID, UploadURLRequest{FileName: "x.pdf", ContentType: "application/pdf"}); !errors.Is(err, ErrNotAttending) {
		t.Errorf("expected ErrNotAttending, got %v", err)
	}
}

func TestAttachmentUpload_Disabled(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, repo, xp.NewAnnouncer(nil, nil, logger.Discard()), Options{}, logger.Discard())

	if _, err := svc.NewAttachmentUpload(context.Background(), alice, 1, UploadURLRequest{}); !errors.Is(err, ErrUploadsDisabled) {
		t.Fatalf("expected ErrUploadsDisabled, got %v", err)
	}
}

func TestMessages(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	v := e.create(t, nil, testNow.Add(72*time.Hour))

	if _, err := e.svc.SendMessage(ctx, bob, v.ID, "hi"); !errors.Is(err, ErrNotAttending) {
		t.Fatalf("expected ErrNotAttending, got %v", err)
	}

	_ = e.svc.RSVP(ctx, alice, v.ID)
	_ = e.svc.RSVP(ctx, bob, v.ID)

	if _, err := e.svc.SendMessage(ctx, alice, v.ID, "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}

	first, err := e.svc.SendMessage(ctx, alice, v.ID, " hello ")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if first.Text != "hello" || !first.IsCurrentUser || first.SenderName != "Alice Smith" {
		t.Errorf("unexpected message %+v", first)
	}
	if _, err := e.svc.SendMessage(ctx, bob, v.ID, "hey"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	list, err := e.svc.Messages(ctx, bob, v.ID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(list) != 2 || list[0].Text != "hello" || list[1].SenderName != "bob" {
		t.Fatalf("unexpected messages %+v", list)
	}
	if list[0].IsCurrentUser || !list[1].IsCurrentUser {
		t.Error("is_current_user must be relative to the viewer")
	}
}

func TestDashboard(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		v := e.create(t, nil, testNow.Add(time.Duration(i+1)*24*time.Hour))
		_ = e.svc.RSVP(ctx, alice, v.ID)
	}

	d, err := e.svc.Dashboard(ctx, alice)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if len(d.UpcomingSessions) != DashboardUpcoming {
		t.Errorf("expected %d upcoming sessions, got %d", DashboardUpcoming, len(d.UpcomingSessions))
	}

	hostDash, _ := e.svc.Dashboard(ctx, host)
	if hostDash.Stats.SessionsHosted != 4 {
		t.Errorf("expected 4 hosted sessions, got %d", hostDash.Stats.SessionsHosted)
	}
	if hostDash.Stats.XP != 4*xp.RewardFor(xp.ReasonCreateSession) {
		t.Errorf("unexpected host xp %d", hostDash.Stats.XP)
	}
}

func TestProject_HasAttendedImpliesAttending(t *testing.T) {
	rec := &Record{
		Session:   Session{ID: 1, HostID: host, VerificationCode: "123456"},
		Attendees: []Attendee{{UserID: alice, Username: "alice", Attended: true}},
	}

	v := Project(rec, alice)
	if !v.HasAttended || !v.IsAttending {
		t.Errorf("expected attending and attended, got %+v", v)
	}
	if v.VerificationCode != "" {
		t.Error("code leaked to attendee")
	}

	anon := Project(rec, "")
	if anon.IsAttending || anon.HasAttended || anon.VerificationCode != "" {
		t.Errorf("anonymous projection leaked viewer state: %+v", anon)
	}
	if !anon.IsGroupMember {
		t.Error("sessions without a group are open to everyone")
	}
}

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode: %v", err)
		}
		if !validCode(code) {
			t.Fatalf("invalid code %q", code)
		}
	}
}
