package service

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/taskflow/internal/cache"
	"github.com/iliyamo/taskflow/internal/config"
	"github.com/iliyamo/taskflow/internal/events"
	"github.com/iliyamo/taskflow/internal/model"
	"github.com/iliyamo/taskflow/internal/repository"
	"github.com/iliyamo/taskflow/internal/utils"
)

// fakeDB is an in-memory stand-in for MySQL shared by the fake stores.
type fakeDB struct {
	mu       sync.Mutex
	seq      int
	users    map[string]model.User
	projects map[string]model.Project
	members  map[string]model.Membership
	tasks    map[string]model.Task
	activity []model.ActivityLog
	otps     map[string]model.OTP
	reads    map[string]int
	fail     error
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		users:    map[string]model.User{},
		projects: map[string]model.Project{},
		members:  map[string]model.Membership{},
		tasks:    map[string]model.Task{},
		otps:     map[string]model.OTP{},
		reads:    map[string]int{},
	}
}

func (db *fakeDB) id(prefix string) string {
	db.seq++
	return fmt.Sprintf("%s%d", prefix, db.seq)
}

func (db *fakeDB) tick() time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(db.seq) * time.Second)
}

func (db *fakeDB) readCount(what string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.reads[what]
}

func memberKey(projectID, userID string) string { return projectID + "|" + userID }

func paginate[T any](rows []T, pg model.Pagination) []T {
	start := min(pg.Offset(), len(rows))
	end := min(start+pg.Limit, len(rows))
	return rows[start:end]
}

type fakeUsers struct{ *fakeDB }

func (f fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, other := range f.users {
		if other.Email == u.Email {
			return repository.ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = f.id("u")
	}
	if u.Status == "" {
		u.Status = model.UserActive
	}
	u.CreatedAt = f.tick()
	f.users[u.ID] = *u
	return nil
}

func (f fakeUsers) GetByID(_ context.Context, id string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads["user"]++
	if f.fail != nil {
		return model.User{}, f.fail
	}
	u, ok := f.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (f fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return model.User{}, f.fail
	}
	// Exact match: callers are expected to normalize.
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f fakeUsers) update(id string, fn func(*model.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&u)
	f.users[id] = u
	return nil
}

func (f fakeUsers) UpdateName(_ context.Context, id, name string) error {
	return f.update(id, func(u *model.User) { u.Name = name })
}

func (f fakeUsers) UpdatePassword(_ context.Context, id, hash string) error {
	return f.update(id, func(u *model.User) { u.PasswordHash = hash })
}

func (f fakeUsers) MarkVerified(ctx context.Context, email string) error {
	u, err := f.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	return f.update(u.ID, func(u *model.User) { u.Verified = true })
}

func (f fakeUsers) SetStatus(_ context.Context, id string, st model.UserStatus) error {
	return f.update(id, func(u *model.User) { u.Status = st })
}

func (f fakeUsers) setStatus(id string, st model.UserStatus) {
	_ = f.SetStatus(context.Background(), id, st)
}

type fakeTokens struct{ *fakeDB }

func (f fakeTokens) StoreRefresh(_ context.Context, userID, hash string) error {
	return fakeUsers(f).update(userID, func(u *model.User) { u.RefreshTokenHash = hash })
}

func (f fakeTokens) RefreshHash(ctx context.Context, userID string) (string, error) {
	u, err := fakeUsers(f).GetByID(ctx, userID)
	return u.RefreshTokenHash, err
}

func (f fakeTokens) SwapRefresh(_ context.Context, userID, oldHash, newHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok || u.RefreshTokenHash != oldHash {
		return false, nil
	}
	u.RefreshTokenHash = newHash
	f.users[userID] = u
	return true, nil
}

func (f fakeTokens) ClearRefresh(_ context.Context, userID string) error {
	return fakeUsers(f).update(userID, func(u *model.User) { u.RefreshTokenHash = "" })
}

type fakeOTPs struct{ *fakeDB }

func (f fakeOTPs) Upsert(_ context.Context, o model.OTP) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o.Attempts = 0
	f.otps[o.Email] = o
	return nil
}

func (f fakeOTPs) Get(_ context.Context, email string) (model.OTP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.otps[strings.ToLower(email)]
	if !ok {
		return model.OTP{}, repository.ErrNotFound
	}
	return o, nil
}

func (f fakeOTPs) IncrementAttempts(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.otps[email]
	o.Attempts++
	f.otps[email] = o
	return nil
}

func (f fakeOTPs) Delete(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.otps, email)
	return nil
}

func (f fakeOTPs) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, o := range f.otps {
		if o.ExpiresAt.Before(now) {
			delete(f.otps, k)
			n++
		}
	}
	return n, nil
}

type fakeProjects struct{ *fakeDB }

func (f fakeProjects) Create(_ context.Context, p *model.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	p.ID = f.id("p")
	if p.Visibility == "" {
		p.Visibility = model.Public
	}
	p.CreatedAt = f.tick()
	f.projects[p.ID] = *p
	f.members[memberKey(p.ID, p.OwnerID)] = model.Membership{
		ID: f.id("m"), UserID: p.OwnerID, ProjectID: p.ID, Role: model.RoleAdmin, CreatedAt: f.tick(),
	}
	return nil
}

func (f fakeProjects) GetByID(_ context.Context, id string) (model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads["project"]++
	if f.fail != nil {
		return model.Project{}, f.fail
	}
	p, ok := f.projects[id]
	if !ok || p.IsDeleted {
		return model.Project{}, repository.ErrNotFound
	}
	return p, nil
}

func (f fakeProjects) ListVisible(_ context.Context, userID string, pg model.Pagination) ([]model.Project, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Project
	for _, p := range f.projects {
		_, member := f.members[memberKey(p.ID, userID)]
		if !p.IsDeleted && (p.Visibility == model.Public || member) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, pg), len(out), nil
}

func (f fakeProjects) Update(_ context.Context, p *model.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	cur, ok := f.projects[p.ID]
	if !ok || cur.IsDeleted {
		return repository.ErrNotFound
	}
	f.projects[p.ID] = *p
	return nil
}

func (f fakeProjects) SoftDelete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok || p.IsDeleted {
		return repository.ErrNotFound
	}
	now := f.tick()
	p.IsDeleted, p.DeletedAt = true, &now
	f.projects[id] = p
	for tid, t := range f.tasks {
		if t.ProjectID == id && !t.IsDeleted {
			t.IsDeleted, t.DeletedAt = true, &now
			f.tasks[tid] = t
		}
	}
	return nil
}

func (f fakeProjects) PurgeDeleted(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, p := range f.projects {
		if p.IsDeleted && p.DeletedAt.Before(cutoff) {
			delete(f.projects, id)
			n++
		}
	}
	return n, nil
}

type fakeMembers struct{ *fakeDB }

func (f fakeMembers) Get(_ context.Context, projectID, userID string) (model.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads["member"]++
	m, ok := f.members[memberKey(projectID, userID)]
	if !ok {
		return model.Membership{}, repository.ErrNotFound
	}
	return m, nil
}

func (f fakeMembers) Add(_ context.Context, m *model.Membership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := memberKey(m.ProjectID, m.UserID)
	if _, ok := f.members[k]; ok {
		return repository.ErrConflict
	}
	m.ID = f.id("m")
	m.CreatedAt = f.tick()
	f.members[k] = *m
	return nil
}

func (f fakeMembers) UpdateRole(_ context.Context, projectID, userID string, role model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := memberKey(projectID, userID)
	m, ok := f.members[k]
	if !ok {
		return repository.ErrNotFound
	}
	m.Role = role
	f.members[k] = m
	return nil
}

func (f fakeMembers) Remove(_ context.Context, projectID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := memberKey(projectID, userID)
	if _, ok := f.members[k]; !ok {
		return repository.ErrNotFound
	}
	delete(f.members, k)
	return nil
}

func (f fakeMembers) List(_ context.Context, projectID string, pg model.Pagination) ([]model.MemberView, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.MemberView
	for _, m := range f.members {
		if m.ProjectID == projectID {
			u := f.users[m.UserID]
			out = append(out, model.MemberView{Membership: m, Name: u.Name, Email: u.Email})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, pg), len(out), nil
}

func (f fakeMembers) UserIDs(_ context.Context, projectID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, m := range f.members {
		if m.ProjectID == projectID {
			ids = append(ids, m.UserID)
		}
	}
	return ids, nil
}

func (f fakeMembers) ProjectIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, m := range f.members {
		if m.UserID == userID {
			ids = append(ids, m.ProjectID)
		}
	}
	return ids, nil
}

type fakeTasks struct{ *fakeDB }

func (f fakeTasks) Create(_ context.Context, t *model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	t.ID = f.id("t")
	if t.Status == "" {
		t.Status = model.TaskTodo
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	t.CreatedAt = f.tick()
	t.UpdatedAt = t.CreatedAt
	f.tasks[t.ID] = *t
	return nil
}

func (f fakeTasks) GetByID(_ context.Context, id string) (model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads["task"]++
	if f.fail != nil {
		return model.Task{}, f.fail
	}
	t, ok := f.tasks[id]
	if !ok || t.IsDeleted {
		return model.Task{}, repository.ErrNotFound
	}
	return t, nil
}

func (f fakeTasks) Update(_ context.Context, t *model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	cur, ok := f.tasks[t.ID]
	if !ok || cur.IsDeleted {
		return repository.ErrNotFound
	}
	f.seq++
	t.UpdatedAt = f.tick()
	f.tasks[t.ID] = *t
	return nil
}

func (f fakeTasks) SoftDelete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok || t.IsDeleted {
		return repository.ErrNotFound
	}
	now := f.tick()
	t.IsDeleted, t.DeletedAt = true, &now
	f.tasks[id] = t
	return nil
}

func (f fakeTasks) filter(keep func(model.Task) bool, pg model.Pagination) ([]model.Task, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Task
	for _, t := range f.tasks {
		if !t.IsDeleted && keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return paginate(out, pg), len(out), nil
}

func (f fakeTasks) ListByProject(_ context.Context, projectID string, flt model.TaskFilter, pg model.Pagination) ([]model.Task, int, error) {
	return f.filter(func(t model.Task) bool {
		return t.ProjectID == projectID &&
			(flt.Status == "" || t.Status == flt.Status) &&
			(flt.Priority == "" || t.Priority == flt.Priority) &&
			(flt.Search == "" || strings.Contains(t.Title, strings.TrimSpace(flt.Search)))
	}, pg)
}

func (f fakeTasks) ListByAssignee(_ context.Context, userID string, pg model.Pagination) ([]model.Task, int, error) {
	return f.filter(func(t model.Task) bool { return t.AssignedToID == userID }, pg)
}

func (f fakeTasks) RefsByProject(_ context.Context, projectID string) ([]repository.TaskRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var refs []repository.TaskRef
	for _, t := range f.tasks {
		if t.ProjectID == projectID && !t.IsDeleted {
			refs = append(refs, repository.TaskRef{ID: t.ID, AssignedToID: t.AssignedToID})
		}
	}
	return refs, nil
}

func (f fakeTasks) PurgeDeleted(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, t := range f.tasks {
		if t.IsDeleted && t.DeletedAt.Before(cutoff) {
			delete(f.tasks, id)
			n++
		}
	}
	return n, nil
}

type fakeActivity struct{ *fakeDB }

func (f fakeActivity) Append(_ context.Context, l model.ActivityLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	for _, e := range f.activity {
		if e.ID == l.ID {
			return nil
		}
	}
	f.activity = append(f.activity, l)
	return nil
}

func (f fakeActivity) ListByProject(_ context.Context, projectID string, pg model.Pagination) ([]model.ActivityLog, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ActivityLog
	for i := len(f.activity) - 1; i >= 0; i-- {
		if f.activity[i].ProjectID == projectID {
			out = append(out, f.activity[i])
		}
	}
	return paginate(out, pg), len(out), nil
}

func (f fakeActivity) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.activity[:0]
	var n int64
	for _, e := range f.activity {
		if e.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	f.activity = kept
	return n, nil
}

// recordingBus captures emitted events synchronously.
type recordingBus struct {
	mu  sync.Mutex
	got []events.Event
}

func (b *recordingBus) Emit(e events.Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, e)
	return true
}

func (b *recordingBus) actions() []model.ActivityAction {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.ActivityAction, len(b.got))
	for i, e := range b.got {
		out[i] = e.Action
	}
	return out
}

type sentMail struct{ to, subject, body string }

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

var otpPattern = regexp.MustCompile(`\b\d{6}\b`)

func (m *fakeMailer) lastOTP(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	code := otpPattern.FindString(m.sent[len(m.sent)-1].body)
	require.NotEmpty(t, code)
	return code
}

var tokenPattern = regexp.MustCompile(`token=([^\s]+)`)

func (m *fakeMailer) lastInviteToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	match := tokenPattern.FindStringSubmatch(m.sent[len(m.sent)-1].body)
	require.Len(t, match, 2)
	return match[1]
}

const (
	testAccessSecret  = "access-secret-for-tests"
	testRefreshSecret = "refresh-secret-for-tests"
	testInviteSecret  = "invite-secret-for-tests"
)

// harness wires every service over one fakeDB and an in-memory cache.
type harness struct {
	db       *fakeDB
	store    *cache.MemoryStore
	cache    *cache.Layer
	bus      *recordingBus
	mail     *fakeMailer
	tokens   *TokenService
	gate     *AuthGate
	resolver *MembershipResolver
	projects *ProjectService
	members  *MemberService
	tasks    *TaskService
	users    *UserService
	auth     *AuthService
	activity *ActivityLogger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		db:    newFakeDB(),
		store: cache.NewMemoryStore(),
		bus:   &recordingBus{},
		mail:  &fakeMailer{},
	}
	h.cache = cache.New(h.store, config.CacheConfig{Enabled: true, TTL: time.Minute, Prefix: "test"}, nil, nil)
	users := fakeUsers{h.db}
	members := fakeMembers{h.db}
	projects := fakeProjects{h.db}
	tasks := fakeTasks{h.db}

	h.tokens = NewTokenService(TokenConfig{
		AccessSecret: testAccessSecret, RefreshSecret: testRefreshSecret,
		AccessTTL: 15 * time.Minute, RefreshTTL: 7 * 24 * time.Hour,
	}, fakeTokens{h.db}, nil, nil)
	h.gate = NewAuthGate(h.tokens, users, true, nil)
	h.projects = NewProjectService(projects, members, tasks, h.cache, h.bus, nil)
	h.tasks = NewTaskService(tasks, members, h.projects, h.cache, h.bus, nil)
	h.resolver = NewMembershipResolver(h.projects, h.tasks)
	h.members = NewMemberService(projects, members, users, h.cache, h.bus, h.mail, InviteConfig{
		Secret: testInviteSecret, TTL: time.Hour, BaseURL: "http://app.test", BcryptCost: 4,
	}, nil)
	h.users = NewUserService(users, members, h.tokens, h.cache, 4, nil)
	h.auth = NewAuthService(users, fakeOTPs{h.db}, h.tokens, h.cache, h.mail, 4, true, nil)
	h.activity = NewActivityLogger(fakeActivity{h.db})
	return h
}

// user creates a verified, active account.
func (h *harness) user(t *testing.T, name string) model.User {
	t.Helper()
	hash, err := utils.HashPassword("password123", 4)
	require.NoError(t, err)
	u := model.User{Name: name, Email: strings.ToLower(name) + "@example.com", PasswordHash: hash, Verified: true}
	require.NoError(t, fakeUsers{h.db}.Create(context.Background(), &u))
	return u
}

// project creates a project owned by owner and adds the given members.
func (h *harness) project(t *testing.T, owner model.User, vis model.Visibility, members map[string]model.Role) model.Project {
	t.Helper()
	ctx := context.Background()
	p, err := h.projects.Create(ctx, owner.ID, ProjectInput{Name: "Project of " + owner.Name, Visibility: vis})
	require.NoError(t, err)
	for uid, role := range members {
		_, err := h.members.Add(ctx, owner.ID, p.ID, uid, role)
		require.NoError(t, err)
	}
	return p
}
