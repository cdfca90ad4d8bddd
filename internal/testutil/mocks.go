// Package testutil provides in-memory repository implementations for tests.
// Conditional writes hold the store mutex so they behave like the Mongo
// filters they stand in for.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"taskflow/internal/model"
	"taskflow/internal/permission"
	"taskflow/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func page[T any](items []T, p model.Pagination) []T {
	start := int(p.Skip())
	if start >= len(items) {
		return []T{}
	}
	end := len(items)
	if p.Limit > 0 && start+p.Limit < end {
		end = start + p.Limit
	}
	return items[start:end]
}

func clone[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

type MockUserRepository struct {
	mu    sync.Mutex
	Users map[primitive.ObjectID]*model.User
	// FindErr, when set, fails every read.
	FindErr error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{Users: make(map[primitive.ObjectID]*model.User)}
}

// Add stores an active user with role and returns it.
func (m *MockUserRepository) Add(name string, role permission.Role) *model.User {
	now := time.Now()
	u := &model.User{
		ID:        primitive.NewObjectID(),
		Name:      name,
		Email:     name + "@example.com",
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.mu.Lock()
	m.Users[u.ID] = u
	m.mu.Unlock()
	return clone(u)
}

func (m *MockUserRepository) Create(_ context.Context, user *model.User) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.Email == user.Email {
			return nil, repository.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	m.Users[user.ID] = clone(user)
	return user, nil
}

func (m *MockUserRepository) FindByID(_ context.Context, id primitive.ObjectID) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	return clone(m.Users[id]), nil
}

func (m *MockUserRepository) FindByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	for _, u := range m.Users {
		if u.Email == email {
			return clone(u), nil
		}
	}
	return nil, nil
}

func (m *MockUserRepository) List(_ context.Context, filter model.UserFilter) ([]*model.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.User
	for _, u := range m.Users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, clone(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, filter.Pagination), int64(len(out)), nil
}

func (m *MockUserRepository) Update(_ context.Context, id primitive.ObjectID, update model.UserUpdate) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[id]
	if !ok {
		return nil, nil
	}
	if update.Email != nil {
		for _, other := range m.Users {
			if other.ID != id && other.Email == *update.Email {
				return nil, repository.ErrDuplicate
			}
		}
		u.Email = *update.Email
	}
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.Role != nil {
		u.Role = *update.Role
	}
	if update.Department != nil {
		u.Department = *update.Department
	}
	if update.Avatar != nil {
		u.Avatar = *update.Avatar
	}
	if update.IsActive != nil {
		u.IsActive = *update.IsActive
	}
	if update.TeamID != nil {
		teamID := *update.TeamID
		u.TeamID = &teamID
	}
	u.UpdatedAt = time.Now()
	return clone(u), nil
}

func (m *MockUserRepository) SetPassword(_ context.Context, id primitive.ObjectID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.Users[id]; ok {
		u.PasswordHash = hash
	}
	return nil
}

func (m *MockUserRepository) AssignTeam(_ context.Context, teamID primitive.ObjectID, userIDs []primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range userIDs {
		if u, ok := m.Users[id]; ok {
			t := teamID
			u.TeamID = &t
		}
	}
	return nil
}

func (m *MockUserRepository) ClearTeam(_ context.Context, teamID primitive.ObjectID, userID *primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.TeamID == nil || *u.TeamID != teamID {
			continue
		}
		if userID != nil && u.ID != *userID {
			continue
		}
		u.TeamID = nil
	}
	return nil
}

func (m *MockUserRepository) Delete(_ context.Context, id primitive.ObjectID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Users[id]
	delete(m.Users, id)
	return ok, nil
}

func (m *MockUserRepository) EnsureIndexes(context.Context) error { return nil }

// ---------------------------------------------------------------------------
// Tasks
// ---------------------------------------------------------------------------

type MockTaskRepository struct {
	mu    sync.Mutex
	Tasks map[primitive.ObjectID]*model.Task
	// UpdateAssigneeErr, when set, fails UpdateAssignee.
	UpdateAssigneeErr error
	// AssigneeWrites counts successful UpdateAssignee calls.
	AssigneeWrites int
}

func NewMockTaskRepository() *MockTaskRepository {
	return &MockTaskRepository{Tasks: make(map[primitive.ObjectID]*model.Task)}
}

// Add stores a todo task assigned to assignee and returns it.
func (m *MockTaskRepository) Add(title string, assignee, creator primitive.ObjectID) *model.Task {
	now := time.Now()
	t := &model.Task{
		ID:          primitive.NewObjectID(),
		Title:       title,
		Description: title,
		Status:      model.TaskStatusTodo,
		Priority:    model.PriorityMedium,
		AssignedTo:  assignee,
		AssignedBy:  creator,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.mu.Lock()
	m.Tasks[t.ID] = t
	m.mu.Unlock()
	return clone(t)
}

func (m *MockTaskRepository) Get(id primitive.ObjectID) *model.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.Tasks[id])
}

func (m *MockTaskRepository) Create(_ context.Context, task *model.Task) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task.ID = primitive.NewObjectID()
	m.Tasks[task.ID] = clone(task)
	return task, nil
}

func (m *MockTaskRepository) FindByID(_ context.Context, id primitive.ObjectID) (*model.Task, error) {
	return m.Get(id), nil
}

func (m *MockTaskRepository) List(_ context.Context, filter model.TaskFilter) ([]*model.Task, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Task
	for _, t := range m.Tasks {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && t.Priority != *filter.Priority {
			continue
		}
		if filter.AssignedTo != nil && t.AssignedTo != *filter.AssignedTo {
			continue
		}
		if filter.AssignedBy != nil && t.AssignedBy != *filter.AssignedBy {
			continue
		}
		if filter.ProjectID != "" && t.ProjectID != filter.ProjectID {
			continue
		}
		if filter.Scope != nil && t.AssignedTo != *filter.Scope && t.AssignedBy != *filter.Scope {
			continue
		}
		out = append(out, clone(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, filter.Pagination), int64(len(out)), nil
}

func (m *MockTaskRepository) Update(_ context.Context, id primitive.ObjectID, update model.TaskUpdate) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.Tasks[id]
	if !ok {
		return nil, nil
	}
	if update.Title != nil {
		t.Title = *update.Title
	}
	if update.Description != nil {
		t.Description = *update.Description
	}
	if update.Status != nil {
		t.Status = *update.Status
	}
	if update.Priority != nil {
		t.Priority = *update.Priority
	}
	if update.AssignedTo != nil {
		t.AssignedTo = *update.AssignedTo
	}
	if update.AssigneeChangedAt != nil {
		at := *update.AssigneeChangedAt
		t.AssigneeChangedAt = &at
	}
	if update.ProjectID != nil {
		t.ProjectID = *update.ProjectID
	}
	if update.DueDate != nil {
		d := *update.DueDate
		t.DueDate = &d
	}
	if update.CompletedAt != nil && t.CompletedAt == nil {
		c := *update.CompletedAt
		t.CompletedAt = &c
	}
	if update.Tags != nil {
		t.Tags = update.Tags
	}
	if update.Attachments != nil {
		t.Attachments = update.Attachments
	}
	if update.EstimatedHours != nil {
		t.EstimatedHours = *update.EstimatedHours
	}
	if update.ActualHours != nil {
		t.ActualHours = *update.ActualHours
	}
	t.UpdatedAt = time.Now()
	return clone(t), nil
}

func (m *MockTaskRepository) UpdateAssignee(_ context.Context, taskID, userID primitive.ObjectID, approvedAt time.Time) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateAssigneeErr != nil {
		return nil, m.UpdateAssigneeErr
	}
	t, ok := m.Tasks[taskID]
	if !ok || (t.AssigneeChangedAt != nil && t.AssigneeChangedAt.After(approvedAt)) {
		return nil, nil
	}
	t.AssignedTo = userID
	t.AssigneeChangedAt = &approvedAt
	t.UpdatedAt = time.Now()
	m.AssigneeWrites++
	return clone(t), nil
}

func (m *MockTaskRepository) SetUpdateAssigneeErr(err error) {
	m.mu.Lock()
	m.UpdateAssigneeErr = err
	m.mu.Unlock()
}

func (m *MockTaskRepository) Delete(_ context.Context, id primitive.ObjectID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Tasks[id]
	delete(m.Tasks, id)
	return ok, nil
}

func (m *MockTaskRepository) EnsureIndexes(context.Context) error { return nil }

// ---------------------------------------------------------------------------
// Assignments
// ---------------------------------------------------------------------------

type MockAssignmentRepository struct {
	mu          sync.Mutex
	Assignments map[primitive.ObjectID]*model.TaskAssignment
	// StatusWrites counts conditional status writes that matched.
	StatusWrites int
}

func NewMockAssignmentRepository() *MockAssignmentRepository {
	return &MockAssignmentRepository{Assignments: make(map[primitive.ObjectID]*model.TaskAssignment)}
}

func (m *MockAssignmentRepository) Get(id primitive.ObjectID) *model.TaskAssignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.Assignments[id])
}

// Put stores a copy of a as is.
func (m *MockAssignmentRepository) Put(a *model.TaskAssignment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	m.Assignments[a.ID] = clone(a)
}

func (m *MockAssignmentRepository) FindByID(_ context.Context, id primitive.ObjectID) (*model.TaskAssignment, error) {
	return m.Get(id), nil
}

func (m *MockAssignmentRepository) findActiveLocked(taskID, userID primitive.ObjectID) *model.TaskAssignment {
	for _, a := range m.Assignments {
		if a.TaskID == taskID && a.AssignedTo == userID && a.Status.Active() {
			return a
		}
	}
	return nil
}

func (m *MockAssignmentRepository) FindActive(_ context.Context, taskID, userID primitive.ObjectID) (*model.TaskAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.findActiveLocked(taskID, userID)), nil
}

// Insert enforces the active-pair uniqueness the partial index provides.
func (m *MockAssignmentRepository) Insert(_ context.Context, a *model.TaskAssignment) (*model.TaskAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.Status.Active() && m.findActiveLocked(a.TaskID, a.AssignedTo) != nil {
		return nil, repository.ErrDuplicate
	}
	a.ID = primitive.NewObjectID()
	m.Assignments[a.ID] = clone(a)
	return a, nil
}

func (m *MockAssignmentRepository) UpdateStatus(_ context.Context, id primitive.ObjectID, d model.AssignmentDecision) (*model.TaskAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Assignments[id]
	if !ok || a.Status != model.AssignmentPending {
		return nil, nil
	}
	a.Status = d.Status
	approver := d.DecidedBy
	a.ApprovedBy = &approver
	at := d.DecidedAt
	a.ApprovedAt = &at
	a.UpdatedAt = d.DecidedAt
	if d.Status == model.AssignmentRejected {
		a.RejectionReason = d.RejectionReason
	}
	if d.Status == model.AssignmentApproved {
		a.AssigneeSynced = false
	}
	if d.Notes != nil {
		a.Notes = *d.Notes
	}
	m.StatusWrites++
	return clone(a), nil
}

func (m *MockAssignmentRepository) UpdateNotes(_ context.Context, id primitive.ObjectID, notes string) (*model.TaskAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Assignments[id]
	if !ok || a.Status != model.AssignmentPending {
		return nil, nil
	}
	a.Notes = notes
	a.UpdatedAt = time.Now()
	return clone(a), nil
}

func (m *MockAssignmentRepository) DeletePending(_ context.Context, id primitive.ObjectID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Assignments[id]
	if !ok || a.Status != model.AssignmentPending {
		return false, nil
	}
	delete(m.Assignments, id)
	return true, nil
}

func (m *MockAssignmentRepository) DeleteByTask(_ context.Context, taskID primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, a := range m.Assignments {
		if a.TaskID == taskID {
			delete(m.Assignments, id)
			n++
		}
	}
	return n, nil
}

func (m *MockAssignmentRepository) List(_ context.Context, filter model.AssignmentFilter) ([]*model.TaskAssignment, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.TaskAssignment
	for _, a := range m.Assignments {
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		if filter.TaskID != nil && a.TaskID != *filter.TaskID {
			continue
		}
		if filter.AssignedTo != nil && a.AssignedTo != *filter.AssignedTo {
			continue
		}
		if filter.AssignedBy != nil && a.AssignedBy != *filter.AssignedBy {
			continue
		}
		if filter.Scope != nil && !a.Involves(*filter.Scope) {
			continue
		}
		out = append(out, clone(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, filter.Pagination), int64(len(out)), nil
}

func (m *MockAssignmentRepository) LatestApproved(_ context.Context, taskID primitive.ObjectID) (*model.TaskAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.TaskAssignment
	for _, a := range m.Assignments {
		if a.TaskID != taskID || a.Status != model.AssignmentApproved || a.ApprovedAt == nil {
			continue
		}
		if latest == nil || a.ApprovedAt.After(*latest.ApprovedAt) {
			latest = a
		}
	}
	return clone(latest), nil
}

func (m *MockAssignmentRepository) MarkSynced(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.Assignments[id]; ok && a.Status == model.AssignmentApproved {
		a.AssigneeSynced = true
	}
	return nil
}

func (m *MockAssignmentRepository) ListUnsynced(_ context.Context, limit int) ([]*model.TaskAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.TaskAssignment
	for _, a := range m.Assignments {
		if a.Status == model.AssignmentApproved && !a.AssigneeSynced {
			out = append(out, clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ApprovedAt.Before(*out[j].ApprovedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockAssignmentRepository) EnsureIndexes(context.Context) error { return nil }

// ---------------------------------------------------------------------------
// Teams
// ---------------------------------------------------------------------------

type MockTeamRepository struct {
	mu    sync.Mutex
	Teams map[primitive.ObjectID]*model.Team
}

func NewMockTeamRepository() *MockTeamRepository {
	return &MockTeamRepository{Teams: make(map[primitive.ObjectID]*model.Team)}
}

func cloneTeam(t *model.Team) *model.Team {
	if t == nil {
		return nil
	}
	c := *t
	c.MemberIDs = append([]primitive.ObjectID(nil), t.MemberIDs...)
	return &c
}

func (m *MockTeamRepository) Create(_ context.Context, team *model.Team) (*model.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	team.ID = primitive.NewObjectID()
	m.Teams[team.ID] = cloneTeam(team)
	return team, nil
}

func (m *MockTeamRepository) FindByID(_ context.Context, id primitive.ObjectID) (*model.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneTeam(m.Teams[id]), nil
}

func (m *MockTeamRepository) List(_ context.Context, filter model.TeamFilter) ([]*model.Team, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Team
	for _, t := range m.Teams {
		if filter.IsActive != nil && t.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, cloneTeam(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, filter.Pagination), int64(len(out)), nil
}

func (m *MockTeamRepository) Update(_ context.Context, id primitive.ObjectID, update model.TeamUpdate) (*model.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.Teams[id]
	if !ok {
		return nil, nil
	}
	if update.Name != nil {
		t.Name = *update.Name
	}
	if update.Description != nil {
		t.Description = *update.Description
	}
	if update.LeaderID != nil {
		t.LeaderID = *update.LeaderID
	}
	if update.MemberIDs != nil {
		t.MemberIDs = append([]primitive.ObjectID(nil), update.MemberIDs...)
	}
	if update.IsActive != nil {
		t.IsActive = *update.IsActive
	}
	t.UpdatedAt = time.Now()
	return cloneTeam(t), nil
}

func (m *MockTeamRepository) AddMember(_ context.Context, id, userID primitive.ObjectID) (*model.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.Teams[id]
	if !ok {
		return nil, nil
	}
	if !t.HasMember(userID) {
		t.MemberIDs = append(t.MemberIDs, userID)
	}
	return cloneTeam(t), nil
}

func (m *MockTeamRepository) RemoveMember(_ context.Context, id, userID primitive.ObjectID) (*model.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.Teams[id]
	if !ok {
		return nil, nil
	}
	kept := t.MemberIDs[:0]
	for _, member := range t.MemberIDs {
		if member != userID {
			kept = append(kept, member)
		}
	}
	t.MemberIDs = kept
	return cloneTeam(t), nil
}

func (m *MockTeamRepository) Delete(_ context.Context, id primitive.ObjectID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Teams[id]
	delete(m.Teams, id)
	return ok, nil
}

func (m *MockTeamRepository) EnsureIndexes(context.Context) error { return nil }

// ---------------------------------------------------------------------------
// Notices
// ---------------------------------------------------------------------------

type MockNoticeRepository struct {
	mu      sync.Mutex
	Notices map[primitive.ObjectID]*model.Notice
}

func NewMockNoticeRepository() *MockNoticeRepository {
	return &MockNoticeRepository{Notices: make(map[primitive.ObjectID]*model.Notice)}
}

func (m *MockNoticeRepository) Create(_ context.Context, notice *model.Notice) (*model.Notice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	notice.ID = primitive.NewObjectID()
	m.Notices[notice.ID] = clone(notice)
	return notice, nil
}

func (m *MockNoticeRepository) FindByID(_ context.Context, id primitive.ObjectID) (*model.Notice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.Notices[id]), nil
}

func (m *MockNoticeRepository) List(_ context.Context, filter model.NoticeFilter) ([]*model.Notice, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Notice
	for _, n := range m.Notices {
		if filter.Type != nil && n.Type != *filter.Type {
			continue
		}
		if filter.IsActive != nil && n.IsActive != *filter.IsActive {
			continue
		}
		if filter.TargetRole != nil && !n.TargetsRole(*filter.TargetRole) {
			continue
		}
		if filter.ActiveAt != nil && (!n.IsActive || n.IsExpired(*filter.ActiveAt)) {
			continue
		}
		out = append(out, clone(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, filter.Pagination), int64(len(out)), nil
}

func (m *MockNoticeRepository) Update(_ context.Context, id primitive.ObjectID, update model.NoticeUpdate) (*model.Notice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.Notices[id]
	if !ok {
		return nil, nil
	}
	if update.Title != nil {
		n.Title = *update.Title
	}
	if update.Content != nil {
		n.Content = *update.Content
	}
	if update.Type != nil {
		n.Type = *update.Type
	}
	if update.ScheduledDate != nil {
		d := *update.ScheduledDate
		n.ScheduledDate = &d
	}
	if update.ExpiryDate != nil {
		d := *update.ExpiryDate
		n.ExpiryDate = &d
	}
	if update.IsActive != nil {
		n.IsActive = *update.IsActive
	}
	if update.TargetRoles != nil {
		n.TargetRoles = update.TargetRoles
	}
	if update.ImageURL != nil {
		n.ImageURL = *update.ImageURL
	}
	if update.Attachments != nil {
		n.Attachments = update.Attachments
	}
	n.UpdatedAt = time.Now()
	return clone(n), nil
}

func (m *MockNoticeRepository) Delete(_ context.Context, id primitive.ObjectID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Notices[id]
	delete(m.Notices, id)
	return ok, nil
}

func (m *MockNoticeRepository) EnsureIndexes(context.Context) error { return nil }

// ---------------------------------------------------------------------------
// Password resets
// ---------------------------------------------------------------------------

type MockPasswordResetRepository struct {
	mu     sync.Mutex
	Resets map[primitive.ObjectID]*model.PasswordReset
}

func NewMockPasswordResetRepository() *MockPasswordResetRepository {
	return &MockPasswordResetRepository{Resets: make(map[primitive.ObjectID]*model.PasswordReset)}
}

func (m *MockPasswordResetRepository) Create(_ context.Context, reset *model.PasswordReset) (*model.PasswordReset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reset.ID = primitive.NewObjectID()
	m.Resets[reset.ID] = clone(reset)
	return reset, nil
}

func (m *MockPasswordResetRepository) DeleteByEmail(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.Resets {
		if r.Email == email {
			delete(m.Resets, id)
		}
	}
	return nil
}

func (m *MockPasswordResetRepository) FindActive(_ context.Context, email string, now time.Time) (*model.PasswordReset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.Resets {
		if r.Email == email && !r.Used && !r.IsExpired(now) {
			return clone(r), nil
		}
	}
	return nil, nil
}

func (m *MockPasswordResetRepository) FindByTokenHash(_ context.Context, tokenHash, email string, now time.Time) (*model.PasswordReset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.Resets {
		if r.TokenHash == tokenHash && r.Email == email && !r.Used && !r.IsExpired(now) {
			return clone(r), nil
		}
	}
	return nil, nil
}

func (m *MockPasswordResetRepository) RecordFailedAttempt(_ context.Context, id primitive.ObjectID, max int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.Resets[id]
	if !ok || r.Used {
		return max, nil
	}
	r.Attempts++
	if r.Attempts >= max {
		r.Used = true
	}
	return r.Attempts, nil
}

func (m *MockPasswordResetRepository) MarkUsed(_ context.Context, id primitive.ObjectID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.Resets[id]
	if !ok || r.Used {
		return false, nil
	}
	r.Used = true
	return true, nil
}

func (m *MockPasswordResetRepository) EnsureIndexes(context.Context) error { return nil }

// Compile-time interface checks.
var (
	_ repository.IUserRepository          = (*MockUserRepository)(nil)
	_ repository.ITaskRepository          = (*MockTaskRepository)(nil)
	_ repository.IAssignmentRepository    = (*MockAssignmentRepository)(nil)
	_ repository.ITeamRepository          = (*MockTeamRepository)(nil)
	_ repository.INoticeRepository        = (*MockNoticeRepository)(nil)
	_ repository.IPasswordResetRepository = (*MockPasswordResetRepository)(nil)
)
