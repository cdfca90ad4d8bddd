package service

import (
	"sync"
	"time"

	"taskflow/internal/model"
	"taskflow/internal/permission"
	"taskflow/internal/testutil"
)

// stepClock returns a strictly increasing time on every call.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	users       *testutil.MockUserRepository
	tasks       *testutil.MockTaskRepository
	assignments *testutil.MockAssignmentRepository
	teams       *testutil.MockTeamRepository
	notices     *testutil.MockNoticeRepository
	resets      *testutil.MockPasswordResetRepository
	events      *EventHub
	clock       *stepClock

	ceo    *model.User
	pm     *model.User
	hr     *model.User
	member *model.User
	other  *model.User
}

func newFixture() *fixture {
	f := &fixture{
		users:       testutil.NewMockUserRepository(),
		tasks:       testutil.NewMockTaskRepository(),
		assignments: testutil.NewMockAssignmentRepository(),
		teams:       testutil.NewMockTeamRepository(),
		notices:     testutil.NewMockNoticeRepository(),
		resets:      testutil.NewMockPasswordResetRepository(),
		events:      NewEventHub(64),
		clock:       newStepClock(),
	}
	f.ceo = f.users.Add("ceo", permission.RoleCEO)
	f.pm = f.users.Add("pm", permission.RoleProjectManager)
	f.hr = f.users.Add("hr", permission.RoleHR)
	f.member = f.users.Add("member", permission.RoleTeamMember)
	f.other = f.users.Add("other", permission.RoleTeamMember)
	return f
}

func (f *fixture) assignmentService() *AssignmentService {
	s := NewAssignmentService(f.assignments, f.tasks, f.users, f.events)
	s.now = f.clock.Now
	return s
}

func (f *fixture) taskService() *TaskService {
	s := NewTaskService(f.tasks, f.assignments, f.users)
	s.now = f.clock.Now
	return s
}

func (f *fixture) teamService() *TeamService {
	s := NewTeamService(f.teams, f.users)
	s.now = f.clock.Now
	return s
}

func (f *fixture) noticeService() *NoticeService {
	s := NewNoticeService(f.notices, f.users)
	s.now = f.clock.Now
	return s
}

func strPtr(s string) *string { return &s }
