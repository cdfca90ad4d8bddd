package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"taskflow/internal/model"
	"taskflow/internal/permission"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func request(t *testing.T, s *AssignmentService, caller *model.User, task *model.Task, to *model.User) *model.TaskAssignment {
	t.Helper()
	a, err := s.Request(context.Background(), caller.ID, &model.CreateAssignmentRequest{
		TaskID:     task.ID.Hex(),
		AssignedTo: to.ID.Hex(),
		Notes:      "please take this",
	})
	require.NoError(t, err)
	return a
}

func TestRequestCreatesPendingAssignment(t *testing.T) {
	f := newFixture()
	s := f.assignmentService()
	task := f.tasks.Add("T101", f.member.ID, f.member.ID)

	events, cancel := f.events.Subscribe()
	defer cancel()

	a := request(t, s, f.member, task, f.other)
	assert.Equal(t, model.AssignmentPending, a.Status)
	assert.Equal(t, f.member.ID, a.AssignedBy)
	assert.Equal(t, f.other.ID, a.AssignedTo)
	assert.Nil(t, a.ApprovedBy)
	assert.Nil(t, a.ApprovedAt)

	ev := <-events
	assert.Equal(t, EventAssignmentRequested, ev.Type)
	assert.Equal(t, a.ID.Hex(), ev.Assignment.ID)

	// the task is untouched until approval
	assert.Equal(t, f.member.ID, f.tasks.Get(task.ID).AssignedTo)
}

func TestRequestRejectsDuplicateActivePair(t *testing.T) {
	f := newFixture()
	s := f.assignmentService()
	task := f.tasks.Add("T101", f.member.ID, f.member.ID)
	ctx := context.Background()

	first := request(t, s, f.member, task, f.other)

	_, err := s.Request(ctx, f.hr.ID, &model.CreateAssignmentRequest{TaskID: task.ID.Hex(), AssignedTo: f.other.ID.Hex()})
	require.ErrorIs(t, err, ErrConflict)

	_, err = s.Reject(ctx, f.pm.ID, first.ID, "not now", nil)
	require.NoError(t, err)

	again, err := s.Request(ctx, f.hr.ID, &model.CreateAssignmentRequest{TaskID: task.ID.Hex(), AssignedTo: f.other.ID.Hex()})
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentPending, again.Status)
}

func TestRequestConflictsWithApprovedPair(t *testing.T) {
	f := newFixture()
	s := f.assignmentService()
	task := f.tasks.Add("T101", f.member.ID, f.member.ID)
	ctx := context.Background()

	a := request(t, s, f.member, task, f.other)
	_, err := s.Approve(ctx, f.pm.ID, a.ID, nil)
	require.NoError(t, err)

	_, err = s.Request(ctx, f.member.ID, &model.CreateAssignmentRequest{TaskID: task.ID.Hex(), AssignedTo: f.other.ID.Hex()})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRequestChecks(t *testing.T) {
	f := newFixture()
	s := f.assignmentService()
	task := f.tasks.Add("T101", f.member.ID, f.member.ID)
	intern := f.users.Add("intern", permission.Role("intern"))
	ctx := context.Background()

	tests := []struct {
		name   string
		caller primitive.ObjectID
		req    model.CreateAssignmentRequest
		want   error
	}{
		{"unknown role", intern.ID, model.CreateAssignmentRequest{TaskID: task.ID.Hex(), AssignedTo: f.other.ID.Hex()}, ErrPermissionDenied},
		{"missing task", f.member.ID, model.CreateAssignmentRequest{TaskID: primitive.NewObjectID().Hex(), AssignedTo: f.other.ID.Hex()}, ErrNotFound},
		{"missing target", f.member.ID, model.CreateAssignmentRequest{TaskID: task.ID.Hex(), AssignedTo: primitive.NewObjectID().Hex()}, ErrNotFound},
		{"bad task id", f.member.ID, model.CreateAssignmentRequest{TaskID: "nope", AssignedTo: f.other.ID.Hex()}, ErrValidation},
		{"unknown caller", primitive.NewObjectID(), model.CreateAssignmentRequest{TaskID: task.ID.Hex(), AssignedTo: f.other.ID.Hex()}, ErrUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Request(ctx, tt.caller, &tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.assignments.Assignments)
}

func TestApproveMovesTaskToTarget(t *testing.T) {
	f := newFixture()
	s := f.assignmentService()
	task := f.tasks.Add("T101", f.member.ID, f.member.ID)
	a := request(t, s, f.member, task, f.other)

	approved, err := s.Approve(context.Background(), f.pm.ID, a.ID, strPtr("  ok  "))
	require.NoError(t, err)

	assert.Equal(t, model.AssignmentApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, f.pm.ID, *approved.ApprovedBy)
	assert.NotNil(t, approved.ApprovedAt)
	assert.Equal(t, "ok", approved.Notes)
	assert.True(t, approved.AssigneeSynced)

	assert.Equal(t, f.other.ID, f.tasks.Get(task.ID).AssignedTo)
	assert.True(t, f.assignments.Get(a.ID).AssigneeSynced)
}

func TestRejectLeavesTaskAlone(t *testing.T) {
	f := newFixture()
	s := f.assignmentService()
	task := f.tasks.Add("T101", f.member.ID, f.member.ID)
	a := request(t, s, f.member, task, f.other)

	rejected, err := s.Reject(context.Background(), f.ceo.ID, a.ID, "  wrong person ", nil)
	require.NoError(t, err)

	assert.Equal(t, model.AssignmentRejected, rejected.Status)
	assert.Equal(t, "wrong person", rejected.RejectionReason)
	require.NotNil(t, rejected.ApprovedBy)
	assert.Equal(t, f.ceo.ID, *rejected.ApprovedBy)
	assert.Equal(t, f.member.ID, f.tasks.Get(task.ID).AssignedTo)
	assert.Zero(t, f.tasks.AssigneeWrites)
}

func TestBlankDecisionNotesKeepRequestNotes(t *testing.T) {
	f := newFixture()
	s := f.assignmentService()
	ctx := context.Background()
	task := f.tasks.Add("T101", f.member.ID, f.member.ID)

	a := request(t, s, f.member, task, f.other)
	approved, err := s.Approve(ctx, f.pm.ID, a.ID, strPtr(""))
	require.NoError(t, err)
	assert.Equal(t, "please take this", approved.Notes)

	b := request(t, s, f.member, task, f.hr)
	rejected, err := s.Reject(ctx, f.pm.ID, b.ID, "no", strPtr("  "))
	require.NoError(t, err)
	assert.Equal(t, "please take this", rejected.Notes)
	assert.Equal(t, "please take this", f.assignments.Get(b.ID).Notes)
}

func TestDecisionRequiresApprovalCapability(t *testing.T) {
	f := newFixture()
	s := f.assignmentService()
	task := f.tasks.Add("T101", f.member.ID, f.member.ID)
	a := request(t, s, f.member, task, f.other)
	ctx := context.Background()

	for _, u := range []*model.User{f.hr, f.member, f.other} {
		_, err := s.Approve(ctx, u.ID, a.ID, nil)
		assert.ErrorIs(t, err, ErrPermissionDenied)
		assert.Equal(t, "Insufficient permissions", Message(err))

		_, err = s.Reject(ctx, u.ID, a.ID, "no", nil)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	}
	assert.Zero(t, f.assignments.StatusWrites)
	assert.Equal(t, model.AssignmentPending, f.assignments.Get(a.ID).Status)
}

func TestInactiveApproverHasNoCapabilities(t *testing.T) {
	f := newFixture()
	s := f.assignmentService()
	task := f.tasks.Add("T101", f.member.ID, f.member.ID)
	a := request(t, s, f.member, task, f.other)

	inactive := false
	_, err := f.users.Update(context.Background(), f.pm.ID, model.UserUpdate{IsActive: &inactive})
	require.NoError(t, err)

	_, err = s.Approve(context.Background(), f.pm.ID, a.ID, nil)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestDecidingTerminalAssignmentIsInvalidState(t *testing.T) {
	f := newFixture()
	s := f.assignmentService()
	task := f.tasks.Add("T101", f.member.ID, f.member.ID)
	a := request(t, s, f.member, task, f.other)
	ctx := context.Background()

	_, err := s.Reject(ctx, f.pm.ID, a.ID, "no", nil)
	require.NoError(t, err)
	before := f.assignments.Get(a.ID)

	_, err = s.Approve(ctx, f.ceo.ID, a.ID, nil)
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, "Assignment has already been rejected", Message(err))

	_, err = s.Reject(ctx, f.ceo.ID, a.ID, "again", nil)
	require.ErrorIs(t, err, ErrInvalidState)

	assert.Equal(t, before, f.assignments.Get(a.ID))
	assert.Equal(t, f.member.ID, f.tasks.Get(task.ID).AssignedTo)
	assert.Equal(t, 1, f.assignments.StatusWrites)
}

func TestDecisionOnMissingAssignment(t *testing.T) {
	f := newFixture()
	s := f.assignmentService()

	_, err := s.Approve(context.Background(), f.pm.ID, primitive.NewObjectID(), nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRejectValidatesReasonBeforeReading(t *testing.T) {
	f := newFixture()
	s := f.assignmentService()
	f.users.FindErr = errors.New("store down")

	for _, reason := range []string{"", "   ", string(make([]byte, model.MaxRejectionReasonLength+1))} {
		_, err := s.Reject(context.Background(), f.pm.ID, primitive.NewObjectID(), reason, nil)
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestConcurrentApprovalsHaveOneWinner(t *testing.T) {
	f := newFixture()
	s := f.assignmentService()
	task := f.tasks.Add("T101", f.member.ID, f.member.ID)
	a := request(t, s, f.member, task, f.other)

	const deciders = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		lost int
	)
	for i := 0; i < deciders; i++ {
		approver := f.pm.ID
		if i%2 == 0 {
			approver = f.ceo.ID
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Approve(context.Background(), approver, a.ID, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrInvalidState):
				lost++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, deciders-1, lost)
	assert.Equal(t, 1, f.assignments.StatusWrites)
	assert.Equal(t, f.other.ID, f.tasks.Get(task.ID).AssignedTo)
}

func TestConcurrentApproveAndRejectHaveOneWinner(t *testing.T) {
	f := newFixture()
	s := f.assignmentService()
	task := f.tasks.Add("T101", f.member.ID, f.member.ID)
	a := request(t, s, f.member, task, f.other)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = s.Approve(context.Background(), f.pm.ID, a.ID, nil)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = s.Reject(context.Background(), f.ceo.ID, a.ID, "no", nil)
	}()
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInvalidState)
		}
	}
	assert.Equal(t, 1, succeeded)

	final := f.assignments.Get(a.ID)
	if final.Status == model.AssignmentApproved {
		assert.Equal(t, f.other.ID, f.tasks.Get(task.ID).AssignedTo)
	} else {
		assert.Equal(t, f.member.ID, f.tasks.Get(task.ID).AssignedTo)
	}
}

func TestAmend(t *testing.T) {
	f := newFixture()
	s := f.assignmentService()
	task := f.tasks.Add("T101", f.member.ID, f.member.ID)
	a := request(t, s, f.member, task, f.other)
	ctx := context.Background()

	_, err := s.Amend(ctx, f.other.ID, a.ID, "hijack")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	updated, err := s.Amend(ctx, f.member.ID, a.ID, " updated ")
	require.NoError(t, err)
	assert.Equal(t, "updated", updated.Notes)

	updated, err = s.Amend(ctx, f.pm.ID, a.ID, "by approver")
	require.NoError(t, err)
	assert.Equal(t, "by approver", updated.Notes)

	updated, err = s.Amend(ctx, f.member.ID, a.ID, "   ")
	require.NoError(t, err)
	assert.Equal(t, "by approver", updated.Notes)
	assert.Equal(t, "by approver", f.assignments.Get(a.ID).Notes)

	_, err = s.Approve(ctx, f.pm.ID, a.ID, nil)
	require.NoError(t, err)

	_, err = s.Amend(ctx, f.member.ID, a.ID, "late")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestWithdraw(t *testing.T) {
	f := newFixture()
	s := f.assignmentService()
	task := f.tasks.Add("T101", f.member.ID, f.member.ID)
	ctx := context.Background()

	a := request(t, s, f.member, task, f.other)
	assert.ErrorIs(t, s.Withdraw(ctx, f.other.ID, a.ID), ErrPermissionDenied)
	require.NoError(t, s.Withdraw(ctx, f.member.ID, a.ID))
	assert.Nil(t, f.assignments.Get(a.ID))
	assert.ErrorIs(t, s.Withdraw(ctx, f.member.ID, a.ID), ErrNotFound)

	b := request(t, s, f.member, task, f.other)
	_, err := s.Reject(ctx, f.pm.ID, b.ID, "no", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Withdraw(ctx, f.member.ID, b.ID), ErrInvalidState)
	assert.NotNil(t, f.assignments.Get(b.ID))
}

func TestViewAndListScope(t *testing.T) {
	f := newFixture()
	s := f.assignmentService()
	ctx := context.Background()
	task := f.tasks.Add("T101", f.member.ID, f.member.ID)
	mine := request(t, s, f.member, task, f.other)
	theirs := request(t, s, f.hr, task, f.pm)

	_, err := s.View(ctx, f.other.ID, mine.ID)
	require.NoError(t, err)
	_, err = s.View(ctx, f.other.ID, theirs.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = s.View(ctx, f.ceo.ID, theirs.ID)
	require.NoError(t, err)

	page, err := s.List(ctx, f.member.ID, model.AssignmentFilter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, mine.ID.Hex(), page.Items[0].ID)

	// a caller-supplied scope cannot widen the listing
	page, err = s.List(ctx, f.member.ID, model.AssignmentFilter{Scope: &f.hr.ID})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	page, err = s.List(ctx, f.pm.ID, model.AssignmentFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.EqualValues(t, 2, page.Total)
}

func TestApproveReportsAssigneeSyncFailure(t *testing.T) {
	f := newFixture()
	s := f.assignmentService()
	task := f.tasks.Add("T101", f.member.ID, f.member.ID)
	a := request(t, s, f.member, task, f.other)
	ctx := context.Background()

	f.tasks.SetUpdateAssigneeErr(errors.New("write timeout"))
	approved, err := s.Approve(ctx, f.pm.ID, a.ID, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAssigneeSync)

	var syncErr *AssigneeSyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, a.ID, syncErr.AssignmentID)
	assert.Equal(t, task.ID, syncErr.TaskID)

	require.NotNil(t, approved)
	assert.Equal(t, model.AssignmentApproved, approved.Status)
	assert.False(t, f.assignments.Get(a.ID).AssigneeSynced)
	assert.Equal(t, f.member.ID, f.tasks.Get(task.ID).AssignedTo)

	// retrying the approval is not a repair path
	_, err = s.Approve(ctx, f.pm.ID, a.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidState)

	f.tasks.SetUpdateAssigneeErr(nil)
	_, err = s.ResyncAssignee(ctx, f.member.ID, a.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	resynced, err := s.ResyncAssignee(ctx, f.pm.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, resynced.AssigneeSynced)
	assert.Equal(t, f.other.ID, f.tasks.Get(task.ID).AssignedTo)
	assert.True(t, f.assignments.Get(a.ID).AssigneeSynced)
}

func TestResyncRequiresApprovedAssignment(t *testing.T) {
	f := newFixture()
	s := f.assignmentService()
	task := f.tasks.Add("T101", f.member.ID, f.member.ID)
	a := request(t, s, f.member, task, f.other)

	_, err := s.ResyncAssignee(context.Background(), f.pm.ID, a.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestReconcileRepairsUnsyncedApprovals(t *testing.T) {
	f := newFixture()
	s := f.assignmentService()
	ctx := context.Background()
	t1 := f.tasks.Add("one", f.member.ID, f.member.ID)
	t2 := f.tasks.Add("two", f.member.ID, f.member.ID)
	a1 := request(t, s, f.member, t1, f.other)
	a2 := request(t, s, f.member, t2, f.hr)

	f.tasks.SetUpdateAssigneeErr(errors.New("unavailable"))
	_, err := s.Approve(ctx, f.pm.ID, a1.ID, nil)
	require.ErrorIs(t, err, ErrAssigneeSync)
	_, err = s.Approve(ctx, f.pm.ID, a2.ID, nil)
	require.ErrorIs(t, err, ErrAssigneeSync)

	repaired, err := s.ReconcileAssignees(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, repaired)

	f.tasks.SetUpdateAssigneeErr(nil)
	repaired, err = s.ReconcileAssignees(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, repaired)
	assert.Equal(t, f.other.ID, f.tasks.Get(t1.ID).AssignedTo)
	assert.Equal(t, f.hr.ID, f.tasks.Get(t2.ID).AssignedTo)

	repaired, err = s.ReconcileAssignees(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, repaired)
}

func TestSupersededApprovalDoesNotOverwriteAssignee(t *testing.T) {
	f := newFixture()
	s := f.assignmentService()
	ctx := context.Background()
	task := f.tasks.Add("T101", f.member.ID, f.member.ID)
	older := request(t, s, f.member, task, f.other)
	newer := request(t, s, f.member, task, f.hr)

	f.tasks.SetUpdateAssigneeErr(errors.New("unavailable"))
	_, err := s.Approve(ctx, f.pm.ID, older.ID, nil)
	require.ErrorIs(t, err, ErrAssigneeSync)

	f.tasks.SetUpdateAssigneeErr(nil)
	_, err = s.Approve(ctx, f.pm.ID, newer.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, f.hr.ID, f.tasks.Get(task.ID).AssignedTo)

	_, err = s.ResyncAssignee(ctx, f.pm.ID, older.ID)
	require.NoError(t, err)
	assert.Equal(t, f.hr.ID, f.tasks.Get(task.ID).AssignedTo)
	assert.True(t, f.assignments.Get(older.ID).AssigneeSynced)
}

func TestReconcileKeepsLaterDirectReassignment(t *testing.T) {
	f := newFixture()
	s := f.assignmentService()
	tasks := f.taskService()
	ctx := context.Background()
	task := f.tasks.Add("T101", f.member.ID, f.member.ID)
	a := request(t, s, f.member, task, f.other)

	f.tasks.SetUpdateAssigneeErr(errors.New("unavailable"))
	_, err := s.Approve(ctx, f.pm.ID, a.ID, nil)
	require.ErrorIs(t, err, ErrAssigneeSync)
	f.tasks.SetUpdateAssigneeErr(nil)

	_, err = tasks.Update(ctx, f.ceo.ID, task.ID, &model.UpdateTaskRequest{AssignedTo: strPtr(f.hr.ID.Hex())})
	require.NoError(t, err)
	require.Equal(t, f.hr.ID, f.tasks.Get(task.ID).AssignedTo)

	repaired, err := s.ReconcileAssignees(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)
	assert.Equal(t, f.hr.ID, f.tasks.Get(task.ID).AssignedTo)
	assert.True(t, f.assignments.Get(a.ID).AssigneeSynced)

	_, err = s.ResyncAssignee(ctx, f.pm.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, f.hr.ID, f.tasks.Get(task.ID).AssignedTo)
}

func TestApprovalAppliesAfterEarlierDirectReassignment(t *testing.T) {
	f := newFixture()
	s := f.assignmentService()
	tasks := f.taskService()
	ctx := context.Background()
	task := f.tasks.Add("T101", f.member.ID, f.member.ID)

	_, err := tasks.Update(ctx, f.ceo.ID, task.ID, &model.UpdateTaskRequest{AssignedTo: strPtr(f.hr.ID.Hex())})
	require.NoError(t, err)

	a := request(t, s, f.member, task, f.other)
	_, err = s.Approve(ctx, f.pm.ID, a.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, f.other.ID, f.tasks.Get(task.ID).AssignedTo)
}

func TestApproveOnDeletedTaskStillCommits(t *testing.T) {
	f := newFixture()
	s := f.assignmentService()
	ctx := context.Background()
	task := f.tasks.Add("T101", f.member.ID, f.member.ID)
	a := request(t, s, f.member, task, f.other)

	_, err := f.tasks.Delete(ctx, task.ID)
	require.NoError(t, err)

	approved, err := s.Approve(ctx, f.pm.ID, a.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentApproved, approved.Status)
}
