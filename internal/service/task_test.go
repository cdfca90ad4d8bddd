package service

import (
	"context"
	"testing"

	"taskflow/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTaskRequest(assignee primitive.ObjectID) *model.CreateTaskRequest {
	return &model.CreateTaskRequest{
		Title:       " Write report ",
		Description: "Quarterly numbers",
		AssignedTo:  assignee.Hex(),
		Tags:        []string{" q3 ", "", "finance"},
	}
}

func TestCreateTask(t *testing.T) {
	f := newFixture()
	s := f.taskService()
	ctx := context.Background()

	task, err := s.Create(ctx, f.member.ID, newTaskRequest(f.member.ID))
	require.NoError(t, err)
	assert.Equal(t, "Write report", task.Title)
	assert.Equal(t, model.TaskStatusTodo, task.Status)
	assert.Equal(t, model.PriorityMedium, task.Priority)
	assert.Equal(t, []string{"q3", "finance"}, task.Tags)
	assert.Equal(t, f.member.ID, task.AssignedBy)

	_, err = s.Create(ctx, f.member.ID, newTaskRequest(f.other.ID))
	assert.ErrorIs(t, err, ErrPermissionDenied)

	task, err = s.Create(ctx, f.pm.ID, newTaskRequest(f.other.ID))
	require.NoError(t, err)
	assert.Equal(t, f.other.ID, task.AssignedTo)

	_, err = s.Create(ctx, f.pm.ID, newTaskRequest(primitive.NewObjectID()))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskVisibility(t *testing.T) {
	f := newFixture()
	s := f.taskService()
	ctx := context.Background()
	task := f.tasks.Add("mine", f.member.ID, f.hr.ID)

	for _, u := range []*model.User{f.member, f.hr, f.pm, f.ceo} {
		_, err := s.Get(ctx, u.ID, task.ID)
		assert.NoError(t, err, u.Name)
	}
	_, err := s.Get(ctx, f.other.ID, task.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = s.Get(ctx, f.member.ID, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTasksIsScoped(t *testing.T) {
	f := newFixture()
	s := f.taskService()
	ctx := context.Background()
	f.tasks.Add("assigned", f.member.ID, f.pm.ID)
	f.tasks.Add("created", f.other.ID, f.member.ID)
	f.tasks.Add("unrelated", f.other.ID, f.pm.ID)

	page, err := s.List(ctx, f.member.ID, model.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	page, err = s.List(ctx, f.pm.ID, model.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	assert.Equal(t, 1, page.CurrentPage)
	assert.Equal(t, 10, page.PageSize)

	_, err = s.ListForUser(ctx, f.member.ID, f.other.ID, model.TaskFilter{})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	page, err = s.ListForUser(ctx, f.ceo.ID, f.other.ID, model.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	page, err = s.ListForUser(ctx, f.member.ID, f.member.ID, model.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestCompletedAtIsSetOnce(t *testing.T) {
	f := newFixture()
	s := f.taskService()
	ctx := context.Background()
	task := f.tasks.Add("finish me", f.member.ID, f.member.ID)

	done, err := s.Update(ctx, f.member.ID, task.ID, &model.UpdateTaskRequest{Status: strPtr("completed")})
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	first := *done.CompletedAt

	reopened, err := s.Update(ctx, f.member.ID, task.ID, &model.UpdateTaskRequest{Status: strPtr("inProgress")})
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusInProgress, reopened.Status)
	require.NotNil(t, reopened.CompletedAt)
	assert.Equal(t, first, *reopened.CompletedAt)

	again, err := s.Update(ctx, f.member.ID, task.ID, &model.UpdateTaskRequest{Status: strPtr("completed")})
	require.NoError(t, err)
	assert.Equal(t, first, *again.CompletedAt)
}

func TestUpdateTaskPermissions(t *testing.T) {
	f := newFixture()
	s := f.taskService()
	ctx := context.Background()
	task := f.tasks.Add("shared", f.member.ID, f.member.ID)

	_, err := s.Update(ctx, f.other.ID, task.ID, &model.UpdateTaskRequest{Title: strPtr("mine now")})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = s.Update(ctx, f.member.ID, task.ID, &model.UpdateTaskRequest{AssignedTo: strPtr(f.other.ID.Hex())})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	// naming the current assignee is not a reassignment
	_, err = s.Update(ctx, f.member.ID, task.ID, &model.UpdateTaskRequest{AssignedTo: strPtr(f.member.ID.Hex())})
	require.NoError(t, err)

	updated, err := s.Update(ctx, f.pm.ID, task.ID, &model.UpdateTaskRequest{AssignedTo: strPtr(f.other.ID.Hex())})
	require.NoError(t, err)
	assert.Equal(t, f.other.ID, updated.AssignedTo)

	_, err = s.Update(ctx, f.pm.ID, task.ID, &model.UpdateTaskRequest{Title: strPtr("  ")})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDeleteTaskCascadesAssignments(t *testing.T) {
	f := newFixture()
	s := f.taskService()
	assignments := f.assignmentService()
	ctx := context.Background()
	task := f.tasks.Add("doomed", f.member.ID, f.member.ID)
	keep := f.tasks.Add("kept", f.member.ID, f.member.ID)

	pending := request(t, assignments, f.member, task, f.other)
	rejected := request(t, assignments, f.member, task, f.hr)
	_, err := assignments.Reject(ctx, f.pm.ID, rejected.ID, "no", nil)
	require.NoError(t, err)
	unrelated := request(t, assignments, f.member, keep, f.other)

	assert.ErrorIs(t, s.Delete(ctx, f.other.ID, task.ID), ErrPermissionDenied)
	require.NoError(t, s.Delete(ctx, f.member.ID, task.ID))

	assert.Nil(t, f.tasks.Get(task.ID))
	assert.Nil(t, f.assignments.Get(pending.ID))
	assert.Nil(t, f.assignments.Get(rejected.ID))
	assert.NotNil(t, f.assignments.Get(unrelated.ID))

	assert.ErrorIs(t, s.Delete(ctx, f.member.ID, task.ID), ErrNotFound)
}

func TestAssigneeCannotDeleteTask(t *testing.T) {
	f := newFixture()
	s := f.taskService()
	task := f.tasks.Add("given", f.member.ID, f.pm.ID)

	assert.ErrorIs(t, s.Delete(context.Background(), f.member.ID, task.ID), ErrPermissionDenied)
	require.NoError(t, s.Delete(context.Background(), f.ceo.ID, task.ID))
}
