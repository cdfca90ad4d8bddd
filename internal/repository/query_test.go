package repository

import (
	"errors"
	"testing"
	"time"

	"taskflow/internal/model"
	"taskflow/internal/permission"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestAssignmentQueryScopeAndFilters(t *testing.T) {
	caller := primitive.NewObjectID()
	task := primitive.NewObjectID()
	status := model.AssignmentPending

	q := assignmentQuery(model.AssignmentFilter{Status: &status, TaskID: &task, Scope: &caller})

	assert.Equal(t, model.AssignmentPending, q["status"])
	assert.Equal(t, task, q["taskId"])
	or, ok := q["$or"].(bson.A)
	require.True(t, ok)
	assert.Len(t, or, 2)
	assert.Contains(t, or, bson.M{"assignedBy": caller})
	assert.Contains(t, or, bson.M{"assignedTo": caller})
}

func TestAssignmentQueryEmpty(t *testing.T) {
	assert.Empty(t, assignmentQuery(model.AssignmentFilter{}))
}

func TestDecisionSet(t *testing.T) {
	approver := primitive.NewObjectID()
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	notes := "ok"

	set := decisionSet(model.AssignmentDecision{
		Status:    model.AssignmentApproved,
		DecidedBy: approver,
		DecidedAt: at,
		Notes:     &notes,
	})
	assert.Equal(t, model.AssignmentApproved, set["status"])
	assert.Equal(t, approver, set["approvedBy"])
	assert.Equal(t, at, set["approvedAt"])
	assert.Equal(t, false, set["assigneeSynced"])
	assert.Equal(t, "ok", set["notes"])
	assert.NotContains(t, set, "rejectionReason")

	set = decisionSet(model.AssignmentDecision{
		Status:          model.AssignmentRejected,
		DecidedBy:       approver,
		DecidedAt:       at,
		RejectionReason: "busy",
	})
	assert.Equal(t, "busy", set["rejectionReason"])
	assert.NotContains(t, set, "assigneeSynced")
	assert.NotContains(t, set, "notes")
}

func TestTaskQuery(t *testing.T) {
	user := primitive.NewObjectID()
	status := model.TaskStatusInProgress
	q := taskQuery(model.TaskFilter{Status: &status, ProjectID: "apollo", Scope: &user})

	assert.Equal(t, model.TaskStatusInProgress, q["status"])
	assert.Equal(t, "apollo", q["projectId"])
	assert.Contains(t, q, "$or")
}

func TestTaskSetOnlyChangedFields(t *testing.T) {
	title := "new"
	now := time.Now()
	set := taskSet(model.TaskUpdate{Title: &title}, now)
	assert.Equal(t, bson.M{"title": "new", "updatedAt": now}, set)
}

func TestNoticeQueryCombinesConditions(t *testing.T) {
	role := permission.RoleHR
	now := time.Now()
	q := noticeQuery(model.NoticeFilter{TargetRole: &role, ActiveAt: &now})

	assert.Equal(t, true, q["isActive"])
	and, ok := q["$and"].(bson.A)
	require.True(t, ok)
	assert.Len(t, and, 2)
	assert.NotContains(t, q, "$or")
}

func TestUserQuery(t *testing.T) {
	role := permission.RoleCEO
	active := true
	q := userQuery(model.UserFilter{Role: &role, IsActive: &active})
	assert.Equal(t, bson.M{"role": permission.RoleCEO, "isActive": true}, q)
}

func TestWrapWriteErrDuplicate(t *testing.T) {
	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	err := wrapWriteErr("insert assignment", dup)
	assert.True(t, errors.Is(err, ErrDuplicate))

	other := wrapWriteErr("insert assignment", errors.New("boom"))
	assert.False(t, errors.Is(other, ErrDuplicate))
	assert.Nil(t, wrapWriteErr("noop", nil))
}
