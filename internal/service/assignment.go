package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"taskflow/internal/model"
	"taskflow/internal/repository"
	"taskflow/pkg/timer"
	"taskflow/pkg/util"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssignmentService moves a task's assignee from one user to another through
// a pending -> approved | rejected request. Each decision is a single
// conditional store write on status=pending, so concurrent deciders produce
// exactly one winner.
type AssignmentService struct {
	assignments repository.IAssignmentRepository
	tasks       repository.ITaskRepository
	users       repository.IUserRepository
	events      *EventHub
	now         func() time.Time
}

func NewAssignmentService(
	assignments repository.IAssignmentRepository,
	tasks repository.ITaskRepository,
	users repository.IUserRepository,
	events *EventHub,
) *AssignmentService {
	return &AssignmentService{
		assignments: assignments,
		tasks:       tasks,
		users:       users,
		events:      events,
		now:         time.Now,
	}
}

// Request creates a pending assignment of taskId to the target user.
func (s *AssignmentService) Request(ctx context.Context, callerID primitive.ObjectID, req *model.CreateAssignmentRequest) (*model.TaskAssignment, error) {
	taskID, err := util.ParseObjectID(req.TaskID)
	if err != nil {
		return nil, invalid("Invalid task ID")
	}
	targetID, err := util.ParseObjectID(req.AssignedTo)
	if err != nil {
		return nil, invalid("Invalid user ID")
	}
	if len(req.Notes) > model.MaxAssignmentNotesLength {
		return nil, invalid("Notes must be at most %d characters", model.MaxAssignmentNotesLength)
	}

	caller, err := loadActor(ctx, s.users, callerID)
	if err != nil {
		return nil, err
	}
	if !caller.Capabilities().CanAssign() {
		return nil, denied()
	}

	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	if task == nil {
		return nil, notFound("Task")
	}
	target, err := s.users.FindByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if target == nil {
		return nil, notFound("User")
	}

	existing, err := s.assignments.FindActive(ctx, taskID, targetID)
	if err != nil {
		return nil, fmt.Errorf("find active assignment: %w", err)
	}
	if existing != nil {
		return nil, errActiveAssignment()
	}

	now := s.now()
	created, err := s.assignments.Insert(ctx, &model.TaskAssignment{
		TaskID:     taskID,
		AssignedTo: targetID,
		AssignedBy: caller.ID,
		Status:     model.AssignmentPending,
		Notes:      strings.TrimSpace(req.Notes),
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, errActiveAssignment()
		}
		return nil, err
	}

	s.publish(EventAssignmentRequested, created)
	return created, nil
}

func errActiveAssignment() *Error {
	return newError(ErrConflict, "Task is already assigned or pending approval for this user")
}

// Approve marks a pending assignment approved and moves the task to the new
// assignee. If the task write fails after the approval committed, the
// approved assignment is returned together with an *AssigneeSyncError.
func (s *AssignmentService) Approve(ctx context.Context, callerID, id primitive.ObjectID, notes *string) (*model.TaskAssignment, error) {
	defer timer.Track("AssignmentService.Approve")()

	if err := validateNotes(notes); err != nil {
		return nil, err
	}
	caller, err := s.loadDecision(ctx, callerID, id)
	if err != nil {
		return nil, err
	}

	approved, err := s.decide(ctx, id, model.AssignmentDecision{
		Status:    model.AssignmentApproved,
		DecidedBy: caller.ID,
		DecidedAt: s.now(),
		Notes:     nonBlank(notes),
	})
	if err != nil {
		return nil, err
	}
	s.publish(EventAssignmentApproved, approved)

	if err := s.syncAssignee(ctx, approved); err != nil {
		return approved, err
	}
	return approved, nil
}

// Reject marks a pending assignment rejected. The task is not touched.
func (s *AssignmentService) Reject(ctx context.Context, callerID, id primitive.ObjectID, reason string, notes *string) (*model.TaskAssignment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("Rejection reason is required")
	}
	if len(reason) > model.MaxRejectionReasonLength {
		return nil, invalid("Rejection reason must be at most %d characters", model.MaxRejectionReasonLength)
	}
	if err := validateNotes(notes); err != nil {
		return nil, err
	}

	caller, err := s.loadDecision(ctx, callerID, id)
	if err != nil {
		return nil, err
	}

	rejected, err := s.decide(ctx, id, model.AssignmentDecision{
		Status:          model.AssignmentRejected,
		DecidedBy:       caller.ID,
		DecidedAt:       s.now(),
		RejectionReason: reason,
		Notes:           nonBlank(notes),
	})
	if err != nil {
		return nil, err
	}
	s.publish(EventAssignmentRejected, rejected)
	return rejected, nil
}

// loadDecision checks existence, approval capability and pending status, in
// that order.
func (s *AssignmentService) loadDecision(ctx context.Context, callerID, id primitive.ObjectID) (*model.User, error) {
	a, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	caller, err := loadActor(ctx, s.users, callerID)
	if err != nil {
		return nil, err
	}
	if !caller.Capabilities().CanApproveTaskAssignments {
		return nil, denied()
	}
	if a.Status != model.AssignmentPending {
		return nil, alreadyDecided(a.Status)
	}
	return caller, nil
}

func (s *AssignmentService) decide(ctx context.Context, id primitive.ObjectID, decision model.AssignmentDecision) (*model.TaskAssignment, error) {
	updated, err := s.assignments.UpdateStatus(ctx, id, decision)
	if err != nil {
		return nil, fmt.Errorf("update assignment status: %w", err)
	}
	if updated == nil {
		return nil, s.lostRace(ctx, id)
	}
	return updated, nil
}

// lostRace explains why a conditional write on a pending record matched
// nothing: the record was deleted or another caller moved it first.
func (s *AssignmentService) lostRace(ctx context.Context, id primitive.ObjectID) error {
	current, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("find assignment: %w", err)
	}
	if current == nil {
		return notFound("Assignment")
	}
	return alreadyDecided(current.Status)
}

func alreadyDecided(status model.AssignmentStatus) *Error {
	return newError(ErrInvalidState, "Assignment has already been %s", status)
}

// Amend rewrites the notes of a pending assignment. Blank notes leave the
// record unchanged.
func (s *AssignmentService) Amend(ctx context.Context, callerID, id primitive.ObjectID, notes string) (*model.TaskAssignment, error) {
	notes = strings.TrimSpace(notes)
	if len(notes) > model.MaxAssignmentNotesLength {
		return nil, invalid("Notes must be at most %d characters", model.MaxAssignmentNotesLength)
	}
	current, err := s.loadOwned(ctx, callerID, id)
	if err != nil {
		return nil, err
	}
	if notes == "" {
		return current, nil
	}

	updated, err := s.assignments.UpdateNotes(ctx, id, notes)
	if err != nil {
		return nil, fmt.Errorf("update assignment notes: %w", err)
	}
	if updated == nil {
		return nil, s.lostRace(ctx, id)
	}
	s.publish(EventAssignmentUpdated, updated)
	return updated, nil
}

// Withdraw deletes a pending assignment.
func (s *AssignmentService) Withdraw(ctx context.Context, callerID, id primitive.ObjectID) error {
	a, err := s.loadOwned(ctx, callerID, id)
	if err != nil {
		return err
	}

	deleted, err := s.assignments.DeletePending(ctx, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	if !deleted {
		return s.lostRace(ctx, id)
	}
	s.publish(EventAssignmentWithdrawn, a)
	return nil
}

// loadOwned admits the requester or an approver and requires pending status.
func (s *AssignmentService) loadOwned(ctx context.Context, callerID, id primitive.ObjectID) (*model.TaskAssignment, error) {
	a, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	caller, err := loadActor(ctx, s.users, callerID)
	if err != nil {
		return nil, err
	}
	if a.AssignedBy != caller.ID && !caller.Capabilities().CanApproveTaskAssignments {
		return nil, denied()
	}
	if a.Status != model.AssignmentPending {
		return nil, newError(ErrInvalidState, "Can only modify pending assignments")
	}
	return a, nil
}

// View returns an assignment visible to its requester, its target and approvers.
func (s *AssignmentService) View(ctx context.Context, callerID, id primitive.ObjectID) (*model.TaskAssignment, error) {
	a, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	caller, err := loadActor(ctx, s.users, callerID)
	if err != nil {
		return nil, err
	}
	if !a.Involves(caller.ID) && !caller.Capabilities().CanApproveTaskAssignments {
		return nil, denied()
	}
	return a, nil
}

// List returns assignments newest first. Callers without approval capability
// only see records they requested or are the target of.
func (s *AssignmentService) List(ctx context.Context, callerID primitive.ObjectID, filter model.AssignmentFilter) (model.Page[model.AssignmentResponse], error) {
	var page model.Page[model.AssignmentResponse]
	caller, err := loadActor(ctx, s.users, callerID)
	if err != nil {
		return page, err
	}
	filter.Scope = nil
	if !caller.Capabilities().CanApproveTaskAssignments {
		filter.Scope = &caller.ID
	}
	filter.Pagination = normalizePage(filter.Pagination)

	items, total, err := s.assignments.List(ctx, filter)
	if err != nil {
		return page, fmt.Errorf("list assignments: %w", err)
	}
	out := make([]model.AssignmentResponse, len(items))
	for i, a := range items {
		out[i] = a.ToResponse()
	}
	return model.NewPage(out, total, filter.Page, filter.Limit), nil
}

// ResyncAssignee re-applies an approved assignment to its task. Safe to call
// repeatedly.
func (s *AssignmentService) ResyncAssignee(ctx context.Context, callerID, id primitive.ObjectID) (*model.TaskAssignment, error) {
	a, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	caller, err := loadActor(ctx, s.users, callerID)
	if err != nil {
		return nil, err
	}
	if !caller.Capabilities().CanApproveTaskAssignments {
		return nil, denied()
	}
	if a.Status != model.AssignmentApproved {
		return nil, newError(ErrInvalidState, "Only approved assignments can be resynced")
	}
	if err := s.syncAssignee(ctx, a); err != nil {
		return a, err
	}
	return a, nil
}

// ReconcileAssignees repairs up to limit approved assignments whose task
// assignee was never written. It returns how many were repaired; individual
// failures are logged and left for the next sweep.
func (s *AssignmentService) ReconcileAssignees(ctx context.Context, limit int) (int, error) {
	pending, err := s.assignments.ListUnsynced(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list unsynced assignments: %w", err)
	}
	repaired := 0
	for _, a := range pending {
		if err := ctx.Err(); err != nil {
			return repaired, err
		}
		if err := s.syncAssignee(ctx, a); err != nil {
			slog.Warn("assignee reconcile failed", "assignment", a.ID.Hex(), "task", a.TaskID.Hex(), "error", err)
			continue
		}
		repaired++
	}
	return repaired, nil
}

// syncAssignee writes the assignment's target onto its task, then clears the
// unsynced marker. Nothing is written when a later approval superseded it or
// the task was reassigned directly after the approval. A task deleted in the
// meantime has nothing to update.
func (s *AssignmentService) syncAssignee(ctx context.Context, a *model.TaskAssignment) error {
	latest, err := s.assignments.LatestApproved(ctx, a.TaskID)
	if err != nil {
		return &AssigneeSyncError{AssignmentID: a.ID, TaskID: a.TaskID, Err: err}
	}
	if latest == nil || latest.ID == a.ID {
		approvedAt := a.UpdatedAt
		if a.ApprovedAt != nil {
			approvedAt = *a.ApprovedAt
		}
		task, err := s.tasks.UpdateAssignee(ctx, a.TaskID, a.AssignedTo, approvedAt)
		if err != nil {
			return &AssigneeSyncError{AssignmentID: a.ID, TaskID: a.TaskID, Err: err}
		}
		if task == nil {
			slog.Info("approved assignee not applied; task changed or removed since approval",
				"assignment", a.ID.Hex(), "task", a.TaskID.Hex())
		}
	}
	if err := s.assignments.MarkSynced(ctx, a.ID); err != nil {
		// The task is correct; a later sweep re-applies idempotently.
		slog.Warn("mark assignment synced failed", "assignment", a.ID.Hex(), "error", err)
		return nil
	}
	a.AssigneeSynced = true
	s.publish(EventAssigneeSynced, a)
	return nil
}

func (s *AssignmentService) find(ctx context.Context, id primitive.ObjectID) (*model.TaskAssignment, error) {
	a, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	if a == nil {
		return nil, notFound("Assignment")
	}
	return a, nil
}

func (s *AssignmentService) publish(t EventType, a *model.TaskAssignment) {
	s.events.Publish(AssignmentEvent{Type: t, Assignment: a.ToResponse(), At: s.now()})
}

func validateNotes(notes *string) error {
	if notes != nil && len(strings.TrimSpace(*notes)) > model.MaxAssignmentNotesLength {
		return invalid("Notes must be at most %d characters", model.MaxAssignmentNotesLength)
	}
	return nil
}

// nonBlank trims s and treats an empty result as absent.
func nonBlank(s *string) *string {
	v := trimmed(s)
	if v == nil || *v == "" {
		return nil
	}
	return v
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
