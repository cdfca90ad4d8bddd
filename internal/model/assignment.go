package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssignmentStatus is the approval state of a reassignment request.
type AssignmentStatus string

const (
	AssignmentPending  AssignmentStatus = "pending"
	AssignmentApproved AssignmentStatus = "approved"
	AssignmentRejected AssignmentStatus = "rejected"
)

var assignmentStatusText = map[AssignmentStatus]string{
	AssignmentPending:  "Pending Approval",
	AssignmentApproved: "Approved",
	AssignmentRejected: "Rejected",
}

func (s AssignmentStatus) Valid() bool {
	_, ok := assignmentStatusText[s]
	return ok
}

// Terminal reports whether no further transition is allowed out of s.
func (s AssignmentStatus) Terminal() bool {
	return s == AssignmentApproved || s == AssignmentRejected
}

// Active statuses block a second request for the same task and user.
func (s AssignmentStatus) Active() bool {
	return s == AssignmentPending || s == AssignmentApproved
}

func (s AssignmentStatus) Text() string {
	if text, ok := assignmentStatusText[s]; ok {
		return text
	}
	return assignmentStatusText[AssignmentPending]
}

const (
	MaxAssignmentNotesLength = 1000
	MaxRejectionReasonLength = 500
)

// TaskAssignment is a proposed change of a task's assignee awaiting approval.
type TaskAssignment struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	TaskID          primitive.ObjectID  `bson:"taskId" json:"taskId"`
	AssignedTo      primitive.ObjectID  `bson:"assignedTo" json:"assignedTo"`
	AssignedBy      primitive.ObjectID  `bson:"assignedBy" json:"assignedBy"`
	ApprovedBy      *primitive.ObjectID `bson:"approvedBy,omitempty" json:"approvedBy,omitempty"`
	Status          AssignmentStatus    `bson:"status" json:"status"`
	ApprovedAt      *time.Time          `bson:"approvedAt,omitempty" json:"approvedAt,omitempty"`
	RejectionReason string              `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
	Notes           string              `bson:"notes,omitempty" json:"notes,omitempty"`
	// AssigneeSynced is false between an approval commit and the task's
	// assignedTo being rewritten.
	AssigneeSynced bool      `bson:"assigneeSynced" json:"assigneeSynced"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (a *TaskAssignment) GetID() primitive.ObjectID   { return a.ID }
func (a *TaskAssignment) SetID(id primitive.ObjectID) { a.ID = id }

// Involves reports whether userID requested the assignment or is its target.
func (a *TaskAssignment) Involves(userID primitive.ObjectID) bool {
	return a.AssignedBy == userID || a.AssignedTo == userID
}

type AssignmentResponse struct {
	ID              string           `json:"id"`
	TaskID          string           `json:"taskId"`
	AssignedTo      string           `json:"assignedTo"`
	AssignedBy      string           `json:"assignedBy"`
	ApprovedBy      string           `json:"approvedBy,omitempty"`
	Status          AssignmentStatus `json:"status"`
	StatusText      string           `json:"statusText"`
	ApprovedAt      *time.Time       `json:"approvedAt,omitempty"`
	RejectionReason string           `json:"rejectionReason,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	AssigneeSynced  bool             `json:"assigneeSynced"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

func (a *TaskAssignment) ToResponse() AssignmentResponse {
	resp := AssignmentResponse{
		ID:              a.ID.Hex(),
		TaskID:          a.TaskID.Hex(),
		AssignedTo:      a.AssignedTo.Hex(),
		AssignedBy:      a.AssignedBy.Hex(),
		Status:          a.Status,
		StatusText:      a.Status.Text(),
		ApprovedAt:      a.ApprovedAt,
		RejectionReason: a.RejectionReason,
		Notes:           a.Notes,
		AssigneeSynced:  a.AssigneeSynced,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if a.ApprovedBy != nil {
		resp.ApprovedBy = a.ApprovedBy.Hex()
	}
	return resp
}

// AssignmentFilter narrows assignment listings. When Scope is set only
// records the scoped user requested or is the target of are returned.
type AssignmentFilter struct {
	Status     *AssignmentStatus
	TaskID     *primitive.ObjectID
	AssignedTo *primitive.ObjectID
	AssignedBy *primitive.ObjectID
	Scope      *primitive.ObjectID
	Pagination
}

// AssignmentDecision is the conditional pending -> terminal write.
type AssignmentDecision struct {
	Status          AssignmentStatus
	DecidedBy       primitive.ObjectID
	DecidedAt       time.Time
	RejectionReason string
	Notes           *string
}

type CreateAssignmentRequest struct {
	TaskID     string `json:"taskId" binding:"required,objectid"`
	AssignedTo string `json:"assignedTo" binding:"required,objectid"`
	Notes      string `json:"notes" binding:"max=1000"`
}

type ApproveAssignmentRequest struct {
	Notes *string `json:"notes" binding:"omitempty,max=1000"`
}

type RejectAssignmentRequest struct {
	RejectionReason string  `json:"rejectionReason" binding:"max=500"`
	Notes           *string `json:"notes" binding:"omitempty,max=1000"`
}

type UpdateAssignmentRequest struct {
	Notes *string `json:"notes" binding:"required,max=1000"`
}
