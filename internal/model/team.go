package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Team struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name        string               `bson:"name" json:"name"`
	Description string               `bson:"description" json:"description"`
	LeaderID    primitive.ObjectID   `bson:"leaderId" json:"leaderId"`
	MemberIDs   []primitive.ObjectID `bson:"memberIds" json:"memberIds"`
	IsActive    bool                 `bson:"isActive" json:"isActive"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}

func (t *Team) GetID() primitive.ObjectID   { return t.ID }
func (t *Team) SetID(id primitive.ObjectID) { t.ID = id }

// HasMember reports whether userID is listed among the members.
func (t *Team) HasMember(userID primitive.ObjectID) bool {
	for _, id := range t.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// EnsureLeaderMember appends the leader to the member list if missing.
func (t *Team) EnsureLeaderMember() {
	if t.LeaderID.IsZero() || t.HasMember(t.LeaderID) {
		return
	}
	t.MemberIDs = append(t.MemberIDs, t.LeaderID)
}

type TeamResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	LeaderID    string    `json:"leaderId"`
	MemberIDs   []string  `json:"memberIds"`
	MemberCount int       `json:"memberCount"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (t *Team) ToResponse() TeamResponse {
	members := make([]string, len(t.MemberIDs))
	for i, id := range t.MemberIDs {
		members[i] = id.Hex()
	}
	return TeamResponse{
		ID:          t.ID.Hex(),
		Name:        t.Name,
		Description: t.Description,
		LeaderID:    t.LeaderID.Hex(),
		MemberIDs:   members,
		MemberCount: len(t.MemberIDs),
		IsActive:    t.IsActive,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

type TeamFilter struct {
	IsActive *bool
	Pagination
}

type TeamUpdate struct {
	Name        *string
	Description *string
	LeaderID    *primitive.ObjectID
	MemberIDs   []primitive.ObjectID
	IsActive    *bool
}

type CreateTeamRequest struct {
	Name        string   `json:"name" binding:"required,max=100"`
	Description string   `json:"description" binding:"required,max=500"`
	LeaderID    string   `json:"leaderId" binding:"required,objectid"`
	MemberIDs   []string `json:"memberIds" binding:"omitempty,dive,objectid"`
}

type UpdateTeamRequest struct {
	Name        *string  `json:"name" binding:"omitempty,max=100"`
	Description *string  `json:"description" binding:"omitempty,max=500"`
	LeaderID    *string  `json:"leaderId" binding:"omitempty,objectid"`
	MemberIDs   []string `json:"memberIds" binding:"omitempty,dive,objectid"`
	IsActive    *bool    `json:"isActive"`
}

type AddTeamMemberRequest struct {
	UserID string `json:"userId" binding:"required,objectid"`
}
