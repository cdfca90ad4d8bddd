package model

import (
	"time"

	"taskflow/internal/permission"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name         string              `bson:"name" json:"name"`
	Email        string              `bson:"email" json:"email"`
	PasswordHash string              `bson:"password" json:"-"`
	Role         permission.Role     `bson:"role" json:"role"`
	Avatar       string              `bson:"avatar,omitempty" json:"avatar,omitempty"`
	IsActive     bool                `bson:"isActive" json:"isActive"`
	Department   string              `bson:"department,omitempty" json:"department,omitempty"`
	TeamID       *primitive.ObjectID `bson:"teamId,omitempty" json:"teamId,omitempty"`
	CreatedAt    time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time           `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) GetID() primitive.ObjectID   { return u.ID }
func (u *User) SetID(id primitive.ObjectID) { u.ID = id }

// Capabilities returns the permission flags for the user's role.
// Inactive accounts hold no capabilities.
func (u *User) Capabilities() permission.Capabilities {
	if u == nil || !u.IsActive {
		return permission.Capabilities{}
	}
	return permission.For(u.Role)
}

// UserResponse is the public view of a user (password hash omitted).
type UserResponse struct {
	ID              string                  `json:"id"`
	Name            string                  `json:"name"`
	Email           string                  `json:"email"`
	Role            permission.Role         `json:"role"`
	RoleDisplayName string                  `json:"roleDisplayName"`
	Capabilities    permission.Capabilities `json:"capabilities"`
	Avatar          string                  `json:"avatar,omitempty"`
	IsActive        bool                    `json:"isActive"`
	Department      string                  `json:"department,omitempty"`
	TeamID          string                  `json:"teamId,omitempty"`
	CreatedAt       time.Time               `json:"createdAt"`
	UpdatedAt       time.Time               `json:"updatedAt"`
}

func (u *User) ToResponse() UserResponse {
	resp := UserResponse{
		ID:              u.ID.Hex(),
		Name:            u.Name,
		Email:           u.Email,
		Role:            u.Role,
		RoleDisplayName: u.Role.DisplayName(),
		Capabilities:    u.Capabilities(),
		Avatar:          u.Avatar,
		IsActive:        u.IsActive,
		Department:      u.Department,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
	if u.TeamID != nil {
		resp.TeamID = u.TeamID.Hex()
	}
	return resp
}

// UserSummary is the compact reference embedded in other responses.
type UserSummary struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Email string          `json:"email"`
	Role  permission.Role `json:"role"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID.Hex(), Name: u.Name, Email: u.Email, Role: u.Role}
}

// UserFilter narrows user listings.
type UserFilter struct {
	Role     *permission.Role
	IsActive *bool
	Pagination
}

// UserUpdate holds optional user field changes; nil means unchanged.
type UserUpdate struct {
	Name       *string
	Email      *string
	Role       *permission.Role
	Department *string
	Avatar     *string
	IsActive   *bool
	TeamID     *primitive.ObjectID
}

func (u UserUpdate) Empty() bool {
	return u.Name == nil && u.Email == nil && u.Role == nil && u.Department == nil &&
		u.Avatar == nil && u.IsActive == nil && u.TeamID == nil
}

type RegisterRequest struct {
	Name       string `json:"name" binding:"required,max=100"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=6"`
	Role       string `json:"role" binding:"omitempty,role"`
	Department string `json:"department" binding:"max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type UpdateProfileRequest struct {
	Name       *string `json:"name" binding:"omitempty,max=100"`
	Department *string `json:"department" binding:"omitempty,max=100"`
	Avatar     *string `json:"avatar" binding:"omitempty,max=500"`
}

type AdminUpdateUserRequest struct {
	Name       *string `json:"name" binding:"omitempty,max=100"`
	Email      *string `json:"email" binding:"omitempty,email"`
	Role       *string `json:"role" binding:"omitempty,role"`
	Department *string `json:"department" binding:"omitempty,max=100"`
	IsActive   *bool   `json:"isActive"`
	TeamID     *string `json:"teamId" binding:"omitempty,objectid"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type VerifyResetCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=6,numeric"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Code        string `json:"code" binding:"omitempty,len=6,numeric"`
	Token       string `json:"token" binding:"omitempty,uuid4"`
	NewPassword string `json:"newPassword" binding:"required,min=6"`
}

// AuthResponse is returned by register, login and refresh.
type AuthResponse struct {
	User         UserResponse `json:"user"`
	Token        string       `json:"token"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresAt    time.Time    `json:"expiresAt"`
}
