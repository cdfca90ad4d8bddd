package model

import (
	"time"

	"taskflow/internal/permission"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NoticeType string

const (
	NoticeHoliday      NoticeType = "holiday"
	NoticeBirthday     NoticeType = "birthday"
	NoticeAnnouncement NoticeType = "announcement"
	NoticeMeeting      NoticeType = "meeting"
	NoticeGeneral      NoticeType = "general"
)

var noticeTypeNames = map[NoticeType]string{
	NoticeHoliday:      "Holiday",
	NoticeBirthday:     "Birthday",
	NoticeAnnouncement: "Announcement",
	NoticeMeeting:      "Meeting",
	NoticeGeneral:      "General",
}

func (t NoticeType) Valid() bool {
	_, ok := noticeTypeNames[t]
	return ok
}

func (t NoticeType) DisplayName() string {
	if name, ok := noticeTypeNames[t]; ok {
		return name
	}
	return noticeTypeNames[NoticeGeneral]
}

type Notice struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title         string             `bson:"title" json:"title"`
	Content       string             `bson:"content" json:"content"`
	Type          NoticeType         `bson:"type" json:"type"`
	PostedBy      primitive.ObjectID `bson:"postedBy" json:"postedBy"`
	ScheduledDate *time.Time         `bson:"scheduledDate,omitempty" json:"scheduledDate,omitempty"`
	ExpiryDate    *time.Time         `bson:"expiryDate,omitempty" json:"expiryDate,omitempty"`
	IsActive      bool               `bson:"isActive" json:"isActive"`
	TargetRoles   []permission.Role  `bson:"targetRoles" json:"targetRoles"`
	ImageURL      string             `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	Attachments   []string           `bson:"attachments" json:"attachments"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (n *Notice) GetID() primitive.ObjectID   { return n.ID }
func (n *Notice) SetID(id primitive.ObjectID) { n.ID = id }

func (n *Notice) IsExpired(now time.Time) bool {
	return n.ExpiryDate != nil && now.After(*n.ExpiryDate)
}

func (n *Notice) IsScheduled(now time.Time) bool {
	return n.ScheduledDate != nil && now.Before(*n.ScheduledDate)
}

// TargetsRole reports whether the notice is addressed to role. A notice
// without target roles is addressed to everyone.
func (n *Notice) TargetsRole(role permission.Role) bool {
	if len(n.TargetRoles) == 0 {
		return true
	}
	for _, r := range n.TargetRoles {
		if r == role {
			return true
		}
	}
	return false
}

type NoticeResponse struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Content         string            `json:"content"`
	Type            NoticeType        `json:"type"`
	TypeDisplayName string            `json:"typeDisplayName"`
	PostedBy        string            `json:"postedBy"`
	ScheduledDate   *time.Time        `json:"scheduledDate,omitempty"`
	ExpiryDate      *time.Time        `json:"expiryDate,omitempty"`
	IsActive        bool              `json:"isActive"`
	IsExpired       bool              `json:"isExpired"`
	IsScheduled     bool              `json:"isScheduled"`
	TargetRoles     []permission.Role `json:"targetRoles"`
	ImageURL        string            `json:"imageUrl,omitempty"`
	Attachments     []string          `json:"attachments"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

func (n *Notice) ToResponse(now time.Time) NoticeResponse {
	roles := n.TargetRoles
	if roles == nil {
		roles = []permission.Role{}
	}
	attachments := n.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	return NoticeResponse{
		ID:              n.ID.Hex(),
		Title:           n.Title,
		Content:         n.Content,
		Type:            n.Type,
		TypeDisplayName: n.Type.DisplayName(),
		PostedBy:        n.PostedBy.Hex(),
		ScheduledDate:   n.ScheduledDate,
		ExpiryDate:      n.ExpiryDate,
		IsActive:        n.IsActive,
		IsExpired:       n.IsExpired(now),
		IsScheduled:     n.IsScheduled(now),
		TargetRoles:     roles,
		ImageURL:        n.ImageURL,
		Attachments:     attachments,
		CreatedAt:       n.CreatedAt,
		UpdatedAt:       n.UpdatedAt,
	}
}

// NoticeFilter narrows notice listings. ActiveAt, when set, keeps only
// active notices that have not expired at that instant.
type NoticeFilter struct {
	Type       *NoticeType
	IsActive   *bool
	TargetRole *permission.Role
	ActiveAt   *time.Time
	Pagination
}

type NoticeUpdate struct {
	Title         *string
	Content       *string
	Type          *NoticeType
	ScheduledDate *time.Time
	ExpiryDate    *time.Time
	IsActive      *bool
	TargetRoles   []permission.Role
	ImageURL      *string
	Attachments   []string
}

type CreateNoticeRequest struct {
	Title         string     `json:"title" binding:"required,max=200"`
	Content       string     `json:"content" binding:"required,max=2000"`
	Type          string     `json:"type" binding:"omitempty,oneof=holiday birthday announcement meeting general"`
	ScheduledDate *time.Time `json:"scheduledDate"`
	ExpiryDate    *time.Time `json:"expiryDate"`
	TargetRoles   []string   `json:"targetRoles" binding:"omitempty,dive,role"`
	ImageURL      string     `json:"imageUrl" binding:"omitempty,url"`
	Attachments   []string   `json:"attachments" binding:"omitempty,dive,max=500"`
}

type UpdateNoticeRequest struct {
	Title         *string    `json:"title" binding:"omitempty,max=200"`
	Content       *string    `json:"content" binding:"omitempty,max=2000"`
	Type          *string    `json:"type" binding:"omitempty,oneof=holiday birthday announcement meeting general"`
	ScheduledDate *time.Time `json:"scheduledDate"`
	ExpiryDate    *time.Time `json:"expiryDate"`
	IsActive      *bool      `json:"isActive"`
	TargetRoles   []string   `json:"targetRoles" binding:"omitempty,dive,role"`
	ImageURL      *string    `json:"imageUrl" binding:"omitempty,url"`
	Attachments   []string   `json:"attachments" binding:"omitempty,dive,max=500"`
}
