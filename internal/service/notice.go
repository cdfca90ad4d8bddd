package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taskflow/internal/model"
	"taskflow/internal/permission"
	"taskflow/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NoticeService struct {
	notices repository.INoticeRepository
	users   repository.IUserRepository
	now     func() time.Time
}

func NewNoticeService(notices repository.INoticeRepository, users repository.IUserRepository) *NoticeService {
	return &NoticeService{notices: notices, users: users, now: time.Now}
}

func (s *NoticeService) Create(ctx context.Context, callerID primitive.ObjectID, req *model.CreateNoticeRequest) (*model.Notice, error) {
	title := strings.TrimSpace(req.Title)
	content := strings.TrimSpace(req.Content)
	if title == "" || content == "" {
		return nil, invalid("Title and content are required")
	}
	noticeType := model.NoticeGeneral
	if req.Type != "" {
		noticeType = model.NoticeType(req.Type)
		if !noticeType.Valid() {
			return nil, invalid("Invalid notice type")
		}
	}
	roles, err := parseRoles(req.TargetRoles)
	if err != nil {
		return nil, err
	}
	if err := checkWindow(req.ScheduledDate, req.ExpiryDate); err != nil {
		return nil, err
	}

	caller, err := loadActor(ctx, s.users, callerID)
	if err != nil {
		return nil, err
	}
	if !caller.Capabilities().CanPostNotices {
		return nil, denied()
	}

	now := s.now()
	return s.notices.Create(ctx, &model.Notice{
		Title:         title,
		Content:       content,
		Type:          noticeType,
		PostedBy:      caller.ID,
		ScheduledDate: req.ScheduledDate,
		ExpiryDate:    req.ExpiryDate,
		IsActive:      true,
		TargetRoles:   roles,
		ImageURL:      strings.TrimSpace(req.ImageURL),
		Attachments:   cleanList(req.Attachments),
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

func (s *NoticeService) Get(ctx context.Context, callerID, id primitive.ObjectID) (*model.Notice, error) {
	if _, err := loadActor(ctx, s.users, callerID); err != nil {
		return nil, err
	}
	return s.find(ctx, id)
}

// List returns notices newest first. Unless inactive notices are asked for
// explicitly, expired and inactive ones are left out.
func (s *NoticeService) List(ctx context.Context, callerID primitive.ObjectID, filter model.NoticeFilter) (model.Page[model.NoticeResponse], error) {
	if _, err := loadActor(ctx, s.users, callerID); err != nil {
		return model.Page[model.NoticeResponse]{}, err
	}
	if filter.IsActive == nil || *filter.IsActive {
		now := s.now()
		filter.ActiveAt = &now
	}
	return s.list(ctx, filter)
}

// ForUser is the caller's feed: active, unexpired notices addressed to their
// role or to everyone.
func (s *NoticeService) ForUser(ctx context.Context, callerID primitive.ObjectID, p model.Pagination) (model.Page[model.NoticeResponse], error) {
	caller, err := loadActor(ctx, s.users, callerID)
	if err != nil {
		return model.Page[model.NoticeResponse]{}, err
	}
	now := s.now()
	role := caller.Role
	return s.list(ctx, model.NoticeFilter{TargetRole: &role, ActiveAt: &now, Pagination: p})
}

func (s *NoticeService) list(ctx context.Context, filter model.NoticeFilter) (model.Page[model.NoticeResponse], error) {
	filter.Pagination = normalizePage(filter.Pagination)
	notices, total, err := s.notices.List(ctx, filter)
	if err != nil {
		return model.Page[model.NoticeResponse]{}, fmt.Errorf("list notices: %w", err)
	}
	now := s.now()
	out := make([]model.NoticeResponse, len(notices))
	for i, n := range notices {
		out[i] = n.ToResponse(now)
	}
	return model.NewPage(out, total, filter.Page, filter.Limit), nil
}

func (s *NoticeService) Update(ctx context.Context, callerID, id primitive.ObjectID, req *model.UpdateNoticeRequest) (*model.Notice, error) {
	notice, err := s.editable(ctx, callerID, id)
	if err != nil {
		return nil, err
	}

	update := model.NoticeUpdate{
		ScheduledDate: req.ScheduledDate,
		ExpiryDate:    req.ExpiryDate,
		IsActive:      req.IsActive,
		ImageURL:      trimmed(req.ImageURL),
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, invalid("Title cannot be empty")
		}
		update.Title = &title
	}
	if req.Content != nil {
		content := strings.TrimSpace(*req.Content)
		if content == "" {
			return nil, invalid("Content cannot be empty")
		}
		update.Content = &content
	}
	if req.Type != nil {
		t := model.NoticeType(*req.Type)
		if !t.Valid() {
			return nil, invalid("Invalid notice type")
		}
		update.Type = &t
	}
	if req.TargetRoles != nil {
		roles, err := parseRoles(req.TargetRoles)
		if err != nil {
			return nil, err
		}
		update.TargetRoles = roles
	}
	if req.Attachments != nil {
		update.Attachments = cleanList(req.Attachments)
	}

	scheduled, expiry := notice.ScheduledDate, notice.ExpiryDate
	if update.ScheduledDate != nil {
		scheduled = update.ScheduledDate
	}
	if update.ExpiryDate != nil {
		expiry = update.ExpiryDate
	}
	if err := checkWindow(scheduled, expiry); err != nil {
		return nil, err
	}

	updated, err := s.notices.Update(ctx, id, update)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, notFound("Notice")
	}
	return updated, nil
}

func (s *NoticeService) Delete(ctx context.Context, callerID, id primitive.ObjectID) error {
	if _, err := s.editable(ctx, callerID, id); err != nil {
		return err
	}
	if _, err := s.notices.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete notice: %w", err)
	}
	return nil
}

// editable loads a notice the caller may change: posters can edit their own
// notices, and HR or the CEO can edit any.
func (s *NoticeService) editable(ctx context.Context, callerID, id primitive.ObjectID) (*model.Notice, error) {
	caller, err := loadActor(ctx, s.users, callerID)
	if err != nil {
		return nil, err
	}
	notice, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.Capabilities().CanPostNotices {
		return nil, denied()
	}
	if notice.PostedBy != caller.ID && caller.Role != permission.RoleHR && caller.Role != permission.RoleCEO {
		return nil, denied()
	}
	return notice, nil
}

func (s *NoticeService) find(ctx context.Context, id primitive.ObjectID) (*model.Notice, error) {
	notice, err := s.notices.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find notice: %w", err)
	}
	if notice == nil {
		return nil, notFound("Notice")
	}
	return notice, nil
}

func parseRoles(raw []string) ([]permission.Role, error) {
	roles := make([]permission.Role, 0, len(raw))
	for _, r := range raw {
		role, err := permission.ParseRole(r)
		if err != nil {
			return nil, invalid("Invalid target role %q", r)
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func checkWindow(scheduled, expiry *time.Time) error {
	if scheduled != nil && expiry != nil && expiry.Before(*scheduled) {
		return invalid("Expiry date must be after the scheduled date")
	}
	return nil
}
