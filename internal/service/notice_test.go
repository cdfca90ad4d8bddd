package service

import (
	"context"
	"testing"
	"time"

	"taskflow/internal/model"
	"taskflow/internal/permission"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateNoticeRequiresPostCapability(t *testing.T) {
	f := newFixture()
	s := f.noticeService()
	ctx := context.Background()
	req := &model.CreateNoticeRequest{Title: "Office closed", Content: "Friday", Type: "holiday"}

	for _, u := range []*model.User{f.pm, f.member} {
		_, err := s.Create(ctx, u.ID, req)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	}

	notice, err := s.Create(ctx, f.hr.ID, req)
	require.NoError(t, err)
	assert.Equal(t, model.NoticeHoliday, notice.Type)
	assert.True(t, notice.IsActive)
	assert.Equal(t, f.hr.ID, notice.PostedBy)

	notice, err = s.Create(ctx, f.ceo.ID, &model.CreateNoticeRequest{Title: "Hi", Content: "All hands"})
	require.NoError(t, err)
	assert.Equal(t, model.NoticeGeneral, notice.Type)
}

func TestCreateNoticeValidatesWindow(t *testing.T) {
	f := newFixture()
	now := time.Now()
	earlier := now.Add(-time.Hour)

	_, err := f.noticeService().Create(context.Background(), f.hr.ID, &model.CreateNoticeRequest{
		Title:         "Backwards",
		Content:       "x",
		ScheduledDate: &now,
		ExpiryDate:    &earlier,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNoticeFeedForUser(t *testing.T) {
	f := newFixture()
	s := f.noticeService()
	ctx := context.Background()
	past := f.clock.Now().Add(-24 * time.Hour)

	everyone, err := s.Create(ctx, f.hr.ID, &model.CreateNoticeRequest{Title: "All", Content: "x"})
	require.NoError(t, err)
	_, err = s.Create(ctx, f.hr.ID, &model.CreateNoticeRequest{
		Title: "Managers", Content: "x", TargetRoles: []string{string(permission.RoleProjectManager)},
	})
	require.NoError(t, err)
	members, err := s.Create(ctx, f.hr.ID, &model.CreateNoticeRequest{
		Title: "Members", Content: "x", TargetRoles: []string{string(permission.RoleTeamMember)},
	})
	require.NoError(t, err)
	_, err = s.Create(ctx, f.hr.ID, &model.CreateNoticeRequest{Title: "Expired", Content: "x", ExpiryDate: &past})
	require.NoError(t, err)
	hidden, err := s.Create(ctx, f.hr.ID, &model.CreateNoticeRequest{Title: "Hidden", Content: "x"})
	require.NoError(t, err)
	off := false
	_, err = s.Update(ctx, f.hr.ID, hidden.ID, &model.UpdateNoticeRequest{IsActive: &off})
	require.NoError(t, err)

	page, err := s.ForUser(ctx, f.member.ID, model.Pagination{})
	require.NoError(t, err)
	ids := make([]string, 0, len(page.Items))
	for _, n := range page.Items {
		ids = append(ids, n.ID)
	}
	assert.ElementsMatch(t, []string{everyone.ID.Hex(), members.ID.Hex()}, ids)

	all, err := s.List(ctx, f.member.ID, model.NoticeFilter{})
	require.NoError(t, err)
	assert.Len(t, all.Items, 3)

	inactive, err := s.List(ctx, f.member.ID, model.NoticeFilter{IsActive: &off})
	require.NoError(t, err)
	require.Len(t, inactive.Items, 1)
	assert.Equal(t, hidden.ID.Hex(), inactive.Items[0].ID)
}

func TestNoticeEditRights(t *testing.T) {
	f := newFixture()
	s := f.noticeService()
	ctx := context.Background()
	poster := f.users.Add("hr2", permission.RoleHR)

	notice, err := s.Create(ctx, f.ceo.ID, &model.CreateNoticeRequest{Title: "Board", Content: "x"})
	require.NoError(t, err)

	_, err = s.Update(ctx, f.member.ID, notice.ID, &model.UpdateNoticeRequest{Title: strPtr("mine")})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	updated, err := s.Update(ctx, poster.ID, notice.ID, &model.UpdateNoticeRequest{Title: strPtr("Board meeting"), Type: strPtr("meeting")})
	require.NoError(t, err)
	assert.Equal(t, "Board meeting", updated.Title)
	assert.Equal(t, model.NoticeMeeting, updated.Type)

	assert.ErrorIs(t, s.Delete(ctx, f.pm.ID, notice.ID), ErrPermissionDenied)
	require.NoError(t, s.Delete(ctx, f.ceo.ID, notice.ID))
	_, err = s.Get(ctx, f.member.ID, notice.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
