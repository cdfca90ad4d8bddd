package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taskflow/internal/model"
	"taskflow/internal/repository"
	"taskflow/pkg/util"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TeamService manages teams. Every mutation keeps user.teamId in step with
// the team's member list, and the leader is always a member.
type TeamService struct {
	teams repository.ITeamRepository
	users repository.IUserRepository
	now   func() time.Time
}

func NewTeamService(teams repository.ITeamRepository, users repository.IUserRepository) *TeamService {
	return &TeamService{teams: teams, users: users, now: time.Now}
}

func (s *TeamService) Create(ctx context.Context, callerID primitive.ObjectID, req *model.CreateTeamRequest) (*model.Team, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalid("Team name is required")
	}
	leaderID, err := util.ParseObjectID(req.LeaderID)
	if err != nil {
		return nil, invalid("Invalid leader ID")
	}
	memberIDs, err := util.ParseObjectIDs(req.MemberIDs)
	if err != nil {
		return nil, invalid("Invalid member ID")
	}
	if _, err := s.manager(ctx, callerID); err != nil {
		return nil, err
	}

	now := s.now()
	team := &model.Team{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		LeaderID:    leaderID,
		MemberIDs:   dedupe(memberIDs),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	team.EnsureLeaderMember()
	if err := s.requireUsers(ctx, team.MemberIDs); err != nil {
		return nil, err
	}

	created, err := s.teams.Create(ctx, team)
	if err != nil {
		return nil, err
	}
	if err := s.users.AssignTeam(ctx, created.ID, created.MemberIDs); err != nil {
		return nil, fmt.Errorf("assign team members: %w", err)
	}
	return created, nil
}

func (s *TeamService) Get(ctx context.Context, callerID, id primitive.ObjectID) (*model.Team, error) {
	if _, err := loadActor(ctx, s.users, callerID); err != nil {
		return nil, err
	}
	return s.find(ctx, id)
}

func (s *TeamService) List(ctx context.Context, callerID primitive.ObjectID, filter model.TeamFilter) (model.Page[model.TeamResponse], error) {
	var page model.Page[model.TeamResponse]
	if _, err := loadActor(ctx, s.users, callerID); err != nil {
		return page, err
	}
	filter.Pagination = normalizePage(filter.Pagination)
	teams, total, err := s.teams.List(ctx, filter)
	if err != nil {
		return page, fmt.Errorf("list teams: %w", err)
	}
	out := make([]model.TeamResponse, len(teams))
	for i, t := range teams {
		out[i] = t.ToResponse()
	}
	return model.NewPage(out, total, filter.Page, filter.Limit), nil
}

// Update changes team fields. A new member list replaces the old one; users
// dropped from it lose their teamId.
func (s *TeamService) Update(ctx context.Context, callerID, id primitive.ObjectID, req *model.UpdateTeamRequest) (*model.Team, error) {
	if _, err := s.manager(ctx, callerID); err != nil {
		return nil, err
	}
	current, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	update := model.TeamUpdate{Description: trimmed(req.Description), IsActive: req.IsActive}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, invalid("Team name cannot be empty")
		}
		update.Name = &name
	}

	next := *current
	if req.LeaderID != nil {
		leaderID, err := util.ParseObjectID(*req.LeaderID)
		if err != nil {
			return nil, invalid("Invalid leader ID")
		}
		next.LeaderID = leaderID
		update.LeaderID = &leaderID
	}
	if req.MemberIDs != nil {
		members, err := util.ParseObjectIDs(req.MemberIDs)
		if err != nil {
			return nil, invalid("Invalid member ID")
		}
		next.MemberIDs = dedupe(members)
	} else {
		next.MemberIDs = append([]primitive.ObjectID(nil), current.MemberIDs...)
	}
	next.EnsureLeaderMember()

	added, removed := diffMembers(current.MemberIDs, next.MemberIDs)
	if len(added) > 0 || len(removed) > 0 {
		update.MemberIDs = next.MemberIDs
	}
	if err := s.requireUsers(ctx, added); err != nil {
		return nil, err
	}
	if update.LeaderID != nil {
		if err := s.requireUsers(ctx, []primitive.ObjectID{next.LeaderID}); err != nil {
			return nil, err
		}
	}

	updated, err := s.teams.Update(ctx, id, update)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, notFound("Team")
	}
	if len(added) > 0 {
		if err := s.users.AssignTeam(ctx, id, added); err != nil {
			return nil, fmt.Errorf("assign team members: %w", err)
		}
	}
	for _, userID := range removed {
		userID := userID
		if err := s.users.ClearTeam(ctx, id, &userID); err != nil {
			return nil, fmt.Errorf("clear team member: %w", err)
		}
	}
	return updated, nil
}

// Delete removes the team and clears teamId on all of its members.
func (s *TeamService) Delete(ctx context.Context, callerID, id primitive.ObjectID) error {
	if _, err := s.manager(ctx, callerID); err != nil {
		return err
	}
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	if err := s.users.ClearTeam(ctx, id, nil); err != nil {
		return fmt.Errorf("clear team members: %w", err)
	}
	if _, err := s.teams.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete team: %w", err)
	}
	return nil
}

func (s *TeamService) AddMember(ctx context.Context, callerID, id, userID primitive.ObjectID) (*model.Team, error) {
	if _, err := s.manager(ctx, callerID); err != nil {
		return nil, err
	}
	team, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if team.HasMember(userID) {
		return nil, invalid("User is already a member of this team")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, notFound("User")
	}
	if user.TeamID != nil && *user.TeamID != id {
		if _, err := s.teams.RemoveMember(ctx, *user.TeamID, userID); err != nil {
			return nil, fmt.Errorf("remove from previous team: %w", err)
		}
	}

	updated, err := s.teams.AddMember(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("add team member: %w", err)
	}
	if updated == nil {
		return nil, notFound("Team")
	}
	if err := s.users.AssignTeam(ctx, id, []primitive.ObjectID{userID}); err != nil {
		return nil, fmt.Errorf("assign team: %w", err)
	}
	return updated, nil
}

// RemoveMember drops a member. The leader cannot be removed; appoint a new
// leader first.
func (s *TeamService) RemoveMember(ctx context.Context, callerID, id, userID primitive.ObjectID) (*model.Team, error) {
	if _, err := s.manager(ctx, callerID); err != nil {
		return nil, err
	}
	team, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !team.HasMember(userID) {
		return nil, invalid("User is not a member of this team")
	}
	if team.LeaderID == userID {
		return nil, invalid("Cannot remove the team leader")
	}

	updated, err := s.teams.RemoveMember(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("remove team member: %w", err)
	}
	if updated == nil {
		return nil, notFound("Team")
	}
	if err := s.users.ClearTeam(ctx, id, &userID); err != nil {
		return nil, fmt.Errorf("clear team: %w", err)
	}
	return updated, nil
}

func (s *TeamService) manager(ctx context.Context, callerID primitive.ObjectID) (*model.User, error) {
	caller, err := loadActor(ctx, s.users, callerID)
	if err != nil {
		return nil, err
	}
	if !caller.Capabilities().CanManageTeams {
		return nil, denied()
	}
	return caller, nil
}

func (s *TeamService) find(ctx context.Context, id primitive.ObjectID) (*model.Team, error) {
	team, err := s.teams.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find team: %w", err)
	}
	if team == nil {
		return nil, notFound("Team")
	}
	return team, nil
}

func (s *TeamService) requireUsers(ctx context.Context, ids []primitive.ObjectID) error {
	for _, id := range ids {
		user, err := s.users.FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}
		if user == nil {
			return newError(ErrNotFound, "User %s not found", id.Hex())
		}
	}
	return nil
}

func dedupe(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// diffMembers returns the ids present only in next and only in prev.
func diffMembers(prev, next []primitive.ObjectID) (added, removed []primitive.ObjectID) {
	before := make(map[primitive.ObjectID]struct{}, len(prev))
	for _, id := range prev {
		before[id] = struct{}{}
	}
	after := make(map[primitive.ObjectID]struct{}, len(next))
	for _, id := range next {
		after[id] = struct{}{}
		if _, ok := before[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range prev {
		if _, ok := after[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}
