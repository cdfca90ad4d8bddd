package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"taskflow/internal/auth"
	"taskflow/internal/config"
	"taskflow/internal/mail"
	"taskflow/internal/model"
	"taskflow/internal/permission"
	"taskflow/internal/repository"
	"taskflow/pkg/util"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserService handles identity: registration, login, tokens, profiles,
// administration and password resets.
type UserService struct {
	users  repository.IUserRepository
	teams  repository.ITeamRepository
	resets repository.IPasswordResetRepository
	tokens *auth.TokenIssuer
	mailer mail.Mailer
	cfg    *config.Config
	now    func() time.Time
}

func NewUserService(
	users repository.IUserRepository,
	teams repository.ITeamRepository,
	resets repository.IPasswordResetRepository,
	tokens *auth.TokenIssuer,
	mailer mail.Mailer,
	cfg *config.Config,
) *UserService {
	return &UserService{
		users:  users,
		teams:  teams,
		resets: resets,
		tokens: tokens,
		mailer: mailer,
		cfg:    cfg,
		now:    time.Now,
	}
}

// NewUser describes an account to create outside self-registration.
type NewUser struct {
	Name       string
	Email      string
	Password   string
	Role       permission.Role
	Department string
}

// Create stores a new active account. The role must be known.
func (s *UserService) Create(ctx context.Context, in NewUser) (*model.User, error) {
	email, err := util.NormalizeEmail(in.Email)
	if err != nil {
		return nil, invalid("%s", capitalize(err.Error()))
	}
	name, err := util.NormalizeName(in.Name, email)
	if err != nil {
		return nil, invalid("%s", capitalize(err.Error()))
	}
	if !in.Role.Valid() {
		return nil, invalid("Invalid role %q", in.Role)
	}
	if err := util.ValidatePassword(in.Password); err != nil {
		return nil, invalid("%s", capitalize(err.Error()))
	}
	hash, err := util.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user, err := s.users.Create(ctx, &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
		IsActive:     true,
		Department:   strings.TrimSpace(in.Department),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newError(ErrConflict, "User with this email already exists")
		}
		return nil, err
	}
	return user, nil
}

// Register creates a self-service account and signs it in. Accounts default
// to teamMember; picking another role requires open role registration.
func (s *UserService) Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error) {
	role := permission.RoleTeamMember
	if strings.TrimSpace(req.Role) != "" {
		parsed, err := permission.ParseRole(req.Role)
		if err != nil {
			return nil, invalid("Invalid role")
		}
		if parsed != permission.RoleTeamMember && !s.cfg.Auth.OpenRoleRegistration {
			return nil, denied()
		}
		role = parsed
	}

	user, err := s.Create(ctx, NewUser{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Role:       role,
		Department: req.Department,
	})
	if err != nil {
		return nil, err
	}
	return s.signIn(user)
}

func (s *UserService) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil || !util.VerifyPassword(user.PasswordHash, req.Password) {
		return nil, &Error{Kind: ErrUnauthenticated, Message: "Invalid email or password"}
	}
	if !user.IsActive {
		return nil, &Error{Kind: ErrUnauthenticated, Message: "Account is deactivated"}
	}
	return s.signIn(user)
}

// Refresh exchanges a refresh token for a new token pair.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*model.AuthResponse, error) {
	userID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, &Error{Kind: ErrUnauthenticated, Message: "Invalid refresh token"}
	}
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.signIn(user)
}

// Authenticate resolves an access token to an active user.
func (s *UserService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, &Error{Kind: ErrUnauthenticated, Message: "Invalid or expired token"}
	}
	return s.activeUser(ctx, userID)
}

// ActiveUser reloads an account, failing with ErrUnauthenticated when it was
// removed or deactivated.
func (s *UserService) ActiveUser(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	return s.activeUser(ctx, id)
}

func (s *UserService) activeUser(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	user, err := loadActor(ctx, s.users, id)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, &Error{Kind: ErrUnauthenticated, Message: "Account is deactivated"}
	}
	return user, nil
}

func (s *UserService) signIn(user *model.User) (*model.AuthResponse, error) {
	pair, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &model.AuthResponse{
		User:         user.ToResponse(),
		Token:        pair.Token,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
	}, nil
}

func (s *UserService) Profile(ctx context.Context, callerID primitive.ObjectID) (*model.User, error) {
	return loadActor(ctx, s.users, callerID)
}

func (s *UserService) UpdateProfile(ctx context.Context, callerID primitive.ObjectID, req *model.UpdateProfileRequest) (*model.User, error) {
	update := model.UserUpdate{Department: trimmed(req.Department), Avatar: trimmed(req.Avatar)}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, invalid("Name cannot be empty")
		}
		update.Name = &name
	}
	if update.Empty() {
		return loadActor(ctx, s.users, callerID)
	}
	user, err := s.users.Update(ctx, callerID, update)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, &Error{Kind: ErrUnauthenticated, Message: "User not found"}
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, filter model.UserFilter) (model.Page[model.UserResponse], error) {
	filter.Pagination = normalizePage(filter.Pagination)
	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return model.Page[model.UserResponse]{}, fmt.Errorf("list users: %w", err)
	}
	out := make([]model.UserResponse, len(users))
	for i, u := range users {
		out[i] = u.ToResponse()
	}
	return model.NewPage(out, total, filter.Page, filter.Limit), nil
}

// AdminUpdate changes another user's account. Moving a user to a team also
// adds them to the team's member list.
func (s *UserService) AdminUpdate(ctx context.Context, userID primitive.ObjectID, req *model.AdminUpdateUserRequest) (*model.User, error) {
	current, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if current == nil {
		return nil, notFound("User")
	}

	update := model.UserUpdate{Department: trimmed(req.Department), IsActive: req.IsActive}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, invalid("Name cannot be empty")
		}
		update.Name = &name
	}
	if req.Email != nil {
		email, err := util.NormalizeEmail(*req.Email)
		if err != nil {
			return nil, invalid("%s", capitalize(err.Error()))
		}
		update.Email = &email
	}
	if req.Role != nil {
		role, err := permission.ParseRole(*req.Role)
		if err != nil {
			return nil, invalid("Invalid role")
		}
		update.Role = &role
	}
	var team *model.Team
	if req.TeamID != nil {
		teamID, err := util.ParseObjectID(*req.TeamID)
		if err != nil {
			return nil, invalid("Invalid team ID")
		}
		if team, err = s.teams.FindByID(ctx, teamID); err != nil {
			return nil, fmt.Errorf("find team: %w", err)
		}
		if team == nil {
			return nil, notFound("Team")
		}
		update.TeamID = &teamID
	}

	user, err := s.users.Update(ctx, userID, update)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newError(ErrConflict, "User with this email already exists")
		}
		return nil, err
	}
	if user == nil {
		return nil, notFound("User")
	}
	if team != nil {
		if err := s.moveToTeam(ctx, current, team.ID); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (s *UserService) moveToTeam(ctx context.Context, user *model.User, teamID primitive.ObjectID) error {
	if user.TeamID != nil && *user.TeamID != teamID {
		if _, err := s.teams.RemoveMember(ctx, *user.TeamID, user.ID); err != nil {
			return fmt.Errorf("remove from previous team: %w", err)
		}
	}
	if _, err := s.teams.AddMember(ctx, teamID, user.ID); err != nil {
		return fmt.Errorf("add team member: %w", err)
	}
	return nil
}

// Delete removes an account. Callers cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, callerID, userID primitive.ObjectID) error {
	if callerID == userID {
		return invalid("You cannot delete your own account")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return notFound("User")
	}
	if user.TeamID != nil {
		if _, err := s.teams.RemoveMember(ctx, *user.TeamID, user.ID); err != nil {
			return fmt.Errorf("remove from team: %w", err)
		}
	}
	if _, err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// ForgotPassword mails a reset code and a reset link. Earlier resets for the
// same address are discarded.
func (s *UserService) ForgotPassword(ctx context.Context, rawEmail string) error {
	email, err := util.NormalizeEmail(rawEmail)
	if err != nil {
		return invalid("Valid email is required")
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return newError(ErrNotFound, "No account found with this email")
	}

	code, err := util.GenerateResetCode()
	if err != nil {
		return err
	}
	token, err := util.GenerateResetToken()
	if err != nil {
		return err
	}
	if err := s.resets.DeleteByEmail(ctx, email); err != nil {
		return fmt.Errorf("clear password resets: %w", err)
	}
	now := s.now()
	if _, err := s.resets.Create(ctx, &model.PasswordReset{
		Email:     email,
		UserID:    user.ID,
		CodeHash:  util.HashResetSecret(code),
		TokenHash: util.HashResetSecret(token),
		ExpiresAt: now.Add(model.PasswordResetTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}

	msg := mail.PasswordResetMessage(s.cfg.App.Name, email, code, s.resetLink(token, email))
	if err := s.mailer.Send(ctx, msg); err != nil {
		slog.Warn("password reset email failed", "email", email, "error", err)
	}
	return nil
}

// resetLink points at the frontend's hash-routed reset page.
func (s *UserService) resetLink(token, email string) string {
	path := "/reset?token=" + url.QueryEscape(token) + "&email=" + url.QueryEscape(email)
	base := s.cfg.App.FrontendURL
	if strings.Contains(base, "#") {
		return base + path
	}
	return base + "#" + path
}

func errInvalidReset() *Error {
	return invalid("Invalid or expired code")
}

// matchCode returns the active reset for email when code matches it. Every
// miss counts against the reset, which stops accepting codes after
// model.MaxResetCodeAttempts.
func (s *UserService) matchCode(ctx context.Context, email, code string) (*model.PasswordReset, error) {
	reset, err := s.resets.FindActive(ctx, email, s.now())
	if err != nil {
		return nil, fmt.Errorf("find password reset: %w", err)
	}
	if reset == nil {
		return nil, errInvalidReset()
	}
	if subtle.ConstantTimeCompare([]byte(reset.CodeHash), []byte(util.HashResetSecret(code))) == 1 {
		return reset, nil
	}
	attempts, err := s.resets.RecordFailedAttempt(ctx, reset.ID, model.MaxResetCodeAttempts)
	if err != nil {
		return nil, fmt.Errorf("record password reset attempt: %w", err)
	}
	if attempts >= model.MaxResetCodeAttempts {
		slog.Warn("password reset locked after failed codes", "email", email, "attempts", attempts)
	}
	return nil, errInvalidReset()
}

func (s *UserService) VerifyResetCode(ctx context.Context, req *model.VerifyResetCodeRequest) error {
	email := strings.TrimSpace(strings.ToLower(req.Email))
	_, err := s.matchCode(ctx, email, req.Code)
	return err
}

// ResetPassword sets a new password using either the emailed token or the
// email and code pair. Each reset can be used once.
func (s *UserService) ResetPassword(ctx context.Context, req *model.ResetPasswordRequest) error {
	if err := util.ValidatePassword(req.NewPassword); err != nil {
		return invalid("Password must be at least %d characters", util.MinPasswordLength)
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))

	var (
		reset *model.PasswordReset
		err   error
	)
	switch {
	case req.Token != "":
		reset, err = s.resets.FindByTokenHash(ctx, util.HashResetSecret(req.Token), email, s.now())
		if err != nil {
			return fmt.Errorf("find password reset: %w", err)
		}
		if reset == nil {
			return errInvalidReset()
		}
	case req.Code != "":
		if reset, err = s.matchCode(ctx, email, req.Code); err != nil {
			return err
		}
	default:
		return invalid("Provide either token, or email and code")
	}

	user, err := s.users.FindByID(ctx, reset.UserID)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return notFound("User")
	}

	consumed, err := s.resets.MarkUsed(ctx, reset.ID)
	if err != nil {
		return err
	}
	if !consumed {
		return errInvalidReset()
	}
	hash, err := util.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.SetPassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}

// EnsureSystemUser creates the configured bootstrap CEO when no account with
// its email exists yet.
func (s *UserService) EnsureSystemUser(ctx context.Context, sys config.SystemUserConfig) (*model.User, bool, error) {
	email, err := util.NormalizeEmail(sys.Email)
	if err != nil {
		return nil, false, fmt.Errorf("system user email: %w", err)
	}
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, false, fmt.Errorf("find system user: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}
	if sys.Password == "" {
		slog.Warn("system user not created: SYSTEM_USER_PASSWORD is empty", "email", email)
		return nil, false, nil
	}
	user, err := s.Create(ctx, NewUser{
		Name:     sys.Name,
		Email:    email,
		Password: sys.Password,
		Role:     permission.RoleCEO,
	})
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
