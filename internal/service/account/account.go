// internal/service/account/account.go
package account

import (
	"context"
	"fmt"
	"time"

	"panel-service/internal/domain/session"
	"panel-service/internal/domain/user"
	wstypes "panel-service/internal/domain/websocket"
	xerrors "panel-service/internal/pkg/errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the durable user record backend.
type UserStore interface {
	Create(u *user.User) error
	Get(username string) (*user.User, error)
	Update(username string, fn func(*user.User) error) error
	Delete(username string) error
	List() ([]*user.User, error)
}

// SessionEnder terminates a user's live session when their account is
// deleted.
type SessionEnder interface {
	Terminate(ctx context.Context, req session.TerminateRequest) (string, error)
}

// ActiveLookup finds the live session a push event should target.
type ActiveLookup interface {
	GetByUsername(ctx context.Context, username string) (*session.ActiveSession, error)
}

// Notifier pushes service grant changes to a user's live channel.
type Notifier interface {
	Send(sessionID string, msg *wstypes.WSMessage)
}

// Service implements user provisioning and service grant management for
// admins and resellers. Resellers act only on users they created.
type Service struct {
	users    UserStore
	sessions ActiveLookup
	ender    SessionEnder
	notifier Notifier
	logger   *zap.Logger
}

func NewService(users UserStore, sessions ActiveLookup, ender SessionEnder, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		ender:    ender,
		notifier: notifier,
		logger:   logger,
	}
}

// CreateUser provisions a new account. Resellers always create plain users
// and the record carries their username as creator.
func (s *Service) CreateUser(ctx context.Context, actor session.Identity, req *user.CreateUserRequest) (*user.Info, error) {
	role := req.Role
	if role == "" {
		role = user.RoleUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", req.Role)
	}

	createdBy := ""
	if actor.Role == string(user.RoleReseller) {
		role = user.RoleUser
		createdBy = actor.Username
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash secret: %w", err)
	}

	u := &user.User{
		Username:   req.Username,
		SecretHash: string(hash),
		Role:       role,
		JoinedAt:   time.Now(),
		CreatedBy:  createdBy,
		Services:   []string{},
	}

	if err := s.users.Create(u); err != nil {
		return nil, err
	}

	s.logger.Info("user created",
		zap.String("username", u.Username),
		zap.String("role", string(u.Role)),
		zap.String("created_by", createdBy),
	)

	info := u.Info()
	return &info, nil
}

// DeleteUser removes an account and force-ends its live session if one
// exists.
func (s *Service) DeleteUser(ctx context.Context, actor session.Identity, username string) error {
	target, err := s.users.Get(username)
	if err != nil {
		return err
	}
	if !s.CanManage(actor, target) {
		return xerrors.ErrForbidden
	}

	if _, err := s.ender.Terminate(ctx, session.TerminateRequest{Username: username}); err != nil {
		if !xerrors.Is(err, xerrors.ErrNotFound) {
			s.logger.Error("failed to end session of deleted user",
				zap.String("username", username),
				zap.Error(err),
			)
		}
	}

	return s.users.Delete(username)
}

// GrantService grants time-limited access to a named service and pushes a
// service_updated event to the user's live channel.
func (s *Service) GrantService(ctx context.Context, actor session.Identity, username string, req *user.GrantServiceRequest) error {
	target, err := s.users.Get(username)
	if err != nil {
		return err
	}
	if !s.CanManage(actor, target) {
		return xerrors.ErrForbidden
	}

	err = s.users.Update(username, func(u *user.User) error {
		u.Grant(req.Service, req.ExpiresAt)
		return nil
	})
	if err != nil {
		return err
	}

	s.pushServiceUpdate(ctx, username, req.Service, true, &req.ExpiresAt)
	return nil
}

// RevokeService removes access to a named service.
func (s *Service) RevokeService(ctx context.Context, actor session.Identity, username, service string) error {
	target, err := s.users.Get(username)
	if err != nil {
		return err
	}
	if !s.CanManage(actor, target) {
		return xerrors.ErrForbidden
	}

	err = s.users.Update(username, func(u *user.User) error {
		if !u.Revoke(service) {
			return xerrors.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.pushServiceUpdate(ctx, username, service, false, nil)
	return nil
}

// ListUsers returns the accounts visible to the actor: everything for
// admins, own sub-users for resellers.
func (s *Service) ListUsers(ctx context.Context, actor session.Identity) ([]user.Info, error) {
	all, err := s.users.List()
	if err != nil {
		return nil, err
	}

	infos := make([]user.Info, 0, len(all))
	for _, u := range all {
		if actor.Role == string(user.RoleReseller) && u.CreatedBy != actor.Username {
			continue
		}
		infos = append(infos, u.Info())
	}
	return infos, nil
}

// CanManage reports whether the actor may act on the target account.
func (s *Service) CanManage(actor session.Identity, target *user.User) bool {
	if actor.Role == string(user.RoleAdmin) {
		return true
	}
	if actor.Role == string(user.RoleReseller) {
		return target.CreatedBy == actor.Username
	}
	return false
}

// EnsureRootAdmin creates the bootstrap admin account if it does not exist.
func (s *Service) EnsureRootAdmin(username, secret string) error {
	if _, err := s.users.Get(username); err == nil {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash secret: %w", err)
	}

	u := &user.User{
		Username:   username,
		SecretHash: string(hash),
		Role:       user.RoleAdmin,
		JoinedAt:   time.Now(),
		Services:   []string{},
	}
	if err := s.users.Create(u); err != nil && !xerrors.Is(err, xerrors.ErrDuplicateEntry) {
		return err
	}

	s.logger.Info("root admin ensured", zap.String("username", username))
	return nil
}

func (s *Service) pushServiceUpdate(ctx context.Context, username, service string, granted bool, expiresAt *time.Time) {
	sess, err := s.sessions.GetByUsername(ctx, username)
	if err != nil {
		return // not logged in; they see the change on next login
	}

	s.notifier.Send(sess.SessionID, wstypes.NewMessage(wstypes.EventTypeServiceUpdated, wstypes.ServiceEventData{
		Username:  username,
		Service:   service,
		Granted:   granted,
		ExpiresAt: expiresAt,
	}))
}
