// Package auth implements the register/login flow that gates module links
// behind a local username and password layered over the platform identity.
//
// A user moves through Unregistered, RegistrationPending (prompt sent, no
// credential yet) and Registered (credential stored). Login never stores
// anything: each call re-verifies the password and re-requests the role.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/guildkeeper/internal/common"
	"github.com/dmitrijs2005/guildkeeper/internal/logging"
	"github.com/dmitrijs2005/guildkeeper/internal/server/models"
	"github.com/dmitrijs2005/guildkeeper/internal/server/repositories/credentials"
)

// RegistrationPrompt is sent privately when a user issues register.
const RegistrationPrompt = "Please reply here with your username and password in the format: `<username> <password>`"

// Platform is the part of the chat platform the auth flow calls out to.
type Platform interface {
	SendPrivateMessage(ctx context.Context, userID, text string) error
	// GrantRole must be idempotent.
	GrantRole(ctx context.Context, userID, roleID string) error
}

// LoginResult describes a successful login. ModuleFound is false when the
// requested module was omitted or is not in the registry.
type LoginResult struct {
	Module      string
	URL         string
	ModuleFound bool
}

type Service struct {
	repo       credentials.Repository
	hasher     Hasher
	platform   Platform
	authRoleID string
	modules    map[string]string
	logger     logging.Logger
}

func NewService(repo credentials.Repository, hasher Hasher, platform Platform, authRoleID string, modules map[string]string, logger logging.Logger) *Service {
	return &Service{
		repo:       repo,
		hasher:     hasher,
		platform:   platform,
		authRoleID: authRoleID,
		modules:    modules,
		logger:     logger.With("module", "auth"),
	}
}

func (s *Service) lookup(ctx context.Context, userID string) (*models.Credential, error) {
	c, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		s.logger.Error(ctx, "credential lookup failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return c, nil
}

// Register starts registration by prompting the user privately. Nothing is
// persisted until CompleteRegistration.
func (s *Service) Register(ctx context.Context, userID string) error {
	c, err := s.lookup(ctx, userID)
	if err != nil {
		return err
	}
	if c != nil {
		return ErrAlreadyRegistered
	}

	if err := s.platform.SendPrivateMessage(ctx, userID, RegistrationPrompt); err != nil {
		s.logger.Warn(ctx, "registration prompt not delivered", "user_id", userID, "error", err)
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	s.logger.Info(ctx, "registration prompt sent", "user_id", userID)
	return nil
}

// CompleteRegistration parses "<username> <password>" from a private message
// and stores the credential. Tokens after the password are ignored.
func (s *Service) CompleteRegistration(ctx context.Context, userID, content string) (*models.Credential, error) {
	fields := strings.Fields(content)
	if len(fields) < 2 {
		return nil, ErrInvalidFormat
	}
	username, password := fields[0], fields[1]

	existing, err := s.lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyRegistered
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error(ctx, "password hashing failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	c := &models.Credential{UserID: userID, Username: username, PasswordHash: hash}
	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, ErrAlreadyRegistered
		}
		s.logger.Error(ctx, "credential create failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	s.logger.Info(ctx, "user registered", "user_id", userID, "username", username)
	return c, nil
}

// Login handles "login <username> <password> <module>"; args are the tokens
// after the command word.
//
// Only the password is verified. The supplied username is not compared with
// the stored one, so any username works for a user who knows their password.
func (s *Service) Login(ctx context.Context, userID string, args []string) (*LoginResult, error) {
	if len(args) < 2 || args[0] == "" || args[1] == "" {
		return nil, ErrUsage
	}
	password := args[1]
	var module string
	if len(args) > 2 {
		module = args[2]
	}

	c, err := s.lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrUserNotFound
	}

	ok, err := s.hasher.Verify(c.PasswordHash, password)
	if err != nil {
		s.logger.Error(ctx, "password verification failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	if !ok {
		s.logger.Info(ctx, "login rejected", "user_id", userID)
		return nil, ErrIncorrectPassword
	}

	if err := s.platform.GrantRole(ctx, userID, s.authRoleID); err != nil {
		s.logger.Error(ctx, "role grant failed", "user_id", userID, "role_id", s.authRoleID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrRoleGrant, err)
	}
	s.logger.Info(ctx, "role granted", "user_id", userID, "role_id", s.authRoleID)

	res := &LoginResult{Module: module}
	if url, found := s.modules[module]; found && module != "" {
		res.URL = url
		res.ModuleFound = true
	}
	return res, nil
}
