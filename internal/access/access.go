// Package access keeps the booking blocklist. Authentication happens
// upstream; this layer only decides whether an already-identified user is
// allowed to take slots.
package access

import (
	"context"
	"fmt"

	"innoviahub/internal/models"

	"github.com/rs/zerolog"
)

// Blocklist is the storage surface for blocked users.
type Blocklist interface {
	IsBlocked(ctx context.Context, userID string) (bool, error)
	BlockUser(ctx context.Context, userID, reason, blockedBy string) error
	UnblockUser(ctx context.Context, userID string) error
	ListBlockedUsers(ctx context.Context) ([]models.BlockedUser, error)
}

// Service enforces the blocklist. Mutations are admin-only.
type Service struct {
	blocklist Blocklist
	logger    *zerolog.Logger
}

// NewService constructs the access service.
func NewService(blocklist Blocklist, logger *zerolog.Logger) *Service {
	return &Service{blocklist: blocklist, logger: logger}
}

// IsBlocked reports whether the user may not book.
func (s *Service) IsBlocked(ctx context.Context, userID string) (bool, error) {
	return s.blocklist.IsBlocked(ctx, userID)
}

// Block bars a user from booking.
func (s *Service) Block(ctx context.Context, adminID string, isAdmin bool, userID, reason string) error {
	if !isAdmin {
		return fmt.Errorf("%w: only admins may block users", models.ErrForbidden)
	}
	if userID == "" {
		return fmt.Errorf("%w: user id is required", models.ErrInvalidArgument)
	}

	if err := s.blocklist.BlockUser(ctx, userID, reason, adminID); err != nil {
		return err
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("blocked_by", adminID).
		Str("reason", reason).
		Msg("user blocked")
	return nil
}

// Unblock lifts a block.
func (s *Service) Unblock(ctx context.Context, isAdmin bool, userID string) error {
	if !isAdmin {
		return fmt.Errorf("%w: only admins may unblock users", models.ErrForbidden)
	}

	if err := s.blocklist.UnblockUser(ctx, userID); err != nil {
		return err
	}

	s.logger.Info().Str("user_id", userID).Msg("user unblocked")
	return nil
}

// List returns all blocklist entries.
func (s *Service) List(ctx context.Context, isAdmin bool) ([]models.BlockedUser, error) {
	if !isAdmin {
		return nil, fmt.Errorf("%w: only admins may view the blocklist", models.ErrForbidden)
	}
	return s.blocklist.ListBlockedUsers(ctx)
}
