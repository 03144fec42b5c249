package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"casa/internal/core"
	"casa/internal/log"
	"casa/internal/storage"
)

const joinCodeLength = 6

// HouseholdService manages household membership: creation with invite
// codes, joining, leaving, and the explicit deletion protocol.
type HouseholdService struct {
	store  *storage.Store
	logger *log.Logger
}

func NewHouseholdService(store *storage.Store) *HouseholdService {
	return &HouseholdService{
		store:  store,
		logger: log.ForComponent(log.ComponentHousehold),
	}
}

// Create makes a new household with the caller as creator and first
// member, and points their current household at it.
func (s *HouseholdService) Create(ctx context.Context, userID, name string) (*core.Household, error) {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	h := core.Household{
		Name:      name,
		CreatedBy: userID,
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}

	// Retry on the off chance of a code collision
	for attempt := 0; attempt < 5; attempt++ {
		code, err := generateJoinCode()
		if err != nil {
			return nil, fmt.Errorf("generate join code: %w", err)
		}
		h.Code = code

		err = s.store.CreateHousehold(ctx, &h)
		if err == nil {
			return &h, nil
		}
		if !errors.Is(err, storage.ErrCodeTaken) {
			return nil, fmt.Errorf("create household: %w", err)
		}
		h.ID = ""
	}
	return nil, fmt.Errorf("create household: could not allocate a unique join code")
}

// Join adds the caller to the household matching the invite code and
// switches their current household to it.
func (s *HouseholdService) Join(ctx context.Context, userID, code string) (*core.Household, error) {
	h, err := s.store.GetHouseholdByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.store.AddMember(ctx, h.ID, userID); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Member joined household", log.NewFields().
		WithOperation(log.OpJoin).
		WithUser(userID).
		WithHousehold(h.ID).
		ToSlice()...)
	return h, nil
}

// Current returns the caller's household and its members.
func (s *HouseholdService) Current(ctx context.Context, userID string) (*core.Household, []core.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("get user: %w", err)
	}
	if user.HouseholdID == "" {
		return nil, nil, core.ErrNoHousehold
	}
	h, err := s.store.GetHousehold(ctx, user.HouseholdID)
	if err != nil {
		return nil, nil, err
	}
	members, err := s.store.ListMembers(ctx, h.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list members: %w", err)
	}
	return h, members, nil
}

// Leave removes the caller from their current household. The creator
// cannot leave; they must delete the household instead.
func (s *HouseholdService) Leave(ctx context.Context, userID string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user.HouseholdID == "" {
		return core.ErrNoHousehold
	}
	h, err := s.store.GetHousehold(ctx, user.HouseholdID)
	if err != nil {
		return err
	}
	if h.CreatedBy == userID {
		return core.ErrCreatorCannotLeave
	}
	if err := s.store.RemoveMember(ctx, h.ID, userID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Member left household", log.NewFields().
		WithOperation(log.OpLeave).
		WithUser(userID).
		WithHousehold(h.ID).
		ToSlice()...)
	return nil
}

// Delete removes the caller's household entirely. Creator-only. Every
// member's current-household pointer is cleared before the cascade.
func (s *HouseholdService) Delete(ctx context.Context, userID string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user.HouseholdID == "" {
		return core.ErrNoHousehold
	}
	h, err := s.store.GetHousehold(ctx, user.HouseholdID)
	if err != nil {
		return err
	}
	if h.CreatedBy != userID {
		return core.ErrForbidden
	}
	return s.store.DeleteHousehold(ctx, h.ID)
}

// generateJoinCode returns a 6-character uppercase alphanumeric code.
// Ambiguous characters are excluded.
func generateJoinCode() (string, error) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	buf := make([]byte, joinCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}
