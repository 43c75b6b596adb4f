package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-console/internal/apperrors"
	"github.com/wolfman30/clinic-console/internal/viewstate"
	"github.com/wolfman30/clinic-console/pkg/logging"
)

// StateStore persists the onboarding flag per user.
type StateStore interface {
	Get(ctx context.Context, userID string, screen viewstate.Screen, dst any) (bool, error)
	Put(ctx context.Context, userID string, screen viewstate.Screen, value any) error
	Delete(ctx context.Context, userID string, screen viewstate.Screen) error
}

// Onboarding is the persisted onboarding state. While Blocking is set the
// console only allows calendar routes.
type Onboarding struct {
	Blocking  bool      `json:"blocking"`
	StartedAt time.Time `json:"started_at"`
}

// Service wraps the backend calendar operations and the onboarding flag.
type Service struct {
	backend Backend
	states  StateStore
	logger  *logging.Logger
	now     func() time.Time
}

// NewService creates a calendar service.
func NewService(backend Backend, states StateStore, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{backend: backend, states: states, logger: logger, now: time.Now}
}

// Accounts returns the reconciled account list.
func (s *Service) Accounts(ctx context.Context) ([]Account, error) {
	accounts, err := s.backend.ListCalendarAccounts(ctx)
	if err != nil {
		return nil, apperrors.NewOperationError("list_calendar_accounts", err, "Failed to load calendar connections")
	}
	return Reconcile(accounts), nil
}

// Connect starts an OAuth connection for provider.
func (s *Service) Connect(ctx context.Context, rawProvider, redirectURI string) (ConnectResult, error) {
	provider, ok := ParseProvider(rawProvider)
	if !ok {
		return ConnectResult{}, apperrors.Validation("provider", "Please choose Google or Outlook")
	}
	result, err := s.backend.ConnectCalendar(ctx, ConnectRequest{Provider: provider, RedirectURI: strings.TrimSpace(redirectURI)})
	if err != nil {
		return ConnectResult{}, apperrors.NewOperationError("connect_calendar", err, "Failed to connect calendar")
	}
	if result.AuthURL == "" {
		return ConnectResult{}, apperrors.NewOperationError("connect_calendar",
			fmt.Errorf("calendar: empty auth url for %s", provider), "Failed to connect calendar")
	}
	return result, nil
}

// Disconnect removes a calendar connection.
func (s *Service) Disconnect(ctx context.Context, accountID string) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return apperrors.Validation("account_id", "Please select a calendar")
	}
	if err := s.backend.DisconnectCalendar(ctx, accountID); err != nil {
		return apperrors.NewOperationError("disconnect_calendar", err, "Failed to disconnect calendar")
	}
	return nil
}

// Onboarding returns the user's onboarding state.
func (s *Service) Onboarding(ctx context.Context, userID string) (Onboarding, error) {
	var state Onboarding
	if s.states == nil {
		return state, nil
	}
	if _, err := s.states.Get(ctx, userID, viewstate.ScreenCalendarOnboarding, &state); err != nil {
		return Onboarding{}, fmt.Errorf("calendar: load onboarding: %w", err)
	}
	return state, nil
}

// StartOnboarding raises the blocking flag.
func (s *Service) StartOnboarding(ctx context.Context, userID string) (Onboarding, error) {
	state := Onboarding{Blocking: true, StartedAt: s.now().UTC()}
	if s.states == nil {
		return state, nil
	}
	if err := s.states.Put(ctx, userID, viewstate.ScreenCalendarOnboarding, state); err != nil {
		return Onboarding{}, fmt.Errorf("calendar: start onboarding: %w", err)
	}
	s.logger.Info("calendar: onboarding started", "user_id", userID)
	return state, nil
}

// CompleteOnboarding clears the blocking flag once a calendar is connected.
func (s *Service) CompleteOnboarding(ctx context.Context, userID string) (Onboarding, error) {
	accounts, err := s.Accounts(ctx)
	if err != nil {
		return Onboarding{}, err
	}
	if !HasConnected(accounts) {
		return Onboarding{}, apperrors.Validation("calendar", "Connect a calendar to continue")
	}
	if s.states != nil {
		if err := s.states.Delete(ctx, userID, viewstate.ScreenCalendarOnboarding); err != nil {
			return Onboarding{}, fmt.Errorf("calendar: complete onboarding: %w", err)
		}
	}
	s.logger.Info("calendar: onboarding completed", "user_id", userID)
	return Onboarding{}, nil
}
