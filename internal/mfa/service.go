package mfa

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/wolfman30/clinic-console/internal/apperrors"
	"github.com/wolfman30/clinic-console/internal/viewstate"
	"github.com/wolfman30/clinic-console/pkg/logging"
)

var codePattern = regexp.MustCompile(`^\d{6}$`)

// Status is the backend's view of the user's MFA.
type Status struct {
	Enabled bool   `json:"enabled"`
	Method  string `json:"method,omitempty"`
}

// Setup is the enrolment material returned by the backend, already
// normalized to one QR field.
type Setup struct {
	Secret     string `json:"secret,omitempty"`
	QRCode     string `json:"qr_code,omitempty"`
	OTPAuthURL string `json:"otpauth_url,omitempty"`
}

// VerifyResult is returned once a code has been accepted.
type VerifyResult struct {
	BackupCodes []string `json:"backup_codes,omitempty"`
}

// Backend is the MFA part of the clinic backend.
type Backend interface {
	MFAStatus(ctx context.Context) (Status, error)
	MFASetup(ctx context.Context) (Setup, error)
	MFAVerify(ctx context.Context, code string) (VerifyResult, error)
	MFADisable(ctx context.Context, code string) error
}

// StateStore persists the machine state per user.
type StateStore interface {
	Get(ctx context.Context, userID string, screen viewstate.Screen, dst any) (bool, error)
	Put(ctx context.Context, userID string, screen viewstate.Screen, value any) error
}

// Snapshot is the persisted machine state.
type Snapshot struct {
	State     State     `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

// View is what the settings screen renders.
type View struct {
	State       State    `json:"state"`
	Enabled     bool     `json:"enabled"`
	Method      string   `json:"method,omitempty"`
	Setup       *Setup   `json:"setup,omitempty"`
	BackupCodes []string `json:"backup_codes,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// Service runs the MFA machine for one user at a time against the backend.
type Service struct {
	backend Backend
	states  StateStore
	logger  *logging.Logger
	now     func() time.Time
}

// NewService creates an MFA service.
func NewService(backend Backend, states StateStore, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{backend: backend, states: states, logger: logger, now: time.Now}
}

// NormalizeCode strips spaces and dashes and checks for six digits.
func NormalizeCode(raw string) (string, error) {
	code := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(raw))
	if !codePattern.MatchString(code) {
		return "", apperrors.Validation("code", "Please enter the 6-digit code from your authenticator app")
	}
	return code, nil
}

func (s *Service) load(ctx context.Context, userID string) State {
	if s.states == nil {
		return StateDisabled
	}
	var snap Snapshot
	found, err := s.states.Get(ctx, userID, viewstate.ScreenMFA, &snap)
	if err != nil {
		s.logger.Warn("mfa: load state", "user_id", userID, "error", err)
		return StateDisabled
	}
	if !found || !snap.State.Valid() {
		return StateDisabled
	}
	return snap.State
}

func (s *Service) save(ctx context.Context, userID string, state State) {
	if s.states == nil {
		return
	}
	if err := s.states.Put(ctx, userID, viewstate.ScreenMFA, Snapshot{State: state, UpdatedAt: s.now().UTC()}); err != nil {
		s.logger.Warn("mfa: save state", "user_id", userID, "state", state, "error", err)
	}
}

// sync reconciles the persisted state with the backend's enabled flag.
func (s *Service) sync(ctx context.Context, userID string) (State, Status, error) {
	current := s.load(ctx, userID)
	status, err := s.backend.MFAStatus(ctx)
	if err != nil {
		return current, Status{}, apperrors.NewOperationError("mfa_status", err, "Failed to load MFA settings")
	}
	event := EventBackendDisabled
	if status.Enabled {
		event = EventBackendEnabled
	}
	next, err := current.Next(event)
	if err != nil {
		return current, status, err
	}
	if next != current {
		s.save(ctx, userID, next)
	}
	return next, status, nil
}

// Current returns the reconciled state.
func (s *Service) Current(ctx context.Context, userID string) (View, error) {
	state, status, err := s.sync(ctx, userID)
	if err != nil {
		return View{}, err
	}
	return View{State: state, Enabled: state == StateEnabled, Method: status.Method}, nil
}

// BeginSetup requests enrolment material and moves to setup pending.
func (s *Service) BeginSetup(ctx context.Context, userID string) (View, error) {
	current, _, err := s.sync(ctx, userID)
	if err != nil {
		return View{}, err
	}
	next, err := current.Next(EventBeginSetup)
	if err != nil {
		return View{State: current}, err
	}

	setup, err := s.backend.MFASetup(ctx)
	if err != nil {
		return View{State: current}, apperrors.NewOperationError("mfa_setup", err, "Failed to start MFA setup")
	}
	s.save(ctx, userID, next)
	return View{State: next, Setup: &setup}, nil
}

// Verify submits a code during setup. A rejected code returns to setup
// pending so the user can retry.
func (s *Service) Verify(ctx context.Context, userID, rawCode string) (View, error) {
	code, err := NormalizeCode(rawCode)
	if err != nil {
		return View{}, err
	}
	current := s.load(ctx, userID)
	verifying, err := current.Next(EventSubmitCode)
	if err != nil {
		return View{State: current}, err
	}
	s.save(ctx, userID, verifying)

	result, err := s.backend.MFAVerify(ctx, code)
	if err != nil {
		back, _ := verifying.Next(EventVerifyFailed)
		s.save(ctx, userID, back)
		return View{State: back}, apperrors.NewOperationError("mfa_verify", err, "Invalid verification code")
	}

	enabled, _ := verifying.Next(EventVerifySucceeded)
	s.save(ctx, userID, enabled)
	s.logger.Info("mfa: enabled", "user_id", userID)
	return View{
		State:       enabled,
		Enabled:     true,
		BackupCodes: result.BackupCodes,
		Message:     "Two-factor authentication enabled",
	}, nil
}

// Cancel abandons an in-progress setup.
func (s *Service) Cancel(ctx context.Context, userID string) (View, error) {
	current := s.load(ctx, userID)
	next, err := current.Next(EventCancel)
	if err != nil {
		return View{State: current}, err
	}
	s.save(ctx, userID, next)
	return View{State: next}, nil
}

// Disable turns MFA off after confirming a current code.
func (s *Service) Disable(ctx context.Context, userID, rawCode string) (View, error) {
	code, err := NormalizeCode(rawCode)
	if err != nil {
		return View{}, err
	}
	current, _, err := s.sync(ctx, userID)
	if err != nil {
		return View{}, err
	}
	next, err := current.Next(EventDisable)
	if err != nil {
		return View{State: current}, err
	}

	if err := s.backend.MFADisable(ctx, code); err != nil {
		return View{State: current, Enabled: true}, apperrors.NewOperationError("mfa_disable", err, "Failed to disable MFA")
	}
	s.save(ctx, userID, next)
	s.logger.Info("mfa: disabled", "user_id", userID)
	return View{State: next, Message: "Two-factor authentication disabled"}, nil
}
