package push

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nikolepapaioannou-stack/u-schedule-sub001/internal/api"
	"github.com/nikolepapaioannou-stack/u-schedule-sub001/internal/cache"
	"github.com/nikolepapaioannou-stack/u-schedule-sub001/internal/device"
	"github.com/nikolepapaioannou-stack/u-schedule-sub001/internal/log"
)

// RegistrationState tracks the session's push-registration lifecycle.
type RegistrationState int

const (
	StateUnregistered RegistrationState = iota
	StateRegistering
	StateRegistered
	StateFailed
)

func (s RegistrationState) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistering:
		return "registering"
	case StateRegistered:
		return "registered"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// EstablishResult reports the outcome of Establish. Token is set whenever a
// platform token was acquired, even if the server rejected its registration,
// so callers can tell "token exists but the server doesn't know it" apart
// from "we have nothing".
type EstablishResult struct {
	Success bool
	Token   string
}

// Session binds the device's push capability to the current authenticated
// session: at most one registration attempt in flight, at most one successful
// registration per identity, and exactly one pair of notification listeners
// while registered.
type Session struct {
	capability  Capability
	registrar   api.TokenRegistrar
	invalidator cache.Invalidator
	probe       device.Probe
	projectID   string
	log         zerolog.Logger

	mu        sync.Mutex
	state     RegistrationState
	identity  string
	token     string
	received  Subscription
	responded Subscription
	// epoch gates continuations of an in-flight Establish: Teardown bumps it,
	// after which the stale attempt commits nothing.
	epoch uint64
}

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithDeviceProbe overrides the physical-device eligibility check.
func WithDeviceProbe(p device.Probe) SessionOption {
	return func(s *Session) { s.probe = p }
}

// WithSessionLogger replaces the session's logger.
func WithSessionLogger(l zerolog.Logger) SessionOption {
	return func(s *Session) { s.log = l }
}

// NewSession creates a session around the injected collaborators. projectID
// identifies the push project used when requesting tokens.
func NewSession(capability Capability, registrar api.TokenRegistrar, invalidator cache.Invalidator, projectID string, opts ...SessionOption) *Session {
	s := &Session{
		capability:  capability,
		registrar:   registrar,
		invalidator: invalidator,
		probe:       device.HostProbe{},
		projectID:   projectID,
		log:         log.WithComponent("push"),
		state:       StateUnregistered,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State reports the current registration state.
func (s *Session) State() RegistrationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// QueryPermission probes the platform permission state without prompting.
// Unsupported platforms report everything false.
func (s *Session) QueryPermission(ctx context.Context) PermissionProbe {
	if !s.capability.Supported() {
		return PermissionProbe{}
	}
	status, err := s.capability.Permissions(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("permission query failed")
		return PermissionProbe{}
	}
	return PermissionProbe{
		Granted:            status.Granted,
		CanAskAgain:        status.CanAskAgain,
		ShouldOpenSettings: !status.Granted && !status.CanAskAgain,
	}
}

// Establish registers the device for push delivery under the given bearer
// credential. It is idempotent per identity: once registration succeeded for
// the current user, later calls return the cached outcome. Failures of any
// step are absorbed into the result; nothing is thrown past this boundary.
func (s *Session) Establish(ctx context.Context, credential string) EstablishResult {
	identity := identityFromCredential(credential)

	s.mu.Lock()
	if s.state == StateRegistered && s.identity == identity {
		res := EstablishResult{Success: true, Token: s.token}
		s.mu.Unlock()
		return res
	}
	if s.state == StateRegistering {
		// One attempt in flight; the caller retries on the next launch.
		s.mu.Unlock()
		return EstablishResult{}
	}
	s.state = StateRegistering
	s.identity = identity
	epoch := s.epoch
	s.mu.Unlock()

	if !s.capability.Supported() || !s.probe.Physical() {
		s.log.Debug().Msg("push unsupported on this platform or device")
		s.settle(epoch, StateUnregistered, "")
		return EstablishResult{}
	}

	if !s.requestPermission(ctx) {
		s.settle(epoch, StateFailed, "")
		return EstablishResult{}
	}
	if s.stale(epoch) {
		return EstablishResult{}
	}

	token, err := s.capability.Token(ctx, s.projectID)
	if err != nil || token == "" {
		s.log.Warn().Err(err).Msg("push token acquisition failed")
		s.settle(epoch, StateFailed, "")
		return EstablishResult{}
	}
	if s.stale(epoch) {
		return EstablishResult{}
	}

	if err := s.registrar.RegisterPushToken(ctx, credential, token); err != nil {
		// Partial success: the token exists, the server just doesn't know it.
		s.log.Warn().Err(err).Msg("push token registration rejected")
		s.settle(epoch, StateFailed, token)
		return EstablishResult{Token: token}
	}

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return EstablishResult{}
	}
	s.token = token
	s.state = StateRegistered
	if s.received == nil {
		s.received = s.capability.OnReceived(s.handleReceived)
	}
	if s.responded == nil {
		s.responded = s.capability.OnResponse(s.handleResponse)
	}
	s.mu.Unlock()

	s.log.Info().Str("identity", identity).Msg("push registration established")
	return EstablishResult{Success: true, Token: token}
}

// Teardown unwinds the registration: best-effort server unregistration,
// listener removal, and a state reset so a future Establish can serve a new
// identity. Safe to call repeatedly and when nothing was ever established.
func (s *Session) Teardown(ctx context.Context, credential string) {
	s.mu.Lock()
	s.epoch++
	received, responded := s.received, s.responded
	s.received, s.responded = nil, nil
	hadToken := s.token != ""
	s.token = ""
	s.identity = ""
	s.state = StateUnregistered
	s.mu.Unlock()

	if received != nil {
		received.Remove()
	}
	if responded != nil {
		responded.Remove()
	}

	if hadToken {
		if err := s.registrar.UnregisterPushToken(ctx, credential); err != nil {
			s.log.Warn().Err(err).Msg("push token unregistration failed")
		}
	}
}

// requestPermission returns true when notification permission is granted,
// prompting at most once and only when the platform allows re-prompting.
func (s *Session) requestPermission(ctx context.Context) bool {
	status, err := s.capability.Permissions(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("permission query failed")
		return false
	}
	if status.Granted {
		return true
	}
	if !status.CanAskAgain {
		return false
	}
	status, err = s.capability.RequestPermission(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("permission prompt failed")
		return false
	}
	return status.Granted
}

// settle records the outcome of an Establish attempt unless a Teardown
// superseded it in the meantime.
func (s *Session) settle(epoch uint64, state RegistrationState, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return
	}
	s.state = state
	s.token = token
	if state != StateRegistered {
		s.identity = ""
	}
}

func (s *Session) stale(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return epoch != s.epoch
}

func (s *Session) handleReceived(n Notification) {
	s.invalidator.Invalidate(cache.KeyNotifications)
	s.invalidator.Invalidate(cache.KeyNotificationCount)
	if n.BookingID() != "" {
		s.invalidator.Invalidate(cache.KeyBookings)
	}
}

func (s *Session) handleResponse(r Response) {
	if r.Notification.BookingID() != "" {
		s.invalidator.Invalidate(cache.KeyBookings)
	}
}
