package push

import "context"

// PermissionStatus is the platform's answer to a permission query or prompt.
type PermissionStatus struct {
	Granted     bool
	CanAskAgain bool
}

// PermissionProbe is the read-only permission snapshot exposed to callers.
// ShouldOpenSettings is set when the user declined and the platform will not
// re-prompt, so the only path forward is the system settings screen.
type PermissionProbe struct {
	Granted            bool
	CanAskAgain        bool
	ShouldOpenSettings bool
}

// Notification is a push message delivered while the application is open.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

// BookingID returns the booking identifier attached to the notification, or
// "" when the payload carries none.
func (n Notification) BookingID() string { return n.Data["bookingId"] }

// Response is the user's interaction with a displayed notification (a tap).
type Response struct {
	Notification Notification
}

// Subscription is a disposable listener registration.
type Subscription interface {
	Remove()
}

// Capability is the narrow surface of the platform notification SDK the
// session drives. It is injected at construction so tests can substitute a
// fake and so SDK lifecycle stays explicit.
type Capability interface {
	// Supported reports whether push notifications exist on this platform
	// and build configuration.
	Supported() bool
	// Permissions queries the current permission state without prompting.
	Permissions(ctx context.Context) (PermissionStatus, error)
	// RequestPermission prompts the user and returns the resulting state.
	RequestPermission(ctx context.Context) (PermissionStatus, error)
	// Token issues a push token for the given project identity.
	Token(ctx context.Context, projectID string) (string, error)
	// OnReceived subscribes to notifications delivered while open.
	OnReceived(fn func(Notification)) Subscription
	// OnResponse subscribes to notifications the user tapped.
	OnResponse(fn func(Response)) Subscription
}

// Unsupported is the capability used on platforms without a push SDK. Every
// session operation short-circuits to its no-op outcome.
type Unsupported struct{}

func (Unsupported) Supported() bool { return false }

func (Unsupported) Permissions(context.Context) (PermissionStatus, error) {
	return PermissionStatus{}, nil
}

func (Unsupported) RequestPermission(context.Context) (PermissionStatus, error) {
	return PermissionStatus{}, nil
}

func (Unsupported) Token(context.Context, string) (string, error) {
	return "", nil
}

func (Unsupported) OnReceived(func(Notification)) Subscription { return noopSubscription{} }

func (Unsupported) OnResponse(func(Response)) Subscription { return noopSubscription{} }

type noopSubscription struct{}

func (noopSubscription) Remove() {}
