package cache

// Key names a logical cached resource that can be invalidated.
type Key string

const (
	KeyNotifications     Key = "notifications"
	KeyNotificationCount Key = "notifications-unread-count"
	KeyBookings          Key = "bookings"
)

// Invalidator is the cache-invalidation collaborator. Implementations mark the
// named resource stale so the UI refetches it; the call must not block.
type Invalidator interface {
	Invalidate(key Key)
}

// InvalidatorFunc adapts a function to the Invalidator interface.
type InvalidatorFunc func(key Key)

func (f InvalidatorFunc) Invalidate(key Key) { f(key) }

// Noop discards all invalidation signals.
var Noop Invalidator = InvalidatorFunc(func(Key) {})
