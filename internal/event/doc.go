// Package event defines the event bus and event types that decouple the
// Troupe orchestration core from its consumers (console renderers, loggers,
// selection UIs). Five event classes flow over the bus: status, planning,
// error, team-message, and request. Delivery is synchronous with no
// buffering or replay; a listener registered after an emission never sees
// that event.
package event
