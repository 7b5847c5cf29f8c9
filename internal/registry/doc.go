// Package registry owns the set of worker agents for a run. It performs
// concurrent capability fan-out with per-call failure isolation, aggregates
// results in registration order, and resolves team-message scopes to
// concrete recipient sets at dispatch time.
//
// The failure policy is strict: one agent's failure never aborts a batch.
// A failed capability call degrades to fallback text; a failed message
// delivery is logged and swallowed; only total initialization failure is
// surfaced as an error.
package registry
