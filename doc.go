// Package auth provides account registration, password login and server side
// session management backed by signed, short lived tokens.
//
// Accounts:
//   - An Account is persisted through AccountStore (bun over sqlite or
//     postgres). Every save is versioned; a save that lost a race fails with
//     ErrConcurrentModification and Update re-applies its mutation once.
//   - Passwords are staged with Account.SetPassword and hashed by the store on
//     the next save, never on a plain re-save.
//   - Accounts start pending_verification and become active when the e-mail
//     verification token is consumed. Admins may suspend and reinstate them.
//
// Sessions:
//   - SessionManager issues HS256 tokens and records a hash of each one on the
//     account. Refresh swaps the old record for the new one in a single write,
//     so a refreshed-away token can not be replayed.
//   - Guard authenticates raw tokens. In ModeStateful it also requires the
//     session record and evicts sessions idle for longer than IdleTimeout.
//     Every failure surfaces as ErrUnauthenticated.
//
// Credentials:
//   - CredentialVerifier counts failed logins inside a sliding window and
//     refuses even correct passwords while an account is locked out. The
//     Service folds unknown, inactive and locked accounts into
//     ErrInvalidCredentials so callers can not tell them apart.
//
// Transport:
//   - Controller and RegisterRoutes expose the Service over go-router as a
//     JSON API. Tokens travel in the Authorization header or, with
//     TransportCookie, in an HTTP-only cookie.
//   - Request payloads implement LogFielder; only those whitelisted views are
//     ever logged.
//
// Activity sinks:
//   - ActivitySink receives audit events (registration, logins, lockouts,
//     refreshes, status changes). Sinks run best-effort, errors are logged.
//     The activitymap package flattens events for downstream pipelines.
package auth
