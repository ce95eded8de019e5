// Package binder links external identities to local accounts.
//
// A successful provider login only proves who the user is at the provider;
// binder decides what that means locally. Resolve classifies each login as
// LoggedIn (subject bound to a live account) or NeedsBinding (subject known
// but unbound, or seen for the first time), healing stale bindings along the
// way. Bind completes a pending binding by verifying the local password and
// linking the token to the account.
//
// The Directory interface abstracts the host application's user store; a
// bcrypt-backed MemoryDirectory is included for tests and small deployments.
package binder
