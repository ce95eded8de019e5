// Package authstate persists the short-lived state records that tie an
// outbound authorization redirect to the inbound provider response.
//
// A record is created when the authorization URL is built and consumed
// (atomically deleted) exactly once when the response comes back; anything
// older than the state window is swept by the cleanup worker. Memory,
// PostgreSQL and Redis implementations are provided.
package authstate
