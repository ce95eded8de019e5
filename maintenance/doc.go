// Package maintenance exposes the operator view of the token table:
// abandoned binding attempts, bindings whose account was renamed or
// deleted, and a way to remove them.
package maintenance
