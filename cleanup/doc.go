// Package cleanup sweeps stale login artifacts on a schedule: auth states
// past their single-use window and link tokens abandoned before binding.
package cleanup
