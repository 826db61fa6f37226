// Package offline persists the last authenticated validate-key response so
// a license can still be checked when the authority is unreachable.
//
// One Record is kept per calendar day under DayKey(now). A record holds the
// exact response body together with the proof material needed to verify
// it later. Both travel in a single envelope, so a reader sees either the
// complete pair from one write or nothing.
//
// Stores never surface read faults as errors. A missing, truncated or
// undecodable record is reported as absent and logged, and callers fall
// back to "no cached answer".
package offline
