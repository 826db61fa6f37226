// Package authority is the HTTP transport to the license authority's
// validate-key action. It classifies failures so the validator can tell an
// unreachable authority, which triggers the offline cache, from a hard
// failure.
package authority
