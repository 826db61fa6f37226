// Package app wires the license agent together: configuration, logging,
// telemetry, the offline cache, the authority client and the validator,
// behind the chi status API.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, the optional YAML file and KEYGEN_* variables
//	2. Initialize logging and OpenTelemetry
//	3. Open the offline cache backend (file, redis or memory)
//	4. Build the signature verifier, authority client and validator
//	5. Set up middleware and routes
//	6. Start the HTTP server and the background loops
//
// # Background Loops
//
// When KEYGEN_LICENSE_KEY is set the agent validates it at startup and then
// every KEYGEN_REVALIDATE_INTERVAL. Cached records older than the retention
// window are pruned once a day.
//
// # Graceful Shutdown
//
// Run handles SIGINT and SIGTERM. Stop drains in-flight requests, waits for
// the background loops, closes the cache backend and flushes telemetry.
// Errors are returned to the caller; the package never calls os.Exit.
package app
