// Package config loads the validator's configuration.
//
// # Configuration Sources
//
// Values are applied in the following order, later sources winning:
//
//	1. Defaults (Default)
//	2. The YAML file named by KEYGEN_CONFIG_FILE
//	3. Environment variables
//
// # Environment Variables
//
// All variables use the KEYGEN_ prefix. Authority settings sit at the top
// level, nested sections add their own segment:
//
//	KEYGEN_ACCOUNT_ID=1fddcec8-8dd3-4d8d-9b16-215cac0f9b52
//	KEYGEN_SCHEME=ed25519
//	KEYGEN_VERIFY_KEY=e8601e48b69383ba520245fd07971e983d06d22c4257cfd82304601479cee788
//	KEYGEN_CACHE_DIR=/var/lib/licensed/cache
//	KEYGEN_LOGGING_LEVEL=debug
//
// Key material may be given with literal "\n" sequences so a PEM block fits
// in a single variable.
//
// # Validation
//
// Load validates the result with struct tags and reports every violation at
// once. Invalid configuration is a deployment error and callers are expected
// to exit.
package config
