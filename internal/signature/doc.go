// Package signature verifies that a license authority response is authentic.
//
// Two schemes are supported, each reconstructing the exact bytes the
// authority signed:
//
//	- rsa-sha256: RSA PKCS#1 v1.5 over SHA-256 of the raw response body.
//	  The proof is the base64 signature from the X-Signature header.
//	- ed25519: an HTTP message signature over the request target, host,
//	  date and a digest recomputed from the body. The proof is the parsed
//	  signature header plus the Date and Digest headers.
//
// A Verifier never trusts a digest it did not compute itself. Tampering with
// a cached body changes the digest line and therefore the signed message.
//
// Verification returns an error for diagnostics, but callers must treat every
// non-nil error the same way: the response is not authentic.
package signature
