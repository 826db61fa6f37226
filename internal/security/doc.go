// Package security pins the TLS identity of the license authority.
//
// Pins are SHA-256 hashes of a certificate's SubjectPublicKeyInfo, given as
// hex or standard base64. A connection is accepted when any certificate in
// a verified chain matches a pin, so pinning an intermediate survives leaf
// rotation. Pinning runs after normal chain verification, never instead of
// it.
package security
