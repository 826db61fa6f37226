// Package license decides, per call, whether a license key is valid.
//
// # Validation Flow
//
// Validator.Validate asks the authority first:
//
//	1. The authority answers: the answer is returned with origin "online".
//	   A non-rejected answer is also cached for the day together with the
//	   proof the authority attached to it.
//	2. The authority cannot be reached: today's cached record is read,
//	   its signature checked against the trusted key, and its answer
//	   returned with origin "offline".
//	3. Anything else yields {valid:false, origin:"unavailable"}.
//
// Live answers are trusted as delivered by the transport and are not
// signature checked. Cached answers are only ever used after verification,
// so tampering with the cache can at worst make a license unavailable,
// never valid.
//
// # Connectivity
//
// Only errors wrapping errors.ErrConnectivity trigger the offline path.
// Other transport errors and undecodable responses are returned to the
// caller together with an "unavailable" outcome.
package license
