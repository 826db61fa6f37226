// Package shared holds helpers used by more than one package.
//
// The testutil subpackage provides a capturing slog handler and signing
// fixtures that produce authority-style responses with throwaway keys:
//
//	keys := testutil.NewEd25519Keys(t)
//	resp := keys.SignHTTPResponse(t, "acct-1", body, time.Now())
//
// Nothing here may depend on the packages it is used to test.
package shared
