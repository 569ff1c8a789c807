// Package iam resolves identities for the fitness API.
//
// It provides:
//
//   - CredentialVerifier: email lookup against the live account store and
//     bcrypt password verification
//   - BearerAuthenticator: the legacy bearer-token state machine that turns an
//     Authorization header into an auth.Result
//   - TokenService: legacy login and refresh on top of the token codec
//
// Request Flow:
//
//	Authorization header → BearerAuthenticator.Authenticate()
//	    decode → resolve (CredentialVerifier.Lookup) → validate
//	    → auth.Authenticated(principal) | auth.Unauthenticated(reason)
//
// Roles are always taken from the live account, not from the role snapshot in
// the token, so deactivating an account invalidates its outstanding tokens.
package iam
