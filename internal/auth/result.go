package auth

// Reason explains why a request was left unauthenticated. It is recorded in
// logs and metrics only and never returned to the client.
type Reason string

const (
	ReasonNoCredentials   Reason = "no_credentials"
	ReasonNotBearer       Reason = "not_bearer"
	ReasonMalformedToken  Reason = "malformed_token"
	ReasonEmptySubject    Reason = "empty_subject"
	ReasonAccountNotFound Reason = "account_not_found"
	ReasonExpiredToken    Reason = "expired_token"
	ReasonSubjectMismatch Reason = "subject_mismatch"
	ReasonRevokedToken    Reason = "revoked_token"
	ReasonInternalError   Reason = "internal_error"
)

// Result is the outcome of one authentication attempt: either Authenticated
// with a principal, or Unauthenticated with a reason.
type Result struct {
	principal Principal
	reason    Reason
	ok        bool
}

// Authenticated returns a successful result for p.
func Authenticated(p Principal) Result {
	return Result{principal: p.clone(), ok: true}
}

// Unauthenticated returns a failed result with the given reason.
func Unauthenticated(reason Reason) Result {
	return Result{reason: reason}
}

// Principal returns the authenticated principal, if any.
func (r Result) Principal() (Principal, bool) {
	if !r.ok {
		return Principal{}, false
	}
	return r.principal.clone(), true
}

// Authenticated reports whether a principal was established.
func (r Result) Authenticated() bool { return r.ok }

// Reason is empty for authenticated results.
func (r Result) Reason() Reason { return r.reason }

// Outcome is a metrics label: "authenticated" or the reason.
func (r Result) Outcome() string {
	if r.ok {
		return "authenticated"
	}
	return string(r.reason)
}
