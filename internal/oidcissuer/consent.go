package oidcissuer

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/apierror"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/policy"
)

const (
	decisionApprove = "approve"
	decisionDeny    = "deny"
)

type consentView struct {
	Request   AuthRequestSummary `json:"request"`
	Username  string             `json:"username"`
	CSRFToken string             `json:"csrfToken"`
	Action    string             `json:"action"`
}

// consentPage shows a pending authorization request to the signed-in user.
func (i *Issuer) consentPage(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		apierror.Write(w, r, http.StatusUnauthorized, apierror.Unauthorized, apierror.AuthenticationRequired)
		return
	}
	summary, err := i.storage.PendingAuthRequest(r.URL.Query().Get("id"))
	if err != nil {
		apierror.Write(w, r, http.StatusBadRequest, apierror.BadRequest, "Unknown or expired authorization request")
		return
	}

	csrf, _ := i.sessions.CSRFToken(r)
	view := consentView{
		Request:   summary,
		Username:  principal.Email,
		CSRFToken: csrf,
		Action:    policy.PathConsent,
	}
	if wantsJSON(r) {
		apierror.WriteJSON(w, http.StatusOK, view)
		return
	}
	renderPage(w, http.StatusOK, consentTemplate, view)
}

// consentDecision approves or denies the request named by the form.
func (i *Issuer) consentDecision(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		apierror.Write(w, r, http.StatusUnauthorized, apierror.Unauthorized, apierror.AuthenticationRequired)
		return
	}
	if err := r.ParseForm(); err != nil {
		apierror.Write(w, r, http.StatusBadRequest, apierror.BadRequest, "Malformed form body")
		return
	}
	if !i.sessions.CheckCSRF(r, r.PostFormValue("csrf_token")) {
		apierror.Write(w, r, http.StatusForbidden, apierror.Forbidden, "Invalid CSRF token")
		return
	}

	id := r.PostFormValue("id")
	switch r.PostFormValue("decision") {
	case decisionApprove:
		if err := i.storage.CompleteAuthRequest(id, principal.Email); err != nil {
			i.consentError(w, r, err)
			return
		}
		i.logger.InfoContext(r.Context(), "authorization request approved", "request_id", id, "subject", principal.Email)
		http.Redirect(w, r, i.callbackURL(id), http.StatusFound)
	case decisionDeny:
		summary, err := i.storage.RejectAuthRequest(id)
		if err != nil {
			i.consentError(w, r, err)
			return
		}
		i.logger.InfoContext(r.Context(), "authorization request denied", "request_id", id, "subject", principal.Email)
		http.Redirect(w, r, accessDeniedRedirect(summary), http.StatusFound)
	default:
		apierror.Write(w, r, http.StatusBadRequest, apierror.BadRequest, "decision must be approve or deny")
	}
}

func (i *Issuer) consentError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrAuthRequestNotFound) {
		apierror.Write(w, r, http.StatusBadRequest, apierror.BadRequest, "Unknown or expired authorization request")
		return
	}
	i.logger.ErrorContext(r.Context(), "consent decision failed", "error", err)
	apierror.Write(w, r, http.StatusInternalServerError, apierror.Internal, "Consent could not be recorded")
}

// accessDeniedRedirect sends the user agent back to the client with
// error=access_denied and the original state.
func accessDeniedRedirect(summary AuthRequestSummary) string {
	target, err := url.Parse(summary.RedirectURI)
	if err != nil {
		return summary.RedirectURI
	}
	q := target.Query()
	q.Set("error", "access_denied")
	q.Set("error_description", "The resource owner denied the request")
	if summary.State != "" {
		q.Set("state", summary.State)
	}
	target.RawQuery = q.Encode()
	return target.String()
}
