package oidcissuer

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/apierror"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/services/iam"
)

// Paths of the oauth2-login chain.
const (
	PathLogin         = "/api/oauth2/login"
	PathLogoutSession = "/api/oauth2/logout"
	PathSession       = "/api/oauth2/session"
)

type loginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	ReturnURL string `json:"returnUrl"`
}

type sessionResponse struct {
	Authenticated bool     `json:"authenticated"`
	Username      string   `json:"username,omitempty"`
	Role          string   `json:"role,omitempty"`
	Authorities   []string `json:"authorities,omitempty"`
	RedirectURL   string   `json:"redirectUrl,omitempty"`
}

// login verifies credentials and starts the protocol session. A returnUrl
// on the issuer's own origin is echoed back, so the frontend can resume the
// authorization request that sent the user to it. Form posts are
// redirected there directly.
func (i *Issuer) login(w http.ResponseWriter, r *http.Request) {
	req, isForm, err := decodeLogin(r)
	if err != nil || req.Email == "" || req.Password == "" {
		apierror.Write(w, r, http.StatusBadRequest, apierror.BadRequest, "email and password are required")
		return
	}

	ctx := r.Context()
	account, err := i.verifier.Verify(ctx, req.Email, req.Password)
	if errors.Is(err, iam.ErrInvalidCredentials) || errors.Is(err, iam.ErrAccountDisabled) {
		i.logger.InfoContext(ctx, "protocol login rejected", "error", err)
		apierror.Write(w, r, http.StatusUnauthorized, apierror.Unauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		i.logger.ErrorContext(ctx, "protocol login failed", "error", err)
		apierror.Write(w, r, http.StatusInternalServerError, apierror.Internal, "Login is temporarily unavailable")
		return
	}
	principal, err := iam.PrincipalFor(account, auth.SchemeSession)
	if err != nil {
		i.logger.ErrorContext(ctx, "account has no usable role", "error", err)
		apierror.Write(w, r, http.StatusInternalServerError, apierror.Internal, "Login is temporarily unavailable")
		return
	}

	if _, err := i.sessions.Begin(w, account.Email); err != nil {
		i.logger.ErrorContext(ctx, "start session", "error", err)
		apierror.Write(w, r, http.StatusInternalServerError, apierror.Internal, "Login is temporarily unavailable")
		return
	}

	redirectURL := i.sameOriginURL(req.ReturnURL)
	if isForm && redirectURL != "" {
		http.Redirect(w, r, redirectURL, http.StatusSeeOther)
		return
	}
	resp := sessionFor(principal)
	resp.RedirectURL = redirectURL
	apierror.WriteJSON(w, http.StatusOK, resp)
}

func (i *Issuer) logout(w http.ResponseWriter, r *http.Request) {
	i.sessions.End(w)
	w.WriteHeader(http.StatusNoContent)
}

func (i *Issuer) currentSession(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok || principal.Scheme != auth.SchemeSession {
		apierror.WriteJSON(w, http.StatusOK, sessionResponse{})
		return
	}
	apierror.WriteJSON(w, http.StatusOK, sessionFor(principal))
}

func sessionFor(p auth.Principal) sessionResponse {
	return sessionResponse{
		Authenticated: true,
		Username:      p.Email,
		Role:          string(p.Role),
		Authorities:   p.Authorities(),
	}
}

func decodeLogin(r *http.Request) (loginRequest, bool, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data" {
		if err := r.ParseForm(); err != nil {
			return loginRequest{}, true, err
		}
		return loginRequest{
			Email:     strings.TrimSpace(r.PostFormValue("email")),
			Password:  r.PostFormValue("password"),
			ReturnURL: r.PostFormValue("returnUrl"),
		}, true, nil
	}

	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		return loginRequest{}, false, err
	}
	req.Email = strings.TrimSpace(req.Email)
	return req, false, nil
}

// sameOriginURL returns raw as an absolute URL if it points at the issuer's
// origin, and "" otherwise. Relative paths are resolved against the issuer.
func (i *Issuer) sameOriginURL(raw string) string {
	if raw == "" {
		return ""
	}
	base, err := url.Parse(i.issuer + "/")
	if err != nil {
		return ""
	}
	target, err := url.Parse(raw)
	if err != nil || strings.HasPrefix(raw, "//") {
		return ""
	}
	resolved := base.ResolveReference(target)
	if resolved.Scheme != base.Scheme || resolved.Host != base.Host {
		return ""
	}
	return resolved.String()
}
