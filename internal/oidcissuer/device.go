package oidcissuer

import (
	"errors"
	"net/http"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/apierror"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/policy"
)

type deviceView struct {
	Device    *DeviceAuthorizationSummary `json:"device,omitempty"`
	Username  string                      `json:"username"`
	CSRFToken string                      `json:"csrfToken"`
	Action    string                      `json:"action"`
	Message   string                      `json:"message,omitempty"`
	Status    string                      `json:"status,omitempty"`
	Finished  bool                        `json:"-"`
}

// devicePage shows the user-code form, or the pending grant when
// ?user_code= is present.
func (i *Issuer) devicePage(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		apierror.Write(w, r, http.StatusUnauthorized, apierror.Unauthorized, apierror.AuthenticationRequired)
		return
	}
	csrf, _ := i.sessions.CSRFToken(r)
	view := deviceView{Username: principal.Email, CSRFToken: csrf, Action: policy.PathDeviceVerification}

	status := http.StatusOK
	if code := r.URL.Query().Get("user_code"); code != "" {
		summary, err := i.storage.PendingDeviceAuthorization(code)
		if err != nil {
			status = http.StatusBadRequest
			view.Message = "Unknown or expired code"
		} else {
			view.Device = &summary
		}
	}
	i.renderDevice(w, r, status, view)
}

// deviceDecision approves or denies the grant behind a user code.
func (i *Issuer) deviceDecision(w http.ResponseWriter, r *http.Request) {
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

	code := r.PostFormValue("user_code")
	view := deviceView{Username: principal.Email, Action: policy.PathDeviceVerification, Finished: true}

	var err error
	switch r.PostFormValue("decision") {
	case decisionApprove:
		err = i.storage.CompleteDeviceAuthorization(code, principal.Email)
		view.Status, view.Message = "approved", "Device connected. You can return to it now."
	case decisionDeny:
		err = i.storage.DenyDeviceAuthorization(code)
		view.Status, view.Message = "denied", "Access denied."
	default:
		apierror.Write(w, r, http.StatusBadRequest, apierror.BadRequest, "decision must be approve or deny")
		return
	}
	if errors.Is(err, ErrUnknownUserCode) {
		view = deviceView{Username: principal.Email, Action: policy.PathDeviceVerification, Message: "Unknown or expired code"}
		view.CSRFToken, _ = i.sessions.CSRFToken(r)
		i.renderDevice(w, r, http.StatusBadRequest, view)
		return
	}
	if err != nil {
		i.logger.ErrorContext(r.Context(), "device decision failed", "error", err)
		apierror.Write(w, r, http.StatusInternalServerError, apierror.Internal, "Decision could not be recorded")
		return
	}

	i.logger.InfoContext(r.Context(), "device authorization decided", "status", view.Status, "subject", principal.Email)
	i.renderDevice(w, r, http.StatusOK, view)
}

func (i *Issuer) renderDevice(w http.ResponseWriter, r *http.Request, status int, view deviceView) {
	if wantsJSON(r) {
		apierror.WriteJSON(w, status, view)
		return
	}
	renderPage(w, status, deviceTemplate, view)
}
