package oidcissuer

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/apierror"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth"
)

// clientConfiguration answers RFC 7592 reads for the registered client.
// The registry is fixed at startup, so writes are refused.
func (i *Issuer) clientConfiguration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		apierror.Write(w, r, http.StatusMethodNotAllowed, apierror.NotAllowed, "The client registry is read-only")
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok || principal.Scheme != auth.SchemeProtocolBearer || principal.ClientID != i.client.GetID() {
		apierror.Write(w, r, http.StatusForbidden, apierror.Forbidden, "A token issued to this client is required")
		return
	}
	if id := r.URL.Query().Get("client_id"); id != "" && id != i.client.GetID() {
		apierror.Write(w, r, http.StatusNotFound, apierror.NotFound, "Unknown client")
		return
	}

	grants := make([]string, 0, len(i.client.GrantTypes()))
	for _, g := range i.client.GrantTypes() {
		grants = append(grants, string(g))
	}
	responseTypes := make([]string, 0, len(i.client.ResponseTypes()))
	for _, rt := range i.client.ResponseTypes() {
		responseTypes = append(responseTypes, string(rt))
	}
	apierror.WriteJSON(w, http.StatusOK, map[string]any{
		"client_id":                  i.client.GetID(),
		"redirect_uris":              i.client.RedirectURIs(),
		"post_logout_redirect_uris":  i.client.PostLogoutRedirectURIs(),
		"grant_types":                grants,
		"response_types":             responseTypes,
		"scope":                      strings.Join(i.client.Scopes(), " "),
		"token_endpoint_auth_method": "client_secret_basic",
		"registration_client_uri":    i.issuer + r.URL.Path + "?client_id=" + url.QueryEscape(i.client.GetID()),
	})
}
