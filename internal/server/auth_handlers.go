package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/apierror"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth/token"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/db/models"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/services/iam"
)

const maxBodyBytes = 1 << 16

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is the body of POST /api/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AccountResponse is the public view of an account.
type AccountResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role"`
	AthleteID *int64 `json:"athleteId,omitempty"`
	CoachID   *int64 `json:"coachId,omitempty"`
}

// LoginResponse is a legacy token pair plus the account it was issued to.
type LoginResponse struct {
	iam.TokenPair
	Account AccountResponse `json:"account"`
}

// PrincipalResponse describes the authenticated principal of a request.
type PrincipalResponse struct {
	ID          string   `json:"id,omitempty"`
	Username    string   `json:"username"`
	Role        string   `json:"role,omitempty"`
	Scopes      []string `json:"scopes,omitempty"`
	Authorities []string `json:"authorities"`
	ClientID    string   `json:"clientId,omitempty"`
	Scheme      string   `json:"scheme"`
}

func accountResponse(a *models.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID,
		Email:     a.Email,
		Name:      a.Name,
		Role:      a.Role,
		AthleteID: a.AthleteID,
		CoachID:   a.CoachID,
	}
}

func principalResponse(p auth.Principal) PrincipalResponse {
	return PrincipalResponse{
		ID:          p.ID,
		Username:    p.Email,
		Role:        string(p.Role),
		Scopes:      p.Scopes,
		Authorities: p.Authorities(),
		ClientID:    p.ClientID,
		Scheme:      string(p.Scheme),
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

// HandleLogin verifies credentials and issues a legacy token pair.
func HandleLogin(tokens *iam.TokenService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := decodeJSON(r, &req); err != nil {
			apierror.Write(w, r, http.StatusBadRequest, apierror.BadRequest, "Invalid request body")
			return
		}
		req.Email = strings.TrimSpace(req.Email)
		if req.Email == "" || req.Password == "" {
			apierror.Write(w, r, http.StatusBadRequest, apierror.BadRequest, "email and password are required")
			return
		}

		ctx := r.Context()
		pair, account, err := tokens.Login(ctx, req.Email, req.Password)
		if errors.Is(err, iam.ErrInvalidCredentials) || errors.Is(err, iam.ErrAccountDisabled) {
			apierror.Write(w, r, http.StatusUnauthorized, apierror.Unauthorized, "Invalid email or password")
			return
		}
		if err != nil {
			logger.ErrorContext(ctx, "legacy login failed", "error", err)
			apierror.Write(w, r, http.StatusInternalServerError, apierror.Internal, "Login is temporarily unavailable")
			return
		}

		apierror.WriteJSON(w, http.StatusOK, LoginResponse{TokenPair: *pair, Account: accountResponse(account)})
	}
}

// HandleRefresh exchanges a refresh token for a new access token. The
// refresh token is returned unchanged.
func HandleRefresh(tokens *iam.TokenService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RefreshRequest
		if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
			apierror.Write(w, r, http.StatusBadRequest, apierror.BadRequest, "refreshToken is required")
			return
		}

		ctx := r.Context()
		pair, err := tokens.Refresh(ctx, req.RefreshToken)
		if errors.Is(err, token.ErrInvalidToken) {
			apierror.Write(w, r, http.StatusUnauthorized, apierror.Unauthorized, "Invalid refresh token")
			return
		}
		if err != nil {
			logger.ErrorContext(ctx, "legacy refresh failed", "error", err)
			apierror.Write(w, r, http.StatusInternalServerError, apierror.Internal, "Refresh is temporarily unavailable")
			return
		}
		apierror.WriteJSON(w, http.StatusOK, pair)
	}
}

// HandleMe returns the principal attached by the chain.
func HandleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		Unauthorized(w, r)
		return
	}
	apierror.WriteJSON(w, http.StatusOK, principalResponse(principal))
}

// HandleOpenIDUserinfo describes the protocol token of the request.
func HandleOpenIDUserinfo(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok || principal.Scheme != auth.SchemeProtocolBearer {
		Unauthorized(w, r)
		return
	}
	resp := principalResponse(principal)
	apierror.WriteJSON(w, http.StatusOK, struct {
		Subject string `json:"sub"`
		PrincipalResponse
	}{Subject: principal.Email, PrincipalResponse: resp})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	apierror.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	apierror.Write(w, r, http.StatusNotFound, apierror.NotFound, "No handler for "+r.URL.Path)
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	apierror.Write(w, r, http.StatusMethodNotAllowed, apierror.NotAllowed, r.Method+" is not supported here")
}
