package oidcissuer

import (
	"slices"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/zitadel/oidc/v3/pkg/oidc"
	"github.com/zitadel/oidc/v3/pkg/op"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth/keys"
)

// authRequest is a pending authorization request. subject is set when the
// signed-in user approves it on the consent page.
type authRequest struct {
	*oidc.AuthRequest
	id        string
	subject   string
	createdAt time.Time
	authTime  time.Time
	done      bool
}

func (a *authRequest) GetID() string { return a.id }

func (a *authRequest) GetACR() string { return "" }

func (a *authRequest) GetAMR() []string {
	if a.done {
		return []string{"pwd"}
	}
	return nil
}

func (a *authRequest) GetAudience() []string { return []string{a.ClientID} }

func (a *authRequest) GetAuthTime() time.Time { return a.authTime }

func (a *authRequest) GetClientID() string { return a.ClientID }

func (a *authRequest) GetCodeChallenge() *oidc.CodeChallenge {
	if a.CodeChallenge == "" {
		return nil
	}
	return &oidc.CodeChallenge{
		Challenge: a.CodeChallenge,
		Method:    a.CodeChallengeMethod,
	}
}

func (a *authRequest) GetSubject() string { return a.subject }

func (a *authRequest) Done() bool { return a.done }

func (a *authRequest) GetNonce() string { return a.Nonce }

func (a *authRequest) GetScopes() []string { return slices.Clone(a.AuthRequest.Scopes) }

func (a *authRequest) GetResponseType() oidc.ResponseType { return a.AuthRequest.ResponseType }

func (a *authRequest) GetResponseMode() oidc.ResponseMode { return a.AuthRequest.ResponseMode }

func (a *authRequest) GetState() string { return a.AuthRequest.State }

func (a *authRequest) GetRedirectURI() string { return a.AuthRequest.RedirectURI }

// accessToken is the server-side record of an issued JWT, keyed by jti.
type accessToken struct {
	id           string
	subject      string
	clientID     string
	audience     []string
	scopes       []string
	refreshToken string
	issuedAt     time.Time
	expiresAt    time.Time
}

type refreshToken struct {
	token     string
	subject   string
	clientID  string
	audience  []string
	scopes    []string
	amr       []string
	authTime  time.Time
	expiresAt time.Time
}

type refreshTokenRequest struct {
	token  *refreshToken
	scopes []string
}

func newRefreshTokenRequest(token *refreshToken) *refreshTokenRequest {
	return &refreshTokenRequest{token: token, scopes: slices.Clone(token.scopes)}
}

func (r *refreshTokenRequest) GetScopes() []string { return r.scopes }

func (r *refreshTokenRequest) GetAudience() []string { return r.token.audience }

func (r *refreshTokenRequest) GetSubject() string { return r.token.subject }

func (r *refreshTokenRequest) GetAMR() []string { return r.token.amr }

func (r *refreshTokenRequest) GetAuthTime() time.Time { return r.token.authTime }

func (r *refreshTokenRequest) GetClientID() string { return r.token.clientID }

// SetCurrentScopes narrows the scopes of this refresh. The stored grant
// keeps its original scopes.
func (r *refreshTokenRequest) SetCurrentScopes(scopes []string) {
	if scopes == nil {
		r.scopes = slices.Clone(r.token.scopes)
		return
	}
	r.scopes = slices.Clone(scopes)
}

type deviceAuthorization struct {
	userCode string
	state    op.DeviceAuthorizationState
}

func amrOf(request op.TokenRequest) []string {
	if authReq, ok := request.(op.AuthRequest); ok {
		return authReq.GetAMR()
	}
	return nil
}

// clientIDOf finds the client a token is being minted for. Device grant
// requests only carry it as their audience.
func clientIDOf(request op.TokenRequest) string {
	if withClient, ok := request.(interface{ GetClientID() string }); ok {
		return withClient.GetClientID()
	}
	if aud := request.GetAudience(); len(aud) > 0 {
		return aud[0]
	}
	return ""
}

type signingKey struct {
	keys *keys.KeySet
}

func (k signingKey) SignatureAlgorithm() jose.SignatureAlgorithm { return k.keys.Algorithm() }

func (k signingKey) Key() any { return k.keys.PrivateKey() }

func (k signingKey) ID() string { return k.keys.KeyID() }

type publicKey struct {
	keys *keys.KeySet
}

func (k publicKey) ID() string { return k.keys.KeyID() }

func (k publicKey) Algorithm() jose.SignatureAlgorithm { return k.keys.Algorithm() }

func (k publicKey) Use() string { return "sig" }

func (k publicKey) Key() any { return k.keys.PublicKey() }
