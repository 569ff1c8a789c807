package oidcissuer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"
	"github.com/zitadel/oidc/v3/pkg/oidc"
	"github.com/zitadel/oidc/v3/pkg/op"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth/keys"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/services/iam"
)

var (
	ErrAuthRequestNotFound = errors.New("authorization request not found")
	ErrUnknownUserCode     = errors.New("unknown or expired user code")
)

const (
	authRequestLifetime = 10 * time.Minute
	sweepInterval       = time.Minute
)

// Storage implements op.Storage over in-memory maps. Nothing it holds
// survives a restart; the signing key does not either, so every token it
// knows about is invalid after one anyway.
type Storage struct {
	client   *RegisteredClient
	keys     *keys.KeySet
	accounts iam.AccountLookup
	claims   ClaimsHook
	logger   *slog.Logger
	now      func() time.Time

	accessLifetime  time.Duration
	refreshLifetime time.Duration

	mu            sync.Mutex
	authRequests  map[string]*authRequest
	authCodes     map[string]string // code → request id
	accessTokens  map[string]*accessToken
	refreshTokens map[string]*refreshToken
	deviceCodes   map[string]*deviceAuthorization
	userCodes     map[string]string // user code → device code
	lastSweep     time.Time
}

// StorageDeps are the collaborators of Storage.
type StorageDeps struct {
	Client   *RegisteredClient
	Keys     *keys.KeySet
	Accounts iam.AccountLookup
	// Claims defaults to EnrichClaims(issuer) in New.
	Claims ClaimsHook
	Logger *slog.Logger
}

// NewStorage creates the issuer storage.
func NewStorage(deps StorageDeps) (*Storage, error) {
	if deps.Client == nil || deps.Keys == nil || deps.Accounts == nil || deps.Claims == nil {
		return nil, fmt.Errorf("oidc storage dependencies incomplete")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{
		client:          deps.Client,
		keys:            deps.Keys,
		accounts:        deps.Accounts,
		claims:          deps.Claims,
		logger:          logger,
		now:             time.Now,
		accessLifetime:  AccessTokenLifetime,
		refreshLifetime: RefreshTokenLifetime,
		authRequests:    make(map[string]*authRequest),
		authCodes:       make(map[string]string),
		accessTokens:    make(map[string]*accessToken),
		refreshTokens:   make(map[string]*refreshToken),
		deviceCodes:     make(map[string]*deviceAuthorization),
		userCodes:       make(map[string]string),
	}, nil
}

func (s *Storage) Health(context.Context) error {
	return nil
}

// --- authorization requests ---

func (s *Storage) CreateAuthRequest(ctx context.Context, req *oidc.AuthRequest, userID string) (op.AuthRequest, error) {
	if slices.Contains(req.Prompt, string(oidc.PromptNone)) {
		return nil, oidc.ErrLoginRequired()
	}
	if req.CodeChallenge == "" || req.CodeChallengeMethod != oidc.CodeChallengeMethodS256 {
		return nil, oidc.ErrInvalidRequest().WithDescription("code_challenge with code_challenge_method S256 is required")
	}

	now := s.now()
	authReq := &authRequest{
		AuthRequest: req,
		id:          uuid.NewString(),
		subject:     userID,
		createdAt:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(now)
	s.authRequests[authReq.id] = authReq
	return authReq, nil
}

func (s *Storage) AuthRequestByID(ctx context.Context, id string) (op.AuthRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authRequestLocked(id)
}

func (s *Storage) authRequestLocked(id string) (*authRequest, error) {
	req, ok := s.authRequests[id]
	if !ok || s.now().After(req.createdAt.Add(authRequestLifetime)) {
		return nil, fmt.Errorf("%w: %s", ErrAuthRequestNotFound, id)
	}
	return req, nil
}

func (s *Storage) AuthRequestByCode(ctx context.Context, code string) (op.AuthRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.authCodes[code]
	if !ok {
		return nil, fmt.Errorf("authorization code invalid")
	}
	return s.authRequestLocked(id)
}

func (s *Storage) SaveAuthCode(ctx context.Context, id string, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.authRequestLocked(id); err != nil {
		return err
	}
	s.authCodes[code] = id
	return nil
}

// DeleteAuthRequest is called by the library once a code has been
// exchanged, which makes codes single use.
func (s *Storage) DeleteAuthRequest(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteAuthRequestLocked(id)
	return nil
}

func (s *Storage) deleteAuthRequestLocked(id string) {
	delete(s.authRequests, id)
	for code, requestID := range s.authCodes {
		if requestID == id {
			delete(s.authCodes, code)
		}
	}
}

// AuthRequestSummary is what the consent page shows about a pending request.
type AuthRequestSummary struct {
	ID          string   `json:"id"`
	ClientID    string   `json:"clientId"`
	Scopes      []string `json:"scopes"`
	RedirectURI string   `json:"redirectUri"`
	State       string   `json:"-"`
}

// PendingAuthRequest returns a summary of a request still awaiting consent.
func (s *Storage) PendingAuthRequest(id string) (AuthRequestSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, err := s.authRequestLocked(id)
	if err != nil {
		return AuthRequestSummary{}, err
	}
	return AuthRequestSummary{
		ID:          req.id,
		ClientID:    req.ClientID,
		Scopes:      req.GetScopes(),
		RedirectURI: req.RedirectURI,
		State:       req.State,
	}, nil
}

// CompleteAuthRequest records consent by subject. The library's callback
// endpoint then issues the code.
func (s *Storage) CompleteAuthRequest(id, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, err := s.authRequestLocked(id)
	if err != nil {
		return err
	}
	req.subject = subject
	req.authTime = s.now()
	req.done = true
	return nil
}

// RejectAuthRequest drops a request the user declined.
func (s *Storage) RejectAuthRequest(id string) (AuthRequestSummary, error) {
	summary, err := s.PendingAuthRequest(id)
	if err != nil {
		return AuthRequestSummary{}, err
	}
	s.mu.Lock()
	s.deleteAuthRequestLocked(id)
	s.mu.Unlock()
	return summary, nil
}

// --- tokens ---

func (s *Storage) CreateAccessToken(ctx context.Context, request op.TokenRequest) (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok := s.newAccessTokenLocked(request, "")
	return tok.id, tok.expiresAt, nil
}

// CreateAccessAndRefreshTokens reuses currentRefreshToken when one is
// presented; its expiry stays anchored to the first issue.
func (s *Storage) CreateAccessAndRefreshTokens(ctx context.Context, request op.TokenRequest, currentRefreshToken string) (string, string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var rt *refreshToken
	if currentRefreshToken != "" {
		existing, ok := s.refreshTokens[currentRefreshToken]
		if !ok || !now.Before(existing.expiresAt) {
			return "", "", time.Time{}, op.ErrInvalidRefreshToken
		}
		rt = existing
	} else {
		rt = &refreshToken{
			token:     uuid.NewString(),
			subject:   request.GetSubject(),
			clientID:  clientIDOf(request),
			audience:  slices.Clone(request.GetAudience()),
			scopes:    slices.Clone(request.GetScopes()),
			amr:       amrOf(request),
			authTime:  now,
			expiresAt: now.Add(s.refreshLifetime),
		}
		s.refreshTokens[rt.token] = rt
	}

	tok := s.newAccessTokenLocked(request, rt.token)
	return tok.id, rt.token, tok.expiresAt, nil
}

func (s *Storage) newAccessTokenLocked(request op.TokenRequest, refreshToken string) *accessToken {
	now := s.now()
	s.sweepLocked(now)
	tok := &accessToken{
		id:           uuid.NewString(),
		subject:      request.GetSubject(),
		clientID:     clientIDOf(request),
		audience:     slices.Clone(request.GetAudience()),
		scopes:       slices.Clone(request.GetScopes()),
		refreshToken: refreshToken,
		issuedAt:     now,
		expiresAt:    now.Add(s.accessLifetime),
	}
	s.accessTokens[tok.id] = tok
	return tok
}

// TokenRequestByRefreshToken also requires the subject to still resolve,
// so a disabled account cannot mint new access tokens.
func (s *Storage) TokenRequestByRefreshToken(ctx context.Context, token string) (op.RefreshTokenRequest, error) {
	s.mu.Lock()
	rt, ok := s.refreshTokens[token]
	if !ok || !s.now().Before(rt.expiresAt) {
		s.mu.Unlock()
		return nil, op.ErrInvalidRefreshToken
	}
	req := newRefreshTokenRequest(rt)
	s.mu.Unlock()

	if _, err := s.accounts.Lookup(ctx, req.GetSubject()); err != nil {
		return nil, accountError(err)
	}
	return req, nil
}

// TerminateSession drops every token the subject holds for clientID.
func (s *Storage) TerminateSession(ctx context.Context, userID string, clientID string) error {
	if userID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, rt := range s.refreshTokens {
		if rt.subject == userID && rt.clientID == clientID {
			s.revokeRefreshLocked(key)
		}
	}
	for id, tok := range s.accessTokens {
		if tok.subject == userID && tok.clientID == clientID {
			delete(s.accessTokens, id)
		}
	}
	return nil
}

// RevokeToken accepts a refresh token or an access token id. Revoking a
// refresh token also revokes the access tokens minted from it. Unknown
// tokens are not an error.
func (s *Storage) RevokeToken(ctx context.Context, tokenOrID string, userID string, clientID string) *oidc.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rt, ok := s.refreshTokens[tokenOrID]; ok {
		if rt.clientID != clientID {
			return oidc.ErrInvalidClient().WithDescription("token was issued to another client")
		}
		s.revokeRefreshLocked(tokenOrID)
		return nil
	}
	if tok, ok := s.accessTokens[tokenOrID]; ok {
		if tok.clientID != clientID {
			return oidc.ErrInvalidClient().WithDescription("token was issued to another client")
		}
		delete(s.accessTokens, tokenOrID)
	}
	return nil
}

func (s *Storage) revokeRefreshLocked(token string) {
	delete(s.refreshTokens, token)
	for id, tok := range s.accessTokens {
		if tok.refreshToken == token {
			delete(s.accessTokens, id)
		}
	}
}

func (s *Storage) GetRefreshTokenInfo(ctx context.Context, clientID string, token string) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The library falls back to access token revocation only on
	// ErrInvalidRefreshToken.
	rt, ok := s.refreshTokens[token]
	if !ok || rt.clientID != clientID {
		return "", "", op.ErrInvalidRefreshToken
	}
	return rt.subject, rt.token, nil
}

// IsActive reports whether the access token with id jti was issued by this
// process and is neither expired nor revoked.
func (s *Storage) IsActive(jti string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.accessTokens[jti]
	return ok && s.now().Before(tok.expiresAt)
}

// --- keys ---

func (s *Storage) SigningKey(ctx context.Context) (op.SigningKey, error) {
	return signingKey{keys: s.keys}, nil
}

func (s *Storage) SignatureAlgorithms(context.Context) ([]jose.SignatureAlgorithm, error) {
	return []jose.SignatureAlgorithm{s.keys.Algorithm()}, nil
}

func (s *Storage) KeySet(ctx context.Context) ([]op.Key, error) {
	return []op.Key{publicKey{keys: s.keys}}, nil
}

// --- clients ---

func (s *Storage) GetClientByClientID(ctx context.Context, clientID string) (op.Client, error) {
	if clientID != s.client.GetID() {
		return nil, oidc.ErrInvalidClient().WithDescription("unknown client %s", clientID)
	}
	return s.client, nil
}

func (s *Storage) AuthorizeClientIDSecret(ctx context.Context, clientID, clientSecret string) error {
	if clientID != s.client.GetID() || !s.client.VerifySecret(clientSecret) {
		return oidc.ErrInvalidClient().WithDescription("invalid client credentials")
	}
	return nil
}

func (s *Storage) GetKeyByIDAndClientID(context.Context, string, string) (*jose.JSONWebKey, error) {
	return nil, fmt.Errorf("client keys not supported")
}

func (s *Storage) ValidateJWTProfileScopes(ctx context.Context, userID string, scopes []string) ([]string, error) {
	allowed := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		if s.client.IsScopeAllowed(scope) {
			allowed = append(allowed, scope)
		}
	}
	return allowed, nil
}

// --- claims and userinfo ---

// GetPrivateClaimsFromScopes runs the claims hook for an access token.
func (s *Storage) GetPrivateClaimsFromScopes(ctx context.Context, userID, clientID string, scopes []string) (map[string]any, error) {
	principal, err := s.principal(ctx, userID)
	if err != nil {
		return nil, err
	}
	claims := s.claims(principal, s.client)
	if claims == nil {
		claims = make(map[string]any)
	}
	claims[ClaimScope] = strings.Join(scopes, " ")
	return claims, nil
}

func (s *Storage) SetUserinfoFromScopes(ctx context.Context, info *oidc.UserInfo, userID, clientID string, scopes []string) error {
	return s.populateUserInfo(ctx, info, userID, scopes)
}

// SetUserinfoFromRequest fills the ID token. Hook claims other than iss and
// aud are carried over, since the ID token already pins those.
func (s *Storage) SetUserinfoFromRequest(ctx context.Context, info *oidc.UserInfo, request op.IDTokenRequest, scopes []string) error {
	if err := s.populateUserInfo(ctx, info, request.GetSubject(), scopes); err != nil {
		return err
	}
	principal, err := s.principal(ctx, request.GetSubject())
	if err != nil {
		return err
	}
	for key, value := range s.claims(principal, s.client) {
		if key == "iss" || key == "aud" {
			continue
		}
		info.AppendClaims(key, value)
	}
	return nil
}

func (s *Storage) SetUserinfoFromToken(ctx context.Context, info *oidc.UserInfo, tokenID, subject, origin string) error {
	tok, ok := s.activeToken(tokenID)
	if !ok || tok.subject != subject {
		return fmt.Errorf("access token is not active")
	}
	return s.populateUserInfo(ctx, info, subject, tok.scopes)
}

func (s *Storage) SetIntrospectionFromToken(ctx context.Context, resp *oidc.IntrospectionResponse, tokenID, subject, clientID string) error {
	tok, ok := s.activeToken(tokenID)
	if !ok || tok.subject != subject || tok.clientID != clientID {
		resp.Active = false
		return nil
	}

	resp.Active = true
	resp.Scope = oidc.SpaceDelimitedArray(tok.scopes)
	resp.ClientID = tok.clientID
	resp.Subject = tok.subject
	resp.Username = tok.subject
	resp.Audience = oidc.Audience(tok.audience)
	resp.JWTID = tok.id
	resp.Expiration = oidc.FromTime(tok.expiresAt)
	resp.IssuedAt = oidc.FromTime(tok.issuedAt)
	return nil
}

func (s *Storage) activeToken(id string) (accessToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.accessTokens[id]
	if !ok || !s.now().Before(tok.expiresAt) {
		return accessToken{}, false
	}
	return *tok, true
}

// principal resolves the token subject against the live account store.
// A missing account yields a nil principal, not an error.
func (s *Storage) principal(ctx context.Context, subject string) (*auth.Principal, error) {
	account, err := s.accounts.Lookup(ctx, subject)
	if errors.Is(err, iam.ErrAccountNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p, err := iam.PrincipalFor(account, auth.SchemeSession)
	if err != nil {
		s.logger.WarnContext(ctx, "account has no usable role, issuing token without authorities", "error", err)
		return nil, nil
	}
	return &p, nil
}

func (s *Storage) populateUserInfo(ctx context.Context, info *oidc.UserInfo, subject string, scopes []string) error {
	account, err := s.accounts.Lookup(ctx, subject)
	if err != nil {
		return accountError(err)
	}

	info.Subject = account.Email
	for _, scope := range scopes {
		switch scope {
		case oidc.ScopeProfile:
			info.Name = account.Name
			info.PreferredUsername = account.Email
		case oidc.ScopeEmail:
			info.Email = account.Email
		}
	}
	return nil
}

// accountError reports a subject that no longer resolves as invalid_grant,
// which the provider returns to the client as a 400.
func accountError(err error) error {
	if errors.Is(err, iam.ErrAccountNotFound) {
		return oidc.ErrInvalidGrant().WithDescription("account is not active").WithParent(err)
	}
	return err
}

// --- device authorization ---

func (s *Storage) StoreDeviceAuthorization(ctx context.Context, clientID, deviceCode, userCode string, expires time.Time, scopes []string) error {
	if clientID != s.client.GetID() {
		return oidc.ErrInvalidClient()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(s.now())

	if _, exists := s.userCodes[userCode]; exists {
		return op.ErrDuplicateUserCode
	}
	s.deviceCodes[deviceCode] = &deviceAuthorization{
		userCode: userCode,
		state: op.DeviceAuthorizationState{
			ClientID: clientID,
			Scopes:   slices.Clone(scopes),
			Expires:  expires,
		},
	}
	s.userCodes[userCode] = deviceCode
	return nil
}

func (s *Storage) GetDeviceAuthorizatonState(ctx context.Context, clientID, deviceCode string) (*op.DeviceAuthorizationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.deviceCodes[deviceCode]
	if !ok || entry.state.ClientID != clientID {
		return nil, fmt.Errorf("device code not found")
	}
	state := entry.state
	state.Scopes = slices.Clone(state.Scopes)
	return &state, nil
}

// DeviceAuthorizationSummary is what the verification page shows.
type DeviceAuthorizationSummary struct {
	UserCode string    `json:"userCode"`
	ClientID string    `json:"clientId"`
	Scopes   []string  `json:"scopes"`
	Expires  time.Time `json:"expiresAt"`
}

// PendingDeviceAuthorization looks up an undecided device grant by user code.
func (s *Storage) PendingDeviceAuthorization(userCode string) (DeviceAuthorizationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.pendingDeviceLocked(userCode)
	if err != nil {
		return DeviceAuthorizationSummary{}, err
	}
	return DeviceAuthorizationSummary{
		UserCode: entry.userCode,
		ClientID: entry.state.ClientID,
		Scopes:   slices.Clone(entry.state.Scopes),
		Expires:  entry.state.Expires,
	}, nil
}

// CompleteDeviceAuthorization approves the grant for subject.
func (s *Storage) CompleteDeviceAuthorization(userCode, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.pendingDeviceLocked(userCode)
	if err != nil {
		return err
	}
	entry.state.Subject = subject
	entry.state.Done = true
	return nil
}

// DenyDeviceAuthorization rejects the grant; the polling device receives
// access_denied.
func (s *Storage) DenyDeviceAuthorization(userCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.pendingDeviceLocked(userCode)
	if err != nil {
		return err
	}
	entry.state.Denied = true
	return nil
}

func (s *Storage) pendingDeviceLocked(userCode string) (*deviceAuthorization, error) {
	deviceCode, ok := s.userCodes[normalizeUserCode(userCode)]
	if !ok {
		return nil, ErrUnknownUserCode
	}
	entry, ok := s.deviceCodes[deviceCode]
	if !ok || entry.state.Done || entry.state.Denied || !s.now().Before(entry.state.Expires) {
		return nil, ErrUnknownUserCode
	}
	return entry, nil
}

// normalizeUserCode accepts codes typed in lower case or without the dash.
func normalizeUserCode(code string) string {
	code = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), "-", ""))
	if len(code) == 8 {
		return code[:4] + "-" + code[4:]
	}
	return code
}

// sweepLocked drops expired entries at most once per sweepInterval.
func (s *Storage) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < sweepInterval {
		return
	}
	s.lastSweep = now

	for id, req := range s.authRequests {
		if now.After(req.createdAt.Add(authRequestLifetime)) {
			s.deleteAuthRequestLocked(id)
		}
	}
	for id, tok := range s.accessTokens {
		if !now.Before(tok.expiresAt) {
			delete(s.accessTokens, id)
		}
	}
	for key, rt := range s.refreshTokens {
		if !now.Before(rt.expiresAt) {
			delete(s.refreshTokens, key)
		}
	}
	for code, entry := range s.deviceCodes {
		if !now.Before(entry.state.Expires) {
			delete(s.deviceCodes, code)
			delete(s.userCodes, entry.userCode)
		}
	}
}
