package oidcissuer

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	httphelper "github.com/zitadel/oidc/v3/pkg/http"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/config"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/services/iam"
)

// SessionCookieName is the browser session of the protocol surface.
const SessionCookieName = "fitapi.session"

// SessionLifetime is how long a protocol login lasts.
const SessionLifetime = 30 * time.Minute

var errSessionExpired = errors.New("session expired")

// session is the encrypted cookie payload.
type session struct {
	Subject  string `json:"sub"`
	CSRF     string `json:"csrf"`
	IssuedAt int64  `json:"iat"`
}

// Sessions manages the encrypted session cookie used by the consent and
// device verification pages.
type Sessions struct {
	cookies  *httphelper.CookieHandler
	accounts iam.AccountLookup
	logger   *slog.Logger
	now      func() time.Time
}

// NewSessions creates the cookie handler from cfg. Empty keys are replaced
// by random ones, which logs everybody out on restart.
func NewSessions(cfg config.SessionConfig, secure bool, accounts iam.AccountLookup, logger *slog.Logger) (*Sessions, error) {
	hashKey, err := sessionKey(cfg.HashKey, 32)
	if err != nil {
		return nil, fmt.Errorf("session hash key: %w", err)
	}
	encryptKey, err := sessionKey(cfg.EncryptKey, 32)
	if err != nil {
		return nil, fmt.Errorf("session encrypt key: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []httphelper.CookieHandlerOpt{
		httphelper.WithSameSite(http.SameSiteLaxMode),
		httphelper.WithMaxAge(int(SessionLifetime / time.Second)),
	}
	if !secure {
		opts = append(opts, httphelper.WithUnsecure())
	}

	return &Sessions{
		cookies:  httphelper.NewCookieHandler(hashKey, encryptKey, opts...),
		accounts: accounts,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// sessionKey returns the configured key or length random bytes. Configured
// keys must be exactly length bytes for AES-256.
func sessionKey(configured string, length int) ([]byte, error) {
	if configured != "" {
		if len(configured) != length {
			return nil, fmt.Errorf("must be %d bytes, got %d", length, len(configured))
		}
		return []byte(configured), nil
	}
	key := make([]byte, length)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// Begin writes a fresh session for subject and returns its CSRF token.
func (s *Sessions) Begin(w http.ResponseWriter, subject string) (string, error) {
	csrf, err := randomToken()
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(session{Subject: subject, CSRF: csrf, IssuedAt: s.now().Unix()})
	if err != nil {
		return "", err
	}
	if err := s.cookies.SetCookie(w, SessionCookieName, string(payload)); err != nil {
		return "", fmt.Errorf("set session cookie: %w", err)
	}
	return csrf, nil
}

// End clears the session cookie.
func (s *Sessions) End(w http.ResponseWriter) {
	s.cookies.DeleteCookie(w, SessionCookieName)
}

// HasCookie reports whether the request carries a session cookie at all.
func (s *Sessions) HasCookie(r *http.Request) bool {
	_, err := r.Cookie(SessionCookieName)
	return err == nil
}

// CSRFToken returns the CSRF token bound to the request's session.
func (s *Sessions) CSRFToken(r *http.Request) (string, bool) {
	sess, err := s.read(r)
	if err != nil {
		return "", false
	}
	return sess.CSRF, true
}

// CheckCSRF compares the submitted form token with the session's.
func (s *Sessions) CheckCSRF(r *http.Request, submitted string) bool {
	expected, ok := s.CSRFToken(r)
	if !ok || submitted == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(submitted)) == 1
}

func (s *Sessions) read(r *http.Request) (session, error) {
	raw, err := s.cookies.CheckCookie(r, SessionCookieName)
	if err != nil {
		return session{}, err
	}
	var sess session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return session{}, fmt.Errorf("decode session: %w", err)
	}
	if s.now().After(time.Unix(sess.IssuedAt, 0).Add(SessionLifetime)) {
		return session{}, errSessionExpired
	}
	return sess, nil
}

// AuthenticateRequest resolves the session subject against the live
// account store, so disabling an account ends its sessions.
func (s *Sessions) AuthenticateRequest(r *http.Request) auth.Result {
	if !s.HasCookie(r) {
		return auth.Unauthenticated(auth.ReasonNoCredentials)
	}
	sess, err := s.read(r)
	if errors.Is(err, errSessionExpired) {
		return auth.Unauthenticated(auth.ReasonExpiredToken)
	}
	if err != nil {
		return auth.Unauthenticated(auth.ReasonMalformedToken)
	}
	if strings.TrimSpace(sess.Subject) == "" {
		return auth.Unauthenticated(auth.ReasonEmptySubject)
	}

	ctx := r.Context()
	account, err := s.accounts.Lookup(ctx, sess.Subject)
	if err != nil {
		if errors.Is(err, iam.ErrAccountNotFound) {
			return auth.Unauthenticated(auth.ReasonAccountNotFound)
		}
		s.logger.WarnContext(ctx, "account lookup failed during session authentication", "error", err)
		return auth.Unauthenticated(auth.ReasonInternalError)
	}
	principal, err := iam.PrincipalFor(account, auth.SchemeSession)
	if err != nil {
		return auth.Unauthenticated(auth.ReasonInternalError)
	}
	return auth.Authenticated(principal)
}

// Scheme labels the authenticator in metrics.
func (s *Sessions) Scheme() auth.Scheme { return auth.SchemeSession }

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
