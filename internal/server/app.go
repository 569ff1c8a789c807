package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth/keys"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth/token"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/config"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/oidcissuer"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/repository"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/services/iam"
)

// App is the fully wired service.
type App struct {
	Handler  http.Handler
	Issuer   *oidcissuer.Issuer
	Accounts repository.AccountRepository
}

// NewApp builds key material, the legacy codec, the issuer and the router
// over db. The key set lives as long as the returned App.
func NewApp(cfg *config.Config, db *bun.DB, registry *prometheus.Registry, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	accounts := repository.NewBunAccountRepository(db)
	verifier := iam.NewCredentialVerifier(accounts, logger)

	codec, err := token.NewCodec([]byte(cfg.JWT.Secret))
	if err != nil {
		return nil, fmt.Errorf("create token codec: %w", err)
	}
	tokens := iam.NewTokenService(codec, verifier, cfg.JWT.AccessTokenLifetime, cfg.JWT.RefreshTokenLifetime)

	keySet, err := keys.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate signing keys: %w", err)
	}
	issuer, err := oidcissuer.New(oidcissuer.Options{
		Config:   cfg.OAuth2,
		Session:  cfg.Session,
		Keys:     keySet,
		Verifier: verifier,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create issuer: %w", err)
	}
	protocolBearer, err := NewProtocolBearer(issuer, keySet, verifier, logger)
	if err != nil {
		return nil, err
	}

	router, err := NewRouter(RouterOptions{
		Config:         cfg,
		Issuer:         issuer,
		Tokens:         tokens,
		LegacyBearer:   iam.NewBearerAuthenticator(codec, verifier, logger),
		ProtocolBearer: protocolBearer,
		Registry:       registry,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("issuer ready", "issuer", issuer.Issuer(), "client_id", issuer.Client().GetID(), "key_id", keySet.KeyID())
	return &App{Handler: router, Issuer: issuer, Accounts: accounts}, nil
}
