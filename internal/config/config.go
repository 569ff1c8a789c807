package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the service reads,
// e.g. FITAPI_JWT_SECRET for jwt.secret.
const EnvPrefix = "FITAPI"

// minSecretLength is the shortest HMAC secret accepted for HS256.
const minSecretLength = 32

// Config holds the application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig

	// Legacy bearer-token scheme used by the mobile API.
	JWT JWTConfig

	// Delegated-authorization issuer and its single registered client.
	OAuth2 OAuth2Config

	// External frontend that hosts the interactive login page.
	Frontend FrontendConfig

	CORS    CORSConfig
	Session SessionConfig
	Log     LogConfig
}

type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	// URL is a postgres:// DSN or a sqlite file/memory DSN.
	URL string
}

// JWTConfig configures the symmetric legacy codec. The secret is fixed for
// the process lifetime.
type JWTConfig struct {
	Secret               string
	AccessTokenLifetime  time.Duration
	RefreshTokenLifetime time.Duration
}

// OAuth2Config configures the protocol issuer.
//
// The registered client described here is provisioned once at startup and is
// immutable afterwards. Signing keys are not configurable: a fresh RSA key is
// generated on every start, so a restart invalidates all protocol tokens.
type OAuth2Config struct {
	Issuer                 string
	ClientID               string
	ClientSecret           string
	RedirectURIs           []string
	PostLogoutRedirectURIs []string

	// DevMode allows plain http redirect URIs for the registered client.
	DevMode bool
}

type FrontendConfig struct {
	LoginURL string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// SessionConfig holds the cookie keys for the protocol-surface browser
// session. Empty keys are replaced with random ones at startup.
type SessionConfig struct {
	HashKey    string
	EncryptKey string
}

type LogConfig struct {
	Level  string
	Format string
}

// SetDefaults registers the default value of every recognized key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("database.url", "file:fitapi.db?cache=shared")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_token_lifetime", 24*time.Hour)
	v.SetDefault("jwt.refresh_token_lifetime", 7*24*time.Hour)

	v.SetDefault("frontend.login_url", "http://localhost:3001/login")

	v.SetDefault("oauth2.issuer", "http://localhost:8080")
	v.SetDefault("oauth2.client_id", "fitapi-web")
	v.SetDefault("oauth2.client_secret", "")
	v.SetDefault("oauth2.redirect_uris", []string{"http://localhost:3001/callback"})
	v.SetDefault("oauth2.post_logout_redirect_uris", []string{"http://localhost:3001/"})
	v.SetDefault("oauth2.dev_mode", true)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3001"})

	v.SetDefault("session.hash_key", "")
	v.SetDefault("session.encrypt_key", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Configure wires the environment layer into v. Keys map to variables by
// upper-casing and replacing "." and "-" with "_".
func Configure(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
}

// Load reads configuration from the global viper instance (flags, env,
// config file, defaults) and validates it.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads configuration from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	Configure(v)

	cfg := &Config{
		Server: ServerConfig{
			Addr:         v.GetString("server.addr"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
			IdleTimeout:  v.GetDuration("server.idle_timeout"),
		},
		Database: DatabaseConfig{
			URL: v.GetString("database.url"),
		},
		JWT: JWTConfig{
			Secret:               v.GetString("jwt.secret"),
			AccessTokenLifetime:  v.GetDuration("jwt.access_token_lifetime"),
			RefreshTokenLifetime: v.GetDuration("jwt.refresh_token_lifetime"),
		},
		OAuth2: OAuth2Config{
			Issuer:                 strings.TrimSuffix(v.GetString("oauth2.issuer"), "/"),
			ClientID:               v.GetString("oauth2.client_id"),
			ClientSecret:           v.GetString("oauth2.client_secret"),
			RedirectURIs:           stringList(v, "oauth2.redirect_uris"),
			PostLogoutRedirectURIs: stringList(v, "oauth2.post_logout_redirect_uris"),
			DevMode:                v.GetBool("oauth2.dev_mode"),
		},
		Frontend: FrontendConfig{
			LoginURL: v.GetString("frontend.login_url"),
		},
		CORS: CORSConfig{
			AllowedOrigins: stringList(v, "cors.allowed_origins"),
		},
		Session: SessionConfig{
			HashKey:    v.GetString("session.hash_key"),
			EncryptKey: v.GetString("session.encrypt_key"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if len(c.JWT.Secret) < minSecretLength {
		return fmt.Errorf("jwt.secret must be at least %d bytes (set %s_JWT_SECRET)", minSecretLength, EnvPrefix)
	}
	if c.JWT.AccessTokenLifetime <= 0 {
		return fmt.Errorf("jwt.access_token_lifetime must be positive")
	}
	if c.JWT.RefreshTokenLifetime <= 0 {
		return fmt.Errorf("jwt.refresh_token_lifetime must be positive")
	}
	if err := absoluteURL("oauth2.issuer", c.OAuth2.Issuer); err != nil {
		return err
	}
	if err := absoluteURL("frontend.login_url", c.Frontend.LoginURL); err != nil {
		return err
	}
	if c.OAuth2.ClientID == "" {
		return fmt.Errorf("oauth2.client_id is required")
	}
	if c.OAuth2.ClientSecret == "" {
		return fmt.Errorf("oauth2.client_secret is required (set %s_OAUTH2_CLIENT_SECRET)", EnvPrefix)
	}
	if len(c.OAuth2.RedirectURIs) == 0 {
		return fmt.Errorf("oauth2.redirect_uris must list at least one redirect target")
	}
	return nil
}

func absoluteURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
	}
	return nil
}

// stringList accepts both YAML lists and comma separated env values.
func stringList(v *viper.Viper, key string) []string {
	raw := v.GetStringSlice(key)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
