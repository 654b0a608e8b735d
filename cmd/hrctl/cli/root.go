// Package cli implements hrctl, the operator command line for the HR portal.
package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/pcr-hr/hr-portal/internal/app"
	"github.com/pcr-hr/hr-portal/internal/auth"
	"github.com/pcr-hr/hr-portal/internal/backend"
)

const defaultBackendURL = "http://127.0.0.1:8099"

// Options holds the global flags.
type Options struct {
	BackendURL string
	MasterURL  string
	Token      string
	Session    string
	RedisAddr  string
	JSON       bool
}

var opts Options

var rootCmd = &cobra.Command{
	Use:   "hrctl",
	Short: "Operator CLI for the PCR HR portal",
	Long: `hrctl exports and synchronises HR master data against the backend API.

Authenticate with --token (a bearer access token) or --session (a portal
session id; tokens are read from Redis and refreshed through Keycloak).

Environment Variables:
  BACKEND_BASE_URL     Backend API URL (default: http://127.0.0.1:8099)
  MASTER_API_BASE_URL  Master API URL used by sync
  HRCTL_TOKEN          Bearer token
  REDIS_ADDR           Redis address for --session and job commands`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&opts.BackendURL, "backend-url", "", "Backend API URL (overrides BACKEND_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&opts.MasterURL, "master-url", "", "Master API URL (overrides MASTER_API_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&opts.Token, "token", "", "Bearer access token (overrides HRCTL_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&opts.Session, "session", "", "Portal session id to act on behalf of")
	rootCmd.PersistentFlags().StringVar(&opts.RedisAddr, "redis-addr", "", "Redis address (overrides REDIS_ADDR)")
	rootCmd.PersistentFlags().BoolVar(&opts.JSON, "json", false, "Output JSON instead of human-readable text")
}

func envOr(flag, key, fallback string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (o Options) backendURL() string { return envOr(o.BackendURL, "BACKEND_BASE_URL", defaultBackendURL) }
func (o Options) masterURL() string  { return envOr(o.MasterURL, "MASTER_API_BASE_URL", "") }
func (o Options) token() string      { return envOr(o.Token, "HRCTL_TOKEN", "") }
func (o Options) redisAddr() string  { return envOr(o.RedisAddr, "REDIS_ADDR", "127.0.0.1:6379") }

func (o Options) redisOpts() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: o.redisAddr()}
}

var errNoCredentials = errors.New("either --token or --session is required")

// resources builds upstream resources authenticated per the global flags.
// The returned closer releases any Redis connection.
func (o Options) resources(ctx context.Context, logger *slog.Logger) (backend.Resources, func(), error) {
	client := backend.NewClient(o.backendURL(), nil, logger)
	if token := o.token(); token != "" {
		authed := client.WithTokenSource(func(context.Context) (string, error) {
			return token, nil
		})
		return backend.NewResources(authed, o.masterURL()), func() {}, nil
	}
	if o.Session == "" {
		return backend.Resources{}, nil, errNoCredentials
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		return backend.Resources{}, nil, err
	}
	redisClient := redis.NewClient(&redis.Options{Addr: o.redisAddr()})
	sessions := auth.NewSessionManager(redisClient, app.SessionCookieName, cfg.SessionSecret, cfg.SessionTTL, false)
	provider, err := auth.NewProvider(ctx, auth.ProviderConfig{
		Issuer:       cfg.KeycloakIssuer,
		ClientID:     cfg.KeycloakClientID,
		ClientSecret: cfg.KeycloakClientSecret,
	}, logger)
	if err != nil {
		_ = redisClient.Close()
		return backend.Resources{}, nil, err
	}
	acquirer := auth.NewAcquirer(sessions, provider, logger)
	res := app.ResourcesForSession(client, o.masterURL(), acquirer, o.Session)
	return res, func() { _ = redisClient.Close() }, nil
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
