// RBAC Core - authentication and role-based access control service.
//
// rbacd serves the HTTP API by default. Maintenance subcommands:
//
//	rbacd prune-tokens   delete expired refresh tokens
//	rbacd migrations     show applied and pending schema migrations
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	_ "github.com/nerrad567/rbac-core/migrations"

	"github.com/nerrad567/rbac-core/internal/api"
	"github.com/nerrad567/rbac-core/internal/audit"
	"github.com/nerrad567/rbac-core/internal/auth"
	"github.com/nerrad567/rbac-core/internal/events"
	"github.com/nerrad567/rbac-core/internal/infrastructure/config"
	"github.com/nerrad567/rbac-core/internal/infrastructure/database"
	"github.com/nerrad567/rbac-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/rbac-core/internal/infrastructure/logging"
	"github.com/nerrad567/rbac-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/rbac-core/internal/infrastructure/ratelimit"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "rbacd",
		Short:         "RBAC Core authentication service",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", getConfigPath(), "path to config.yaml (env RBAC_CONFIG)")

	root.AddCommand(newPruneTokensCommand(&configPath))
	root.AddCommand(newMigrationsCommand(&configPath))
	return root
}

// run serves the API until ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting RBAC Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database ready", "path", cfg.Database.Path)

	seeded, err := auth.SeedRoles(ctx, db.DB, log.Logger)
	if err != nil {
		return fmt.Errorf("seeding roles: %w", err)
	}
	log.Info("roles seeded", "roles", seeded.Roles, "permissions", seeded.Permissions, "grants", seeded.Grants)

	auditRepo := audit.NewSQLiteRepository(db.DB)
	sinks := events.Fanout{events.NewAuditSink(auditRepo, log.Logger)}

	// MQTT and InfluxDB are optional; the service runs without them.
	var mqttStatus, influxStatus api.ConnectionStatus

	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			log.Warn("MQTT unavailable, auth events will not be published", "error", mqttErr)
		} else {
			defer func() {
				log.Info("disconnecting from MQTT")
				if closeErr := mqttClient.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()
			mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
			mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
			log.Info("MQTT connected",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
				"client_id", cfg.MQTT.Broker.ClientID,
			)
			sinks = append(sinks, events.NewMQTTSink(mqttClient, mqttClient.Topics().AuthEvent, log.Logger))
			mqttStatus = mqttClient
		}
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			log.Warn("InfluxDB unavailable, auth metrics will not be written", "error", influxErr)
		} else {
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			influxClient.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
			log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
			sinks = append(sinks, events.NewMetricsSink(influxClient))
			influxStatus = influxClient
		}
	} else {
		log.Info("InfluxDB disabled")
	}

	var limiter api.RateLimiter
	if cfg.Security.RateLimit.Enabled {
		l, limitErr := ratelimit.Connect(ctx, cfg.Security.RateLimit)
		if limitErr != nil {
			log.Warn("Redis unavailable, rate limiting disabled", "error", limitErr)
		} else {
			defer func() {
				if closeErr := l.Close(); closeErr != nil {
					log.Error("error closing Redis", "error", closeErr)
				}
			}()
			log.Info("rate limiting enabled", "requests_per_minute", cfg.Security.RateLimit.RequestsPerMinute)
			limiter = l
		}
	}

	svc := auth.NewService(auth.ServiceDeps{
		Users:  auth.NewUserRepository(db.DB),
		Roles:  auth.NewRoleRepository(db.DB),
		Tokens: auth.NewTokenRepository(db.DB),
		Issuer: auth.NewTokenIssuer(auth.TokenConfig{
			Secret:     cfg.Security.JWT.Secret,
			Issuer:     cfg.Security.JWT.Issuer,
			Audience:   cfg.Security.JWT.Audience,
			AccessTTL:  cfg.Security.JWT.AccessTTL(),
			RefreshTTL: cfg.Security.JWT.RefreshTTL(),
		}),
		Events: sinks,
		Logger: log.Logger,
		Lockout: auth.LockoutPolicy{
			MaxFailedAttempts: cfg.Security.Lockout.MaxFailedAttempts,
			Window:            cfg.Security.Lockout.Duration(),
		},
		RequireConfirmedEmail: cfg.Security.Signin.RequireConfirmedEmail,
	})

	srv, err := api.New(api.Deps{
		Config:   cfg.API,
		Security: cfg.Security,
		Logger:   log,
		Auth:     svc,
		DB:       db,
		Audit:    auditRepo,
		Limiter:  limiter,
		MQTT:     mqttStatus,
		InfluxDB: influxStatus,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// openDatabase opens the store and applies pending migrations.
func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

func newPruneTokensCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "prune-tokens",
		Short: "Delete expired refresh tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			db, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // read-mostly command

			n, err := auth.NewTokenRepository(db.DB).DeleteExpired(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired refresh tokens\n", n)
			return nil
		},
	}
}

func newMigrationsCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrations",
		Short: "Show applied and pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			db, err := database.Open(database.Config{
				Path:        cfg.Database.Path,
				WALMode:     cfg.Database.WALMode,
				BusyTimeout: cfg.Database.BusyTimeout,
			})
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close() //nolint:errcheck // read-only command

			applied, pending, err := db.GetMigrationStatus(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range applied {
				fmt.Fprintf(out, "applied  %s  %s\n", m.Version, m.AppliedAt.Format(time.RFC3339))
			}
			for _, m := range pending {
				fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Name)
			}
			return nil
		},
	}
}

// getConfigPath returns the config file path from RBAC_CONFIG or the default.
func getConfigPath() string {
	if path := os.Getenv("RBAC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
