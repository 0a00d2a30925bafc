package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"graphmail/config"
	controller "graphmail/controllers"
	"graphmail/credentials"
	"graphmail/graph"
	"graphmail/middleware"
	"graphmail/queue"
	"graphmail/routes"
	"graphmail/store"
	"graphmail/utils"
	"graphmail/worker"
)

func newRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "graphmail",
		Short:         "Microsoft Graph mail notification bridge",
		Long:          "graphmail receives Graph change notifications, stores the flattened messages and keeps the subscription alive.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if err := config.InitLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
				return err
			}
			if err := config.InitSentry(cfg.SentryDSN, cfg.Environment, version); err != nil {
				logrus.WithError(err).Warn("Sentry disabled")
			}
			routes.Version = version
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
	}

	cmd.AddCommand(
		newServeCmd(),
		newWorkerCmd(),
		newRenewTokenCmd(),
		newRenewSubscriptionCmd(),
		newSchedulerCmd(),
		newMigrateCmd(),
		newParamCmd(),
	)
	return cmd
}

type configKey struct{}

func configFrom(cmd *cobra.Command) *config.Config {
	return cmd.Context().Value(configKey{}).(*config.Config)
}

// deps holds the collaborators a command opened; close releases them.
type deps struct {
	cfg    *config.Config
	db     *gorm.DB
	redis  *redis.Client
	params *credentials.ParameterStore
	creds  credentials.Provider
}

func (d *deps) close() {
	if d.redis != nil {
		d.redis.Close()
	}
	if d.db != nil {
		if sqlDB, err := d.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
}

type needs struct {
	db    bool
	redis bool
}

func openDeps(cfg *config.Config, n needs) (*deps, error) {
	d := &deps{cfg: cfg}

	if n.db || cfg.CredentialBackend == config.CredentialBackendPostgres {
		db, err := config.ConnectDB(cfg)
		if err != nil {
			return nil, err
		}
		d.db = db
	}

	switch cfg.CredentialBackend {
	case config.CredentialBackendKeyring:
		ring, err := credentials.OpenKeyring(credentials.KeyringConfig{
			Dir:      cfg.KeyringDir,
			Password: cfg.KeyringPassword,
		})
		if err != nil {
			d.close()
			return nil, err
		}
		d.creds = ring
	default:
		cipher, err := utils.NewParameterCipher(cfg.EncryptionKey)
		if err != nil {
			d.close()
			return nil, err
		}
		d.params = credentials.NewParameterStore(d.db, cipher)
		d.creds = d.params
	}

	if n.redis {
		client, err := config.NewRedisClient(cfg.Redis)
		if err != nil {
			d.close()
			return nil, err
		}
		d.redis = client
	}
	return d, nil
}

func (d *deps) graphClient() *graph.Client {
	return graph.NewClient(d.cfg.Graph.BaseURL, d.cfg.Graph.LoginURL, d.cfg.Graph.HTTPTimeout)
}

func (d *deps) notificationWorker(ctx context.Context) (*worker.NotificationWorker, error) {
	topic, err := d.creds.Get(ctx, credentials.DispatchTopic)
	if err != nil {
		return nil, utils.Upstream("read dispatch topic", err)
	}
	processor := controller.NewEmailProcessor(
		d.creds,
		d.graphClient(),
		store.NewEmailStore(d.db),
		logrus.WithField("component", "email_processor"),
	)
	return worker.NewNotificationWorker(
		queue.NewRedisTopic(d.redis, d.cfg.QueueBlockTimeout),
		processor,
		topic,
		logrus.WithField("component", "notification_worker"),
	), nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func newServeCmd() *cobra.Command {
	var withWorker bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the notification webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd)
			d, err := openDeps(cfg, needs{db: withWorker, redis: true})
			if err != nil {
				return err
			}
			defer d.close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			notifications := controller.NewNotificationController(
				d.creds,
				queue.NewRedisTopic(d.redis, cfg.QueueBlockTimeout),
				logrus.WithField("component", "notifications"),
			)
			app := routes.NewApp()
			limiter := middleware.WebhookRateLimiter(cfg.WebhookRateLimit,
				middleware.NewRedisStorage(d.redis, "graphmail:ratelimit:"))
			routes.SetupRoutes(app, notifications, limiter)

			if withWorker {
				nw, err := d.notificationWorker(ctx)
				if err != nil {
					return err
				}
				go nw.Start(ctx)
			}

			go func() {
				<-ctx.Done()
				if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
					logrus.WithError(err).Warn("Server shutdown incomplete")
				}
			}()

			cfg.Log(logrus.WithField("component", "serve"))
			logrus.Infof("Server starting on port %s", cfg.ServerPort)
			return app.Listen(":" + cfg.ServerPort)
		},
	}
	cmd.Flags().BoolVar(&withWorker, "worker", false, "also consume the dispatch topic in this process")
	return cmd
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume the dispatch topic and store email records",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDeps(configFrom(cmd), needs{db: true, redis: true})
			if err != nil {
				return err
			}
			defer d.close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			nw, err := d.notificationWorker(ctx)
			if err != nil {
				return err
			}
			nw.Start(ctx)
			return nil
		},
	}
}

func (d *deps) credentialRenewer() *controller.CredentialRenewer {
	return controller.NewCredentialRenewer(d.creds, d.graphClient(),
		logrus.WithField("component", "credential_renewer"))
}

func (d *deps) subscriptionRenewer() *controller.SubscriptionRenewer {
	client := d.graphClient()
	return controller.NewSubscriptionRenewer(d.creds, client, client,
		logrus.WithField("component", "subscription_renewer"))
}

func newRenewTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "renew-token",
		Short: "Issue a new Graph access token and store it",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDeps(configFrom(cmd), needs{})
			if err != nil {
				return err
			}
			defer d.close()
			return d.credentialRenewer().Renew(cmd.Context())
		},
	}
}

func newRenewSubscriptionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "renew-subscription",
		Short: "Extend the Graph notification subscription by 48 hours",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDeps(configFrom(cmd), needs{})
			if err != nil {
				return err
			}
			defer d.close()
			return d.subscriptionRenewer().Renew(cmd.Context())
		},
	}
}

func newSchedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Renew the token and subscription on RENEW_INTERVAL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd)
			d, err := openDeps(cfg, needs{})
			if err != nil {
				return err
			}
			defer d.close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			worker.NewRenewalWorker(
				d.credentialRenewer(),
				d.subscriptionRenewer(),
				cfg.RenewInterval,
				logrus.WithField("component", "renewal_worker"),
			).Start(ctx)
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := config.ConnectDB(configFrom(cmd))
			if err != nil {
				return err
			}
			defer func() {
				if sqlDB, err := db.DB(); err == nil {
					sqlDB.Close()
				}
			}()
			return config.Migrate(db)
		},
	}
}

func newParamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "param",
		Short: "Manage stored credentials",
	}

	var plain bool
	set := &cobra.Command{
		Use:   "set <name> <value>",
		Short: "Store a credential, encrypted unless --plain is given",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDeps(configFrom(cmd), needs{})
			if err != nil {
				return err
			}
			defer d.close()

			name, value := args[0], args[1]
			if d.params != nil {
				err = d.params.Set(cmd.Context(), name, value, !plain)
			} else {
				if plain {
					return errors.New("--plain is only supported by the postgres credential backend")
				}
				err = d.creds.Put(cmd.Context(), name, value)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", name)
			return nil
		},
	}
	set.Flags().BoolVar(&plain, "plain", false, "store as a plain String parameter")

	cmd.AddCommand(set)
	return cmd
}
