// Command sentinel runs the SLA watch engine: an ingress webhook server,
// the asynq job-queue workers for the sla-timer and alert-dispatch
// queues, and the admin HTTP surface, all sharing one process.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chatsla/sentinel/internal/adminapi"
	"github.com/chatsla/sentinel/internal/classifier"
	"github.com/chatsla/sentinel/internal/config"
	"github.com/chatsla/sentinel/internal/escalation"
	"github.com/chatsla/sentinel/internal/ingress"
	"github.com/chatsla/sentinel/internal/jobqueue"
	"github.com/chatsla/sentinel/internal/lifecycle"
	"github.com/chatsla/sentinel/internal/notify"
	"github.com/chatsla/sentinel/internal/notify/pagerduty"
	"github.com/chatsla/sentinel/internal/notify/webhook"
	"github.com/chatsla/sentinel/internal/platform/telegram"
	"github.com/chatsla/sentinel/internal/responder"
	"github.com/chatsla/sentinel/internal/settings"
	"github.com/chatsla/sentinel/internal/slaerr"
	"github.com/chatsla/sentinel/internal/slatimer"
	"github.com/chatsla/sentinel/internal/store"
	"github.com/chatsla/sentinel/internal/store/postgres"
	"github.com/chatsla/sentinel/internal/store/sqlite"
	"github.com/chatsla/sentinel/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Monitors group chats and enforces responder SLAs.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return nil
	},
	RunE: runServe,
}

func init() {
	setupLogging()

	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("admin-addr", ":28082")
	viper.SetDefault("db-pool-max", 10)
	viper.SetDefault("classifier-auth-mode", "apikey")

	flags := rootCmd.PersistentFlags()
	flags.String("mode", "dev", `"prod" or "dev"`)
	flags.String("driver", "sqlite", "storage driver: postgres or sqlite")
	flags.String("dsn", "", "database source name")
	flags.String("redis-url", "", "asynq/redis backend URL")
	flags.String("telegram-bot-token", "", "Telegram bot token")
	flags.String("classifier-api-key", "", "classifier API key")
	flags.String("classifier-base-url", "", "classifier API base URL override")
	flags.String("classifier-model", "", "classifier model name")
	flags.String("classifier-auth-mode", "apikey", `"apikey" or "oauth2"`)
	flags.String("pagerduty-routing-key", "", "optional PagerDuty routing key")
	flags.String("webhook-url", "", "optional generic webhook URL")
	flags.String("admin-addr", ":28082", "admin HTTP surface bind address")
	flags.String("admin-api-key", "", "key required via X-Admin-Token on the admin HTTP surface")
	flags.Int("prometheus-port", 0, "Prometheus metrics port (0 disables)")
	flags.String("sentry-dsn", "", "optional error-tracking DSN")

	for _, name := range []string{
		"mode", "driver", "dsn", "redis-url", "telegram-bot-token",
		"classifier-api-key", "classifier-base-url", "classifier-model",
		"classifier-auth-mode", "pagerduty-routing-key", "webhook-url",
		"admin-addr", "admin-api-key", "prometheus-port", "sentry-dsn",
	} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("sentinel")
	viper.AutomaticEnv()

	rootCmd.AddCommand(healthCmd, settingsInitCmd)
}

// setupLogging installs a handler chosen by TTY detection: a colorized
// tint handler for interactive terminals, plain JSON otherwise (for
// systemd/container log collection).
func setupLogging() {
	var handler slog.Handler
	if isatty.IsTerminal(os.Stdout.Fd()) {
		handler = tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))
}

func loadConfig() (*config.Config, error) {
	cfg := &config.Config{
		Mode:               viper.GetString("mode"),
		Driver:             viper.GetString("driver"),
		DSN:                viper.GetString("dsn"),
		RedisURL:           viper.GetString("redis-url"),
		TelegramBotToken:   viper.GetString("telegram-bot-token"),
		ClassifierAPIKey:   viper.GetString("classifier-api-key"),
		ClassifierBaseURL:  viper.GetString("classifier-base-url"),
		ClassifierModel:    viper.GetString("classifier-model"),
		ClassifierAuthMode: viper.GetString("classifier-auth-mode"),
		OAuth2ClientID:     viper.GetString("oauth2-client-id"),
		OAuth2ClientSecret: viper.GetString("oauth2-client-secret"),
		OAuth2TokenURL:     viper.GetString("oauth2-token-url"),
		PagerDutyRoutingKey: viper.GetString("pagerduty-routing-key"),
		WebhookURL:          viper.GetString("webhook-url"),
		AdminAddr:           viper.GetString("admin-addr"),
		AdminAPIKey:         viper.GetString("admin-api-key"),
		PrometheusPort:      viper.GetInt("prometheus-port"),
		PrometheusOn:        viper.GetInt("prometheus-port") > 0,
		SentryDSN:           viper.GetString("sentry-dsn"),
		DBPoolMax:           viper.GetInt("db-pool-max"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		var cerr *slaerr.ConfigError
		if errors.As(err, &cerr) {
			slog.Error("config validation failed, exiting", "field", cerr.Field, "error", cerr.Msg)
		}
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	driver, err := openDriver(cfg)
	if err != nil {
		return fmt.Errorf("open store driver: %w", err)
	}
	st := store.New(driver)
	defer st.Close()

	settingsResolver := settings.New(st)
	scheduleResolver := settings.NewScheduleResolver(st, settingsResolver)
	classify := classifier.New(classifier.Config{
		APIKey:             cfg.ClassifierAPIKey,
		BaseURL:            cfg.ClassifierBaseURL,
		Model:              cfg.ClassifierModel,
		AuthMode:           cfg.ClassifierAuthMode,
		OAuth2ClientID:     cfg.OAuth2ClientID,
		OAuth2ClientSecret: cfg.OAuth2ClientSecret,
		OAuth2TokenURL:     cfg.OAuth2TokenURL,
	})
	identifier := responder.New(st)
	engine := lifecycle.New(st)

	jqClient, err := jobqueue.NewClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("jobqueue client: %w", err)
	}
	defer jqClient.Close()

	timer := slatimer.New(jqClient, scheduleResolver, engine, st)
	pipeline := ingress.New(st, identifier, classify, engine, timer, settingsResolver)

	bot, err := telegram.New(cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("telegram bot: %w", err)
	}

	var pd notify.OpsNotifier
	if cfg.PagerDutyRoutingKey != "" {
		pd = pagerduty.New(cfg.PagerDutyRoutingKey)
	}
	var wh notify.OpsNotifier
	if cfg.WebhookURL != "" {
		whNotifier, err := webhook.New(cfg.WebhookURL)
		if err != nil {
			return fmt.Errorf("webhook notifier: %w", err)
		}
		wh = whNotifier
	}
	router := notify.NewRouter(bot, pd, wh)

	escalationWorker := escalation.New(st, jqClient, settingsResolver, scheduleResolver, router)

	queueServer, err := jobqueue.NewServer(cfg.RedisURL, jobqueue.DefaultQueueConfigs(), 30*time.Second)
	if err != nil {
		return fmt.Errorf("jobqueue server: %w", err)
	}
	queueServer.Register(jobqueue.QueueSLATimer, slatimer.TaskTimer, escalationWorker.HandleBreach)
	queueServer.Register(jobqueue.QueueSLATimer, slatimer.TaskWarn, escalationWorker.HandleWarn)
	jobqueue.RegisterAncillary(queueServer)

	go func() {
		if err := queueServer.Run(); err != nil {
			slog.Error("jobqueue server stopped", "error", err)
		}
	}()
	defer queueServer.Shutdown()

	adminSvc, err := adminapi.NewService(st, engine, cfg.AdminAddr, cfg.AdminAPIKey)
	if err != nil {
		return fmt.Errorf("admin api: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	adminSvc.Register(e)
	e.POST("/webhook/telegram", func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return c.NoContent(http.StatusBadRequest)
		}
		msg, err := bot.ParseUpdate(body)
		if err != nil {
			slog.Warn("telegram webhook: malformed payload", "error", err)
			return c.NoContent(http.StatusOK)
		}
		pipeline.HandleMessage(c.Request().Context(), msg)
		return c.NoContent(http.StatusOK)
	})

	go func() {
		if err := e.Start(cfg.AdminAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("admin http server stopped", "error", err)
		}
	}()

	slog.Info("sentinel started", "version", version.String(), "mode", cfg.Mode, "driver", cfg.Driver, "adminAddr", cfg.AdminAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, terminationSignals...)
	<-sigCh

	slog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 15*time.Second)
	defer shutdownCancel()
	_ = e.Shutdown(shutdownCtx)

	return nil
}

func openDriver(cfg *config.Config) (store.Driver, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.Open(cfg.DSN)
	case "sqlite":
		return sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
}

func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
