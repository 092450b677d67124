package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// healthCmd pings the configured database and exits 0 iff it succeeds,
// matching spec.md §6's "/health endpoint that returns OK iff the
// database ping succeeds" for use as a CLI liveness probe alongside the
// HTTP one registered in internal/adminapi.
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check database connectivity and exit 0 on success",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		driver, err := openDriver(cfg)
		if err != nil {
			return err
		}
		defer driver.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := driver.Ping(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "database ping failed:", err)
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

// settingsInitCmd interactively prompts for the service's secrets
// without echoing them to the terminal, writing a .env file a first
// deploy can source. Read-only data (timezone, working hours) still
// comes from flags/env per the normal resolution order.
var settingsInitCmd = &cobra.Command{
	Use:   "settings-init",
	Short: "Interactively collect secrets and write a local .env file",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Configuring sentinel — secrets are not echoed.")
		telegramToken, err := promptSecret("Telegram bot token")
		if err != nil {
			return err
		}
		classifierKey, err := promptSecret("Classifier API key")
		if err != nil {
			return err
		}
		adminKey, err := promptSecret("Admin API key")
		if err != nil {
			return err
		}

		f, err := os.Create(".env")
		if err != nil {
			return err
		}
		defer f.Close()

		w := bufio.NewWriter(f)
		fmt.Fprintf(w, "SENTINEL_TELEGRAM_BOT_TOKEN=%s\n", telegramToken)
		fmt.Fprintf(w, "SENTINEL_CLASSIFIER_API_KEY=%s\n", classifierKey)
		fmt.Fprintf(w, "SENTINEL_ADMIN_API_KEY=%s\n", adminKey)
		fmt.Fprintf(w, "SENTINEL_DRIVER=%s\n", viper.GetString("driver"))
		return w.Flush()
	},
}

func promptSecret(label string) (string, error) {
	fmt.Printf("%s: ", label)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
