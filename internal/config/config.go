// Package config resolves the small set of startup values the engine
// reads once at boot (§6): database DSN, queue backend URL, platform bot
// token, classifier credentials, optional Prometheus/error-tracking
// toggles. It mirrors the teacher's internal/profile.Profile in shape —
// a plain struct populated from viper, then validated — but scoped to
// this service's domain instead of divinesense's AI-assistant settings.
package config

import (
	"fmt"
	"strings"

	passwdvalidator "github.com/go-passwd/validator"
	"github.com/go-passwd/validator/common"
	"github.com/go-playground/validator/v10"

	"github.com/chatsla/sentinel/internal/slaerr"
)

// Config is the resolved startup configuration for the sentinel process.
type Config struct {
	Mode string `validate:"oneof=dev prod"`

	// Storage.
	Driver string `validate:"oneof=postgres sqlite"`
	DSN    string `validate:"required"`

	// Queue backend (C7).
	RedisURL string `validate:"required"`

	// Messaging platform (C10 / internal/platform/telegram).
	TelegramBotToken string `validate:"required"`

	// Classifier (C4).
	ClassifierAPIKey  string `validate:"required"`
	ClassifierBaseURL string
	ClassifierModel   string `validate:"required"`
	ClassifierAuthMode string `validate:"oneof=apikey oauth2"`
	OAuth2ClientID     string
	OAuth2ClientSecret string
	OAuth2TokenURL     string

	// Notification channels (all optional; a channel with empty
	// credentials is simply never dispatched to).
	PagerDutyRoutingKey string
	WebhookURL          string

	// Operational surface.
	AdminAddr      string `validate:"required"`
	AdminAPIKey    string `validate:"required"`
	PrometheusPort int
	PrometheusOn   bool
	SentryDSN      string

	DBPoolMax int `validate:"gte=1,lte=100"`
}

// secretMinLen is the §6 minimum length for any configured secret.
const secretMinLen = 32

var lengthValidator = passwdvalidator.New(common.MinLength(secretMinLen, nil))

// Validate enforces the field constraints and the secret-minimum-length
// rule of §6, returning a slaerr.ConfigError describing the first
// violation found. A ConfigError here is fatal: the caller must exit
// the process non-zero without starting any subsystem.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		if ves, ok := err.(validator.ValidationErrors); ok && len(ves) > 0 {
			fe := ves[0]
			return &slaerr.ConfigError{Field: fe.Field(), Msg: fe.Tag()}
		}
		return &slaerr.ConfigError{Field: "config", Msg: err.Error()}
	}

	secrets := map[string]string{
		"TelegramBotToken": c.TelegramBotToken,
		"ClassifierAPIKey": c.ClassifierAPIKey,
		"AdminAPIKey":      c.AdminAPIKey,
	}
	if c.ClassifierAuthMode == "oauth2" {
		secrets["OAuth2ClientSecret"] = c.OAuth2ClientSecret
	}
	for field, val := range secrets {
		if err := lengthValidator.Validate(val); err != nil {
			return &slaerr.ConfigError{Field: field, Msg: fmt.Sprintf("secret must be at least %d characters", secretMinLen)}
		}
	}

	if c.ClassifierAuthMode == "oauth2" {
		if c.OAuth2ClientID == "" || c.OAuth2TokenURL == "" {
			return &slaerr.ConfigError{Field: "OAuth2", Msg: "client id and token url required in oauth2 mode"}
		}
	}

	return nil
}

func (c *Config) IsDev() bool { return c.Mode != "prod" }

// RedactedDSN returns the DSN with any userinfo credentials stripped,
// safe to print in startup logs.
func (c *Config) RedactedDSN() string {
	if i := strings.Index(c.DSN, "@"); i >= 0 {
		if j := strings.Index(c.DSN, "://"); j >= 0 && j < i {
			return c.DSN[:j+3] + "***" + c.DSN[i:]
		}
	}
	return c.DSN
}
