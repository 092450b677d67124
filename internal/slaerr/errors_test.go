package slaerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorsUnwrap(t *testing.T) {
	base := errors.New("boom")

	cases := []struct {
		name string
		err  error
	}{
		{"store", &StoreError{Op: "GetChat", Err: base}},
		{"classifier", &ClassifierError{Err: base}},
		{"audit", &AuditError{Err: base}},
		{"delivery", &DeliveryError{Recipient: "tg:1", Err: base}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.True(t, errors.Is(tc.err, base))
			require.NotEmpty(t, tc.err.Error())
		})
	}
}

func TestInvalidTransitionMessage(t *testing.T) {
	err := &InvalidTransition{From: "pending", To: "resolved"}
	require.Equal(t, "invalid transition: pending -> resolved", err.Error())
}

func TestRaceLostMessage(t *testing.T) {
	err := &RaceLost{RequestID: "req-1"}
	require.Contains(t, err.Error(), "req-1")
}

func TestConfigErrorAsTarget(t *testing.T) {
	var err error = &ConfigError{Field: "DSN", Msg: "required"}
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, "DSN", ce.Field)
	require.Equal(t, fmt.Sprintf("config: %s: %s", "DSN", "required"), err.Error())
}
