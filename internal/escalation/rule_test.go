package escalation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGateEmptyExpressionAlwaysPasses(t *testing.T) {
	require.True(t, Gate("", GateInput{}))
}

func TestGateEvaluatesTrue(t *testing.T) {
	ok := Gate(`clientTier == "vip" && minutesElapsed > 30`, GateInput{ClientTier: "vip", MinutesElapsed: 45})
	require.True(t, ok)
}

func TestGateEvaluatesFalse(t *testing.T) {
	ok := Gate(`clientTier == "vip"`, GateInput{ClientTier: "standard"})
	require.False(t, ok)
}

func TestGateInvalidExpressionDefaultsToPass(t *testing.T) {
	ok := Gate(`this is not cel(`, GateInput{})
	require.True(t, ok)
}

func TestGateNonBoolResultDefaultsToPass(t *testing.T) {
	ok := Gate(`level`, GateInput{Level: 2})
	require.True(t, ok)
}
