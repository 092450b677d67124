// Package escalation implements the breach/escalation worker (C9).
// rule.go holds the SPEC_FULL per-chat CEL escalation gate (§2 domain
// stack, §3 supplemented features): an optional chat-configured CEL
// expression that can suppress dispatch of a breach/warning
// notification without affecting the Alert/slaBreached bookkeeping,
// which always happens per steps 1-7 of spec.md §4.9.
package escalation

import (
	"log/slog"

	"github.com/google/cel-go/cel"
)

// GateInput is the variable set exposed to a chat's CEL escalation
// gate, named after the Request/Alert fields a condition would
// reference (e.g. `clientTier == "vip" && minutesElapsed > 30`).
type GateInput struct {
	ClientTier     string
	MinutesElapsed int
	Level          int
	AlertType      string
}

var gateEnv *cel.Env

func init() {
	env, err := cel.NewEnv(
		cel.Variable("clientTier", cel.StringType),
		cel.Variable("minutesElapsed", cel.IntType),
		cel.Variable("level", cel.IntType),
		cel.Variable("alertType", cel.StringType),
	)
	if err != nil {
		panic(err) // fixed variable set; failure here is a programming error, not runtime data
	}
	gateEnv = env
}

// Gate compiles and evaluates a chat's optional escalation-gating
// expression. An empty expression always passes (no gating
// configured). A compile or evaluation error is logged and treated as
// "pass" — a malformed gate must never silently swallow a real breach.
func Gate(expr string, in GateInput) bool {
	if expr == "" {
		return true
	}
	ast, issues := gateEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		slog.Warn("escalation: invalid CEL gate, defaulting to pass", "expr", expr, "error", issues.Err())
		return true
	}
	prg, err := gateEnv.Program(ast)
	if err != nil {
		slog.Warn("escalation: CEL program build failed, defaulting to pass", "expr", expr, "error", err)
		return true
	}
	out, _, err := prg.Eval(map[string]any{
		"clientTier":     in.ClientTier,
		"minutesElapsed": in.MinutesElapsed,
		"level":          in.Level,
		"alertType":      in.AlertType,
	})
	if err != nil {
		slog.Warn("escalation: CEL eval failed, defaulting to pass", "expr", expr, "error", err)
		return true
	}
	b, ok := out.Value().(bool)
	if !ok {
		slog.Warn("escalation: CEL gate did not return bool, defaulting to pass", "expr", expr)
		return true
	}
	return b
}
