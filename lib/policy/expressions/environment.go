// Package expressions holds the CEL environment used to override the default
// acceptance rule.
package expressions

import (
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
	"github.com/google/cel-go/interpreter"
)

// Variable names visible to acceptance expressions.
const (
	VarTranscriptScore     = "transcript_score"
	VarBotScore            = "bot_score"
	VarTranscriptThreshold = "transcript_threshold"
	VarHumanThreshold      = "human_threshold"
	VarChallengeKind       = "challenge_kind"
)

// NewEnvironment creates the CEL environment for acceptance expressions. Every
// variable is declared up front so a typo fails at load time instead of on the
// first verification.
func NewEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		ext.Strings(
			ext.StringsLocale("en_US"),
			ext.StringsValidateFormatCalls(true),
		),
		ext.Math(),

		cel.Variable(VarTranscriptScore, cel.DoubleType),
		cel.Variable(VarBotScore, cel.DoubleType),
		cel.Variable(VarTranscriptThreshold, cel.DoubleType),
		cel.Variable(VarHumanThreshold, cel.DoubleType),
		cel.Variable(VarChallengeKind, cel.StringType),
	)
}

// Compile turns a checked syntax tree into a runnable program.
func Compile(env *cel.Env, ast *cel.Ast) (cel.Program, error) {
	return env.Program(
		ast,
		cel.EvalOptions(
			cel.OptOptimize,
		),
	)
}

// Vars are the values one decision exposes to an expression.
type Vars struct {
	TranscriptScore     float64
	BotScore            float64
	TranscriptThreshold float64
	HumanThreshold      float64
	ChallengeKind       string
}

// Parent implements interpreter.Activation.
func (v *Vars) Parent() interpreter.Activation { return nil }

// ResolveName implements interpreter.Activation.
func (v *Vars) ResolveName(name string) (any, bool) {
	switch name {
	case VarTranscriptScore:
		return types.Double(v.TranscriptScore), true
	case VarBotScore:
		return types.Double(v.BotScore), true
	case VarTranscriptThreshold:
		return types.Double(v.TranscriptThreshold), true
	case VarHumanThreshold:
		return types.Double(v.HumanThreshold), true
	case VarChallengeKind:
		return types.String(v.ChallengeKind), true
	default:
		return nil, false
	}
}

// IsTrue reports whether an evaluation result is the CEL boolean true.
func IsTrue(val ref.Val) bool {
	b, ok := val.(types.Bool)
	return ok && bool(b)
}
