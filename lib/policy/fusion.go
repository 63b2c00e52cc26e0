package policy

import (
	"context"
	"fmt"

	"github.com/TecharoHQ/vox/lib/policy/config"
	"github.com/TecharoHQ/vox/lib/policy/expressions"
	"github.com/google/cel-go/cel"
)

// Scores are the inputs to fusion.
type Scores struct {
	Transcript float64
	Bot        float64
	Kind       string
}

// Fusion turns the two scores into an accept or reject decision. Without an
// expression both thresholds must pass.
type Fusion struct {
	Thresholds config.Thresholds
	program    cel.Program
}

func NewFusion(t config.Thresholds, expr *config.ExpressionOrList) (*Fusion, error) {
	f := &Fusion{Thresholds: t}
	if expr == nil {
		return f, nil
	}

	env, err := expressions.NewEnvironment()
	if err != nil {
		return nil, err
	}

	var ast *cel.Ast
	switch {
	case expr.Expression != "":
		ast, err = expressions.Check(env, expr.Expression)
	case len(expr.All) != 0:
		ast, err = expressions.Join(env, expressions.JoinAnd, expr.All...)
	case len(expr.Any) != 0:
		ast, err = expressions.Join(env, expressions.JoinOr, expr.Any...)
	default:
		err = config.ErrExpressionEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("can't compile fusion expression: %w", err)
	}

	f.program, err = expressions.Compile(env, ast)
	if err != nil {
		return nil, fmt.Errorf("can't build fusion program: %w", err)
	}

	return f, nil
}

// HasExpression reports whether a custom expression replaces the AND rule.
func (f *Fusion) HasExpression() bool { return f.program != nil }

// Failures lists the thresholds s does not meet.
func (f *Fusion) Failures(s Scores) []Reason {
	var result []Reason

	if s.Transcript < f.Thresholds.Transcript {
		result = append(result, ReasonTranscriptMismatch)
	}

	if s.Bot < f.Thresholds.Human {
		result = append(result, ReasonBotDetected)
	}

	return result
}

// Evaluate decides on s. The returned reasons are empty when accepted. An
// expression that fails to evaluate rejects and returns the error.
func (f *Fusion) Evaluate(ctx context.Context, s Scores) (bool, []Reason, error) {
	failures := f.Failures(s)

	if f.program == nil {
		return len(failures) == 0, failures, nil
	}

	val, _, err := f.program.ContextEval(ctx, &expressions.Vars{
		TranscriptScore:     s.Transcript,
		BotScore:            s.Bot,
		TranscriptThreshold: f.Thresholds.Transcript,
		HumanThreshold:      f.Thresholds.Human,
		ChallengeKind:       s.Kind,
	})
	if err != nil {
		return false, append(failures, ReasonExpressionRejected), fmt.Errorf("can't evaluate fusion expression: %w", err)
	}

	if expressions.IsTrue(val) {
		return true, nil, nil
	}

	if len(failures) == 0 {
		failures = []Reason{ReasonExpressionRejected}
	}

	return false, failures, nil
}
