package expressions

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// JoinOperator combines clauses of an all or any list.
type JoinOperator string

const (
	JoinAnd JoinOperator = "&&"
	JoinOr  JoinOperator = "||"
)

func (jo JoinOperator) Valid() error {
	switch jo {
	case JoinAnd, JoinOr:
		return nil
	default:
		return ErrWrongJoinOperator
	}
}

var (
	ErrWrongJoinOperator = errors.New("expressions: invalid join operator")
	ErrNoExpressions     = errors.New("expressions: cannot join zero expressions")
	ErrCantCompile       = errors.New("expressions: can't compile one expression")
	ErrNotBoolean        = errors.New("expressions: expression must return a bool")
)

// JoinClauses folds checked clauses into one expression. Given
//
//	transcript_score >= transcript_threshold
//	bot_score >= human_threshold
//
// and JoinAnd it compiles
//
//	( transcript_score >= transcript_threshold ) && ( bot_score >= human_threshold )
func JoinClauses(env *cel.Env, operator JoinOperator, clauses ...*cel.Ast) (*cel.Ast, error) {
	if err := operator.Valid(); err != nil {
		return nil, fmt.Errorf("%w: wanted && or ||, got: %q", err, operator)
	}

	switch len(clauses) {
	case 0:
		return nil, ErrNoExpressions
	case 1:
		return clauses[0], nil
	}

	parts := make([]string, 0, len(clauses))
	var errs []error

	for _, clause := range clauses {
		src, err := cel.AstToString(clause)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		parts = append(parts, "( "+src+" )")
	}

	if len(errs) != 0 {
		return nil, fmt.Errorf("can't decompile clauses: %w", errors.Join(errs...))
	}

	result, iss := env.Compile(strings.Join(parts, " "+string(operator)+" "))
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}

	return result, nil
}

// Join compiles each source clause and folds them with operator.
func Join(env *cel.Env, operator JoinOperator, clauses ...string) (*cel.Ast, error) {
	asts := make([]*cel.Ast, 0, len(clauses))
	var errs []error

	for _, clause := range clauses {
		ast, err := Check(env, clause)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		asts = append(asts, ast)
	}

	if len(errs) != 0 {
		return nil, fmt.Errorf("errors while joining clauses: %w", errors.Join(errs...))
	}

	return JoinClauses(env, operator, asts...)
}

// Check compiles one clause and makes sure it yields a bool.
func Check(env *cel.Env, src string) (*cel.Ast, error) {
	ast, iss := env.Compile(src)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("%w: %q gave: %w", ErrCantCompile, src, iss.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("%w: %q returns %s", ErrNotBoolean, src, ast.OutputType())
	}

	return ast, nil
}
