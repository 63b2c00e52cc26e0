package config

import (
	"encoding/json"
	"errors"
	"slices"
)

var (
	ErrExpressionOrListMustBeStringOrObject = errors.New("config: this must be a string or an object")
	ErrExpressionEmpty                      = errors.New("config: this expression is empty")
	ErrExpressionCantHaveBoth               = errors.New("config: expression block can't contain multiple expression types")
)

// ExpressionOrList is either a single CEL expression or a list of them
// joined with all (&&) or any (||).
type ExpressionOrList struct {
	Expression string   `json:"-" yaml:"-"`
	All        []string `json:"all,omitempty" yaml:"all,omitempty"`
	Any        []string `json:"any,omitempty" yaml:"any,omitempty"`
}

func (eol ExpressionOrList) Equal(rhs *ExpressionOrList) bool {
	if eol.Expression != rhs.Expression {
		return false
	}

	if !slices.Equal(eol.All, rhs.All) {
		return false
	}

	if !slices.Equal(eol.Any, rhs.Any) {
		return false
	}

	return true
}

func (eol *ExpressionOrList) MarshalYAML() (any, error) {
	switch {
	case len(eol.All) == 1 && len(eol.Any) == 0:
		return eol.All[0], nil
	case len(eol.Any) == 1 && len(eol.All) == 0:
		return eol.Any[0], nil
	case eol.Expression != "":
		return eol.Expression, nil
	}

	type RawExpressionOrList ExpressionOrList
	return RawExpressionOrList(*eol), nil
}

func (eol *ExpressionOrList) MarshalJSON() ([]byte, error) {
	switch {
	case len(eol.All) == 1 && len(eol.Any) == 0:
		return json.Marshal(eol.All[0])
	case len(eol.Any) == 1 && len(eol.All) == 0:
		return json.Marshal(eol.Any[0])
	case eol.Expression != "":
		return json.Marshal(eol.Expression)
	}

	type RawExpressionOrList ExpressionOrList
	return json.Marshal(RawExpressionOrList(*eol))
}

func (eol *ExpressionOrList) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return ErrExpressionOrListMustBeStringOrObject
	}

	switch string(data[0]) {
	case `"`: // string
		return json.Unmarshal(data, &eol.Expression)
	case "{": // object
		type RawExpressionOrList ExpressionOrList
		var val RawExpressionOrList
		if err := json.Unmarshal(data, &val); err != nil {
			return err
		}
		eol.All = val.All
		eol.Any = val.Any

		return nil
	}

	return ErrExpressionOrListMustBeStringOrObject
}

func (eol *ExpressionOrList) Valid() error {
	if eol.Expression == "" && len(eol.All) == 0 && len(eol.Any) == 0 {
		return ErrExpressionEmpty
	}

	if len(eol.All) != 0 && len(eol.Any) != 0 {
		return ErrExpressionCantHaveBoth
	}

	return nil
}
