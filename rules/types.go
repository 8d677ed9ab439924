package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// EligibilityRule names one predicate or logical combinator
type EligibilityRule string

// EligibilityFunction is a node of an eligibility expression tree.
// Composite rules take nested functions as parameters; leaf rules take
// literals only.
type EligibilityFunction struct {
	Rule       EligibilityRule `json:"rule"`
	Parameters []Parameter     `json:"parameters"`
}

// Parameter is either a literal or a nested eligibility function
type Parameter struct {
	literal string
	nested  *EligibilityFunction
}

// Literal creates a literal parameter
func Literal(value string) Parameter {
	return Parameter{literal: value}
}

// Nested creates a parameter holding a nested function
func Nested(fn EligibilityFunction) Parameter {
	return Parameter{nested: &fn}
}

// Function creates an eligibility function with the given parameters
func Function(rule EligibilityRule, parameters ...Parameter) EligibilityFunction {
	return EligibilityFunction{Rule: rule, Parameters: parameters}
}

// Leaf creates a leaf eligibility function with literal parameters
func Leaf(rule EligibilityRule, literals ...string) EligibilityFunction {
	params := make([]Parameter, 0, len(literals))
	for _, l := range literals {
		params = append(params, Literal(l))
	}
	return EligibilityFunction{Rule: rule, Parameters: params}
}

// Composite creates a composite eligibility function over children
func Composite(rule EligibilityRule, children ...EligibilityFunction) EligibilityFunction {
	params := make([]Parameter, 0, len(children))
	for _, c := range children {
		params = append(params, Nested(c))
	}
	return EligibilityFunction{Rule: rule, Parameters: params}
}

// IsNested reports whether p holds a nested function
func (p Parameter) IsNested() bool {
	return p.nested != nil
}

// Literal returns the literal value and whether p is a literal
func (p Parameter) Literal() (string, bool) {
	return p.literal, p.nested == nil
}

// Function returns the nested function and whether p holds one
func (p Parameter) Function() (EligibilityFunction, bool) {
	if p.nested == nil {
		return EligibilityFunction{}, false
	}
	return *p.nested, true
}

func (p Parameter) String() string {
	if p.nested != nil {
		return p.nested.String()
	}
	return p.literal
}

// Equal reports whether two parameters are structurally identical
func (p Parameter) Equal(o Parameter) bool {
	if p.IsNested() != o.IsNested() {
		return false
	}
	if p.nested != nil {
		return p.nested.Equal(*o.nested)
	}
	return p.literal == o.literal
}

// MarshalJSON writes literals as strings and nested functions as objects
func (p Parameter) MarshalJSON() ([]byte, error) {
	if p.nested != nil {
		return json.Marshal(p.nested)
	}
	return json.Marshal(p.literal)
}

// UnmarshalJSON reads a string literal or a nested function object
func (p *Parameter) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var fn EligibilityFunction
		if err := json.Unmarshal(trimmed, &fn); err != nil {
			return err
		}
		*p = Nested(fn)
		return nil
	}
	var literal string
	if err := json.Unmarshal(trimmed, &literal); err != nil {
		return fmt.Errorf("parameter must be a string or a function: %w", err)
	}
	*p = Literal(literal)
	return nil
}

// Functions returns the nested functions of fn, and false if any parameter
// is a literal.
func (fn EligibilityFunction) Functions() ([]EligibilityFunction, bool) {
	children := make([]EligibilityFunction, 0, len(fn.Parameters))
	for _, p := range fn.Parameters {
		child, ok := p.Function()
		if !ok {
			return nil, false
		}
		children = append(children, child)
	}
	return children, true
}

// Literals returns the literal parameters of fn, and false if any parameter
// is a nested function.
func (fn EligibilityFunction) Literals() ([]string, bool) {
	literals := make([]string, 0, len(fn.Parameters))
	for _, p := range fn.Parameters {
		literal, ok := p.Literal()
		if !ok {
			return nil, false
		}
		literals = append(literals, literal)
	}
	return literals, true
}

// String renders fn in trial configuration syntax: composites as
// RULE(child, child), leaves as RULE or RULE[literal, literal].
func (fn EligibilityFunction) String() string {
	if len(fn.Parameters) == 0 {
		return string(fn.Rule)
	}
	parts := make([]string, 0, len(fn.Parameters))
	for _, p := range fn.Parameters {
		parts = append(parts, p.String())
	}
	if IsComposite(fn.Rule) {
		return string(fn.Rule) + "(" + strings.Join(parts, ", ") + ")"
	}
	return string(fn.Rule) + "[" + strings.Join(parts, ", ") + "]"
}

// Equal reports whether two functions are structurally identical
func (fn EligibilityFunction) Equal(o EligibilityFunction) bool {
	if fn.Rule != o.Rule || len(fn.Parameters) != len(o.Parameters) {
		return false
	}
	for i := range fn.Parameters {
		if !fn.Parameters[i].Equal(o.Parameters[i]) {
			return false
		}
	}
	return true
}
