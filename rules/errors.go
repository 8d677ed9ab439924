package rules

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownRule is returned for rule names outside the rule table
	ErrUnknownRule = errors.New("unknown eligibility rule")

	// ErrWrongArity is returned when the number of parameters does not match
	// the input the rule declares
	ErrWrongArity = errors.New("wrong number of parameters")

	// ErrInvalidParameter is returned when a literal cannot be coerced to the
	// declared input type or fails domain validation
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNotComposite is returned when a leaf rule is given a nested function
	ErrNotComposite = errors.New("nested functions are only allowed under composite rules")

	// ErrExpectedFunction is returned when a composite rule is given a literal
	ErrExpectedFunction = errors.New("composite rule parameters must be functions")

	// ErrUnmappedRule is returned when the registry has no creator for a rule
	ErrUnmappedRule = errors.New("no evaluator mapped for rule")
)

// RuleMappingError reports why an eligibility function could not be turned
// into an evaluation function. Function is the rendered (sub-)tree that
// failed, which for composites may be a nested child.
type RuleMappingError struct {
	Rule     EligibilityRule
	Function string
	Err      error
}

func (e *RuleMappingError) Error() string {
	return fmt.Sprintf("cannot map %s: %v", e.Function, e.Err)
}

func (e *RuleMappingError) Unwrap() error {
	return e.Err
}

func mappingError(fn EligibilityFunction, err error) error {
	var existing *RuleMappingError
	if errors.As(err, &existing) {
		return err
	}
	return &RuleMappingError{Rule: fn.Rule, Function: fn.String(), Err: err}
}
