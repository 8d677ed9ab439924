package rules

import (
	"errors"
	"fmt"
	"sort"
)

// FunctionCreator builds the evaluation function of a leaf rule. fn has
// already passed the input resolver when a creator is called.
type FunctionCreator func(fn EligibilityFunction, res *Resources) (EvaluationFunction, error)

// Mapper contributes the creators of one medical domain
type Mapper interface {
	Creators() map[EligibilityRule]FunctionCreator
}

// Registry maps every leaf rule to exactly one creator
type Registry struct {
	creators map[EligibilityRule]FunctionCreator
}

// NewRegistry merges the creators of mappers. It fails when a rule is
// mapped twice, a composite or unknown rule is mapped, or a leaf rule has no
// creator, so an incomplete build is caught at startup.
func NewRegistry(mappers ...Mapper) (*Registry, error) {
	creators := make(map[EligibilityRule]FunctionCreator)
	var errs []error

	for _, m := range mappers {
		for rule, creator := range m.Creators() {
			switch {
			case !isKnown(rule):
				errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownRule, rule))
			case IsComposite(rule):
				errs = append(errs, fmt.Errorf("composite rule %s cannot be mapped", rule))
			case creators[rule] != nil:
				errs = append(errs, fmt.Errorf("rule %s is mapped more than once", rule))
			case creator == nil:
				errs = append(errs, fmt.Errorf("rule %s is mapped to a nil creator", rule))
			default:
				creators[rule] = creator
			}
		}
	}

	for _, rule := range AllRules() {
		if !IsComposite(rule) && creators[rule] == nil {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnmappedRule, rule))
		}
	}

	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
		return nil, fmt.Errorf("invalid rule registry: %w", errors.Join(errs...))
	}
	return &Registry{creators: creators}, nil
}

func isKnown(rule EligibilityRule) bool {
	_, ok := InputOf(rule)
	return ok
}

// Creator returns the creator mapped to rule
func (r *Registry) Creator(rule EligibilityRule) (FunctionCreator, bool) {
	c, ok := r.creators[rule]
	return c, ok
}

// Rules returns the mapped rules in lexicographic order
func (r *Registry) Rules() []EligibilityRule {
	out := make([]EligibilityRule, 0, len(r.creators))
	for rule := range r.creators {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
