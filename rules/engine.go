package rules

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
)

// maxCachedFunctions bounds the build cache. The cache is emptied when full.
const maxCachedFunctions = 10000

// Engine turns eligibility function trees into evaluation functions.
// Functions built for evaluation are cached by their tree so trials sharing
// criteria share evaluators; Validate never caches. Engine is safe for
// concurrent use.
type Engine struct {
	resources *Resources
	registry  *Registry
	functions map[string]EvaluationFunction // encoded tree -> built function
	mu        sync.RWMutex
}

// NewEngine creates an engine building leaves from registry
func NewEngine(resources *Resources, registry *Registry) *Engine {
	return &Engine{
		resources: resources,
		registry:  registry,
		functions: make(map[string]EvaluationFunction),
	}
}

// Resources returns the bundle shared by every built function
func (en *Engine) Resources() *Resources {
	return en.resources
}

// Registry returns the registry leaves are built from
func (en *Engine) Registry() *Registry {
	return en.registry
}

// Build validates fn and returns its evaluation function. Every failure is
// a *RuleMappingError naming the offending (sub-)tree.
func (en *Engine) Build(fn EligibilityFunction) (EvaluationFunction, error) {
	return en.buildCached(fn, true)
}

func (en *Engine) buildCached(fn EligibilityFunction, cache bool) (EvaluationFunction, error) {
	if !cache {
		return en.build(fn, false)
	}

	key, err := cacheKey(fn)
	if err != nil {
		return nil, mappingError(fn, err)
	}

	en.mu.RLock()
	built, ok := en.functions[key]
	en.mu.RUnlock()
	if ok {
		return built, nil
	}

	built, err = en.build(fn, true)
	if err != nil {
		return nil, err
	}

	en.mu.Lock()
	if len(en.functions) >= maxCachedFunctions {
		clear(en.functions)
	}
	en.functions[key] = built
	en.mu.Unlock()
	return built, nil
}

func (en *Engine) build(fn EligibilityFunction, cache bool) (EvaluationFunction, error) {
	if err := en.resources.Inputs().Resolve(fn); err != nil {
		return nil, mappingError(fn, err)
	}

	if IsComposite(fn.Rule) {
		nested, _ := fn.Functions()
		children := make([]EvaluationFunction, 0, len(nested))
		for _, child := range nested {
			built, err := en.buildCached(child, cache)
			if err != nil {
				return nil, err
			}
			children = append(children, built)
		}
		return newComposite(fn.Rule, children), nil
	}

	creator, ok := en.registry.Creator(fn.Rule)
	if !ok {
		return nil, mappingError(fn, ErrUnmappedRule)
	}
	built, err := creator(fn, en.resources)
	if err != nil {
		return nil, mappingError(fn, err)
	}
	return built, nil
}

// Validate reports whether fn can be built. The built function is
// discarded, so validating untrusted trees does not grow the cache.
func (en *Engine) Validate(fn EligibilityFunction) error {
	_, err := en.buildCached(fn, false)
	return err
}

// Evaluate builds fn and evaluates it against record
func (en *Engine) Evaluate(fn EligibilityFunction, record *patient.Record) (evaluation.Evaluation, error) {
	built, err := en.Build(fn)
	if err != nil {
		return evaluation.Evaluation{}, err
	}
	return built.Evaluate(record), nil
}

// cacheKey encodes fn unambiguously. The display string cannot be used
// because literals may contain separators.
func cacheKey(fn EligibilityFunction) (string, error) {
	data, err := json.Marshal(fn)
	if err != nil {
		return "", fmt.Errorf("failed to encode function: %w", err)
	}
	return string(data), nil
}
