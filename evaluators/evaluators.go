// Package evaluators holds the leaf evaluation functions, grouped by
// medical domain. Every domain contributes a rules.Mapper; together they
// cover each leaf rule exactly once.
package evaluators

import (
	"fmt"
	"strings"

	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/rules"
)

// Mappers returns the mapper of every medical domain
func Mappers() []rules.Mapper {
	return []rules.Mapper{
		GeneralMapper{},
		ComplicationMapper{},
		ConditionMapper{},
		TumorMapper{},
		LaboratoryMapper{},
		MedicationMapper{},
		TreatmentMapper{},
		SurgeryMapper{},
		MolecularMapper{},
		ExpressionMapper{},
	}
}

// NewRegistry builds the registry over every domain mapper
func NewRegistry() (*rules.Registry, error) {
	return rules.NewRegistry(Mappers()...)
}

// NewEngine builds an engine over every domain mapper
func NewEngine(res *rules.Resources) (*rules.Engine, error) {
	registry, err := NewRegistry()
	if err != nil {
		return nil, err
	}
	return rules.NewEngine(res, registry), nil
}

// static creates functions that need neither parameters nor resources
func static(f func(record *patient.Record) evaluation.Evaluation) rules.FunctionCreator {
	return func(rules.EligibilityFunction, *rules.Resources) (rules.EvaluationFunction, error) {
		return rules.EvaluationFunc(f), nil
	}
}

func declined(f func() rules.EvaluationFunction) rules.FunctionCreator {
	return func(rules.EligibilityFunction, *rules.Resources) (rules.EvaluationFunction, error) {
		return f(), nil
	}
}

// flag evaluates an optional boolean of the record
func flag(value *bool, present, absent, unknown [2]string) evaluation.Evaluation {
	switch {
	case value == nil:
		return evaluation.Recoverable(evaluation.Undetermined, unknown[0], unknown[1])
	case *value:
		return evaluation.Of(evaluation.Pass, present[0], present[1])
	default:
		return evaluation.Of(evaluation.Fail, absent[0], absent[1])
	}
}

// concat joins names for display, sorted and without duplicates
func concat(names []string) string {
	set := evaluation.NewMessageSet(names...)
	return strings.Join(set, ", ")
}

func formatNumber(v float64) string {
	return fmt.Sprintf("%g", v)
}
