package evaluators

import (
	"fmt"
	"strings"

	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/rules"
)

// Lab codes as curated
const (
	labHemoglobin = "HB"
	labLeukocytes = "LEUKO_ABS"
	labPlatelets  = "THROMBO_ABS"
	labCreatinine = "CREA"
)

// labMarginOfError is the relative distance to a threshold within which a
// failing value is reported as undetermined
const labMarginOfError = 0.1

// hemoglobinMmolPerLToGPerDL converts hemoglobin from mmol/L to g/dL
const hemoglobinMmolPerLToGPerDL = 1.611

// LaboratoryMapper maps rules over laboratory measurements
type LaboratoryMapper struct{}

func (LaboratoryMapper) Creators() map[rules.EligibilityRule]rules.FunctionCreator {
	return map[rules.EligibilityRule]rules.FunctionCreator{
		rules.HasHemoglobinGPerDLOfAtLeastX: labAtLeast(labHemoglobin, "Hemoglobin", "g/dL", hemoglobinGPerDL),
		rules.HasLeukocytesAbsOfAtLeastX:    labAtLeast(labLeukocytes, "Leukocytes absolute", "10^9/L", rawValue),
		rules.HasPlateletsAbsOfAtLeastX:     labAtLeast(labPlatelets, "Platelets absolute", "10^9/L", rawValue),
		rules.HasCreatinineULNOfAtMostX:     labAtMost(labCreatinine, "Creatinine", "*ULN", timesUpperLimit),
	}
}

// labConverter expresses a measurement in the unit of a rule. It returns
// false when the measurement cannot be converted.
type labConverter func(lab *patient.LabValue) (float64, bool)

func rawValue(lab *patient.LabValue) (float64, bool) {
	return lab.Value, true
}

func hemoglobinGPerDL(lab *patient.LabValue) (float64, bool) {
	switch strings.ToLower(lab.Unit) {
	case "", "g/dl":
		return lab.Value, true
	case "mmol/l":
		return lab.Value * hemoglobinMmolPerLToGPerDL, true
	}
	return 0, false
}

func timesUpperLimit(lab *patient.LabValue) (float64, bool) {
	if lab.RefLimitUp == nil || *lab.RefLimitUp <= 0 {
		return 0, false
	}
	return lab.Value / *lab.RefLimitUp, true
}

func labAtLeast(code, name, unit string, convert labConverter) rules.FunctionCreator {
	return labCreator(code, name, unit, convert, func(value, threshold float64) evaluation.Result {
		switch {
		case value >= threshold:
			return evaluation.Pass
		case value >= threshold*(1-labMarginOfError):
			return evaluation.Undetermined
		}
		return evaluation.Fail
	})
}

func labAtMost(code, name, unit string, convert labConverter) rules.FunctionCreator {
	return labCreator(code, name, unit, convert, func(value, threshold float64) evaluation.Result {
		switch {
		case value <= threshold:
			return evaluation.Pass
		case value <= threshold*(1+labMarginOfError):
			return evaluation.Undetermined
		}
		return evaluation.Fail
	})
}

func labCreator(code, name, unit string, convert labConverter, compare func(value, threshold float64) evaluation.Result) rules.FunctionCreator {
	return func(fn rules.EligibilityFunction, res *rules.Resources) (rules.EvaluationFunction, error) {
		threshold, err := res.Inputs().OneDouble(fn)
		if err != nil {
			return nil, err
		}
		date := res.ReferenceDate.Date()
		limit := formatNumber(threshold) + " " + unit

		return rules.EvaluationFunc(func(record *patient.Record) evaluation.Evaluation {
			lab := record.MostRecentLabValue(code, date)
			if lab == nil {
				return evaluation.Recoverable(evaluation.Undetermined,
					fmt.Sprintf("No measurement found for %s", name), name+" not measured")
			}
			value, ok := convert(lab)
			if !ok {
				return evaluation.Recoverable(evaluation.Undetermined,
					fmt.Sprintf("%s measurement in %s could not be compared to %s", name, lab.Unit, limit),
					name+" undetermined")
			}

			measured := fmt.Sprintf("%s %s", name, formatNumber(value))
			switch compare(value, threshold) {
			case evaluation.Pass:
				return evaluation.Of(evaluation.Pass,
					fmt.Sprintf("%s is within requested limit of %s", measured, limit), name+" sufficient")
			case evaluation.Undetermined:
				return evaluation.Recoverable(evaluation.Undetermined,
					fmt.Sprintf("%s is outside requested limit of %s but within margin of error", measured, limit),
					name+" within margin of error")
			}
			return evaluation.Recoverable(evaluation.Fail,
				fmt.Sprintf("%s is outside requested limit of %s", measured, limit), name+" insufficient")
		}), nil
	}
}
