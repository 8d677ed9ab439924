package rules

import (
	"fmt"
	"sort"
)

// FunctionInput declares the parameters a rule accepts
type FunctionInput string

const (
	InputNone                  FunctionInput = "NONE"
	InputOneInteger            FunctionInput = "ONE_INTEGER"
	InputTwoIntegers           FunctionInput = "TWO_INTEGERS"
	InputOneDouble             FunctionInput = "ONE_DOUBLE"
	InputOneString             FunctionInput = "ONE_STRING"
	InputManyStrings           FunctionInput = "MANY_STRINGS"
	InputOneIntegerOneString   FunctionInput = "ONE_INTEGER_ONE_STRING"
	InputOneDate               FunctionInput = "ONE_DATE"
	InputOneGene               FunctionInput = "ONE_GENE"
	InputOneDoidTerm           FunctionInput = "ONE_DOID_TERM"
	InputOneIcdTitle           FunctionInput = "ONE_ICD_TITLE"
	InputOneMedicationCategory FunctionInput = "ONE_MEDICATION_CATEGORY"
	InputManyDrugs             FunctionInput = "MANY_DRUGS"
	InputOneExpression         FunctionInput = "ONE_EXPRESSION"

	// Composite inputs take nested functions instead of literals
	InputOneFunction         FunctionInput = "ONE_FUNCTION"
	InputAtLeastTwoFunctions FunctionInput = "AT_LEAST_TWO_FUNCTIONS"
)

// Composite rules
const (
	And    EligibilityRule = "AND"
	Or     EligibilityRule = "OR"
	Not    EligibilityRule = "NOT"
	WarnIf EligibilityRule = "WARN_IF"
)

// General
const (
	IsMale                                        EligibilityRule = "IS_MALE"
	IsFemale                                      EligibilityRule = "IS_FEMALE"
	IsAtLeastXYearsOld                            EligibilityRule = "IS_AT_LEAST_X_YEARS_OLD"
	HasWHOStatusOfAtMostX                         EligibilityRule = "HAS_WHO_STATUS_OF_AT_MOST_X"
	IsAbleAndWillingToGiveAdequateInformedConsent EligibilityRule = "IS_ABLE_AND_WILLING_TO_GIVE_ADEQUATE_INFORMED_CONSENT"
	HasLifeExpectancyOfAtLeastXMonths             EligibilityRule = "HAS_LIFE_EXPECTANCY_OF_AT_LEAST_X_MONTHS"
	MeetsSpecificCriteriaRegardingBrainMetastases EligibilityRule = "MEETS_SPECIFIC_CRITERIA_REGARDING_BRAIN_METASTASES"
)

// Complications and conditions
const (
	HasAnyComplication                 EligibilityRule = "HAS_ANY_COMPLICATION"
	HasComplicationWithIcdTitleX       EligibilityRule = "HAS_COMPLICATION_WITH_ICD_TITLE_X"
	HasUncontrolledTumorRelatedPain    EligibilityRule = "HAS_UNCONTROLLED_TUMOR_RELATED_PAIN"
	HasHistoryOfConditionWithDoidX     EligibilityRule = "HAS_HISTORY_OF_CONDITION_WITH_DOID_X"
	HasHistoryOfConditionWithIcdTitleX EligibilityRule = "HAS_HISTORY_OF_CONDITION_WITH_ICD_TITLE_X"
)

// Tumor
const (
	HasSolidPrimaryTumor                EligibilityRule = "HAS_SOLID_PRIMARY_TUMOR"
	HasPrimaryTumorBelongingToDoidTermX EligibilityRule = "HAS_PRIMARY_TUMOR_BELONGING_TO_DOID_TERM_X"
	HasMeasurableDisease                EligibilityRule = "HAS_MEASURABLE_DISEASE"
	HasBrainMetastases                  EligibilityRule = "HAS_BRAIN_METASTASES"
	HasActiveBrainMetastases            EligibilityRule = "HAS_ACTIVE_BRAIN_METASTASES"
	HasLiverMetastases                  EligibilityRule = "HAS_LIVER_METASTASES"
)

// Laboratory
const (
	HasHemoglobinGPerDLOfAtLeastX EligibilityRule = "HAS_HEMOGLOBIN_G_PER_DL_OF_AT_LEAST_X"
	HasLeukocytesAbsOfAtLeastX    EligibilityRule = "HAS_LEUKOCYTES_ABS_OF_AT_LEAST_X"
	HasPlateletsAbsOfAtLeastX     EligibilityRule = "HAS_PLATELETS_ABS_OF_AT_LEAST_X"
	HasCreatinineULNOfAtMostX     EligibilityRule = "HAS_CREATININE_ULN_OF_AT_MOST_X"
)

// Medication and treatment history
const (
	CurrentlyGetsMedicationOfCategoryX              EligibilityRule = "CURRENTLY_GETS_MEDICATION_OF_CATEGORY_X"
	HasNotReceivedMedicationOfCategoryYWithinXWeeks EligibilityRule = "HAS_NOT_RECEIVED_MEDICATION_OF_CATEGORY_Y_WITHIN_X_WEEKS"
	HasHadTreatmentWithAnyDrugX                     EligibilityRule = "HAS_HAD_TREATMENT_WITH_ANY_DRUG_X"
	HasHadTreatmentWithNameX                        EligibilityRule = "HAS_HAD_TREATMENT_WITH_NAME_X"
	HasHadAtMostXSystemicTreatmentLines             EligibilityRule = "HAS_HAD_AT_MOST_X_SYSTEMIC_TREATMENT_LINES"
	HasHadAtLeastXSystemicTreatmentLines            EligibilityRule = "HAS_HAD_AT_LEAST_X_SYSTEMIC_TREATMENT_LINES"
	HasHadSystemicTreatmentLinesBetweenXAndY        EligibilityRule = "HAS_HAD_SYSTEMIC_TREATMENT_LINES_BETWEEN_X_AND_Y"
	HasHadTreatmentCategoriesX                      EligibilityRule = "HAS_HAD_TREATMENT_CATEGORIES_X"
)

// Surgery
const (
	HasHadSurgeryWithinLastXWeeks EligibilityRule = "HAS_HAD_SURGERY_WITHIN_LAST_X_WEEKS"
	HasHadSurgeryAfterDateX       EligibilityRule = "HAS_HAD_SURGERY_AFTER_DATE_X"
)

// Molecular
const (
	ActivatingMutationInGeneX EligibilityRule = "ACTIVATING_MUTATION_IN_GENE_X"
	AmplificationOfGeneX      EligibilityRule = "AMPLIFICATION_OF_GENE_X"
	FusionInGeneX             EligibilityRule = "FUSION_IN_GENE_X"
	WildtypeOfGeneX           EligibilityRule = "WILDTYPE_OF_GENE_X"
	HasTMBOfAtLeastX          EligibilityRule = "HAS_TMB_OF_AT_LEAST_X"
	MSISignature              EligibilityRule = "MSI_SIGNATURE"
)

// Custom clinical expressions
const (
	MatchesClinicalExpressionX EligibilityRule = "MATCHES_CLINICAL_EXPRESSION_X"
)

// definitions declares the input of every known rule
var definitions = map[EligibilityRule]FunctionInput{
	And:    InputAtLeastTwoFunctions,
	Or:     InputAtLeastTwoFunctions,
	Not:    InputOneFunction,
	WarnIf: InputOneFunction,

	IsMale:                InputNone,
	IsFemale:              InputNone,
	IsAtLeastXYearsOld:    InputOneInteger,
	HasWHOStatusOfAtMostX: InputOneInteger,
	IsAbleAndWillingToGiveAdequateInformedConsent: InputNone,
	HasLifeExpectancyOfAtLeastXMonths:             InputOneInteger,
	MeetsSpecificCriteriaRegardingBrainMetastases: InputNone,

	HasAnyComplication:                 InputNone,
	HasComplicationWithIcdTitleX:       InputOneIcdTitle,
	HasUncontrolledTumorRelatedPain:    InputNone,
	HasHistoryOfConditionWithDoidX:     InputOneDoidTerm,
	HasHistoryOfConditionWithIcdTitleX: InputOneIcdTitle,

	HasSolidPrimaryTumor:                InputNone,
	HasPrimaryTumorBelongingToDoidTermX: InputOneDoidTerm,
	HasMeasurableDisease:                InputNone,
	HasBrainMetastases:                  InputNone,
	HasActiveBrainMetastases:            InputNone,
	HasLiverMetastases:                  InputNone,

	HasHemoglobinGPerDLOfAtLeastX: InputOneDouble,
	HasLeukocytesAbsOfAtLeastX:    InputOneDouble,
	HasPlateletsAbsOfAtLeastX:     InputOneDouble,
	HasCreatinineULNOfAtMostX:     InputOneDouble,

	CurrentlyGetsMedicationOfCategoryX:              InputOneMedicationCategory,
	HasNotReceivedMedicationOfCategoryYWithinXWeeks: InputOneIntegerOneString,
	HasHadTreatmentWithAnyDrugX:                     InputManyDrugs,
	HasHadTreatmentWithNameX:                        InputOneString,
	HasHadAtMostXSystemicTreatmentLines:             InputOneInteger,
	HasHadAtLeastXSystemicTreatmentLines:            InputOneInteger,
	HasHadSystemicTreatmentLinesBetweenXAndY:        InputTwoIntegers,
	HasHadTreatmentCategoriesX:                      InputManyStrings,

	HasHadSurgeryWithinLastXWeeks: InputOneInteger,
	HasHadSurgeryAfterDateX:       InputOneDate,

	ActivatingMutationInGeneX: InputOneGene,
	AmplificationOfGeneX:      InputOneGene,
	FusionInGeneX:             InputOneGene,
	WildtypeOfGeneX:           InputOneGene,
	HasTMBOfAtLeastX:          InputOneDouble,
	MSISignature:              InputNone,

	MatchesClinicalExpressionX: InputOneExpression,
}

// RuleDefinition describes one rule for listings and validation reports
type RuleDefinition struct {
	Rule      EligibilityRule `json:"rule"`
	Input     FunctionInput   `json:"input"`
	Composite bool            `json:"composite"`
}

// ParseRule converts a rule name into a known EligibilityRule
func ParseRule(name string) (EligibilityRule, error) {
	rule := EligibilityRule(name)
	if _, ok := definitions[rule]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRule, name)
	}
	return rule, nil
}

// IsComposite reports whether rule is a logical combinator
func IsComposite(rule EligibilityRule) bool {
	input := definitions[rule]
	return input == InputOneFunction || input == InputAtLeastTwoFunctions
}

// InputOf returns the declared input of rule
func InputOf(rule EligibilityRule) (FunctionInput, bool) {
	input, ok := definitions[rule]
	return input, ok
}

// AllRules returns every known rule in lexicographic order
func AllRules() []EligibilityRule {
	all := make([]EligibilityRule, 0, len(definitions))
	for rule := range definitions {
		all = append(all, rule)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	return all
}

// Definitions lists every known rule with its input
func Definitions() []RuleDefinition {
	all := AllRules()
	defs := make([]RuleDefinition, 0, len(all))
	for _, rule := range all {
		defs = append(defs, RuleDefinition{
			Rule:      rule,
			Input:     definitions[rule],
			Composite: IsComposite(rule),
		})
	}
	return defs
}
