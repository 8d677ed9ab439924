package evaluators

import (
	"fmt"
	"strings"

	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/rules"
)

// MolecularMapper maps rules over the interpreted molecular record
type MolecularMapper struct{}

func (MolecularMapper) Creators() map[rules.EligibilityRule]rules.FunctionCreator {
	return map[rules.EligibilityRule]rules.FunctionCreator{
		rules.ActivatingMutationInGeneX: geneRule(activatingMutationInGene),
		rules.AmplificationOfGeneX:      geneRule(amplificationOfGene),
		rules.FusionInGeneX:             geneRule(fusionInGene),
		rules.WildtypeOfGeneX:           geneRule(wildtypeOfGene),
		rules.HasTMBOfAtLeastX:          hasTMBOfAtLeastX,
		rules.MSISignature:              static(msiSignature),
	}
}

func noMolecularData() evaluation.Evaluation {
	return evaluation.Recoverable(evaluation.Undetermined,
		"No molecular results available", "No molecular data").WithMissingMolecularResult()
}

// geneRule resolves the gene parameter and gates evaluation on the gene
// having been tested
func geneRule(evaluate func(m *patient.MolecularRecord, gene string) evaluation.Evaluation) rules.FunctionCreator {
	return func(fn rules.EligibilityFunction, res *rules.Resources) (rules.EvaluationFunction, error) {
		gene, err := res.Inputs().OneGene(fn)
		if err != nil {
			return nil, err
		}
		return rules.EvaluationFunc(func(record *patient.Record) evaluation.Evaluation {
			if record.Molecular == nil {
				return noMolecularData()
			}
			if !record.Molecular.TestsGene(gene) {
				return evaluation.Recoverable(evaluation.Undetermined,
					fmt.Sprintf("Gene %s not tested", gene), gene+" undetermined").WithMissingMolecularResult()
			}
			return evaluate(record.Molecular, gene)
		}), nil
	}
}

func activatingMutationInGene(m *patient.MolecularRecord, gene string) evaluation.Evaluation {
	var activating, other []string
	for _, v := range m.Variants {
		if !strings.EqualFold(v.Gene, gene) {
			continue
		}
		event := gene + " " + v.Event
		if v.IsReportable && v.IsActivating {
			activating = append(activating, event)
		} else {
			other = append(other, event)
		}
	}

	if len(activating) > 0 {
		return evaluation.Of(evaluation.Pass,
			fmt.Sprintf("Activating mutation(s) detected in %s: %s", gene, concat(activating)),
			gene+" activating mutation(s)").WithInclusionEvents(activating...)
	}
	if len(other) > 0 {
		return evaluation.Of(evaluation.Warn,
			fmt.Sprintf("Mutation(s) detected in %s that are not known to be activating: %s", gene, concat(other)),
			gene+" mutation(s) of unknown activity").WithInclusionEvents(other...)
	}
	return evaluation.Of(evaluation.Fail,
		fmt.Sprintf("No activating mutation detected in %s", gene), "No "+gene+" activating mutation")
}

func amplificationOfGene(m *patient.MolecularRecord, gene string) evaluation.Evaluation {
	for _, a := range m.Amplifications {
		if strings.EqualFold(a.Gene, gene) && a.IsReportable {
			event := gene + " amp"
			return evaluation.Of(evaluation.Pass,
				fmt.Sprintf("Amplification detected of %s", gene), gene+" amplification").WithInclusionEvents(event)
		}
	}
	return evaluation.Of(evaluation.Fail,
		fmt.Sprintf("No amplification detected of %s", gene), "No "+gene+" amplification")
}

func fusionInGene(m *patient.MolecularRecord, gene string) evaluation.Evaluation {
	var fusions []string
	for _, f := range m.Fusions {
		if f.IsReportable && (strings.EqualFold(f.GeneStart, gene) || strings.EqualFold(f.GeneEnd, gene)) {
			fusions = append(fusions, f.Event())
		}
	}
	if len(fusions) > 0 {
		return evaluation.Of(evaluation.Pass,
			fmt.Sprintf("Fusion(s) detected with gene %s: %s", gene, concat(fusions)),
			gene+" fusion(s)").WithInclusionEvents(fusions...)
	}
	return evaluation.Of(evaluation.Fail,
		fmt.Sprintf("No fusion detected with gene %s", gene), "No "+gene+" fusion")
}

func wildtypeOfGene(m *patient.MolecularRecord, gene string) evaluation.Evaluation {
	var drivers []string
	for _, v := range m.Variants {
		if v.IsReportable && strings.EqualFold(v.Gene, gene) {
			drivers = append(drivers, gene+" "+v.Event)
		}
	}
	for _, a := range m.Amplifications {
		if a.IsReportable && strings.EqualFold(a.Gene, gene) {
			drivers = append(drivers, gene+" amp")
		}
	}
	for _, f := range m.Fusions {
		if f.IsReportable && (strings.EqualFold(f.GeneStart, gene) || strings.EqualFold(f.GeneEnd, gene)) {
			drivers = append(drivers, f.Event())
		}
	}

	if len(drivers) > 0 {
		return evaluation.Of(evaluation.Fail,
			fmt.Sprintf("Gene %s is not wild-type: %s", gene, concat(drivers)),
			gene+" not wild-type").WithExclusionEvents(drivers...)
	}
	return evaluation.Of(evaluation.Pass,
		fmt.Sprintf("Gene %s is considered wild-type", gene), gene+" wild-type").WithInclusionEvents(gene + " wild-type")
}

func hasTMBOfAtLeastX(fn rules.EligibilityFunction, res *rules.Resources) (rules.EvaluationFunction, error) {
	minTMB, err := res.Inputs().OneDouble(fn)
	if err != nil {
		return nil, err
	}

	return rules.EvaluationFunc(func(record *patient.Record) evaluation.Evaluation {
		if record.Molecular == nil || record.Molecular.TumorMutationalBurden == nil {
			return noMolecularData()
		}
		tmb := *record.Molecular.TumorMutationalBurden
		if tmb >= minTMB {
			return evaluation.Of(evaluation.Pass,
				fmt.Sprintf("TMB of %s is at least %s", formatNumber(tmb), formatNumber(minTMB)),
				"Adequate TMB").WithInclusionEvents("TMB high")
		}
		return evaluation.Of(evaluation.Fail,
			fmt.Sprintf("TMB of %s is below %s", formatNumber(tmb), formatNumber(minTMB)), "Inadequate TMB")
	}), nil
}

func msiSignature(record *patient.Record) evaluation.Evaluation {
	if record.Molecular == nil || record.Molecular.IsMicrosatelliteUnstable == nil {
		return noMolecularData()
	}
	if *record.Molecular.IsMicrosatelliteUnstable {
		return evaluation.Of(evaluation.Pass, "Microsatellite instability detected", "MSI").
			WithInclusionEvents("MSI high")
	}
	return evaluation.Of(evaluation.Fail, "Tumor is microsatellite stable", "MSS")
}
