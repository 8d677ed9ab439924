package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/liamcoop/trialmatch/trial"
)

// validationReport lists the trials that ingest and the ones that do not
type validationReport struct {
	Valid      bool                    `json:"valid"`
	Ingested   []string                `json:"ingested"`
	Unmappable []trial.UnmappableTrial `json:"unmappable"`
}

func newValidateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that trial configurations map onto known rules",
		Long: `Parse and ingest trial configurations without evaluating any patient.
The report lists every trial that was ingested and every trial or cohort
that could not be mapped. The command fails when anything is unmappable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, v)
		},
	}
	cmd.Flags().StringSlice("trials", nil, "trial configuration files or URLs")
	return cmd
}

func runValidate(cmd *cobra.Command, v *viper.Viper) error {
	sources, err := trialSources(v)
	if err != nil {
		return err
	}
	engine, err := buildEngine(v)
	if err != nil {
		return err
	}

	var configs []trial.Config
	for _, source := range sources {
		loaded, err := trial.LoadConfigs(cmd.Context(), source)
		if err != nil {
			return fmt.Errorf("%s: %w", source, err)
		}
		configs = append(configs, loaded...)
	}

	db := trial.Ingest(configs, engine)
	report := validationReport{
		Valid:      db.IsValid(),
		Ingested:   make([]string, 0, len(db.Trials)),
		Unmappable: db.Unmappable,
	}
	for _, t := range db.Trials {
		report.Ingested = append(report.Ingested, t.Identification.TrialID)
	}

	if err := writeJSON(cmd.OutOrStdout(), "", report); err != nil {
		return err
	}
	if !report.Valid {
		return fmt.Errorf("%d trial(s) or cohort(s) could not be mapped", len(report.Unmappable))
	}
	return nil
}
