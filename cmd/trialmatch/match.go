package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/liamcoop/trialmatch/catalog"
	"github.com/liamcoop/trialmatch/internal/logger"
	"github.com/liamcoop/trialmatch/match"
	"github.com/liamcoop/trialmatch/patient"
)

func newMatchCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Evaluate a patient against the configured trials",
		Long: `Evaluate a patient record against every configured trial, or the
trials selected with --trial-id, and write the treatment match as JSON.

Examples:
  trialmatch match --patient patient.json --trials trials.yaml
  trialmatch match --patient patient.json --trials https://example.org/trials.json --eligible-only
  trialmatch match --patient patient.json --trials trials.yaml --reference-date 2024-06-01 -o match.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(cmd, v)
		},
	}

	cmd.Flags().String("patient", "", "patient record JSON file (required)")
	cmd.Flags().StringSlice("trials", nil, "trial configuration files or URLs")
	cmd.Flags().StringSlice("trial-id", nil, "only evaluate these trials")
	cmd.Flags().StringP("output", "o", "", "write the result to a file instead of stdout")
	cmd.Flags().Int("parallelism", 0, "trials evaluated concurrently (default is the number of CPUs)")
	cmd.Flags().Bool("eligible-only", false, "only list the potentially eligible trials and cohorts")
	cmd.Flags().Bool("strict", false, "fail when any trial or cohort cannot be mapped")
	return cmd
}

func runMatch(cmd *cobra.Command, v *viper.Viper) error {
	ctx := cmd.Context()

	patientPath := v.GetString("patient")
	if patientPath == "" {
		return errors.New("--patient is required")
	}
	record, err := readPatient(patientPath)
	if err != nil {
		return err
	}

	sources, err := trialSources(v)
	if err != nil {
		return err
	}
	engine, err := buildEngine(v)
	if err != nil {
		return err
	}

	trials := catalog.New(engine, nil, sources...)
	if err := trials.Load(ctx); err != nil {
		return err
	}
	if unmappable := trials.Unmappable(); len(unmappable) > 0 && v.GetBool("strict") {
		return fmt.Errorf("%d trial(s) or cohort(s) could not be mapped; run validate for details", len(unmappable))
	}
	selected, err := trials.Select(v.GetStringSlice("trial-id"))
	if err != nil {
		return err
	}

	result, err := match.NewMatcher(engine, v.GetInt("parallelism")).Match(ctx, record, selected)
	if err != nil {
		return err
	}

	var out any = result
	if v.GetBool("eligible-only") {
		out = match.EligibleTrials(result.TrialMatches)
	}
	return writeJSON(cmd.OutOrStdout(), v.GetString("output"), out)
}

func readPatient(path string) (*patient.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read patient record: %w", err)
	}
	var record patient.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse patient record %s: %w", path, err)
	}
	if record.PatientID == "" {
		return nil, fmt.Errorf("patient record %s has no patientId", path)
	}
	return &record, nil
}

// writeJSON writes v as indented JSON to path, or to stdout when path is
// empty
func writeJSON(stdout io.Writer, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	logger.Info("result written", "path", path)
	return nil
}
