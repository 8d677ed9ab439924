// Command trialmatch evaluates patient records against clinical trial
// eligibility criteria from the command line.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/liamcoop/trialmatch/evaluators"
	"github.com/liamcoop/trialmatch/internal/logger"
	"github.com/liamcoop/trialmatch/rules"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Every tree carries its own viper
// instance so flags, environment and config file resolve per invocation.
func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "trialmatch",
		Short: "Match patients to clinical trials",
		Long: `trialmatch evaluates a patient record against the eligibility
criteria of configured clinical trials and reports, per trial and cohort,
whether the patient is potentially eligible.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd, v)
		},
	}

	root.PersistentFlags().String("config", "", "config file (default is ./trialmatch.yaml or ~/.config/trialmatch/trialmatch.yaml)")
	root.PersistentFlags().String("resources", "", "resource bundle (default is the built-in bundle)")
	root.PersistentFlags().String("reference-date", "", "evaluation date as YYYY-MM-DD (default is today)")
	root.PersistentFlags().String("log-level", "warn", "log level: trace, debug, info, warn, error")

	root.AddCommand(newMatchCmd(v))
	root.AddCommand(newValidateCmd(v))
	root.AddCommand(newRulesCmd(v))
	root.AddCommand(newVersionCmd())
	return root
}

// initConfig resolves settings from flags, TRIALMATCH_* environment
// variables and the config file, in that order of precedence
func initConfig(cmd *cobra.Command, v *viper.Viper) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read .env: %w", err)
	}

	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("trialmatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "trialmatch"))
		}
	}

	v.SetEnvPrefix("TRIALMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	configErr := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if configErr != nil && (cfgFile != "" || !errors.As(configErr, &notFound)) {
		return fmt.Errorf("failed to read config: %w", configErr)
	}

	logger.Setup(cmd.ErrOrStderr())
	level, err := logger.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	if configErr == nil {
		logger.Debug("using config file", "path", v.ConfigFileUsed())
	}
	return nil
}

// buildEngine creates the rule engine for the configured resources and
// reference date
func buildEngine(v *viper.Viper) (*rules.Engine, error) {
	refDate, err := rules.ParseReferenceDate(v.GetString("reference-date"), time.Now())
	if err != nil {
		return nil, err
	}
	res, err := rules.LoadResources(v.GetString("resources"), refDate)
	if err != nil {
		return nil, err
	}
	return evaluators.NewEngine(res)
}

// trialSources returns the configured trial sources or an error naming the
// flag to set
func trialSources(v *viper.Viper) ([]string, error) {
	sources := v.GetStringSlice("trials")
	if len(sources) == 0 {
		return nil, errors.New("no trial configuration given; use --trials or TRIALMATCH_TRIALS")
	}
	return sources, nil
}
