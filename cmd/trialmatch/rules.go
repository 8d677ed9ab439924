package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/liamcoop/trialmatch/rules"
)

func newRulesCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the eligibility rules and their parameter types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(cmd, v)
		},
	}
	cmd.Flags().Bool("json", false, "print the rule list as JSON")
	return cmd
}

func runRules(cmd *cobra.Command, v *viper.Viper) error {
	definitions := rules.Definitions()

	if v.GetBool("json") {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(definitions)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RULE\tINPUT\tCOMPOSITE")
	for _, def := range definitions {
		fmt.Fprintf(w, "%s\t%s\t%t\n", def.Rule, def.Input, def.Composite)
	}
	return w.Flush()
}
