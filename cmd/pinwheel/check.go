package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/1broseidon/pinwheel/internal/rules"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and print the compiled rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return fmt.Errorf("failed to resolve config path: %w", err)
		}
		res, set, err := loadRules(path)
		if err != nil {
			return err
		}
		printRules(cmd.OutOrStdout(), path, res.Files, set)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func printRules(w io.Writer, path string, files []string, set *rules.RuleSet) {
	fmt.Fprintf(w, "%s: ok (%d rules, %d files)\n", path, set.Len(), len(files))
	for _, r := range set.Rules {
		fmt.Fprintf(w, "\n%s\n", r)
		if src := r.Source.String(); src != "" {
			fmt.Fprintf(w, "  from:    %s\n", src)
		}
		actions := r.Actions.Summary()
		if len(actions) == 0 {
			fmt.Fprintln(w, "  actions: none")
			continue
		}
		fmt.Fprintf(w, "  actions: %s\n", strings.Join(actions, " "))
	}
}
