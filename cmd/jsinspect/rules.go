package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ludo-technologies/jsinspect/domain"
	"github.com/ludo-technologies/jsinspect/internal/rules"
	"github.com/ludo-technologies/jsinspect/service"
)

type rulesListing struct {
	Rules    []rules.Rule          `json:"rules" yaml:"rules"`
	RuleSets []rules.SetDefinition `json:"rule_sets" yaml:"rule_sets"`
}

func rulesCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the bundled rules and rule sets",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := rules.Default()
			if err != nil {
				return err
			}
			listing := rulesListing{Rules: registry.Rules(), RuleSets: registry.RuleSets()}

			switch domain.OutputFormat(format) {
			case domain.OutputFormatJSON:
				return service.WriteJSON(cmd.OutOrStdout(), listing)
			case domain.OutputFormatYAML:
				return service.WriteYAML(cmd.OutOrStdout(), listing)
			case domain.OutputFormatText:
				writeRulesText(cmd.OutOrStdout(), listing)
				return nil
			default:
				return fmt.Errorf("unsupported output format: %s", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json, yaml")
	return cmd
}

func writeRulesText(w io.Writer, listing rulesListing) {
	fmt.Fprintf(w, "Rules:\n")
	for _, r := range listing.Rules {
		var tags []string
		if r.LineLevel {
			tags = append(tags, "line")
		}
		if r.Fix != "" {
			tags = append(tags, "fix: "+r.Fix)
		}
		suffix := ""
		if len(tags) > 0 {
			suffix = " (" + strings.Join(tags, ", ") + ")"
		}
		fmt.Fprintf(w, "  %-24s %-8s %s%s\n", r.ID, r.Tier(), r.Message, suffix)
	}

	fmt.Fprintf(w, "\nRule sets:\n")
	for _, s := range listing.RuleSets {
		fmt.Fprintf(w, "  %-24s %s\n", s.Name, s.Description)
		fmt.Fprintf(w, "  %-24s %s\n", "", strings.Join(s.Rules, ", "))
	}
}
