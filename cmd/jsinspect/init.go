package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ludo-technologies/jsinspect/internal/config"
	"github.com/ludo-technologies/jsinspect/internal/constants"
	"github.com/ludo-technologies/jsinspect/internal/rules"
)

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a jsinspect configuration file",
		Long: `Generate a documented jsinspect configuration file with sensible defaults.

By default, creates .jsinspect.yaml in the current directory with full
documentation. Use --interactive for a guided setup wizard.

Examples:
  # Create .jsinspect.yaml in current directory
  jsinspect init

  # Custom output path
  jsinspect init --output custom.yaml

  # Overwrite existing file
  jsinspect init --force

  # Generate smaller config with essential options only
  jsinspect init --minimal

  # Interactive setup wizard
  jsinspect init --interactive
  jsinspect init -i`,
		RunE: runInit,
	}

	cmd.Flags().StringP("output", "o", constants.ConfigFileName,
		"Output path for the config file")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing config file")
	cmd.Flags().Bool("minimal", false,
		"Generate minimal config with essential options only")
	cmd.Flags().BoolP("interactive", "i", false,
		"Interactive setup wizard")
	cmd.Flags().String("project", string(config.ProjectTypeGeneric),
		"Project type: generic, react, node")
	cmd.Flags().String("responsiveness", string(config.ResponsivenessBalanced),
		"On-the-fly tuning: balanced, snappy, thorough")
	cmd.Flags().String("rule-set", config.DefaultRuleSet,
		"Rule set to run")

	return cmd
}

type initChoices struct {
	project        config.ProjectType
	responsiveness config.Responsiveness
	ruleSet        string
	path           string
}

func runInit(cmd *cobra.Command, args []string) error {
	// Get flag values from command
	outputPath, _ := cmd.Flags().GetString("output")
	force, _ := cmd.Flags().GetBool("force")
	minimal, _ := cmd.Flags().GetBool("minimal")
	interactive, _ := cmd.Flags().GetBool("interactive")
	project, _ := cmd.Flags().GetString("project")
	responsiveness, _ := cmd.Flags().GetString("responsiveness")
	ruleSet, _ := cmd.Flags().GetString("rule-set")

	choices := initChoices{
		project:        config.ProjectType(project),
		responsiveness: config.Responsiveness(responsiveness),
		ruleSet:        ruleSet,
		path:           outputPath,
	}

	// Run interactive setup if requested
	if interactive {
		var err error
		choices, err = runInteractiveSetup(outputPath)
		if err != nil {
			return err
		}
	}

	if err := validateChoices(choices); err != nil {
		return err
	}

	// Check if file exists
	if !force {
		if _, err := os.Stat(choices.path); err == nil {
			return fmt.Errorf("%s already exists. Use --force to overwrite", choices.path)
		}
	}

	// Check if parent directory exists
	dir := filepath.Dir(choices.path)
	if dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", dir)
		}
	}

	// Generate config content
	var content string
	if minimal {
		content = config.GetMinimalConfigTemplate()
	} else {
		content = config.GetFullConfigTemplate(choices.project, choices.responsiveness, choices.ruleSet)
	}

	if err := os.WriteFile(choices.path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	displayPath := choices.path
	if absPath, err := filepath.Abs(choices.path); err == nil {
		displayPath = absPath
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", displayPath)
	fmt.Fprintln(cmd.OutOrStdout(), "\nRun 'jsinspect run .' to inspect your project.")

	return nil
}

func validateChoices(c initChoices) error {
	if _, ok := config.GetProjectPresets()[c.project]; !ok {
		return fmt.Errorf("unknown project type: %s", c.project)
	}
	if _, ok := config.GetResponsivenessPresets()[c.responsiveness]; !ok {
		return fmt.Errorf("unknown responsiveness: %s", c.responsiveness)
	}
	registry, err := rules.Default()
	if err != nil {
		return err
	}
	if _, err := registry.RuleSet(c.ruleSet); err != nil {
		return err
	}
	return nil
}

func runInteractiveSetup(defaultPath string) (initChoices, error) {
	fmt.Println()
	fmt.Println("jsinspect Configuration Setup")
	fmt.Println("=============================")
	fmt.Println()

	// Project type selection
	projectTypes := []struct {
		Label string
		Value config.ProjectType
	}{
		{"Generic JavaScript/TypeScript", config.ProjectTypeGeneric},
		{"React/Next.js", config.ProjectTypeReact},
		{"Node.js Backend", config.ProjectTypeNodeBackend},
	}

	projectPrompt := promptui.Select{
		Label: "What type of project is this?",
		Items: projectTypes,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Active:   "\U0001F449 {{ .Label | cyan }}",
			Inactive: "   {{ .Label | white }}",
			Selected: "\U00002705 {{ .Label | green }}",
		},
	}

	projectIdx, _, err := projectPrompt.Run()
	if err != nil {
		return initChoices{}, fmt.Errorf("project selection cancelled: %w", err)
	}

	fmt.Println()

	// Responsiveness selection
	levels := []struct {
		Label       string
		Description string
		Value       config.Responsiveness
	}{
		{"Balanced (recommended)", "Default cache lifetime and lock wait", config.ResponsivenessBalanced},
		{"Snappy", "Longer-lived results, skips large files while editing", config.ResponsivenessSnappy},
		{"Thorough", "Fresher results, analyzes every file while editing", config.ResponsivenessThorough},
	}

	levelPrompt := promptui.Select{
		Label: "How should edits be analyzed?",
		Items: levels,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Active:   "\U0001F449 {{ .Label | cyan }} - {{ .Description | faint }}",
			Inactive: "   {{ .Label | white }} - {{ .Description | faint }}",
			Selected: "\U00002705 {{ .Label | green }}",
		},
	}

	levelIdx, _, err := levelPrompt.Run()
	if err != nil {
		return initChoices{}, fmt.Errorf("responsiveness selection cancelled: %w", err)
	}

	fmt.Println()

	// Rule set selection
	registry, err := rules.Default()
	if err != nil {
		return initChoices{}, err
	}
	sets := registry.RuleSets()
	setPrompt := promptui.Select{
		Label: "Which rule set should run?",
		Items: sets,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Active:   "\U0001F449 {{ .Name | cyan }} - {{ .Description | faint }}",
			Inactive: "   {{ .Name | white }} - {{ .Description | faint }}",
			Selected: "\U00002705 {{ .Name | green }}",
		},
	}

	setIdx, _, err := setPrompt.Run()
	if err != nil {
		return initChoices{}, fmt.Errorf("rule set selection cancelled: %w", err)
	}

	fmt.Println()

	// Output path prompt
	outputPrompt := promptui.Prompt{
		Label:   "Output file path",
		Default: defaultPath,
	}

	outputPath, err := outputPrompt.Run()
	if err != nil {
		return initChoices{}, fmt.Errorf("output path input cancelled: %w", err)
	}

	// Use default if empty
	if outputPath == "" {
		outputPath = defaultPath
	}

	fmt.Println()
	fmt.Printf("Creating %s... ", outputPath)

	return initChoices{
		project:        projectTypes[projectIdx].Value,
		responsiveness: levels[levelIdx].Value,
		ruleSet:        sets[setIdx].Name,
		path:           outputPath,
	}, nil
}
