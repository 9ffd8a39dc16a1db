package cmd

import (
	"fmt"
	"os"

	"api-test-engine/internal/catalog"
	"api-test-engine/internal/reporter"
	"api-test-engine/internal/scenario"
	"api-test-engine/internal/types"

	"github.com/spf13/cobra"
)

func init() {
	generateCmd := &cobra.Command{
		Use:   "generate <endpoint-id>",
		Short: "Preview the test cases generated for an endpoint",
		Args:  cobra.ExactArgs(1),
		Run:   runGenerate,
	}

	generateCmd.Flags().StringSliceP("kinds", "k", []string{"all"}, "Scenario kinds to generate")
	generateCmd.Flags().StringP("export", "o", "", "Write the suite as YAML to this file for editing and 'run --suite'")
	generateCmd.Flags().Bool("enrich", false, "Fill missing parameter examples through the configured LLM first")

	rootCmd.AddCommand(generateCmd)
}

// loadEndpoint finds an endpoint in the catalog named by --catalog
func loadEndpoint(cmd *cobra.Command, id string) (types.Endpoint, error) {
	path, _ := cmd.Flags().GetString("catalog")
	c, err := catalog.Load(path)
	if err != nil {
		return types.Endpoint{}, err
	}
	ep, ok := c.Find(id)
	if !ok {
		return types.Endpoint{}, fmt.Errorf("endpoint %s not found in %s", id, path)
	}
	return ep, nil
}

func kindsFlag(cmd *cobra.Command) ([]types.ScenarioKind, error) {
	names, _ := cmd.Flags().GetStringSlice("kinds")
	return scenario.ParseKinds(names)
}

func runGenerate(cmd *cobra.Command, args []string) {
	enrich, _ := cmd.Flags().GetBool("enrich")
	a := mustSetup(cmd, enrich)
	defer a.Close()

	ep, err := loadEndpoint(cmd, args[0])
	if err != nil {
		a.fail("%v", err)
	}
	kinds, err := kindsFlag(cmd)
	if err != nil {
		a.fail("%v", err)
	}
	if enrich {
		if ep, err = a.engine.Enrich(contextOf(cmd), ep); err != nil {
			a.fail("%v", err)
		}
	}

	suite, err := a.engine.Generate(ep, kinds)
	if err != nil {
		a.fail("Failed to generate cases: %v", err)
	}

	if export, _ := cmd.Flags().GetString("export"); export != "" {
		f, err := os.Create(export)
		if err != nil {
			a.fail("Failed to create %s: %v", export, err)
		}
		defer f.Close()
		if err := reporter.ExportSuite(f, suite); err != nil {
			a.fail("%v", err)
		}
		a.reporter.PrintSuccess(fmt.Sprintf("wrote %d cases to %s", len(suite.Cases), export))
		return
	}

	for _, tc := range suite.Cases {
		fmt.Println(reporter.RenderCase(tc))
	}
	for _, s := range suite.Skipped {
		fmt.Printf("# skipped %s: %s\n", s.Kind, s.Reason)
	}
}
