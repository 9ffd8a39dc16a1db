package cmd

import (
	"errors"
	"fmt"
	"io/fs"

	"api-test-engine/internal/catalog"
	"api-test-engine/internal/parser"

	"github.com/spf13/cobra"
)

func init() {
	importCmd := &cobra.Command{
		Use:   "import <openapi-url-or-file>",
		Short: "Add the operations of an OpenAPI document to the catalog",
		Long: `Import reads an OpenAPI 3 document from a file or URL and merges its
operations into the catalog. A base URL without a document path is searched
at the usual locations (/swagger.json, /openapi.json, ...).`,
		Args: cobra.ExactArgs(1),
		Run:  runImport,
	}

	importCmd.Flags().Bool("enrich", false, "Fill missing parameter examples through the configured LLM")

	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) {
	enrich, _ := cmd.Flags().GetBool("enrich")
	a := mustSetup(cmd, enrich)
	defer a.Close()
	ctx := contextOf(cmd)

	endpoints, err := parser.NewOpenAPIParser(args[0], a.log).ParseEndpoints(ctx)
	if err != nil {
		a.fail("Failed to parse endpoints: %v", err)
	}

	if enrich {
		for i, ep := range endpoints {
			enriched, err := a.engine.Enrich(ctx, ep)
			if err != nil {
				a.log.Warn("enrichment skipped", "endpoint", ep.ID, "error", err)
				continue
			}
			endpoints[i] = enriched
		}
	}

	path, _ := cmd.Flags().GetString("catalog")
	c, err := catalog.Load(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c = &catalog.Catalog{}
	case err != nil:
		a.fail("%v", err)
	}

	added, replaced := c.Merge(endpoints)
	if err := catalog.Save(path, c); err != nil {
		a.fail("%v", err)
	}
	a.reporter.PrintSuccess(fmt.Sprintf("imported %d endpoints into %s (%d added, %d replaced)",
		len(endpoints), path, added, replaced))
}
