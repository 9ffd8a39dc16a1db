package cmd

import (
	"errors"
	"fmt"

	"api-test-engine/internal/catalog"
	"api-test-engine/internal/status"

	"github.com/spf13/cobra"
)

func init() {
	evictCmd := &cobra.Command{
		Use:   "evict <endpoint-id>",
		Short: "Remove an endpoint from the catalog and forget its verdict",
		Args:  cobra.ExactArgs(1),
		Run:   runEvict,
	}

	evictCmd.Flags().Bool("keep-catalog", false, "Only forget the verdict")

	rootCmd.AddCommand(evictCmd)
}

func runEvict(cmd *cobra.Command, args []string) {
	a := mustSetup(cmd, false)
	defer a.Close()
	id := args[0]

	removed := false
	if keep, _ := cmd.Flags().GetBool("keep-catalog"); !keep {
		path, _ := cmd.Flags().GetString("catalog")
		c, err := catalog.Load(path)
		if err != nil {
			a.fail("%v", err)
		}
		if c.Remove(id) {
			if err := catalog.Save(path, c); err != nil {
				a.fail("%v", err)
			}
			removed = true
		}
	}

	err := a.engine.Evict(contextOf(cmd), id)
	switch {
	case err == nil:
		removed = true
	case !errors.Is(err, status.ErrNotFound):
		a.fail("Failed to evict %s: %v", id, err)
	}

	if !removed {
		a.fail("endpoint %s not found", id)
	}
	a.reporter.PrintSuccess(fmt.Sprintf("evicted %s", id))
}
