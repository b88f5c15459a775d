package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// syncResult mirrors the server's reconciliation result
type syncResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Errors  []struct {
		Path  string `json:"path"`
		Error string `json:"error"`
	} `json:"errors"`
}

// syncCmd triggers a full reconciliation of the catalog
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the catalog index with the content repository (admin)",
	Long: `Reconcile the catalog index with the content repository. Entries are created,
updated or deleted so the index matches the repository. Per-file failures are
reported and do not stop the scan. Requires an admin token.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		body, _, err := newClient(GetConfig()).CreateResource("sync/full", nil, nil)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printResult(out, body)
		}
		var r syncResult
		if err := json.Unmarshal(body, &r); err != nil {
			return fmt.Errorf("failed to parse response: %v", err)
		}
		okLabel.Fprintln(out, "✓ Reconciliation complete")
		fmt.Fprintf(out, "created: %d, updated: %d, deleted: %d\n", r.Created, r.Updated, r.Deleted)
		for _, e := range r.Errors {
			errorLabel.Fprintf(out, "  %s: %s\n", e.Path, e.Error)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
