package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var effectiveLayers bool

// effectiveCmd prints the configuration merged from the organization, team and user layers
var effectiveCmd = &cobra.Command{
	Use:   "effective",
	Short: "Show your effective configuration",
	Long: `Show your effective configuration: the organization document, then your
teams' documents, then your own, each included only when it has content.

Examples:
  atlas effective
  atlas effective --layers`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := newClient(GetConfig()).GetResource("configuration/effective", nil)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printResult(out, body)
		}
		var ec struct {
			Content     string `json:"content"`
			OrgApplied  bool   `json:"org_applied"`
			TeamApplied bool   `json:"team_applied"`
			UserApplied bool   `json:"user_applied"`
		}
		if err := json.Unmarshal(body, &ec); err != nil {
			return fmt.Errorf("failed to parse response: %v", err)
		}
		if effectiveLayers {
			fmt.Fprintf(out, "organization: %s\n", appliedLabel(ec.OrgApplied))
			fmt.Fprintf(out, "team:         %s\n", appliedLabel(ec.TeamApplied))
			fmt.Fprintf(out, "user:         %s\n", appliedLabel(ec.UserApplied))
			fmt.Fprintln(out)
		}
		fmt.Fprint(out, ec.Content)
		return nil
	},
}

func appliedLabel(applied bool) string {
	if applied {
		return okLabel.Sprint("applied")
	}
	return warnLabel.Sprint("empty")
}

func init() {
	effectiveCmd.Flags().BoolVar(&effectiveLayers, "layers", false, "Show which layers contributed")
	rootCmd.AddCommand(effectiveCmd)
}
