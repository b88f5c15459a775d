package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// revision mirrors the server's revision descriptor
type revision struct {
	CommitSha string    `json:"commit_sha"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

var (
	configGetAt      string
	configPutFile    string
	configPutMessage string
	historyLimit     int
)

// configCmd groups the commands that work on the caller's configuration document
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and edit your personal configuration document",
	Long: `Read and edit your personal configuration document. Every save creates a
revision; previous revisions can be listed, inspected and restored.

Examples:
  atlas config get
  atlas config get --at 3f2a9c1
  atlas config put -f CLAUDE.md -m "add review rules"
  atlas config history --limit 10
  atlas config rollback 3f2a9c1
  atlas config import ./CLAUDE.md`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print your configuration, optionally at a past revision",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient(GetConfig())
		resource := "configuration/me"
		if configGetAt != "" {
			resource = "configuration/me/versions/" + configGetAt
		}
		body, err := client.GetResource(resource, nil)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printResult(out, body)
		}
		var doc struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(body, &doc); err != nil {
			return fmt.Errorf("failed to parse response: %v", err)
		}
		if doc.Content == "" && configGetAt == "" {
			warnLabel.Fprintln(cmd.ErrOrStderr(), "No configuration saved yet")
			return nil
		}
		fmt.Fprint(out, doc.Content)
		return nil
	},
}

var configPutCmd = &cobra.Command{
	Use:   "put -f FILE",
	Short: "Replace your configuration with the contents of a file",
	Long: `Replace your configuration with the contents of a file. Use "-f -" to read
from standard input.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if configPutFile == "" {
			return errors.New("a file is required. Use -f")
		}
		content, err := readInput(cmd, configPutFile)
		if err != nil {
			return err
		}
		req := map[string]string{"content": string(content)}
		if configPutMessage != "" {
			req["message"] = configPutMessage
		}
		data, err := json.Marshal(req)
		if err != nil {
			return err
		}
		body, err := newClient(GetConfig()).UpdateResource("configuration/me", data, nil)
		if err != nil {
			return err
		}
		return printRevision(cmd, body, "Configuration saved")
	},
}

var configHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List the revisions of your configuration, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var query map[string]string
		if historyLimit > 0 {
			query = map[string]string{"limit": strconv.Itoa(historyLimit)}
		}
		body, err := newClient(GetConfig()).GetResource("configuration/me/history", query)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printResult(out, body)
		}
		var rsp struct {
			Versions []revision `json:"versions"`
			Total    int        `json:"total"`
		}
		if err := json.Unmarshal(body, &rsp); err != nil {
			return fmt.Errorf("failed to parse response: %v", err)
		}
		if len(rsp.Versions) == 0 {
			fmt.Fprintln(out, "No revisions")
			return nil
		}
		for _, v := range rsp.Versions {
			fmt.Fprintf(out, "%s  %s  %-12s %s\n",
				shortSha(v.CommitSha), v.Timestamp.Local().Format("2006-01-02 15:04"), v.Author, v.Message)
		}
		return nil
	},
}

var configRollbackCmd = &cobra.Command{
	Use:   "rollback REVISION",
	Short: "Restore a past revision as a new revision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, _, err := newClient(GetConfig()).CreateResource("configuration/me/rollback/"+args[0], nil, nil)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printResult(out, body)
		}
		var rsp struct {
			CommitSha    string `json:"commit_sha"`
			RestoredFrom string `json:"restored_from"`
		}
		if err := json.Unmarshal(body, &rsp); err != nil {
			return fmt.Errorf("failed to parse response: %v", err)
		}
		okLabel.Fprintf(out, "✓ Restored %s as %s\n", shortSha(rsp.RestoredFrom), shortSha(rsp.CommitSha))
		return nil
	},
}

var configImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a markdown file as your configuration",
	Long: `Import a markdown file (.md) as your configuration. The server rejects
files over 1 MiB and binary content.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("unable to read file: %w", err)
		}
		body, err := newClient(GetConfig()).UploadFile("configuration/me/import", "file", filepath.Base(args[0]), data)
		if err != nil {
			return err
		}
		return printRevision(cmd, body, "Configuration imported")
	},
}

func init() {
	configGetCmd.Flags().StringVar(&configGetAt, "at", "", "Revision to read")
	configPutCmd.Flags().StringVarP(&configPutFile, "file", "f", "", "File holding the new configuration, - for stdin")
	configPutCmd.Flags().StringVarP(&configPutMessage, "message", "m", "", "Revision message")
	configHistoryCmd.Flags().IntVar(&historyLimit, "limit", 0, "Maximum number of revisions (server default 50)")

	configCmd.AddCommand(configGetCmd, configPutCmd, configHistoryCmd, configRollbackCmd, configImportCmd)
	rootCmd.AddCommand(configCmd)
}

func printRevision(cmd *cobra.Command, body []byte, msg string) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printResult(out, body)
	}
	var rev revision
	if err := json.Unmarshal(body, &rev); err != nil {
		return fmt.Errorf("failed to parse response: %v", err)
	}
	okLabel.Fprintf(out, "✓ %s\n", msg)
	fmt.Fprintf(out, "Revision: %s\n", rev.CommitSha)
	return nil
}

func readInput(cmd *cobra.Command, file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("unable to read file: %w", err)
	}
	return data, nil
}

func shortSha(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
