package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tansive/atlas/internal/common/httpclient"
)

var (
	// Global flags
	jsonOutput bool
	configFile string
)

var ErrAlreadyHandled = errors.New("already handled")

var okLabel = color.New(color.FgGreen)
var errorLabel = color.New(color.FgRed)
var warnLabel = color.New(color.FgYellow)

// newClient builds the API client for the loaded configuration.
var newClient = func(cfg *Config) httpclient.HTTPClientInterface {
	return httpclient.NewClient(cfg)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "atlas [command] [flags]",
	Short: "Atlas CLI - manage your Claude configuration and the Atlas catalog",
	Long: `Atlas CLI is a command line interface for the Atlas server.
It reads and edits your personal configuration document, shows the effective
configuration merged from organization, team and user layers, browses the
catalog of skills, MCP integrations and tools, and triggers reconciliation.

Examples:
  # Store the server address and your token
  atlas login --server atlas.example.com:8678 --token <token>

  # Show your configuration
  atlas config get

  # Replace it with a local file
  atlas config put -f CLAUDE.md -m "tighten review rules"

  # Show the merged configuration
  atlas effective

  # Run a full reconciliation (admin)
  atlas sync`,
	PersistentPreRunE: preRunHandlePersistents,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	// Set up persistent flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config-file", "", "", "Path to configuration file to override default")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")

	// Add commands
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newLoginCmd())
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true // Prevent Cobra from printing the error
	rootCmd.SilenceUsage = true  // Prevent Cobra from printing usage on error

	err := rootCmd.Execute()
	if err != nil {
		if errors.Is(err, ErrAlreadyHandled) {
			os.Exit(1)
		}
		if jsonOutput {
			kv := map[string]any{
				"result": 0,
				"error":  err.Error(),
			}
			printJSON(os.Stdout, kv)
		} else {
			errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// preRunHandlePersistents loads the configuration file unless the command works without one
func preRunHandlePersistents(cmd *cobra.Command, args []string) error {
	if configFile == "" {
		var err error
		configFile, err = GetDefaultConfigPath()
		if err != nil {
			return err
		}
	}

	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "login" || c.Name() == "version" {
			return nil
		}
	}

	if err := LoadConfig(configFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errors.New("atlas config file not found. Configure atlas with \"atlas login\" first")
		}
		return err
	}
	return nil
}

// newVersionCmd creates and returns a new version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of the CLI and, when reachable, the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := configFile
			if configPath == "" {
				configPath = "unknown"
			}
			kv := map[string]string{
				"version":     getCLIVersion(),
				"config_file": configPath,
			}

			// The server version is best effort; version must work offline.
			if err := LoadConfig(configFile); err == nil {
				if body, err := newClient(GetConfig()).GetResource("version", nil); err == nil {
					var v struct {
						ServerVersion string `json:"serverVersion"`
						ApiVersion    string `json:"apiVersion"`
					}
					if json.Unmarshal(body, &v) == nil {
						kv["server_version"] = v.ServerVersion
						kv["api_version"] = v.ApiVersion
					}
				}
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				printJSON(out, kv)
				return nil
			}
			fmt.Fprintf(out, "atlas CLI %s\n", getCLIVersion())
			fmt.Fprintf(out, "Config file: %s\n", configPath)
			if sv, ok := kv["server_version"]; ok {
				fmt.Fprintf(out, "Server: %s (API %s)\n", sv, kv["api_version"])
			}
			return nil
		},
	}
}

// printJSON prints the given value as indented JSON
func printJSON(w io.Writer, data any) {
	jsonData, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintln(w, string(jsonData))
}

// printResult wraps a successful response body in the CLI's JSON envelope
func printResult(w io.Writer, body []byte) error {
	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return fmt.Errorf("failed to parse response: %v", err)
	}
	printJSON(w, map[string]any{
		"result": 1,
		"value":  value,
	})
	return nil
}

// getCLIVersion returns the current CLI version
func getCLIVersion() string {
	return "v0.1.0"
}
