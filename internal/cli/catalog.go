package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type catalogEntry struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Path        string   `json:"path"`
	OwnerID     string   `json:"owner_id"`
	Tags        []string `json:"tags"`
	UsageCount  int64    `json:"usage_count"`
}

var (
	listType   string
	listTag    string
	listOwner  string
	listTeam   string
	listSearch string
	listLimit  int
	listOffset int
	tagsSet    []string
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Browse the catalog of skills, MCP integrations and tools",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog entries",
	Long: `List catalog entries, ordered by name.

Examples:
  atlas catalog list
  atlas catalog list --type skill --tag review
  atlas catalog list -q linter --limit 20`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		query := map[string]string{}
		for k, v := range map[string]string{"type": listType, "tag": listTag, "owner": listOwner, "team": listTeam, "q": listSearch} {
			if v != "" {
				query[k] = v
			}
		}
		if listLimit > 0 {
			query["limit"] = strconv.Itoa(listLimit)
		}
		if listOffset > 0 {
			query["offset"] = strconv.Itoa(listOffset)
		}
		body, err := newClient(GetConfig()).GetResource("catalog", query)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printResult(out, body)
		}
		var rsp struct {
			Items []catalogEntry `json:"items"`
		}
		if err := json.Unmarshal(body, &rsp); err != nil {
			return fmt.Errorf("failed to parse response: %v", err)
		}
		if len(rsp.Items) == 0 {
			fmt.Fprintln(out, "No entries")
			return nil
		}
		for _, e := range rsp.Items {
			printEntryLine(out, e)
		}
		return nil
	},
}

var catalogGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show one catalog entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := newClient(GetConfig()).GetResource("catalog/"+args[0], nil)
		if err != nil {
			return err
		}
		return printEntry(cmd, body)
	},
}

var catalogTagCmd = &cobra.Command{
	Use:   "tag ID --set TAG[,TAG]",
	Short: "Replace the curated tags of an entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := json.Marshal(map[string][]string{"tags": tagsSet})
		if err != nil {
			return err
		}
		body, err := newClient(GetConfig()).UpdateResource("catalog/"+args[0]+"/tags", data, nil)
		if err != nil {
			return err
		}
		return printEntry(cmd, body)
	},
}

func init() {
	f := catalogListCmd.Flags()
	f.StringVarP(&listType, "type", "t", "", "Entry type: skill, mcp or tool")
	f.StringVar(&listTag, "tag", "", "Only entries with this tag")
	f.StringVar(&listOwner, "owner", "", "Only entries owned by this user id")
	f.StringVar(&listTeam, "team", "", "Only entries of this team id")
	f.StringVarP(&listSearch, "search", "q", "", "Case-insensitive match on name or description")
	f.IntVar(&listLimit, "limit", 0, "Maximum number of entries")
	f.IntVar(&listOffset, "offset", 0, "Entries to skip")
	catalogTagCmd.Flags().StringSliceVar(&tagsSet, "set", nil, "Tags to set; empty clears")

	catalogCmd.AddCommand(catalogListCmd, catalogGetCmd, catalogTagCmd)
	rootCmd.AddCommand(catalogCmd)
}

func printEntry(cmd *cobra.Command, body []byte) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printResult(out, body)
	}
	var e catalogEntry
	if err := json.Unmarshal(body, &e); err != nil {
		return fmt.Errorf("failed to parse response: %v", err)
	}
	fmt.Fprintf(out, "ID:          %s\n", e.ID)
	fmt.Fprintf(out, "Type:        %s\n", typeLabel(e.Type))
	fmt.Fprintf(out, "Name:        %s\n", e.Name)
	if e.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", e.Description)
	}
	fmt.Fprintf(out, "Path:        %s\n", e.Path)
	fmt.Fprintf(out, "Owner:       %s\n", e.OwnerID)
	if len(e.Tags) > 0 {
		fmt.Fprintf(out, "Tags:        %s\n", strings.Join(e.Tags, ", "))
	}
	fmt.Fprintf(out, "Usage:       %d\n", e.UsageCount)
	return nil
}

func printEntryLine(w io.Writer, e catalogEntry) {
	line := fmt.Sprintf("%-36s  %-5s  %s", e.ID, typeLabel(e.Type), e.Name)
	if len(e.Tags) > 0 {
		line += " [" + strings.Join(e.Tags, ", ") + "]"
	}
	fmt.Fprintln(w, line)
}

// typeLabel renders SKILL as Skill; MCP stays upper case.
func typeLabel(t string) string {
	if t == "MCP" {
		return t
	}
	return cases.Title(language.English).String(strings.ToLower(t))
}
