package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// agentsCmd groups agent registry operations.
var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Inspect and select registered agents",
}

func init() {
	agentsCmd.AddCommand(agentsListCmd)
	agentsCmd.AddCommand(agentsSelectCmd)
}

// Agent matches internal/http/server.go AgentResponse.
type Agent struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Priority    int      `json:"priority"`
	State       string   `json:"state"`
	Tasks       []string `json:"tasks"`
	HandoffFrom []string `json:"handoff_from"`
	HandoffTo   []string `json:"handoff_to"`
	Validations []string `json:"validations"`
}

var agentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered agents in file order",
	Long: `List the agents the daemon has loaded from its agent definition file.

Examples:
  # Table output
  condctl agents list

  # Raw JSON
  condctl agents list --json`,
	RunE: runAgentsList,
}

var agentsSelectCmd = &cobra.Command{
	Use:   "select <agent-id>...",
	Short: "Record an explicit agent selection in the shared context",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAgentsSelect,
}

func runAgentsList(cmd *cobra.Command, args []string) error {
	var agents []Agent
	if err := getJSON("/api/v1/agents", &agents); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(agents)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tNAME\tSTATE\tHANDOFF TO")
	for _, a := range agents {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.Title, a.Name, a.State, strings.Join(a.HandoffTo, ","))
	}
	return w.Flush()
}

func runAgentsSelect(cmd *cobra.Command, args []string) error {
	req := struct {
		Agents []string `json:"agents"`
	}{Agents: args}

	if err := postJSON("/api/v1/agents/select", req, nil); err != nil {
		return err
	}
	fmt.Printf("Selected %d agents: %s\n", len(args), strings.Join(args, ", "))
	return nil
}
