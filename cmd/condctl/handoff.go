package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// HandoffRecord matches internal/coordinator HandoffRecord.
type HandoffRecord struct {
	ID                 string   `json:"id"`
	FromAgent          string   `json:"from_agent"`
	ToAgent            string   `json:"to_agent"`
	Timestamp          string   `json:"timestamp"`
	PreconditionOK     bool     `json:"precondition_ok"`
	PostconditionOK    bool     `json:"postcondition_ok"`
	ValidationFailures []string `json:"validation_failures"`
}

var handoffCmd = &cobra.Command{
	Use:   "handoff <from-agent> <to-agent>",
	Short: "Transfer active status between two agents",
	Long: `Transfer active status along a declared handoff edge.

Examples:
  condctl handoff project-analyst doc-writer`,
	Args: cobra.ExactArgs(2),
	RunE: runHandoff,
}

func runHandoff(cmd *cobra.Command, args []string) error {
	req := struct {
		FromAgent string `json:"from_agent"`
		ToAgent   string `json:"to_agent"`
	}{FromAgent: args[0], ToAgent: args[1]}

	var record HandoffRecord
	if err := postJSON("/api/v1/handoff", req, &record); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(record)
	}

	fmt.Printf("Handoff %s -> %s complete (id %s)\n", record.FromAgent, record.ToAgent, record.ID)
	if len(record.ValidationFailures) > 0 {
		fmt.Printf("Failed validations: %s\n", strings.Join(record.ValidationFailures, ", "))
	}
	return nil
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-read the agent definition file into the registry",
	RunE:  runRefresh,
}

func runRefresh(cmd *cobra.Command, args []string) error {
	var resp struct {
		Agents int `json:"agents"`
	}
	if err := postJSON("/api/v1/refresh", struct{}{}, &resp); err != nil {
		return err
	}
	fmt.Printf("Registry refreshed: %d agents\n", resp.Agents)
	return nil
}

// HealthResponse matches internal/http/server.go HealthResponse.
type HealthResponse struct {
	Status string `json:"status"`
	Agents int    `json:"agents"`
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check conductord server health",
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	var resp HealthResponse
	if err := getJSON("/health", &resp); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(resp)
	}
	fmt.Printf("Status: %s (%d agents)\n", resp.Status, resp.Agents)
	return nil
}
