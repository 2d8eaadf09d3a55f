// Package main implements the condctl CLI for manual operations against the
// conductord HTTP server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the conductord HTTP server
	serverURL string
	// jsonOutput switches output from tables to raw JSON
	jsonOutput bool
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "condctl",
	Short: "CLI for conductord orchestration operations",
	Long: `condctl is a command-line interface for the conductord daemon.
It lists agents, runs mode workflows, performs handoffs, and tracks progress.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9270", "conductord server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output raw JSON")
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(modeCmd)
	rootCmd.AddCommand(handoffCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(progressCmd)
}

// httpClient is shared by all commands.
var httpClient = &http.Client{Timeout: 30 * time.Second}

// getJSON performs a GET and decodes the response into out.
func getJSON(path string, out any) error {
	resp, err := httpClient.Get(serverURL + path)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", serverURL+path, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

// postJSON performs a POST with a JSON body and decodes the response into
// out (skipped when out is nil or the response has no body).
func postJSON(path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	resp, err := httpClient.Post(serverURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", serverURL+path, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

// decodeResponse checks the status code and decodes the body into out.
func decodeResponse(resp *http.Response, out any) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil {
			if e.Message != "" {
				return fmt.Errorf("server returned status %d: %s", resp.StatusCode, e.Message)
			}
			if e.Error != "" {
				return fmt.Errorf("server returned status %d: %s", resp.StatusCode, e.Error)
			}
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// printJSON renders v as indented JSON on stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
