// Package cli renders API responses for the command-line tool.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/flagmirror/flagmirror/internal/client"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// PrintStatus outputs the service status in the specified format
func PrintStatus(st *client.Status, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(st)
	case FormatYAML:
		return printYAML(st)
	case FormatTable:
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Status", "Connection", "Env", "Flag Key", "Fallback", "Poll Interval", "Redis")
		table.Append(st.Status, st.Connection, st.Env, st.FlagKey, st.Fallback, st.PollInterval, st.Redis)
		if err := table.Render(); err != nil {
			return err
		}
		if st.InitError != "" {
			fmt.Printf("init error: %s\n", st.InitError)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintFlag outputs one evaluation result in the specified format
func PrintFlag(res *client.FlagResult, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(res)
	case FormatYAML:
		return printYAML(res)
	case FormatTable:
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Flag Key", "Value", "Reason", "Context Key", "Evaluated At")
		reason, _ := res.Reason["kind"].(string)
		key, _ := res.Context["key"].(string)
		table.Append(res.FlagKey, fmt.Sprintf("%v", res.Value), reason, key, res.EvaluatedAt)
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintContext outputs the session context in the specified format
func PrintContext(res *client.ContextResult, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(res)
	case FormatYAML:
		return printYAML(res)
	case FormatTable:
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Session Key", "Type", "Context Key", "Name", "Updated At")
		key, _ := res.Context["key"].(string)
		name, _ := res.Context["name"].(string)
		table.Append(res.SessionKey, res.Type, key, name, res.UpdatedAt)
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintLoadTest outputs a load test summary in the specified format
func PrintLoadTest(res *client.LoadTestResult, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(res)
	case FormatYAML:
		return printYAML(res)
	case FormatTable:
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Total", "Successful", "Failed", "Concurrency", "Avg Latency (ms)", "Duration (s)", "Req/s")
		table.Append(
			fmt.Sprintf("%d", res.Total),
			fmt.Sprintf("%d", res.Successful),
			fmt.Sprintf("%d", res.Failed),
			fmt.Sprintf("%d", res.Concurrency),
			fmt.Sprintf("%.2f", res.AvgLatencyMs),
			fmt.Sprintf("%.2f", res.DurationSeconds),
			fmt.Sprintf("%.2f", res.RequestsPerSecond),
		)
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(data interface{}) error {
	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}
