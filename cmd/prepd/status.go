package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/spf13/cobra"

	"github.com/prepdhq/prepd/internal/prefetch"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show prefetch status of a running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		var status prefetch.Status
		if err := apiGet("/api/prefetch/status", &status); err != nil {
			return fmt.Errorf("is the daemon running? %w", err)
		}

		fmt.Println(renderStatus(status))
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Trigger an aggressive prefetch cycle on a running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		url := fmt.Sprintf("http://localhost:%d/api/prefetch/refresh", cfg.Server.Port)
		resp, err := http.Post(url, "application/json", nil)
		if err != nil {
			return fmt.Errorf("is the daemon running? %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusAccepted {
			return fmt.Errorf("refresh failed: %s", resp.Status)
		}
		fmt.Println("Refresh scheduled")
		return nil
	},
}

func apiGet(path string, out interface{}) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%d%s", cfg.Server.Port, path))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func renderStatus(status prefetch.Status) string {
	purple := lipgloss.Color("99")
	gray := lipgloss.Color("245")

	headerStyle := lipgloss.NewStyle().Foreground(purple).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Foreground(gray).Padding(0, 1)
	borderStyle := lipgloss.NewStyle().Foreground(purple)

	overview := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return headerStyle
			}
			return cellStyle
		})

	overview.Row("Running", fmt.Sprintf("%t", status.Running))
	overview.Row("Aggressive", fmt.Sprintf("%t", status.Aggressive))
	overview.Row("Queue", fmt.Sprintf("%d", status.MeetingsInQueue))
	overview.Row("Processed", fmt.Sprintf("%d", status.MeetingsProcessed))
	overview.Row("Cycles", fmt.Sprintf("%d", status.CyclesCompleted))
	if !status.LastCycleStart.IsZero() {
		overview.Row("Last cycle", status.LastCycleStart.Local().Format(time.RFC1123))
	}
	if status.CurrentMeeting != "" {
		overview.Row("Working on", status.CurrentMeeting)
	}

	out := overview.String()

	if len(status.Activity) > 0 {
		activity := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(borderStyle).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			}).
			Headers("Time", "Meeting", "Source", "Action", "Detail")

		// Newest first, most recent ten.
		records := status.Activity
		for i := len(records) - 1; i >= 0 && i >= len(records)-10; i-- {
			rec := records[i]
			activity.Row(
				rec.Time.Local().Format("15:04:05"),
				truncate(rec.Meeting, 24),
				string(rec.Source),
				rec.Action,
				truncate(rec.Detail, 32),
			)
		}
		out += "\n" + activity.String()
	}

	return strings.TrimRight(out, "\n")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(refreshCmd)
}
