package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ayusman/roomcount/internal/occupancy"
)

const statusTimeout = 5 * time.Second

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var baseURL string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the count reported by a running service",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(baseURL)
			if target == "" {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				target = serviceURL(cfg.Server.Bind)
			}

			status, err := fetchStatus(cmd.Context(), target)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}
			fmt.Fprintln(out, renderStatus(status, shouldColorize(out)))
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "", "Service base URL (defaults to the configured bind address)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw status as JSON")
	return cmd
}

// serviceURL turns a listen address into a URL a local client can reach.
func serviceURL(bind string) string {
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return "http://" + bind
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func fetchStatus(ctx context.Context, baseURL string) (occupancy.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	endpoint := strings.TrimRight(baseURL, "/") + "/api/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return occupancy.Status{}, fmt.Errorf("build status request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return occupancy.Status{}, fmt.Errorf("query %s: %w; start the service with `roomcount serve`", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return occupancy.Status{}, fmt.Errorf("query %s: %s: %s", endpoint, resp.Status, strings.TrimSpace(string(body)))
	}

	var status occupancy.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return occupancy.Status{}, fmt.Errorf("decode status: %w", err)
	}
	return status, nil
}

func renderStatus(status occupancy.Status, colorize bool) string {
	processing := yesNo(status.Processing)
	if colorize {
		if status.Processing {
			processing = text.FgGreen.Sprint(processing)
		} else {
			processing = text.FgHiBlack.Sprint(processing)
		}
	}

	started := "-"
	if !status.StartedAt.IsZero() {
		started = status.StartedAt.Local().Format(time.DateTime)
	}

	rows := [][]string{
		{"Count", strconv.Itoa(status.Count)},
		{"Processing", processing},
		{"Job", valueOrDash(status.JobID)},
		{"Source", valueOrDash(status.Source)},
		{"Frames", strconv.Itoa(status.Frames)},
		{"Visible", strconv.Itoa(status.Visible)},
		{"Started", started},
		{"Last end", valueOrDash(status.EndReason)},
	}
	if status.Error != "" {
		failure := status.Error
		if colorize {
			failure = text.FgRed.Sprint(failure)
		}
		rows = append(rows, []string{"Error", failure})
	}
	return renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft})
}

func valueOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
