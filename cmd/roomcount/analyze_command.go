package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/roomcount/internal/app"
	"github.com/ayusman/roomcount/internal/occupancy"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "analyze <file|url|device>",
		Short: "Count the people in one source and print the result",
		Long: "Analyze runs a single counting job in-process and waits for the\n" +
			"source to end. A camera device runs until interrupted.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			a, err := app.New(cfg, app.Options{Logger: logger})
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.DetectorReady() {
				return fmt.Errorf("person detector unavailable: no model at %s", cfg.ResolveModelPath())
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			status, err := a.Analyze(runCtx, occupancy.Descriptor{URI: args[0]})
			interrupted := err != nil && runCtx.Err() != nil && errors.Is(err, runCtx.Err())
			if err != nil && !interrupted {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Source", "Frames", "Count"},
				[][]string{{args[0], strconv.Itoa(status.Frames), strconv.Itoa(status.Count)}},
				[]columnAlignment{alignLeft, alignRight, alignRight},
			))
			if interrupted {
				fmt.Fprintln(out, "Analysis interrupted; count covers the frames processed so far.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the final status as JSON")
	return cmd
}
