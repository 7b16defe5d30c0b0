package cmd

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/merdocx/easy-pass-bot-sub000/internal/core/throttle"
	"github.com/merdocx/easy-pass-bot-sub000/internal/observability"
)

// Throttle state lives in process memory, so these commands operate on
// a fresh instance built from configuration. They exist to inspect the
// configured limits and for reset semantics in dev and tests.
var throttleCmd = &cobra.Command{
	Use:   "throttle",
	Short: "Inspect the configured request throttle",
}

var throttleStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the configured throttle limits",
	RunE: func(cmd *cobra.Command, args []string) error {
		limiter := newThrottle()
		stats := limiter.Stats()

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Setting", "Value"})
		t.AppendRow(table.Row{"Max requests per window", stats.MaxRequests})
		t.AppendRow(table.Row{"Window", stats.Window})
		t.AppendRow(table.Row{"Active actors", stats.ActiveActors})
		t.AppendRow(table.Row{"Blocked actors", stats.BlockedActors})

		fmt.Println(t.Render())
		return nil
	},
}

var throttleResetCmd = &cobra.Command{
	Use:   "reset <actor-id>",
	Short: "Clear throttle state for an actor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("actor id must be an integer: %q", args[0])
		}

		limiter := newThrottle()
		limiter.Reset(actor)

		fmt.Printf("Throttle state cleared for actor %d\n", actor)
		return nil
	},
}

func newThrottle() *throttle.Throttle {
	return throttle.New(throttle.Config{
		MaxRequests: appConfig.Throttle.MaxRequests,
		Window:      appConfig.Throttle.Window,
	}, observability.CLILogger)
}

func init() {
	rootCmd.AddCommand(throttleCmd)
	throttleCmd.AddCommand(throttleStatsCmd)
	throttleCmd.AddCommand(throttleResetCmd)
}
