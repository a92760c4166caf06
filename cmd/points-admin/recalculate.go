package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/caraudio-league/points-engine/internal/achievements"
)

func recalculateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recalculate",
		Short: "Recalculate placements and points",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "event <event-id>",
		Short: "Recalculate one event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, err := parseID("event", args[0])
			if err != nil {
				return err
			}
			out, err := engine.Recalculator.RecalculateEvent(cmd.Context(), eventID)
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "season <season-id>",
		Short: "Recalculate every event of a season",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seasonID, err := parseID("season", args[0])
			if err != nil {
				return err
			}
			out, err := engine.Recalculator.RecalculateSeason(cmd.Context(), seasonID)
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "all",
		Short: "Recalculate every event that has results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := engine.Recalculator.RecalculateAll(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	})

	return cmd
}

func backfillCmd() *cobra.Command {
	var (
		startDate string
		endDate   string
		stream    bool
		images    bool
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Award achievements for historical results",
		Long: `Replays automatic awarding over every result with a linked competitor, highest
score first. Re-running is safe: held or better awards are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := achievements.BackfillOptions{GenerateImages: images}
			if startDate != "" {
				t, err := time.Parse("2006-01-02", startDate)
				if err != nil {
					return fmt.Errorf("invalid --start-date: %w", err)
				}
				opts.StartDate = &t
			}
			if endDate != "" {
				t, err := time.Parse("2006-01-02", endDate)
				if err != nil {
					return fmt.Errorf("invalid --end-date: %w", err)
				}
				t = t.Add(24*time.Hour - time.Nanosecond)
				opts.EndDate = &t
			}

			if !stream {
				summary, err := engine.Backfill.Run(cmd.Context(), opts)
				if err != nil {
					return err
				}
				return printJSON(summary)
			}

			// returning early abandons the stream, which must stop the run
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			for progress := range engine.Backfill.Stream(ctx, opts) {
				if progress.Error != "" {
					return fmt.Errorf("backfill failed: %s", progress.Error)
				}
				fmt.Printf("%3d%%  processed %d/%d  awarded %d\n",
					progress.Percentage, progress.Processed, progress.Total, progress.Awarded)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&startDate, "start-date", "", "Only results from events on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "Only results from events on or before this date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&stream, "stream", false, "Print progress while running")
	cmd.Flags().BoolVar(&images, "generate-images", false, "Render badges for recipients without an image afterwards")

	return cmd
}
