package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/caraudio-league/points-engine/internal/models"
	"github.com/caraudio-league/points-engine/internal/points"
)

func pointsConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "points-config",
		Aliases: []string{"config"},
		Short:   "Inspect and change season points configurations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <season-id>",
		Short: "Show a season's configuration, creating the default on first use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seasonID, err := parseID("season", args[0])
			if err != nil {
				return err
			}
			pc, err := engine.Configs.ForSeason(cmd.Context(), seasonID)
			if err != nil {
				return err
			}
			return printJSON(pc)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "preview <season-id>",
		Short: "Print the points each placement earns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seasonID, err := parseID("season", args[0])
			if err != nil {
				return err
			}
			pc, err := engine.Configs.ForSeason(cmd.Context(), seasonID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PLACE\t1X\t2X\t3X\t4X")
			for _, row := range points.Preview(pc) {
				fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\n", row.Placement, row.Standard1X, row.Standard2X, row.Standard3X, row.FourX)
			}
			return w.Flush()
		},
	})

	var (
		patchFile   string
		recalculate bool
	)
	update := &cobra.Command{
		Use:   "update <season-id>",
		Short: "Apply a JSON patch of point values to a season",
		Example: `  points-admin points-config update 5b1f... --file patch.json --recalculate
  where patch.json is {"standard_1st_place": 6, "four_x_extended_enabled": true}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seasonID, err := parseID("season", args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(patchFile)
			if err != nil {
				return fmt.Errorf("failed to read patch: %w", err)
			}
			var input models.PointsConfigurationInput
			if err := json.Unmarshal(data, &input); err != nil {
				return fmt.Errorf("failed to parse patch: %w", err)
			}
			a, err := actor()
			if err != nil {
				return err
			}

			if !recalculate {
				pc, err := engine.Configs.Update(cmd.Context(), seasonID, &input, a.UserID)
				if err != nil {
					return err
				}
				return printJSON(pc)
			}

			pc, summary, err := engine.Recalculator.UpdateConfigAndRecalculate(cmd.Context(), seasonID, &input, a.UserID)
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{
				"configuration": pc,
				"recalculation": summary,
			})
		},
	}
	update.Flags().StringVarP(&patchFile, "file", "f", "", "JSON file with the fields to change")
	update.Flags().BoolVar(&recalculate, "recalculate", false, "Recalculate the season afterwards")
	_ = update.MarkFlagRequired("file")
	cmd.AddCommand(update)

	var placement, multiplier int
	calculate := &cobra.Command{
		Use:   "calculate <season-id>",
		Short: "Compute the points for one placement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seasonID, err := parseID("season", args[0])
			if err != nil {
				return err
			}
			pts, err := engine.Configs.CalculateForSeason(cmd.Context(), placement, multiplier, seasonID)
			if err != nil {
				return err
			}
			return printJSON(map[string]int{
				"placement":  placement,
				"multiplier": multiplier,
				"points":     pts,
			})
		},
	}
	calculate.Flags().IntVar(&placement, "placement", 1, "Placement within the class")
	calculate.Flags().IntVar(&multiplier, "multiplier", 2, "Event points multiplier")
	cmd.AddCommand(calculate)

	return cmd
}
