package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/caraudio-league/points-engine/internal/models"
)

func resultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "result",
		Short: "Enter and correct competition results",
		Long: `Every change is written to the audit trail and followed by a recalculation
of the affected event.`,
	}

	var file string
	create := &cobra.Command{
		Use:   "create",
		Short: "Enter results from a JSON file",
		Long: `Reads a JSON array of results and enters them in one session. Each
element uses the fields event_id, competitor_name, meca_id, competition_class, format and score.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var inputs []models.ResultInput
			if err := readJSON(file, &inputs); err != nil {
				return err
			}
			if len(inputs) == 0 {
				return fmt.Errorf("no results in %s", file)
			}
			if inputs[0].EventID == nil {
				return fmt.Errorf("first result has no event_id")
			}
			a, err := actor()
			if err != nil {
				return err
			}

			ctx, session := engine.Results.StartSession(cmd.Context(), *inputs[0].EventID, a)
			created := make([]*models.CompetitionResult, 0, len(inputs))
			for i := range inputs {
				result, err := engine.Results.Create(ctx, &inputs[i], a)
				if err != nil {
					return fmt.Errorf("result %d: %w", i+1, err)
				}
				created = append(created, result)
			}

			appLog.WithFields(logrus.Fields{
				"session_id": session.ID,
				"entries":    session.Entries,
			}).Info("Entry session complete")
			return printJSON(created)
		},
	}
	create.Flags().StringVarP(&file, "file", "f", "", "JSON file with the results")
	_ = create.MarkFlagRequired("file")
	cmd.AddCommand(create)

	update := &cobra.Command{
		Use:   "update <result-id>",
		Short: "Apply a JSON patch to a result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("result", args[0])
			if err != nil {
				return err
			}
			var input models.ResultInput
			if err := readJSON(file, &input); err != nil {
				return err
			}
			a, err := actor()
			if err != nil {
				return err
			}
			result, err := engine.Results.Update(cmd.Context(), id, &input, a)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	update.Flags().StringVarP(&file, "file", "f", "", "JSON file with the fields to change")
	_ = update.MarkFlagRequired("file")
	cmd.AddCommand(update)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <result-id>",
		Short: "Delete a result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("result", args[0])
			if err != nil {
				return err
			}
			a, err := actor()
			if err != nil {
				return err
			}
			return engine.Results.Delete(cmd.Context(), id, a)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "history <result-id>",
		Short: "Show the audit trail of a result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("result", args[0])
			if err != nil {
				return err
			}
			entries, err := engine.Results.History(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(entries)
		},
	})

	return cmd
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
