package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/caraudio-league/points-engine/internal/achievements"
	"github.com/caraudio-league/points-engine/internal/models"
)

func awardCmd() *cobra.Command {
	var value, notes string

	cmd := &cobra.Command{
		Use:   "award <profile-id> <achievement-id>",
		Short: "Award an achievement manually",
		Long: `Awards a definition to a competitor directly. Duplicates and awards below one the
competitor already holds in the same group are rejected; a higher award replaces the lower one.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			profileID, err := parseID("profile", args[0])
			if err != nil {
				return err
			}
			achievementID, err := parseID("achievement", args[1])
			if err != nil {
				return err
			}
			achieved, err := decimal.NewFromString(value)
			if err != nil {
				return fmt.Errorf("invalid --value: %w", err)
			}
			a, err := actor()
			if err != nil {
				return err
			}

			recipient, err := engine.Awarder.ManualAward(cmd.Context(), achievements.ManualAwardRequest{
				ProfileID:     profileID,
				AchievementID: achievementID,
				AchievedValue: achieved,
				Notes:         notes,
				AwardedBy:     a.UserID,
			})
			if err != nil {
				return err
			}
			return printJSON(recipient)
		},
	}

	cmd.Flags().StringVar(&value, "value", "0", "Achieved value recorded on the award")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-text note")
	return cmd
}

func recipientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipient",
		Short: "Manage awarded achievements",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <recipient-id>",
		Short: "Remove an award and its badge image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("recipient", args[0])
			if err != nil {
				return err
			}
			a, err := actor()
			if err != nil {
				return err
			}
			return engine.Awarder.DeleteRecipient(cmd.Context(), id, a.UserID)
		},
	})

	var (
		filterAchievement string
		filterProfile     string
		filterSeason      string
		filter            models.RecipientFilter
		page, limit       int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List awards, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if filter.AchievementID, err = optionalID("achievement", filterAchievement); err != nil {
				return err
			}
			if filter.ProfileID, err = optionalID("profile", filterProfile); err != nil {
				return err
			}
			if filter.SeasonID, err = optionalID("season", filterSeason); err != nil {
				return err
			}

			result, err := engine.Awarder.Recipients(cmd.Context(), filter, page, limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tACHIEVEMENT\tMEMBER ID\tVALUE\tACHIEVED")
			for _, r := range result.Items {
				name := r.AchievementID.String()
				if r.Achievement != nil {
					name = r.Achievement.Name
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					r.ID, name, r.MemberID, r.AchievedValue.String(), r.AchievedAt.Format("2006-01-02"))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Printf("page %d of %d (%d awards)\n", result.Page, result.TotalPages, result.Total)
			return nil
		},
	}
	list.Flags().StringVar(&filterAchievement, "achievement", "", "Only awards of this definition")
	list.Flags().StringVar(&filterProfile, "profile", "", "Only awards held by this profile")
	list.Flags().StringVar(&filter.MemberID, "member", "", "Only awards recorded against this member id")
	list.Flags().StringVar(&filterSeason, "season", "", "Only awards earned in this season")
	list.Flags().StringVar(&filter.Search, "search", "", "Match member id or competitor name")
	list.Flags().IntVar(&page, "page", 1, "Page number")
	list.Flags().IntVar(&limit, "limit", 20, "Awards per page")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "regenerate-image <recipient-id>",
		Short: "Render an award's badge again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("recipient", args[0])
			if err != nil {
				return err
			}
			recipient, err := engine.Awarder.RegenerateImage(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(recipient)
		},
	})

	return cmd
}

func definitionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "definitions",
		Aliases: []string{"defs"},
		Short:   "Manage achievement definitions",
	}

	var activeOnly bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List definitions, highest threshold first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := engine.Awarder.Definitions(cmd.Context(), activeOnly)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tGROUP\tTHRESHOLD\tCLASSES\tACTIVE")
			for _, d := range defs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%t\n",
					d.ID, d.Name, d.GroupKey(), d.ThresholdValue.String(), len(d.ClassFilter), d.IsActive)
			}
			return w.Flush()
		},
	}
	list.Flags().BoolVar(&activeOnly, "active", false, "Only active definitions")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "get <achievement-id>",
		Short: "Show one definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("achievement", args[0])
			if err != nil {
				return err
			}
			def, err := engine.Awarder.Definition(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(def)
		},
	})

	var file string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a definition from a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readDefinitionInput(file)
			if err != nil {
				return err
			}
			def, err := engine.Awarder.CreateDefinition(cmd.Context(), input)
			if err != nil {
				return err
			}
			return printJSON(def)
		},
	}
	create.Flags().StringVarP(&file, "file", "f", "", "JSON file with the definition")
	_ = create.MarkFlagRequired("file")
	cmd.AddCommand(create)

	update := &cobra.Command{
		Use:   "update <achievement-id>",
		Short: "Apply a JSON patch to a definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("achievement", args[0])
			if err != nil {
				return err
			}
			input, err := readDefinitionInput(file)
			if err != nil {
				return err
			}
			def, err := engine.Awarder.UpdateDefinition(cmd.Context(), id, input)
			if err != nil {
				return err
			}
			return printJSON(def)
		},
	}
	update.Flags().StringVarP(&file, "file", "f", "", "JSON file with the fields to change")
	_ = update.MarkFlagRequired("file")
	cmd.AddCommand(update)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <achievement-id>",
		Short: "Delete a definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("achievement", args[0])
			if err != nil {
				return err
			}
			return engine.Awarder.DeleteDefinition(cmd.Context(), id)
		},
	})

	return cmd
}

func readDefinitionInput(path string) (*models.DefinitionInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}
	var input models.DefinitionInput
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("failed to parse definition: %w", err)
	}
	return &input, nil
}

func eligibleProfilesCmd() *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "eligible-profiles <achievement-id>",
		Short: "List eligible competitors who do not hold an achievement yet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("achievement", args[0])
			if err != nil {
				return err
			}
			profiles, err := engine.Awarder.EligibleProfiles(cmd.Context(), id, search)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tMEMBER ID")
			for _, p := range profiles {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.DisplayName(), p.MemberID)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "Filter by name or member id")
	return cmd
}

func achievementsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "achievements",
		Short: "List and check the achievements a competitor holds",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "profile <profile-id>",
		Short: "By profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("profile", args[0])
			if err != nil {
				return err
			}
			held, err := engine.Awarder.ForProfile(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(held)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check <result-id>",
		Short: "Run the automatic award check for one result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("result", args[0])
			if err != nil {
				return err
			}
			awarded, err := engine.Awarder.CheckResult(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{
				"awarded_count": len(awarded),
				"achievements":  awarded,
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "member <member-id>",
		Short: "By member id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			held, err := engine.Awarder.ForMemberID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(held)
		},
	})

	return cmd
}
