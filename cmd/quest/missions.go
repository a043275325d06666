package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-quest/internal/cli"
	"github.com/Veraticus/spice-quest/internal/mission"
	"github.com/Veraticus/spice-quest/internal/model"
	"github.com/Veraticus/spice-quest/internal/service"
)

func missionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "missions",
		Aliases: []string{"m"},
		Short:   "Work with your missions",
		Long: `List, start, skip and refresh missions.

Missions are assigned automatically whenever your ledger changes; "assign"
and "evaluate" run the same steps on demand.`,
	}

	cmd.AddCommand(missionsListCmd())
	cmd.AddCommand(missionsCatalogCmd())
	cmd.AddCommand(missionsSeedCmd())
	cmd.AddCommand(missionsAssignCmd())
	cmd.AddCommand(missionsEvaluateCmd())
	cmd.AddCommand(missionActionCmd("start", "Activate a pending mission"))
	cmd.AddCommand(missionActionCmd("skip", "Give up on a mission without reward"))
	cmd.AddCommand(missionActionCmd("refresh", "Re-evaluate one active mission now"))

	return cmd
}

func missionsListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your open missions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			var list []model.MissionProgress
			if all {
				list, err = a.store.ListProgress(ctx, userID)
			} else {
				list, err = a.missions.ListProgress(ctx, userID)
			}
			if err != nil {
				return err
			}

			fmt.Println(cli.RenderProgressTable(list))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include completed and failed missions")
	return cmd
}

func missionsCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List every active mission template",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			missions, err := a.store.ListActiveMissions(cmd.Context())
			if err != nil {
				return err
			}
			if len(missions) == 0 {
				fmt.Println(cli.SubtleStyle.Render(`No missions. Run "quest missions seed" to install the built-in set.`))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tTYPE\tDAYS\tXP")
			for _, m := range missions {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\n", m.ID, m.Title, m.Type, m.DurationDays, m.RewardXP)
			}
			return w.Flush()
		},
	}
}

func missionsSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Install the built-in missions",
		Long:  `Install the built-in mission set. Missions whose title already exists are left alone.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			created, err := seedCatalog(ctx, a.store)
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Installed %d mission(s)", created)))
			return nil
		},
	}
}

func missionsAssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign",
		Short: "Assign new missions up to your open mission limit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			assigned, err := a.missions.AssignMissions(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if len(assigned) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No new missions."))
				return nil
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Assigned %d mission(s)", len(assigned))))
			fmt.Println(cli.RenderProgressTable(assigned))
			return nil
		},
	}
}

func missionsEvaluateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate",
		Short: "Re-evaluate all of your active missions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			evaluated, err := a.missions.EvaluateUser(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Println(cli.RenderProgressTable(evaluated))
			return nil
		},
	}
}

// missionActionCmd builds the start, skip and refresh subcommands, which all
// take a mission ID and print the resulting progress.
func missionActionCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <mission-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			missionID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid mission ID %q: %w", args[0], err)
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			var progress *model.MissionProgress
			switch action {
			case "start":
				progress, err = a.missions.StartMission(ctx, userID, missionID)
			case "skip":
				progress, err = a.missions.SkipMission(ctx, userID, missionID)
			default:
				progress, err = a.missions.RefreshMission(ctx, userID, missionID)
			}
			if err != nil {
				return err
			}

			fmt.Println(cli.RenderProgressTable([]model.MissionProgress{*progress}))
			return nil
		},
	}
}

// seedCatalog installs the missions of the default catalog that are not
// present yet, matched by title, and returns how many were created.
func seedCatalog(ctx context.Context, store service.Storage) (int, error) {
	existing, err := store.ListActiveMissions(ctx)
	if err != nil {
		return 0, err
	}
	titles := make(map[string]bool, len(existing))
	for _, m := range existing {
		titles[m.Title] = true
	}

	created := 0
	for _, m := range mission.DefaultCatalog() {
		if titles[m.Title] {
			continue
		}
		if err := store.CreateMission(ctx, &m); err != nil {
			return created, fmt.Errorf("failed to create mission %q: %w", m.Title, err)
		}
		created++
	}
	return created, nil
}
