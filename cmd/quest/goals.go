package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-quest/internal/cli"
	"github.com/Veraticus/spice-quest/internal/common"
	"github.com/Veraticus/spice-quest/internal/model"
)

func goalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "Manage savings goals",
	}

	cmd.AddCommand(goalsAddCmd())
	cmd.AddCommand(goalsContributeCmd())
	cmd.AddCommand(goalsShowCmd())

	return cmd
}

func goalsAddCmd() *cobra.Command {
	var deadline string

	cmd := &cobra.Command{
		Use:     "add <name> <target-amount>",
		Short:   "Create a savings goal",
		Example: `  quest goals add "Emergency fund" 5000 --deadline 2025-12-31`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			due, err := parseDate(deadline)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			goal := &model.Goal{UserID: userID, Name: args[0], TargetAmount: target}
			if !due.IsZero() {
				goal.Deadline = &due
			}
			if err := a.store.CreateGoal(cmd.Context(), goal); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created goal %d: %s (%s)",
				goal.ID, goal.Name, goal.TargetAmount.StringFixed(2))))
			return nil
		},
	}

	cmd.Flags().StringVar(&deadline, "deadline", "", "Optional deadline, YYYY-MM-DD")
	return cmd
}

func goalsContributeCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "contribute <goal-id> <amount>",
		Short: "Deposit towards a goal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			goalID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid goal ID %q: %w", args[0], err)
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			when, err := parseDate(date)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if _, err := a.ledger.AddGoalContribution(cmd.Context(), userID, goalID, amount, when); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Added %s to goal %d", amount.StringFixed(2), goalID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Contribution date, YYYY-MM-DD (default today)")
	return cmd
}

func goalsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <goal-id>",
		Short: "Show a goal's progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			goalID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid goal ID %q: %w", args[0], err)
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			goal, err := a.store.GetGoal(cmd.Context(), goalID)
			if err != nil {
				return err
			}
			if goal.UserID != userID {
				return fmt.Errorf("goal %d: %w", goalID, common.ErrNotFound)
			}

			pct, _ := goal.CompletionPct().Float64()
			fmt.Printf("%s %s  %s  %s / %s\n", cli.StarIcon, cli.BoldStyle.Render(goal.Name),
				cli.ProgressBar(pct, 20), goal.CurrentAmount.StringFixed(2), goal.TargetAmount.StringFixed(2))
			if goal.Deadline != nil {
				fmt.Printf("  Deadline: %s\n", goal.Deadline.Format(dateLayout))
			}
			return nil
		},
	}
}
