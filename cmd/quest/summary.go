package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-quest/internal/cli"
	"github.com/Veraticus/spice-quest/internal/model"
	"github.com/Veraticus/spice-quest/internal/reward"
)

func summaryCmd() *cobra.Command {
	var recompute, asJSON bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show your financial health indicators",
		Long: `Show your savings rate (TPS), debt service ratio (RDR) and liquidity
index (ILI) against your targets, together with your level.

Indicators are served from a short-lived cache; --recompute bypasses it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			var summary model.FinancialSummary
			if recompute {
				summary, err = a.indicators.Compute(ctx, userID)
			} else {
				summary, err = a.indicators.GetSummary(ctx, userID)
			}
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}

			profile, err := a.store.GetOrCreateProfile(ctx, userID)
			if err != nil {
				return err
			}

			fmt.Println(cli.RenderSummary(summary, profile))
			fmt.Println(cli.RenderLevel(profile, reward.Threshold(profile.Level)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&recompute, "recompute", false, "Ignore the cached snapshot")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")

	return cmd
}

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show your level, XP and indicator targets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			profile, err := a.store.GetOrCreateProfile(ctx, userID)
			if err != nil {
				return err
			}
			awards, err := a.store.ListAwards(ctx, userID)
			if err != nil {
				return err
			}

			fmt.Println(cli.RenderLevel(profile, reward.Threshold(profile.Level)))
			fmt.Printf("  Targets: TPS ≥ %s%%  RDR ≤ %s%%  ILI ≥ %s months\n",
				profile.TargetTPS, profile.TargetRDR, profile.TargetILI)

			if len(awards) > 0 {
				fmt.Println()
				fmt.Println(cli.BoldStyle.Render("Rewards"))
				for _, award := range awards {
					fmt.Printf("  %s  +%d XP  mission %d  L%d → L%d\n",
						award.CreatedAt.Format(dateLayout), award.Points, award.MissionID,
						award.LevelBefore, award.LevelAfter)
				}
			}
			return nil
		},
	}

	cmd.AddCommand(profileTargetsCmd())
	return cmd
}

func profileTargetsCmd() *cobra.Command {
	var tps, rdr, ili string

	cmd := &cobra.Command{
		Use:   "targets",
		Short: "Change your indicator targets",
		Example: `  quest profile targets --tps 20 --rdr 30 --ili 6`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			profile, err := a.store.GetOrCreateProfile(ctx, userID)
			if err != nil {
				return err
			}

			for _, t := range []struct {
				flag  string
				value string
				dst   *decimal.Decimal
			}{
				{"tps", tps, &profile.TargetTPS},
				{"rdr", rdr, &profile.TargetRDR},
				{"ili", ili, &profile.TargetILI},
			} {
				if !cmd.Flags().Changed(t.flag) {
					continue
				}
				v, err := parseAmount(t.value)
				if err != nil {
					return err
				}
				if v.IsNegative() {
					return fmt.Errorf("--%s must not be negative", t.flag)
				}
				*t.dst = v
			}

			if err := a.store.UpdateProfileTargets(ctx, userID, profile.TargetTPS, profile.TargetRDR, profile.TargetILI); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Targets set: TPS ≥ %s%%  RDR ≤ %s%%  ILI ≥ %s",
				profile.TargetTPS, profile.TargetRDR, profile.TargetILI)))
			return nil
		},
	}

	cmd.Flags().StringVar(&tps, "tps", "", "Target savings rate in percent")
	cmd.Flags().StringVar(&rdr, "rdr", "", "Maximum debt service ratio in percent")
	cmd.Flags().StringVar(&ili, "ili", "", "Target liquidity in months of essential expenses")

	return cmd
}
