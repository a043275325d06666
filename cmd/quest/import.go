package main

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-quest/internal/classification"
	"github.com/Veraticus/spice-quest/internal/cli"
	"github.com/Veraticus/spice-quest/internal/ofx"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import transactions from OFX/QFX files",
		Long: `Import financial transactions from OFX or QFX (Quicken) files exported from your bank.

Credits become income and debits become expenses. Statement lines that were
imported before are skipped, so re-importing an overlapping export is safe.
An automatic checkpoint is taken first.`,
		Example: `  # Import a single file
  quest import ~/Downloads/chase_jan_2024.qfx

  # Import every QFX file in a directory
  quest import ~/Downloads/*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().Bool("dry-run", false, "Parse and summarize without saving")
	cmd.Flags().Bool("no-checkpoint", false, "Skip the automatic checkpoint")

	return cmd
}

// expandFiles resolves glob patterns; patterns without matches are used as
// literal paths when they exist.
func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) > 0 {
			files = append(files, matches...)
			continue
		}
		if _, err := os.Stat(pattern); err == nil {
			files = append(files, pattern)
		} else {
			slog.Warn("No files found matching pattern", "pattern", pattern)
		}
	}
	if len(files) == 0 {
		return nil, errors.New("no files found to import")
	}
	return files, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	noCheckpoint, _ := cmd.Flags().GetBool("no-checkpoint")

	files, err := expandFiles(args)
	if err != nil {
		return err
	}

	handler := cli.NewInterruptHandler(os.Stdout)
	ctx := handler.HandleInterrupts(cmd.Context(), "Import",
		"Run the same import again; lines already imported are skipped.")

	if dryRun {
		return previewImport(cmd, files)
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if !noCheckpoint {
		manager, err := a.store.Checkpoints()
		if err != nil {
			return fmt.Errorf("failed to create checkpoint manager: %w", err)
		}
		if _, err := manager.AutoCheckpoint(ctx, "import"); err != nil {
			return err
		}
	}

	detector, err := classification.NewPatternDetector(classification.DefaultPatterns())
	if err != nil {
		return err
	}
	importer := ofx.NewImporter(a.store, a.ledger).
		WithCategorizer(classification.NewCategorizer(detector, a.store))
	var total ofx.ImportStats

	for _, path := range files {
		// #nosec G304 - path comes from the user's own command line
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		bar := cli.NewProgressBar(-1, os.Stderr, filepath.Base(path))
		stats, err := importer.Import(ctx, bytes.NewReader(data), userID, func() { _ = bar.Add(1) })
		_ = bar.Finish()

		total.Parsed += stats.Parsed
		total.Imported += stats.Imported
		total.Duplicates += stats.Duplicates
		total.Categorized += stats.Categorized
		if err != nil {
			if handler.WasInterrupted() {
				return nil
			}
			return fmt.Errorf("import of %s failed: %w", filepath.Base(path), err)
		}
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Imported %d of %d transactions (%d already present, %d categorized)",
		total.Imported, total.Parsed, total.Duplicates, total.Categorized)))
	return nil
}

func previewImport(cmd *cobra.Command, files []string) error {
	parser := ofx.NewParser()
	for _, path := range files {
		// #nosec G304 - path comes from the user's own command line
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		accounts, err := parser.GetAccounts(cmd.Context(), bytes.NewReader(data))
		if err != nil {
			return err
		}
		transactions, err := parser.ParseFile(cmd.Context(), bytes.NewReader(data), userID)
		if err != nil {
			return err
		}

		fmt.Println(cli.FormatTitle(filepath.Base(path)))
		fmt.Printf("  Accounts:     %v\n", accounts)
		fmt.Printf("  Transactions: %d\n", len(transactions))
		for i, txn := range transactions {
			if i >= 5 {
				fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("  ... and %d more", len(transactions)-5)))
				break
			}
			fmt.Printf("  %s  %-7s %10s  %s\n",
				txn.Date.Format("2006-01-02"), txn.Type, txn.Amount.StringFixed(2), txn.Description)
		}
	}
	fmt.Println(cli.FormatInfo("Dry run complete - no data saved"))
	return nil
}
