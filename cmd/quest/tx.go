package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-quest/internal/cli"
	"github.com/Veraticus/spice-quest/internal/common"
	"github.com/Veraticus/spice-quest/internal/model"
	"github.com/Veraticus/spice-quest/internal/service"
)

func txCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"transactions"},
		Short:   "Record and correct ledger transactions",
		Long: `Add, correct, delete and list transactions in your ledger.

Every change refreshes your indicators and re-evaluates your active missions.`,
	}

	cmd.AddCommand(txAddCmd())
	cmd.AddCommand(txUpdateCmd())
	cmd.AddCommand(txDeleteCmd())
	cmd.AddCommand(txListCmd())

	return cmd
}

func txAddCmd() *cobra.Command {
	var category, date, description string
	var unpaid bool

	cmd := &cobra.Command{
		Use:   "add <income|expense> <amount>",
		Short: "Record a new transaction",
		Example: `  quest tx add income 3200 --category Salary --description "June salary"
  quest tx add expense 54.20 --category Groceries --date 2024-06-14`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := parseTransactionType(args[0])
			if err != nil {
				return err
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

			categoryID, err := resolveCategory(cmd.Context(), a.store, userID, category)
			if err != nil {
				return err
			}

			txn := &model.Transaction{
				UserID:      userID,
				Type:        typ,
				Amount:      amount,
				Date:        when,
				Description: description,
				CategoryID:  categoryID,
				IsPaid:      !unpaid,
			}
			if err := a.ledger.RecordTransaction(cmd.Context(), txn); err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Recorded %s %s (%s)",
				txn.Type, txn.Amount.StringFixed(2), txn.ID)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Category name")
	cmd.Flags().StringVar(&date, "date", "", "Transaction date, YYYY-MM-DD (default today)")
	cmd.Flags().StringVarP(&description, "description", "m", "", "Description")
	cmd.Flags().BoolVar(&unpaid, "unpaid", false, "Record as not yet paid")

	return cmd
}

func txUpdateCmd() *cobra.Command {
	var amount, category, date, description string
	var paid bool

	cmd := &cobra.Command{
		Use:   "update <transaction-id>",
		Short: "Correct an existing transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			txn, err := a.store.GetTransaction(ctx, args[0])
			if err != nil {
				return err
			}
			if txn.UserID != userID {
				return fmt.Errorf("transaction %s: %w", args[0], common.ErrNotFound)
			}

			flags := cmd.Flags()
			if flags.Changed("amount") {
				if txn.Amount, err = parseAmount(amount); err != nil {
					return err
				}
			}
			if flags.Changed("date") {
				if txn.Date, err = parseDate(date); err != nil {
					return err
				}
			}
			if flags.Changed("category") {
				if txn.CategoryID, err = resolveCategory(ctx, a.store, userID, category); err != nil {
					return err
				}
			}
			if flags.Changed("description") {
				txn.Description = description
			}
			if flags.Changed("paid") {
				txn.IsPaid = paid
			}

			if err := a.ledger.UpdateTransaction(ctx, txn); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess("Updated transaction " + txn.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "New amount")
	cmd.Flags().StringVarP(&category, "category", "c", "", "New category name (empty clears it)")
	cmd.Flags().StringVar(&date, "date", "", "New date, YYYY-MM-DD")
	cmd.Flags().StringVarP(&description, "description", "m", "", "New description")
	cmd.Flags().BoolVar(&paid, "paid", true, "Whether the transaction is paid")

	return cmd
}

func txDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <transaction-id>",
		Short: "Delete a transaction and its links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.ledger.DeleteTransaction(cmd.Context(), userID, args[0]); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess("Deleted transaction " + args[0]))
			return nil
		},
	}
}

func txListCmd() *cobra.Command {
	var since, until string
	var limit int
	var deleted bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			filter := service.TransactionFilter{Limit: limit, IncludeDeleted: deleted}
			start, err := parseDate(since)
			if err != nil {
				return err
			}
			if !start.IsZero() {
				filter.StartDate = &start
			}
			end, err := parseDate(until)
			if err != nil {
				return err
			}
			if !end.IsZero() {
				filter.EndDate = &end
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			transactions, err := a.store.ListTransactions(ctx, userID, filter)
			if err != nil {
				return err
			}
			if len(transactions) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No transactions."))
				return nil
			}

			categories, err := a.store.GetCategories(ctx, userID)
			if err != nil {
				return err
			}
			names := make(map[int64]string, len(categories))
			for _, c := range categories {
				names[c.ID] = c.Name
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tTYPE\tAMOUNT\tCATEGORY\tDESCRIPTION\tID")
			for _, txn := range transactions {
				category := "-"
				if txn.CategoryID != nil {
					category = names[*txn.CategoryID]
				}
				description := txn.Description
				if txn.IsDeleted() {
					description = cli.SubtleStyle.Render("(deleted) " + description)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					txn.Date.Format(dateLayout), txn.Type, txn.Amount.StringFixed(2),
					category, description, cli.SubtleStyle.Render(txn.ID))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "Only transactions on or after this date")
	cmd.Flags().StringVar(&until, "until", "", "Only transactions before this date")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of transactions")
	cmd.Flags().BoolVar(&deleted, "deleted", false, "Include deleted transactions")

	return cmd
}
