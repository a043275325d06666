package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-quest/internal/cli"
	"github.com/Veraticus/spice-quest/internal/model"
)

func linkCmd() *cobra.Command {
	var linkType string

	cmd := &cobra.Command{
		Use:   "link <source-id> <target-id> <amount>",
		Short: "Allocate part of one transaction to another",
		Long: `Link part of a source transaction to a target transaction.

A debt_payment link from an income to a debt expense counts that amount towards
your debt service ratio. The amount may not exceed what is left unallocated on
the source nor what is still outstanding on the target.`,
		Example: `  quest link 6f1c... 9a2b... 450 --type debt_payment`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			link, err := a.ledger.LinkTransactions(cmd.Context(), userID, args[0], args[1], amount, model.LinkType(linkType))
			if err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Linked %s as %s (%s)",
				link.Amount.StringFixed(2), link.Type, link.ID)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&linkType, "type", "t", string(model.LinkDebtPayment),
		"Link type (debt_payment, transfer, savings_allocation)")

	return cmd
}

func unlinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <link-id>",
		Short: "Remove a transaction link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.ledger.Unlink(cmd.Context(), userID, args[0]); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess("Removed link " + args[0]))
			return nil
		},
	}
}
