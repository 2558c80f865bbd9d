package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeriveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "derive <order-id>",
		Short: "Recompute an order's status from its workers",
		Long:  "Recomputes the aggregate status from the order's assignment list and stores it when it drifted. Completed orders are left alone.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			order, err := rt.orders.Rederive(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "order %s is %s (revision %d)\n", order.ID, order.Status, order.Revision)
			return nil
		},
	}
}
