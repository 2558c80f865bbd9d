package main

import (
	"errors"
	"fmt"
	"strings"

	"workorders_backend/internal/orders/domain"

	"github.com/spf13/cobra"
)

func newReopenCmd() *cobra.Command {
	var (
		actorID   string
		actorName string
		actorRole string
	)

	cmd := &cobra.Command{
		Use:   "reopen <order-id>",
		Short: "Move a completed order back to in-progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := parseActor(actorID, actorName, actorRole)
			if err != nil {
				return err
			}

			rt, err := openRuntime(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			order, err := rt.orders.Reopen(cmd.Context(), args[0], actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "order %s is %s\n", order.ID, order.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&actorID, "actor", "", "user id recorded as the reopener (required)")
	cmd.Flags().StringVar(&actorName, "name", "", "display name of the reopener")
	cmd.Flags().StringVar(&actorRole, "role", string(domain.RoleAdmin), "role of the reopener: worker, manager or admin")
	return cmd
}

func parseActor(id, name, role string) (domain.Actor, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Actor{}, errors.New("--actor is required")
	}
	r, ok := domain.ParseRole(role)
	if !ok {
		return domain.Actor{}, fmt.Errorf("unknown role %q", role)
	}
	return domain.Actor{ID: id, Name: strings.TrimSpace(name), Role: r}, nil
}
