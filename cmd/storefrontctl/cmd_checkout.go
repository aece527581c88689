package main

import (
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/spf13/cobra"
)

func newCheckoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the current cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := a.invoker.Checkout(cmd.Context(), a.sid)
			var checkoutErr *checkout.Error
			switch {
			case errors.Is(err, checkout.ErrEmptyCart):
				return errors.New("your cart is empty")
			case errors.As(err, &checkoutErr):
				return errors.New(checkoutErr.Message())
			case err != nil:
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order placed! ID: %s\n", order.ID)
			return nil
		},
	}
}
