package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/money"
	"github.com/spf13/cobra"
)

func newCartCmd(a *app) *cobra.Command {
	cartCmd := &cobra.Command{
		Use:   "cart",
		Short: "Show or change the cart",
	}

	cartCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show cart lines and subtotal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printCart(cmd.OutOrStdout(), a.carts.Load(cmd.Context(), a.sid))
		},
	})

	cartCmd.AddCommand(&cobra.Command{
		Use:   "add <product_id>",
		Short: "Add one unit of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			product, err := a.catalog.FindProduct(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			c, err := a.carts.Add(cmd.Context(), a.sid, product)
			if err != nil {
				return fmt.Errorf("could not update cart: %w", err)
			}
			return printCart(cmd.OutOrStdout(), c)
		},
	})

	cartCmd.AddCommand(&cobra.Command{
		Use:   "qty <product_id> <quantity>",
		Short: "Set a line's quantity (minimum 1)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity must be a number: %q", args[1])
			}
			c, err := a.carts.SetQuantity(cmd.Context(), a.sid, args[0], qty)
			if err != nil {
				return fmt.Errorf("could not update cart: %w", err)
			}
			return printCart(cmd.OutOrStdout(), c)
		},
	})

	cartCmd.AddCommand(&cobra.Command{
		Use:   "remove <product_id>",
		Short: "Remove a line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.carts.Remove(cmd.Context(), a.sid, args[0])
			if err != nil {
				return fmt.Errorf("could not update cart: %w", err)
			}
			return printCart(cmd.OutOrStdout(), c)
		},
	})

	return cartCmd
}

func printCart(out io.Writer, c domain.Cart) error {
	if len(c.Items) == 0 {
		fmt.Fprintln(out, "Your cart is empty.")
	} else {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTITLE\tQTY\tPRICE")
		for _, item := range c.Items {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", item.ProductID, item.Title, item.Quantity, money.Format(item.Price))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "Items: %d\nSubtotal: %s\n", c.TotalQuantity(), money.Format(c.Subtotal))
	return nil
}
