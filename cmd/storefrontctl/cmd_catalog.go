package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/money"
	"github.com/spf13/cobra"
)

func newCategoriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List departments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			categories := a.catalog.LoadCategories(cmd.Context())
			out := cmd.OutOrStdout()
			if len(categories) == 0 {
				fmt.Fprintln(out, "No categories found.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SLUG\tNAME")
			for _, c := range categories {
				fmt.Fprintf(tw, "%s\t%s\n", c.Slug, c.Name)
			}
			return tw.Flush()
		},
	}
}

func newProductsCmd(a *app) *cobra.Command {
	var filter catalog.Filter
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List products, optionally by category or search text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printProducts(cmd.OutOrStdout(), a.catalog.LoadProducts(cmd.Context(), filter))
		},
	}
	cmd.Flags().StringVarP(&filter.Category, "category", "c", "", "Category slug")
	cmd.Flags().StringVarP(&filter.Query, "query", "q", "", "Search text")
	return cmd
}

func printProducts(out io.Writer, products []domain.Product) error {
	if len(products) == 0 {
		fmt.Fprintln(out, "No products found.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tPRICE\tWAS")
	for _, p := range products {
		was := ""
		if p.CompareAtPrice != nil {
			was = money.Format(*p.CompareAtPrice)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Title, money.Format(p.Price), was)
	}
	return tw.Flush()
}

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load sample data into the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Seed(cmd.Context()); err != nil {
				return fmt.Errorf("load sample data: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Sample data loaded.")
			return nil
		},
	}
}

func newSessionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Print the session identifier and where it is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", a.sid, a.store.Path())
			return nil
		},
	}
}
