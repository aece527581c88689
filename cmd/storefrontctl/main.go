// Command storefrontctl drives the storefront backend from a terminal. It
// keeps its session identifier in a YAML file so the cart survives between
// invocations.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/logging"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds flag values and the components built from them.
type app struct {
	backendURL  string
	sessionFile string
	verbose     bool
	timeout     time.Duration

	logger  *zap.Logger
	sid     session.ID
	store   *session.FileStore
	client  *backend.Client
	catalog *catalog.Loader
	carts   *cart.Synchronizer
	invoker *checkout.Invoker
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "storefrontctl",
		Short:         "Browse the catalog, manage the cart and check out",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.backendURL, "backend", "", "Backend base URL (default: BACKEND_URL or http://localhost:8000)")
	rootCmd.PersistentFlags().StringVar(&a.sessionFile, "session-file", "", "Session file (default: ~/.config/storefront/session.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&a.timeout, "timeout", 0, "Request timeout (default: REQUEST_TIMEOUT or 10s)")

	rootCmd.AddCommand(
		newCategoriesCmd(a),
		newProductsCmd(a),
		newCartCmd(a),
		newCheckoutCmd(a),
		newSeedCmd(a),
		newSessionCmd(a),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.backendURL == "" {
		a.backendURL = cfg.BackendURL
	}
	if a.timeout <= 0 {
		a.timeout = cfg.RequestTimeout
	}

	level := "warn"
	if a.verbose {
		level = "debug"
	}
	a.logger, err = logging.New(level, cfg.LogDevelopment)
	if err != nil {
		return err
	}

	path := a.sessionFile
	if path == "" {
		if path, err = session.DefaultFilePath(); err != nil {
			return err
		}
	}
	a.store = session.NewFileStore(path)
	if a.sid, err = session.Resolve(a.store); err != nil {
		return err
	}
	a.logger.Debug("session resolved", zap.String("session_id", a.sid.String()), zap.String("file", path))

	a.client = backend.NewClient(a.backendURL, a.timeout)
	a.catalog = catalog.NewLoader(a.client, a.logger)
	a.carts = cart.NewSynchronizer(a.client, cart.NewMemoryStore(), a.logger)
	a.invoker = checkout.NewInvoker(a.client, a.carts, cfg.Customer.Profile(), a.logger)
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
