package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dmehra2102/tenant-commerce/internal/platform"
	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
	"github.com/dmehra2102/tenant-commerce/pkg/config"
	"github.com/dmehra2102/tenant-commerce/pkg/logging"
)

type cli struct {
	v   *viper.Viper
	out io.Writer

	tenant string
	user   string
}

// flagBinding ties a persistent flag to a config key.
type flagBinding struct {
	flag, key, usage string
}

var bindings = []flagBinding{
	{"log-level", "log.level", "Log level (debug, info, warn, error)."},
	{"postgres-admin-url", "postgres.admin_url", "Maintenance database used to provision tenants."},
	{"database-prefix", "postgres.database_prefix", "Prefix of tenant database names."},
	{"inventory-addr", "inventory.addr", "Inventory gRPC address."},
	{"redis-addr", "redis.addr", "Redis address for the catalog cache."},
	{"stripe-api-key", "stripe.api_key", "Stripe secret key; the simulated gateway is used when empty."},
}

func newRootCommand(out io.Writer) *cobra.Command {
	c := &cli{v: config.New(), out: out}

	root := &cobra.Command{
		Use:           "storectl",
		Short:         "Operate tenant stores and their orders",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	for _, b := range bindings {
		flags.String(b.flag, "", b.usage)
		_ = c.v.BindPFlag(b.key, flags.Lookup(b.flag))
	}
	flags.StringVarP(&c.tenant, "tenant", "t", "", "Tenant the command acts on.")
	flags.StringVarP(&c.user, "user", "u", "storectl", "User recorded as the actor.")

	root.AddCommand(
		c.newTenantCommand(),
		c.newProductCommand(),
		c.newOrderCommand(),
	)
	return root
}

// run opens the platform for the duration of fn.
func (c *cli) run(ctx context.Context, fn func(ctx context.Context, app *platform.App) error) error {
	cfg, err := config.Load(c.v)
	if err != nil {
		return err
	}
	log := logging.NewWithWriter(os.Stderr, cfg.Log.Level)
	app, err := platform.Open(ctx, log, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()
	return fn(ctx, app)
}

func requireTenant(c *cli) error {
	if c.tenant == "" {
		return apperr.Validation("--tenant is required")
	}
	return nil
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitCode gives every error kind its own status so scripts can branch on it.
func exitCode(err error) int {
	var e *apperr.Error
	if !errors.As(err, &e) {
		return 1
	}
	switch e.Kind {
	case apperr.KindValidation, apperr.KindConstraint:
		return 2
	case apperr.KindNotFound:
		return 3
	case apperr.KindInvalidState, apperr.KindInvalidTransition:
		return 4
	case apperr.KindConflict:
		return 5
	case apperr.KindReservationFailed, apperr.KindPaymentDeclined:
		return 6
	default:
		return 1
	}
}
