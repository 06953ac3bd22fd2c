// Package admin implements the landvote-admin command line.
package admin

import (
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/stake-plus/landvote/src/api/config"
	"github.com/stake-plus/landvote/src/api/data"
	"github.com/stake-plus/landvote/src/governance"
	"gorm.io/gorm"
)

// Opener connects to the database named by dsn.
type Opener func(dsn string) (*gorm.DB, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DSN      string
	RedisURL string
	Format   string

	open Opener
}

// NewRootCommand creates the landvote-admin root command.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "landvote-admin",
		Short: "Operate a LandVote governance database",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Format != "text" && opts.Format != "json" {
				return fmt.Errorf("invalid format %q: must be text or json", opts.Format)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", os.Getenv("MYSQL_DSN"), "database DSN")
	cmd.PersistentFlags().StringVar(&opts.RedisURL, "redis", "", "redis URL; when set, events go to the landvote.events stream")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewTallyCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewSettingCommand(opts))
	return cmd
}

// env is the engine wired over the database for one command run.
type env struct {
	db       *gorm.DB
	ctl      *governance.Controller
	registry *data.Registry
	close    func()
}

func (o *RootOptions) env() (*env, error) {
	db, err := o.open(o.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := data.Migrate(db); err != nil {
		return nil, err
	}
	policy, catalog := config.LoadGovernance(db)

	var publishers []governance.Publisher
	closeFn := func() {}
	if o.RedisURL != "" {
		opt, err := redis.ParseURL(o.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		rdb := redis.NewClient(opt)
		publishers = append(publishers, data.NewStreamPublisher(rdb))
		closeFn = func() { rdb.Close() }
	}

	clock := governance.SystemClock{}
	parcels := data.NewParcelStore(db, clock)
	registry := data.NewRegistry(db, parcels)
	ctl := governance.NewController(governance.Deps{
		Proposals:  data.NewProposalStore(db),
		Parcels:    parcels,
		Ledger:     data.NewVoteLedger(db),
		Registry:   registry,
		Clock:      clock,
		Policy:     policy,
		Catalog:    catalog,
		Publishers: publishers,
	})
	return &env{db: db, ctl: ctl, registry: registry, close: closeFn}, nil
}
