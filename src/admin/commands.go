package admin

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stake-plus/landvote/src/api/data"
	"github.com/stake-plus/landvote/src/governance"
	"gopkg.in/yaml.v3"
)

// SeedFile is a registry export: identities first, then their parcels.
type SeedFile struct {
	Landowners []data.Landowner `yaml:"landowners"`
	Parcels    []SeedParcel     `yaml:"parcels"`
}

type SeedParcel struct {
	ID            string  `yaml:"id"`
	Owner         string  `yaml:"owner"`
	Region        string  `yaml:"region"`
	Latitude      float64 `yaml:"latitude"`
	Longitude     float64 `yaml:"longitude"`
	OwnerVerified bool    `yaml:"owner_verified"`
	Disputed      bool    `yaml:"disputed"`
	Active        *bool   `yaml:"active"`
}

// Parcel converts the record; parcels are active unless stated otherwise.
func (p SeedParcel) Parcel() governance.Parcel {
	active := true
	if p.Active != nil {
		active = *p.Active
	}
	return governance.Parcel{
		ID:            p.ID,
		Owner:         p.Owner,
		Region:        p.Region,
		Latitude:      p.Latitude,
		Longitude:     p.Longitude,
		OwnerVerified: p.OwnerVerified,
		Disputed:      p.Disputed,
		Active:        active,
	}
}

// ParseSeed decodes a seed document, rejecting unknown keys.
func ParseSeed(b []byte) (SeedFile, error) {
	var f SeedFile
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return SeedFile{}, fmt.Errorf("seed: %w", err)
	}
	return f, nil
}

func NewSeedCommand(opts *RootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load landowners and parcels from a registry YAML export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			seed, err := ParseSeed(raw)
			if err != nil {
				return err
			}
			e, err := opts.env()
			if err != nil {
				return err
			}
			defer e.close()

			ctx := cmd.Context()
			for i, l := range seed.Landowners {
				if err := e.registry.UpsertLandowner(ctx, l); err != nil {
					return fmt.Errorf("landowner %d (%s): %w", i, l.Address, err)
				}
			}
			for i, p := range seed.Parcels {
				if _, err := e.ctl.IngestParcel(ctx, p.Parcel()); err != nil {
					return fmt.Errorf("parcel %d (%s): %w", i, p.ID, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d landowners, %d parcels\n", len(seed.Landowners), len(seed.Parcels))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "registry.yaml", "seed file")
	return cmd
}

func NewSweepCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Close every active proposal whose deadline has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.env()
			if err != nil {
				return err
			}
			defer e.close()
			closed, err := e.ctl.SweepDue(cmd.Context())
			if werr := writeProposals(cmd.OutOrStdout(), opts.Format, closed); werr != nil {
				return werr
			}
			return err
		},
	}
}

func NewTallyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tally <proposal-id>",
		Short: "Show the current tally of a proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.env()
			if err != nil {
				return err
			}
			defer e.close()
			snap, err := e.ctl.Tally(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeTally(cmd.OutOrStdout(), opts.Format, snap)
		},
	}
}

func NewListCommand(opts *RootOptions) *cobra.Command {
	var status, region string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proposals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.env()
			if err != nil {
				return err
			}
			defer e.close()
			list, err := e.ctl.ListProposals(cmd.Context(), governance.Filter{Status: governance.Status(status), Region: region})
			if err != nil {
				return err
			}
			return writeProposals(cmd.OutOrStdout(), opts.Format, list)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only proposals in this status")
	cmd.Flags().StringVar(&region, "region", "", "only proposals in this region")
	return cmd
}

func NewSettingCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setting",
		Short: "Read or change rows of the settings table",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <name> <value>",
		Short: "Activate a setting; the API reads it on its next start",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.env()
			if err != nil {
				return err
			}
			defer e.close()
			if err := data.PutSetting(cmd.Context(), e.db, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List active settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.env()
			if err != nil {
				return err
			}
			defer e.close()
			rows, err := data.ActiveSettings(cmd.Context(), e.db)
			if err != nil {
				return err
			}
			return writeSettings(cmd.OutOrStdout(), opts.Format, rows)
		},
	})
	return cmd
}
