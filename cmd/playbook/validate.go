package main

import (
	"os"
	"strings"

	"github.com/aretw0/playbook/internal/cli"
	"github.com/aretw0/playbook/internal/validator"
	loamAdapter "github.com/aretw0/playbook/pkg/adapters/loam"
	"github.com/aretw0/playbook/pkg/catalog"
	"github.com/aretw0/playbook/pkg/ports"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file|dir]",
	Short: "Lint protocol definitions",
	Long: `Checks a catalog file (YAML/JSON), a directory of protocol documents, or the
configured catalog when no path is given. Exits non-zero on errors.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		var loaders []ports.CatalogLoader
		if len(args) == 1 {
			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}
			if info.IsDir() {
				l, err := loamAdapter.Open(args[0])
				if err != nil {
					return err
				}
				loaders = append(loaders, l)
			} else {
				loaders = append(loaders, catalog.NewFileLoader(args[0]))
			}
		} else {
			if !cfg.Catalog.NoBuiltin {
				loaders = append(loaders, catalog.BuiltinLoader{})
			}
			if cfg.Catalog.File != "" {
				loaders = append(loaders, catalog.NewFileLoader(cfg.Catalog.File))
			}
			if cfg.Catalog.Dir != "" {
				l, err := loamAdapter.Open(cfg.Catalog.Dir)
				if err != nil {
					return err
				}
				loaders = append(loaders, l)
			}
		}

		protocols, err := catalog.Merge(logger, loaders...).Load(cmd.Context())
		if err != nil {
			return err
		}
		report := validator.ValidateCatalog(protocols)

		jsonMode, _ := cmd.Flags().GetBool("json")
		out := cli.NewPrinter(cmd.OutOrStdout(), jsonMode)
		if jsonMode {
			if err := out.Value(report); err != nil {
				return err
			}
			return report.Err()
		}

		out.Line("Checked %d protocol(s)", len(protocols))
		for _, issue := range report.Issues {
			out.Line("%s", issue)
		}
		for _, p := range protocols {
			if vars := report.Variables[p.ID]; len(vars) > 0 {
				out.Line("%s needs context: %s", p.ID, strings.Join(vars, ", "))
			}
		}
		if err := report.Err(); err != nil {
			return err
		}
		out.Line("OK (%d warnings)", len(report.Issues))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
