package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/moonlit-garden/moonlit/internal/infra/catalog"
)

func init() {
	artifactCmd.AddCommand(artifactDiscoverCmd, artifactListCmd, artifactCatalogCmd)
	catalogCmd.AddCommand(catalogImportCmd)
	rootCmd.AddCommand(artifactCmd, catalogCmd)
}

var artifactCmd = &cobra.Command{
	Use:   "artifact",
	Short: "Discover and browse artifacts",
}

var artifactDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Spend moonlight to discover an artifact",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(true)
		if err != nil {
			return err
		}
		defer d.Close()

		res, err := d.Garden.Discover(cmd.Context(), userFlag)
		if err != nil {
			return err
		}
		note := "new!"
		if res.Duplicate {
			note = "already in your collection"
		}
		fmt.Fprintf(stdout, "Found %s (%s) under a %s moon, %s\n",
			res.Definition.Name, res.Definition.Rarity, res.Phase, note)
		fmt.Fprintf(stdout, "  -%d moonlight, %d left\n", res.Cost, res.Balance)
		return nil
	},
}

var artifactListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List your artifacts",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(true)
		if err != nil {
			return err
		}
		defer d.Close()

		owned, err := d.Garden.ListArtifacts(cmd.Context(), userFlag)
		if err != nil {
			return err
		}
		if len(owned) == 0 {
			fmt.Fprintln(stdout, "No artifacts yet. Run 'moonlit artifact discover'.")
			return nil
		}
		w := newTable(stdout)
		fmt.Fprintln(w, "NAME\tRARITY\tACQUIRED\tFAVORITE")
		for _, a := range owned {
			fmt.Fprintf(w, "%s\t%s\t%s\t%v\n",
				a.Definition.Name, a.Definition.Rarity, a.AcquiredAt.Local().Format("2006-01-02"), a.Favorite)
		}
		return w.Flush()
	},
}

var artifactCatalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List every artifact that can be discovered",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(true)
		if err != nil {
			return err
		}
		defer d.Close()

		defs, err := d.Garden.Catalog(cmd.Context())
		if err != nil {
			return err
		}
		w := newTable(stdout)
		fmt.Fprintln(w, "CODE\tNAME\tRARITY\tUNLOCK")
		for _, def := range defs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", def.Code, def.Name, def.Rarity, def.UnlockCondition)
		}
		return w.Flush()
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the artifact catalog",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import artifacts from a YAML catalog file",
	Long: `Import artifacts from a YAML file. Existing codes are updated in place.

Example:
  artifacts:
    - code: owl_feather
      name: Owl Feather
      rarity: rare
      unlock: none`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := catalog.Load(args[0])
		if err != nil {
			return err
		}

		d, err := openDaemon(true)
		if err != nil {
			return err
		}
		defer d.Close()

		n, err := d.Garden.SeedCatalog(cmd.Context(), catalog.Definitions(entries, time.Now()))
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Imported %d artifacts from %s\n", n, args[0])
		return nil
	},
}
