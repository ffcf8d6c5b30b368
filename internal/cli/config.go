package cli

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/moonlit-garden/moonlit/internal/daemon"
)

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	userCmd.Flags().StringVar(&userName, "name", "", "Display name")
	userCmd.Flags().StringVar(&userTZ, "tz", "", "IANA timezone used for local dates")
	rootCmd.AddCommand(configCmd, userCmd)
}

var (
	configForce bool
	userName    string
	userTZ      string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to $MOONLIT_HOME/config.toml",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := daemon.ConfigPath()
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := daemon.SaveConfig(daemon.DefaultConfig()); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := daemon.LoadConfig()
		if err != nil {
			return err
		}
		return toml.NewEncoder(stdout).Encode(cfg)
	},
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Create or update the current user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(true)
		if err != nil {
			return err
		}
		defer d.Close()

		u, err := d.Garden.EnsureUser(cmd.Context(), userFlag, userName, userTZ)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s (%s) in %s\n", u.ID, u.Username, u.Timezone)
		return nil
	},
}
