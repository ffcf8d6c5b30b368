// Package cli implements the moonlit command-line interface using Cobra.
// Commands other than serve open the garden database directly.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	userFlag    string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "moonlit",
	Short: "Moonlit Garden: grow habits under the moon",
	Long: `Moonlit Garden turns habits into plants. Check in on schedule to grow
them, earn moonlight scaled by the moon phase and spend it on cleansing wilted
plants or discovering artifacts.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	defaultUser := os.Getenv("MOONLIT_USER")
	if defaultUser == "" {
		defaultUser = "local"
	}
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", defaultUser, "User id to act as (env MOONLIT_USER)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log at the configured level instead of warn")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
