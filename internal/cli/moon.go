package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moonlit-garden/moonlit/internal/domain"
)

func init() {
	moonCmd.Flags().StringVar(&moonTZ, "tz", "", "IANA timezone (default: the user's)")
	rootCmd.AddCommand(moonCmd)
}

var moonTZ string

var moonCmd = &cobra.Command{
	Use:   "moon",
	Short: "Show today's moon phase and energy multiplier",
	Args:  cobra.NoArgs,
	RunE:  runMoon,
}

func runMoon(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(true)
	if err != nil {
		return err
	}
	defer d.Close()

	var info domain.MoonPhaseInfo
	if moonTZ != "" {
		info, err = d.Garden.MoonIn(cmd.Context(), moonTZ)
	} else {
		info, err = d.Garden.MoonToday(cmd.Context(), userFlag)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s moon on %s (%s)\n", info.Phase, info.LocalDate, info.Timezone)
	fmt.Fprintf(stdout, "  age:          %.1f days\n", info.AgeDays)
	fmt.Fprintf(stdout, "  illumination: %.0f%%\n", info.Illumination*100)
	fmt.Fprintf(stdout, "  multiplier:   x%.2f\n", info.EnergyMultiplier)
	fmt.Fprintf(stdout, "  theme:        %s\n", info.ThemeID)
	return nil
}
