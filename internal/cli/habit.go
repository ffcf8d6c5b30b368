package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moonlit-garden/moonlit/internal/app/habit"
)

func init() {
	habitAddCmd.Flags().StringVarP(&habitDesc, "description", "d", "", "Habit description")
	habitAddCmd.Flags().StringVarP(&habitFreq, "frequency", "f", "daily", "daily, weekly, custom_days or custom_weeks")
	habitAddCmd.Flags().IntVar(&habitEvery, "every", 0, "Interval for custom frequencies")
	habitAddCmd.Flags().IntVar(&habitCooldown, "cooldown", 0, "Hours between check-ins")
	habitAddCmd.Flags().IntVar(&habitInitial, "initial-days", 0, "Streak days already done before tracking")
	habitCheckinCmd.Flags().BoolVar(&habitCleanse, "cleanse", false, "Spend moonlight to cleanse a wilted plant")

	habitCmd.AddCommand(habitAddCmd, habitListCmd, habitCheckinCmd, habitRmCmd, habitPauseCmd, habitResumeCmd)
	rootCmd.AddCommand(habitCmd, gardenCmd)
}

var (
	habitDesc     string
	habitFreq     string
	habitEvery    int
	habitCooldown int
	habitInitial  int
	habitCleanse  bool
)

var habitCmd = &cobra.Command{
	Use:   "habit",
	Short: "Manage habits",
}

var habitAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Create a habit and plant its seed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseFrequency(habitFreq)
		if err != nil {
			return err
		}
		p := habit.CreateParams{
			Name:          args[0],
			Description:   habitDesc,
			CooldownHours: habitCooldown,
			InitialDays:   habitInitial,
			FrequencyKind: kind,
		}
		if habitEvery > 0 {
			p.FrequencyValue = &habitEvery
		}

		d, err := openDaemon(true)
		if err != nil {
			return err
		}
		defer d.Close()

		h, err := d.Garden.CreateHabit(cmd.Context(), userFlag, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Planted %q (%s, %s) id %s\n", h.Name, describeFrequency(h), h.Plant.StageName, h.ID)
		return nil
	},
}

var habitListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List habits",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(true)
		if err != nil {
			return err
		}
		defer d.Close()

		habits, err := d.Garden.ListHabits(cmd.Context(), userFlag)
		if err != nil {
			return err
		}
		if len(habits) == 0 {
			fmt.Fprintln(stdout, "No habits yet. Run 'moonlit habit add <name>' to plant one.")
			return nil
		}

		w := newTable(stdout)
		fmt.Fprintln(w, "ID\tNAME\tSCHEDULE\tSTREAK\tBEST\tSTAGE\tLAST\tSTATE")
		for _, h := range habits {
			state := "active"
			switch {
			case !h.Active:
				state = "paused"
			case h.Wilted:
				state = "wilted"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
				h.ID, h.Name, describeFrequency(h), h.CurrentStreak, h.BestStreak,
				h.Plant.StageName, formatDate(h.LastCheckinDate), state)
		}
		return w.Flush()
	},
}

var habitCheckinCmd = &cobra.Command{
	Use:   "checkin ID",
	Short: "Check in on a habit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(true)
		if err != nil {
			return err
		}
		defer d.Close()

		res, err := d.Garden.CheckIn(cmd.Context(), userFlag, args[0], habitCleanse)
		if err != nil {
			return err
		}
		h := res.Habit
		if res.Cleansed {
			fmt.Fprintf(stdout, "Cleansed %q for %d moonlight.\n", h.Name, res.CleanseCost)
		}
		fmt.Fprintf(stdout, "%s: streak %d, %s, +%d moonlight under a %s moon (balance %d)\n",
			h.Name, h.CurrentStreak, h.Plant.StageName, res.Reward, res.Moon.Phase, res.Balance)
		if h.Wilted {
			fmt.Fprintln(stdout, "The plant is wilted. Check in with --cleanse to restore it.")
		}
		return nil
	},
}

var habitRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a habit and its plant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(true)
		if err != nil {
			return err
		}
		defer d.Close()

		if err := d.Garden.DeleteHabit(cmd.Context(), userFlag, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Deleted %s\n", args[0])
		return nil
	},
}

var habitPauseCmd = &cobra.Command{
	Use:   "pause ID",
	Short: "Stop accepting check-ins for a habit",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setActive(cmd, args[0], false) },
}

var habitResumeCmd = &cobra.Command{
	Use:   "resume ID",
	Short: "Accept check-ins for a paused habit again",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setActive(cmd, args[0], true) },
}

func setActive(cmd *cobra.Command, id string, active bool) error {
	d, err := openDaemon(true)
	if err != nil {
		return err
	}
	defer d.Close()

	h, err := d.Garden.UpdateHabit(cmd.Context(), userFlag, id, habit.UpdateParams{Active: &active})
	if err != nil {
		return err
	}
	state := "paused"
	if h.Active {
		state = "resumed"
	}
	fmt.Fprintf(stdout, "%s %s\n", h.Name, state)
	return nil
}

var gardenCmd = &cobra.Command{
	Use:   "garden",
	Short: "Show the garden: plants, moon and moonlight",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(true)
		if err != nil {
			return err
		}
		defer d.Close()

		st, err := d.Garden.GardenState(cmd.Context(), userFlag)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s moon (x%.2f), %d moonlight, %d active habits\n\n",
			st.Moon.Phase, st.Moon.EnergyMultiplier, st.Balance, st.ActiveHabits)

		w := newTable(stdout)
		fmt.Fprintln(w, "HABIT\tSTAGE\tGLOW\tSTREAK\tWILTED")
		for _, p := range st.Plants {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%v\n", p.HabitName, p.StageName, p.GlowLevel, p.CurrentStreak, p.Wilted)
		}
		return w.Flush()
	},
}
