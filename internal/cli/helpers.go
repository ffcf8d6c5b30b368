package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/moonlit-garden/moonlit/internal/daemon"
	"github.com/moonlit-garden/moonlit/internal/domain"
	"github.com/moonlit-garden/moonlit/internal/logger"
)

// openDaemon loads the config and opens the garden. One-shot commands log
// at warn unless --verbose is set.
func openDaemon(oneShot bool) (*daemon.Daemon, error) {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if oneShot && !verboseFlag {
		cfg.Logging.Level = "warn"
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return daemon.NewWithConfig(cfg)
}

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

var stdout io.Writer = os.Stdout

// parseFrequency accepts "daily", "weekly", "custom_days" or
// "custom_weeks", plus the short forms "days" and "weeks".
func parseFrequency(s string) (domain.FrequencyKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "daily":
		return domain.FreqDaily, nil
	case "weekly":
		return domain.FreqWeekly, nil
	case "custom_days", "days":
		return domain.FreqCustomDays, nil
	case "custom_weeks", "weeks":
		return domain.FreqCustomWeeks, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrInvalidFrequency, s)
}

// describeFrequency renders a habit's schedule for tables.
func describeFrequency(h domain.Habit) string {
	n := h.FrequencyValue()
	switch h.FrequencyKind() {
	case domain.FreqWeekly:
		return "weekly"
	case domain.FreqCustomDays:
		return fmt.Sprintf("every %d days", n)
	case domain.FreqCustomWeeks:
		return fmt.Sprintf("every %d weeks", n)
	}
	return "daily"
}

func formatDate(d *domain.LocalDate) string {
	if d == nil {
		return "-"
	}
	return d.String()
}
