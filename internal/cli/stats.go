package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"memory-palace/internal/app"
	"memory-palace/internal/domain"
)

const topWeakTopics = 5

// NewStatsCmd prints the aggregated progress report.
func NewStatsCmd(root *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show accuracy, weak topics and streak trend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer rt.Close()

			report := rt.service().Stats(cmd.Context())
			if asJSON {
				return writeStatsJSON(cmd.OutOrStdout(), cmd.ErrOrStderr(), report)
			}
			printStats(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

type statsJSON struct {
	domain.Aggregate
	Warning string `json:"warning,omitempty"`
}

// writeStatsJSON keeps an unreadable-history warning visible both in the
// document and on stderr.
func writeStatsJSON(out, errOut io.Writer, report app.StatsReport) error {
	body := statsJSON{Aggregate: report.Aggregate}
	if report.Warning != nil {
		body.Warning = report.Warning.Error()
		fmt.Fprintf(errOut, "Warning: progress history could not be read (%v); showing empty stats.\n", report.Warning)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(body)
}

func printStats(out io.Writer, report app.StatsReport) {
	if report.Warning != nil {
		fmt.Fprintf(out, "Warning: progress history could not be read (%v); showing empty stats.\n", report.Warning)
	}
	if report.Empty() {
		fmt.Fprintln(out, "No quiz sessions recorded yet. Run `memory-palace quiz` to get started.")
		return
	}

	fmt.Fprintln(out, "Your progress")
	fmt.Fprintf(out, "  Sessions:  %d%s\n", report.Sessions, modeBreakdown(report.SessionsByMode))
	fmt.Fprintf(out, "  Answered:  %d\n", report.TotalAttempts)
	fmt.Fprintf(out, "  Correct:   %d\n", report.Correct)
	fmt.Fprintf(out, "  Accuracy:  %.1f%%\n", report.Accuracy*100)
	fmt.Fprintf(out, "  Level:     %s\n", report.Level)

	if weak := report.TopWeakTopics(topWeakTopics); len(weak) > 0 {
		fmt.Fprintln(out, "\nTopics to review")
		for i, t := range weak {
			rate := report.MissRate(t)
			fmt.Fprintf(out, "  %d. %s\n     missed %d times in %d sessions (%.0f%% of sessions) - %s priority\n",
				i+1, t.Topic, t.Misses, t.Sessions, rate*100, domain.PriorityFor(rate))
		}
	}

	trend := make([]string, len(report.StreakTrend))
	for i, s := range report.StreakTrend {
		trend[i] = fmt.Sprint(s)
	}
	fmt.Fprintf(out, "\nBest streak per session: %s\n", strings.Join(trend, " "))
}

// modeBreakdown renders " (flashcard 3, mcq 1)", or nothing when only one
// mode was played.
func modeBreakdown(byMode map[domain.Mode]int) string {
	if len(byMode) < 2 {
		return ""
	}
	parts := make([]string, 0, len(byMode))
	for mode, n := range byMode {
		parts = append(parts, fmt.Sprintf("%s %d", mode, n))
	}
	sort.Strings(parts)
	return " (" + strings.Join(parts, ", ") + ")"
}
