package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/batman-nair/TimeTrak/internal/config"
	"github.com/batman-nair/TimeTrak/internal/storage"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	statsScope    string
	statsIdentity string
	statsSince    string
	statsLast     bool
	statsLongest  bool
	statsRaw      bool
	statsLimit    int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Query recorded play time",
	Long: `Query aggregated play time, ongoing sessions or longest-session rankings
for a scope or a single identity within it.`,
	Example: `  timetrak stats --scope my-community --since 7d
  timetrak stats --scope my-community --identity user1 --last
  timetrak stats --scope my-community --longest
  timetrak stats --scope my-community --raw > sessions.json`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsScope, "scope", "", "Scope id to query (required)")
	statsCmd.Flags().StringVar(&statsIdentity, "identity", "", "Identity id to query (whole scope when omitted)")
	statsCmd.Flags().StringVar(&statsSince, "since", "", "Lower time bound, e.g. 90m, 24h, 7d, 2w (all time when omitted)")
	statsCmd.Flags().BoolVar(&statsLast, "last", false, "Show ongoing sessions only")
	statsCmd.Flags().BoolVar(&statsLongest, "longest", false, "Rank sessions by duration")
	statsCmd.Flags().BoolVar(&statsRaw, "raw", false, "Dump raw session records as JSON")
	statsCmd.Flags().IntVar(&statsLimit, "limit", 15, "Maximum entries to print")
	_ = statsCmd.MarkFlagRequired("scope")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	// Malformed input is rejected before touching storage so it can never be
	// confused with a legitimately empty result.
	from, err := parseSince(statsSince)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	sessions := store.Sessions()

	switch {
	case statsRaw:
		records, err := sessions.RawSessions(ctx, statsScope, statsIdentity)
		if err != nil {
			return fmt.Errorf("raw session export failed: %w", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)

	case statsLongest:
		ranked, err := sessions.LongestActivities(ctx, statsScope, statsIdentity)
		if err != nil {
			return fmt.Errorf("longest session query failed: %w", err)
		}
		if len(ranked) == 0 {
			printEmpty()
			return nil
		}
		printHeader("Longest sessions")
		if len(ranked) > statsLimit {
			ranked = ranked[:statsLimit]
		}
		bold := color.New(color.Bold)
		for i, entry := range ranked {
			fmt.Printf("%2d. ", i+1)
			bold.Printf("%s", entry.Name)
			fmt.Printf("  %s  (%s, started %s)\n",
				formatSeconds(entry.Duration),
				entry.IdentityID,
				entry.StartTime.Format(time.RFC3339))
		}
		return nil

	case statsLast:
		totals, err := sessions.LastActivities(ctx, statsScope, storage.QueryFilter{IdentityID: statsIdentity, From: from})
		if err != nil {
			return fmt.Errorf("ongoing session query failed: %w", err)
		}
		printHeader("Ongoing sessions")
		printTotals(totals)
		return nil

	default:
		totals, err := sessions.AggregatedActivities(ctx, statsScope, storage.QueryFilter{IdentityID: statsIdentity, From: from})
		if err != nil {
			return fmt.Errorf("aggregated query failed: %w", err)
		}
		printHeader("Total play time")
		printTotals(totals)
		return nil
	}
}

func printHeader(title string) {
	cyan := color.New(color.FgCyan, color.Bold)
	target := statsScope
	if statsIdentity != "" {
		target = statsScope + "/" + statsIdentity
	}
	if statsSince != "" {
		cyan.Printf("%s for %s (last %s)\n", title, target, statsSince)
	} else {
		cyan.Printf("%s for %s\n", title, target)
	}
}

func printEmpty() {
	color.New(color.FgYellow).Println("No play time recorded")
}

func printTotals(totals map[string]float64) {
	if len(totals) == 0 {
		printEmpty()
		return
	}

	type entry struct {
		name    string
		seconds float64
	}
	entries := make([]entry, 0, len(totals))
	for name, seconds := range totals {
		entries = append(entries, entry{name, seconds})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seconds > entries[j].seconds })
	if len(entries) > statsLimit {
		entries = entries[:statsLimit]
	}

	bold := color.New(color.Bold)
	for _, e := range entries {
		bold.Printf("%s", e.name)
		fmt.Printf(": %s\n", formatSeconds(e.seconds))
	}
}

// parseSince converts a relative time expression into an absolute lower
// bound. Beyond time.ParseDuration units it accepts day ("d") and week ("w")
// suffixes, which the standard parser does not.
func parseSince(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}

	var d time.Duration
	switch {
	case strings.HasSuffix(s, "d"), strings.HasSuffix(s, "w"):
		value, err := strconv.Atoi(s[:len(s)-1])
		if err != nil || value <= 0 {
			return nil, fmt.Errorf("invalid --since value %q: expected a positive count before %q", s, s[len(s)-1:])
		}
		d = time.Duration(value) * 24 * time.Hour
		if strings.HasSuffix(s, "w") {
			d *= 7
		}
	default:
		var err error
		d, err = time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid --since value %q: %w", s, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("invalid --since value %q: must be positive", s)
		}
	}

	from := time.Now().Add(-d)
	return &from, nil
}

// formatSeconds renders a duration for display. Rounding happens only here,
// never before storage.
func formatSeconds(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	if d < time.Minute {
		return d.String()
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
