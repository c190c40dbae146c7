package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/fact-oracle/internal/model"
	"github.com/sells-group/fact-oracle/internal/safety"
)

var statsCmd = &cobra.Command{
	Use:   "stats [domain]",
	Short: "Show persisted query stats and breaker state per domain",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		domains := model.Domains
		if len(args) == 1 {
			d, ok := model.ParseDomain(args[0])
			if !ok {
				return model.Errorf(model.KindUnknownDomain, "unknown domain %q", args[0])
			}
			domains = []model.Domain{d}
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		g := safety.New(st, cfg.Safety)
		snaps := make([]*safety.Snapshot, 0, len(domains))
		for _, d := range domains {
			s, err := g.Snapshot(ctx, d)
			if err != nil {
				return err
			}
			snaps = append(snaps, s)
		}

		formatSnapshots(os.Stdout, snaps)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

// formatSnapshots writes one row per domain to out.
func formatSnapshots(out io.Writer, snaps []*safety.Snapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DOMAIN\tBREAKER\tFAILS\tTODAY\tQUOTA\tTOTAL\tSUCCESS\tAVG CONF\tLAST RESET")
	_, _ = fmt.Fprintln(w, "------\t-------\t-----\t-----\t-----\t-----\t-------\t--------\t----------")

	for _, s := range snaps {
		quota := "unlimited"
		if s.DailyQuota > 0 {
			quota = fmt.Sprintf("%d", s.DailyQuota)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%d\t%.1f%%\t%.2f\t%s\n",
			s.Domain,
			s.Breaker,
			s.ConsecutiveFailures,
			s.Stats.TodayQueries,
			quota,
			s.Stats.TotalQueries,
			s.Stats.SuccessRate()*100,
			s.Stats.AverageConfidence(),
			s.Stats.LastReset,
		)
	}
	_ = w.Flush()
}
