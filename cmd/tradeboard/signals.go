package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/newthinker/tradeboard/internal/backend"
	"github.com/newthinker/tradeboard/internal/config"
	"github.com/newthinker/tradeboard/internal/core"
	"github.com/newthinker/tradeboard/internal/filter"
	"github.com/newthinker/tradeboard/internal/logger"
	"github.com/newthinker/tradeboard/internal/present"
)

var (
	signalsTicker  string
	signalsSince   string
	signalsQuery   string
	signalsActions []string
	signalsPage    int
	signalsLimit   int
	signalsJSON    bool
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Fetch recent signals and print one filtered page",
	Long: `Fetch recent signals from the backend once, apply the dashboard's
filters and print the requested page as a table.`,
	RunE: runSignals,
}

func init() {
	signalsCmd.Flags().StringVar(&signalsTicker, "ticker", filter.AllTickers, "only show this ticker")
	signalsCmd.Flags().StringVar(&signalsSince, "since", string(filter.Window24h), "time window: 6h, 12h, 24h, 7d, 30d or All")
	signalsCmd.Flags().StringVarP(&signalsQuery, "query", "q", "", "free-text search over ticker, signal, action and message")
	signalsCmd.Flags().StringSliceVar(&signalsActions, "action", nil, "actions to include (BUY, SELL, NEUTRAL); default all")
	signalsCmd.Flags().IntVar(&signalsPage, "page", 1, "page number")
	signalsCmd.Flags().IntVar(&signalsLimit, "limit", 0, "rows to request from the backend (default backend.recent_limit)")
	signalsCmd.Flags().BoolVar(&signalsJSON, "json", false, "print the page as JSON")

	rootCmd.AddCommand(signalsCmd)
}

func runSignals(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := logger.ForMode(cfg.Server.Mode, debug)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	criteria, err := signalsCriteria()
	if err != nil {
		return err
	}

	client := backend.New(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
	}, log.Named("backend"))
	if !client.Enabled() {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("set backend.base_url, %s or %s", config.EnvBaseURL, config.EnvBaseURLFallback))
	}

	limit := signalsLimit
	if limit <= 0 {
		limit = cfg.Backend.RecentLimit
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Backend.Timeout+5*time.Second)
	defer cancel()

	rows, err := client.RecentSignals(ctx, limit)
	if err != nil {
		return fmt.Errorf("fetching signals: %w", err)
	}

	kept := filter.Signals(rows, criteria, time.Now())
	page := filter.Paginate(kept, signalsPage, cfg.View.PageSize)

	out := cmd.OutOrStdout()
	if signalsJSON {
		return writeSignalsJSON(out, page)
	}
	return writeSignalsTable(out, page)
}

func signalsCriteria() (filter.Criteria, error) {
	since, err := filter.ParseWindow(signalsSince, filter.TableWindows)
	if err != nil {
		return filter.Criteria{}, err
	}

	actions := filter.AllActions()
	if len(signalsActions) > 0 {
		actions = filter.ActionSet{}
		for _, raw := range signalsActions {
			a := core.Action(strings.ToUpper(strings.TrimSpace(raw)))
			switch a {
			case core.ActionBuy, core.ActionSell, core.ActionNeutral:
				actions[a] = true
			default:
				return filter.Criteria{}, core.WrapError(core.ErrInvalidFilter, fmt.Errorf("unknown action %q", raw))
			}
		}
	}

	return filter.Criteria{
		Ticker:  strings.TrimSpace(signalsTicker),
		Actions: actions,
		Since:   since,
		Query:   signalsQuery,
	}, nil
}

func writeSignalsTable(out io.Writer, page filter.Page[core.SignalRecord]) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME (UTC)\tTICKER\tSIGNAL\tACTION\tVALUE\tTRIGGERED BY\tPARAMS\tMESSAGE")
	for _, r := range present.TableRows(page.Rows) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Time, r.Ticker, r.SignalType, r.Badge.Label, r.Value, r.TriggeredBy, r.Params, r.Message)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if page.Total == 0 {
		fmt.Fprintln(out, "No signals.")
	}
	_, err := fmt.Fprintf(out, "%d results, page %d / %d\n", page.Total, page.Number, page.Count)
	return err
}

func writeSignalsJSON(out io.Writer, page filter.Page[core.SignalRecord]) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"rows":       present.TableRows(page.Rows),
		"total":      page.Total,
		"page":       page.Number,
		"page_count": page.Count,
	})
}
