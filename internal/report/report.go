// Package report renders a markdown summary of the latest week's applied
// surcharge decisions and any tables that take effect later.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/fsc-watch/internal/store"
)

// Event pairs a week's applied row with the prior week's, when one exists.
type Event struct {
	Current store.AppliedRow
	Prior   *store.AppliedRow
}

// UpcomingTable is a persisted surcharge table whose effective date is
// still in the future relative to the reported week.
type UpcomingTable struct {
	Carrier       string
	Program       *string
	EffectiveDate string
	SourceID      string
}

func formatPercent(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", *v)
}

func formatPrice(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("$%.3f", *v)
}

func deref(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

// Build assembles the markdown report for the latest applied week. An
// empty store yields a one-line notice instead of an error.
func Build(ctx context.Context, st store.Store) (string, error) {
	week, err := st.LatestAppliedWeek(ctx)
	if err != nil {
		return "", err
	}
	if week == nil {
		return "No applied surcharge data available.\n", nil
	}

	current, err := st.ListApplied(ctx, *week)
	if err != nil {
		return "", err
	}

	events := make([]Event, 0, len(current))
	for _, row := range current {
		prior, err := st.PriorApplied(ctx, row.Carrier, row.Program, *week)
		if err != nil {
			return "", err
		}
		events = append(events, Event{Current: row, Prior: prior})
	}

	upcoming, err := upcomingTables(ctx, st, *week)
	if err != nil {
		return "", err
	}

	return render(*week, events, upcoming), nil
}

// upcomingTables scans the latest snapshot of every source for tables
// effective after refDate.
func upcomingTables(ctx context.Context, st store.Store, refDate string) ([]UpcomingTable, error) {
	snapshots, err := st.LatestSnapshots(ctx)
	if err != nil {
		return nil, err
	}

	var out []UpcomingTable
	for _, row := range snapshots {
		if row.Snapshot == nil {
			continue
		}
		for _, table := range row.Snapshot.Tables {
			effective := table.EffectiveDate
			if effective == nil {
				effective = row.Snapshot.EffectiveDate
			}
			if effective == nil || *effective <= refDate {
				continue
			}
			out = append(out, UpcomingTable{
				Carrier:       row.Snapshot.Carrier,
				Program:       table.Program,
				EffectiveDate: *effective,
				SourceID:      row.SourceID,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].EffectiveDate != out[j].EffectiveDate {
			return out[i].EffectiveDate < out[j].EffectiveDate
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out, nil
}

func render(week string, events []Event, upcoming []UpcomingTable) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Weekly Carrier Pricing Events (%s)\n\n", week)
	b.WriteString("## Events\n\n")

	for _, ev := range events {
		cur := ev.Current
		oldCharge := "n/a"
		if ev.Prior != nil {
			oldCharge = formatPercent(&ev.Prior.AppliedPercent)
		}
		bracket := deref(cur.BracketRange, deref(cur.BracketID, "n/a"))
		fmt.Fprintf(&b, "- FSC | %s | %s | Week: %s | cause: %s\n",
			cur.Carrier, cur.Program, cur.WeekEndingDate, cur.Reason)
		fmt.Fprintf(&b, "  - old_charge: %s | new_charge: %s | bracket: %s | table_eff: %s\n",
			oldCharge, formatPercent(&cur.AppliedPercent), bracket, cur.TableEffectiveDate)
		fmt.Fprintf(&b, "  - fuel: %s %s\n\n", deref(cur.FuelIndex, "fuel"), formatPrice(cur.FuelPrice))
	}

	if len(upcoming) > 0 {
		b.WriteString("## Upcoming Changes\n\n")
		for _, u := range upcoming {
			fmt.Fprintf(&b, "- %s | %s | effective: %s | source: %s\n",
				u.Carrier, deref(u.Program, "unknown"), u.EffectiveDate, u.SourceID)
		}
	}

	return b.String()
}
