package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"minkal/internal/state"
)

var (
	dayDateFlag     string
	dayCalendarFlag string
)

var dayCmd = &cobra.Command{
	Use:   "day",
	Short: "Print one day's timeline with pixel positions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		date, err := parseDateFlag(dayDateFlag, a.loc)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		refresh(ctx, a.state, date)
		fmt.Fprintln(cmd.OutOrStdout(), renderDay(a.state.Day(ctx, date, dayCalendarFlag), a.state.Timeline().TrackHeight))
		return nil
	},
}

func init() {
	dayCmd.Flags().StringVar(&dayDateFlag, "date", "", "date to show (YYYY-MM-DD); defaults to today")
	dayCmd.Flags().StringVar(&dayCalendarFlag, "calendar", "", "restrict the timeline to one calendar")
}

func renderDay(v state.DayView, height float64) string {
	var b strings.Builder

	calendar := v.Calendar
	if calendar == "" {
		calendar = "selected calendars"
	}
	b.WriteString(headerStyle.Render(v.Date.Format("Monday 2 January 2006")))
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  (%s, track %.0fpx)", calendar, height)))
	b.WriteString("\n\n")

	for _, m := range v.HourMarks {
		fmt.Fprintf(&b, "%s %7.1f\n", mutedStyle.Render(m.Label), m.YPixel)
	}
	b.WriteString("\n")

	if len(v.Entries) == 0 {
		b.WriteString(mutedStyle.Render("no events"))
		b.WriteString("\n")
	}
	for _, e := range v.Entries {
		fmt.Fprintf(&b, "%7.1f  %s  %s", e.YPixel, e.Event.Start.Format("15:04"), e.Event.Title)
		if e.StackIndex > 0 {
			fmt.Fprintf(&b, " %s", mutedStyle.Render(fmt.Sprintf("(stacked #%d)", e.StackIndex)))
		}
		b.WriteString("\n")
	}

	if v.IsToday {
		b.WriteString("\n")
		b.WriteString(todayStyle.Render(fmt.Sprintf("now at %.1f", v.CurrentTimeY)))
	}
	return strings.TrimRight(b.String(), "\n")
}
