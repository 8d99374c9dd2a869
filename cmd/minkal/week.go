package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"minkal/internal/layout"
	appLog "minkal/internal/log"
	"minkal/internal/state"
)

const cellWidth = 18

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89B4FA"))
	todayStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A6E3A1"))
	pastStyle   = lipgloss.NewStyle().Faint(true)
	allDayStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#F9E2AF"))
	cellStyle   = lipgloss.NewStyle().Width(cellWidth).PaddingRight(1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
)

var weekDateFlag string

var weekCmd = &cobra.Command{
	Use:   "week",
	Short: "Print the four week grid",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		anchor, err := parseDateFlag(weekDateFlag, a.loc)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		refresh(ctx, a.state, anchor)
		fmt.Fprintln(cmd.OutOrStdout(), renderWeek(a.state.Week(ctx, anchor)))
		return nil
	},
}

func init() {
	weekCmd.Flags().StringVar(&weekDateFlag, "date", "", "any date in the week to show (YYYY-MM-DD); defaults to today")
}

// refresh loads the grid around anchor, or around today when anchor is zero.
func refresh(ctx context.Context, st *state.State, anchor time.Time) {
	if anchor.IsZero() {
		anchor = st.Now()
	}
	if err := st.RefreshFor(ctx, anchor); err != nil {
		appLog.Warn("showing partial data", "error", err.Error())
	}
}

// renderWeek lays the grid out as four rows of seven fixed width columns.
func renderWeek(v state.WeekView) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("%s - %s",
		v.Grid.Start.Format("Mon 2 Jan"), v.Grid.End().Format("Mon 2 Jan 2006"))))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("calendars: " + strings.Join(v.Selected, ", ")))
	b.WriteString("\n\n")

	for _, row := range v.Grid.Rows {
		cols := make([]string, 0, len(row))
		for _, cell := range row {
			cols = append(cols, renderCell(cell, v.ShowEventTime, v.DimOpacity))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cols...))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderCell(cell layout.DayCell, showTime bool, dim float64) string {
	lines := make([]string, 0, len(cell.Events)+1)

	heading := cell.Date.Format("Mon 02")
	switch cell.Tense {
	case layout.Present:
		heading = todayStyle.Render(heading)
	case layout.Past:
		heading = pastStyle.Render(heading)
	default:
		heading = headerStyle.Render(heading)
	}
	lines = append(lines, heading)

	for _, ev := range cell.Events {
		label := ev.Label(showTime)
		if ev.Kind == layout.AllDay {
			label = allDayStyle.Render(label)
		}
		lines = append(lines, label)
	}

	style := cellStyle
	// Terminals have no opacity; anything dimmer than fully opaque is faint.
	if cell.Tense == layout.Past && dim < 1 {
		style = style.Faint(true)
	}
	return style.Render(strings.Join(lines, "\n"))
}
