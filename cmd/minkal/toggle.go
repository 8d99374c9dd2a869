package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

var toggleCmd = &cobra.Command{
	Use:   "toggle <calendar>",
	Short: "Show or hide a calendar and persist the selection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		name := args[0]
		if !slices.Contains(a.calendarNames(), name) && !a.selection.Contains(name) {
			return fmt.Errorf("unknown calendar %q (configured: %s)", name, strings.Join(a.calendarNames(), ", "))
		}

		set, err := a.selection.Toggle(name)
		if err != nil {
			return err
		}
		state := "hidden"
		if set.Contains(name) {
			state = "shown"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s; selected: %s\n", name, state, strings.Join(set.All(), ", "))
		return nil
	},
}
