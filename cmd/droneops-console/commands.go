package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"droneops-console/internal/profile"
	"droneops-console/internal/slash"
)

var commandsCmd = &cobra.Command{
	Use:   "commands [filter]",
	Short: "List the slash commands of a mission profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		p, err := profile.Load(cfg.Profile)
		if err != nil {
			return err
		}
		filter := ""
		if len(args) == 1 {
			filter = args[0]
		}
		out := cmd.OutOrStdout()
		for _, c := range slash.NewTable(p).Suggest(filter) {
			fmt.Fprintf(out, "%-28s %s\n", c.Usage(), c.Description)
		}
		return nil
	},
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the built-in mission profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, name := range profile.Builtin() {
			p, err := profile.Load(name)
			if err != nil {
				return err
			}
			marker := " "
			if name == profile.Default {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %-14s %s\n", marker, p.Name, p.Title)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}
