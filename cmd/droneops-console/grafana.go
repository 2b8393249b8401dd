package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"droneops-console/internal/grafana"
	"droneops-console/internal/profile"
)

var (
	grafanaOut string
	grafanaUID string
)

var grafanaCmd = &cobra.Command{
	Use:   "grafana",
	Short: "Render a Grafana dashboard for recorded events",
	Long: "grafana writes dashboard JSON that charts the system events and region device counts " +
		"recorded into GreptimeDB.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		p, err := profile.Load(cfg.Profile)
		if err != nil {
			return err
		}
		paths, err := grafana.Render(grafanaOut, grafana.Options{Title: p.Title + " events", DatasourceUID: grafanaUID})
		if err != nil {
			return err
		}
		for _, path := range paths {
			fmt.Fprintln(cmd.OutOrStdout(), path)
		}
		return nil
	},
}

func init() {
	grafanaCmd.Flags().StringVar(&grafanaOut, "out", "build", "Output directory")
	grafanaCmd.Flags().StringVar(&grafanaUID, "datasource-uid", "", "Grafana datasource UID (default $"+grafana.DatasourceEnv+")")
	rootCmd.AddCommand(grafanaCmd)
}
