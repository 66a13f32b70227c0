package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/skysql-gw/dcbcore/config"
)

func newDiagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diag",
		Short: "Fetch the DCB registry diagnostics snapshot from a running dcbctl serve instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiag()
		},
	}
}

func runDiag() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	resp, err := http.Get("http://" + cfg.MetricsAddr + "/diag")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var snap map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return err
	}
	fmt.Printf("total: %v\n", snap["Total"])
	if byState, ok := snap["ByState"].(map[string]interface{}); ok {
		for state, count := range byState {
			fmt.Printf("  %s: %v\n", state, count)
		}
	}
	return nil
}
