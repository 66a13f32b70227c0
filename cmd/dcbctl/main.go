// Command dcbctl is a demo binary exercising the DCB core: a listener
// accepting client connections and a Prometheus/diagnostics HTTP
// surface, grounded on FeatureBaseDB's cobra+viper server-binary shape.
// It does not open backend connections.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skysql-gw/dcbcore/log"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "dcbctl",
		Short: "Run and inspect a DCB-core-backed proxy demo",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a viper config file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newDiagCmd())

	if err := root.Execute(); err != nil {
		log.Errorf("dcbctl: %v", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
