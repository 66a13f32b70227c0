package main

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/skysql-gw/dcbcore/config"
	"github.com/skysql-gw/dcbcore/dcb"
	"github.com/skysql-gw/dcbcore/internal/netutil"
	"github.com/skysql-gw/dcbcore/internal/poller"
	"github.com/skysql-gw/dcbcore/log"
	"github.com/skysql-gw/dcbcore/metrics"
	"github.com/skysql-gw/dcbcore/protocol"
	"github.com/skysql-gw/dcbcore/protocol/mysql"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start a demo listener wired to the mysql protocol module",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	pollMgr, err := poller.NewPollMgr(poller.RoundRobin, cfg.PollThreads)
	if err != nil {
		return err
	}
	mgr := dcb.NewManager(pollMgr)
	protocol.NewRegistry(mgr).Register("mysql", mysql.Ops)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return err
	}
	fd, err := netutil.GetFD(ln)
	if err != nil {
		return err
	}
	// dcb.Manager.Listen takes ownership of fd; the net.Listener wrapper
	// is only needed to bind and listen(2) via the standard library.
	if _, err := mgr.Listen(fd, "mysql"); err != nil {
		return err
	}

	prometheus.MustRegister(metrics.NewCollector())
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/diag", func(w http.ResponseWriter, r *http.Request) {
		snap := mgr.Diagnostics()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snap)
	})

	log.Infof("dcbctl: listening on %s, metrics on %s", cfg.ListenAddr, cfg.MetricsAddr)
	return http.ListenAndServe(cfg.MetricsAddr, nil)
}
