package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/encodeous/distvec/node"
	"github.com/spf13/cobra"
)

var (
	runPings    []string
	runInterval time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs every router of a topology live, one event loop each",
	Long:  `This runs the topology in real time until interrupted. Links are in-memory and honour the configured latencies.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadTopology()
		pairs, err := parsePairs(runPings)
		if err != nil {
			panic(err)
		}
		logger, closeLog, err := newLogger("net")
		if err != nil {
			panic(err)
		}
		defer closeLog()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		n, err := node.Start(ctx, cfg, logger)
		if err != nil {
			panic(err)
		}
		logger.Info("running. To gracefully exit, send SIGINT or Ctrl+C.")

		ticker := time.NewTicker(runInterval)
		defer ticker.Stop()
	loop:
		for {
			select {
			case <-ticker.C:
				for _, p := range pairs {
					if _, err := n.Pinger.Ping(p.Src, p.Dst); err != nil {
						logger.Error("ping failed", "src", p.Src, "dst", p.Dst, "err", err)
					}
				}
			case <-n.Done():
				break loop
			}
		}
		n.Stop()
		if len(pairs) != 0 {
			logger.Info("probe summary", "result", n.Pinger.Result())
		}
	},
	GroupID: "dv",
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&topologyPath, "topology", "t", "net.yaml", "Path to the topology file")
	runCmd.Flags().StringSliceVar(&runPings, "ping", nil, "Ping between hosts every interval, as src:dst")
	runCmd.Flags().DurationVar(&runInterval, "interval", time.Second, "Time between pings")
}
