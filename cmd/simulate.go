package cmd

import (
	"cmp"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/encodeous/distvec/sim"
	"github.com/spf13/cobra"
)

var (
	simDuration time.Duration
	simPings    []string
	simFail     []string
	simRestore  []string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Runs a topology on a virtual clock and prints the resulting routing tables",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadTopology()
		pairs, err := parsePairs(simPings)
		if err != nil {
			panic(err)
		}
		fails, err := parseLinkEvents(simFail, false)
		if err != nil {
			panic(err)
		}
		restores, err := parseLinkEvents(simRestore, true)
		if err != nil {
			panic(err)
		}
		events := append(fails, restores...)
		slices.SortStableFunc(events, func(a, b linkEvent) int {
			return cmp.Compare(a.At, b.At)
		})

		logger, closeLog, err := newLogger("sim")
		if err != nil {
			panic(err)
		}
		defer closeLog()

		s, err := sim.New(cfg, logger)
		if err != nil {
			panic(err)
		}
		for _, ev := range events {
			if ev.At > simDuration {
				break
			}
			s.Run(ev.At - s.Elapsed())
			if err := s.SetLink(ev.A, ev.B, ev.Up); err != nil {
				panic(err)
			}
		}
		s.Run(simDuration - s.Elapsed())

		attachments := cfg.Attachments()
		for _, r := range cfg.Routers {
			table, _ := s.Table(r.Id)
			fmt.Printf("\n%s at %s\n", r.Id, s.Elapsed())
			writeRoutes(os.Stdout, table, attachments[r.Id], s.Now())
		}

		if len(pairs) == 0 {
			return
		}
		traces := make([]*sim.Trace, 0, len(pairs))
		for _, p := range pairs {
			t, err := s.Ping(p.Src, p.Dst)
			if err != nil {
				panic(err)
			}
			traces = append(traces, t)
		}
		s.Run(pingWindow(cfg))
		fmt.Println()
		for _, t := range traces {
			fmt.Println(t)
		}
	},
	GroupID: "dv",
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVarP(&topologyPath, "topology", "t", "net.yaml", "Path to the topology file")
	simulateCmd.Flags().DurationVar(&simDuration, "for", time.Minute, "Virtual time to simulate")
	simulateCmd.Flags().StringSliceVar(&simPings, "ping", nil, "Ping between hosts once the simulation ends, as src:dst")
	simulateCmd.Flags().StringSliceVar(&simFail, "fail", nil, "Take a link down at a virtual time, as a:b@20s")
	simulateCmd.Flags().StringSliceVar(&simRestore, "restore", nil, "Bring a link back up at a virtual time, as a:b@40s")
}
