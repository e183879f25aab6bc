package cmd

import (
	"log"
	"net/http"
	"os"

	_ "github.com/encodeous/distvec/perf"
	"github.com/spf13/cobra"
)

var (
	verbose   bool
	logPath   string
	debugAddr string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "distvec",
	Short: "Distance-vector routing simulator",
	Long: `distvec runs a distance-vector routing protocol over a described topology of routers, links and hosts.
Topologies can be replayed on a virtual clock or run live with one event loop per router.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debugAddr != "" {
			go func() {
				log.Println(http.ListenAndServe(debugAddr, nil))
			}()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "dv",
		Title: "Routing Commands",
	})
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVar(&logPath, "log-path", "", "Also write logs to this file")
	rootCmd.PersistentFlags().StringVar(&debugAddr, "debug-addr", "", "Serve /debug/metrics and /debug/vars on this address")
}
