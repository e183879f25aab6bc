package cmd

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validates a topology and prints it with defaults filled in",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadTopology()
		cfgYaml, err := yaml.Marshal(cfg)
		if err != nil {
			panic(err)
		}
		fmt.Println("Topology is valid")
		fmt.Println(string(cfgYaml))
		writePorts(os.Stdout, cfg)
	},
	GroupID: "dv",
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVarP(&topologyPath, "topology", "t", "net.yaml", "Path to the topology file")
}
