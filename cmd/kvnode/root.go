package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"gitee.com/kvnode/kvnode/pkg/util/log"
)

var verbosity int
var jsonLogs bool

var rootCmd = &cobra.Command{
	Use:   "kvnode",
	Short: "a storage node exercising the Bulk Ingest Engine and the local read path",
	Long: `
kvnode is a single-process storage node: it can bulk-load a key range
into a write-optimized staging engine and plan the ranges its output
SST files should be split along (bulk-load), or serve lease-based
local reads against a region it has been told about (serve).
`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.InfoLevel
		if verbosity > 0 {
			level = zerolog.DebugLevel
		}
		log.Init(log.Config{Level: level, JSONOutput: jsonLogs, Verbosity: verbosity})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&verbosity, "verbosity", "v", 0, "debug log verbosity")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit logs as JSON instead of console format")
	rootCmd.AddCommand(bulkLoadCmd)
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the kvnode command tree.
func Execute() error {
	return rootCmd.Execute()
}
