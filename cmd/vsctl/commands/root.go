package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	collection string
)

var rootCmd = &cobra.Command{
	Use:   "vsctl",
	Short: "Vector search command line",
	Long: `vsctl works against the index directory and document store named in
the configuration file, or publishes documents for a running indexer.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Setup(logLevel, "text")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults plus VS_* overrides when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&collection, "collection", "", "collection name")
	_ = rootCmd.MarkPersistentFlagRequired("collection")

	rootCmd.AddCommand(indexCmd, queryCmd, publishCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// openInput returns stdin for "" or "-", the named file otherwise.
func openInput(name string) (io.ReadCloser, error) {
	if name == "" || name == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	return f, nil
}
