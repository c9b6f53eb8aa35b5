package commands

import (
	"encoding/json"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/searcher/executor"
	"github.com/spf13/cobra"
)

var (
	querySkip   int
	queryTake   int
	querySelect []string
)

var queryCmd = &cobra.Command{
	Use:   "query <expression>",
	Short: "Search the local index",
	Long: `Query parses an expression such as

  title:apple OR description:"red fruit" NOT colour:green

and prints the matching documents as JSON.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		eng, err := engine.Open(cmd.Context(), cfg, nil)
		if err != nil {
			return err
		}
		defer eng.Close()

		exec := executor.New(eng.Parser(), eng.SearchSession())
		res, err := exec.Execute(cmd.Context(), executor.Request{
			Collection: collection,
			Query:      strings.Join(args, " "),
			Skip:       querySkip,
			Take:       queryTake,
			Select:     querySelect,
		})
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	queryCmd.Flags().IntVar(&querySkip, "skip", 0, "number of ranked documents to skip")
	queryCmd.Flags().IntVar(&queryTake, "take", 10, "number of documents to return, 0 for all")
	queryCmd.Flags().StringSliceVar(&querySelect, "select", nil, "fields to return (default all)")
}
