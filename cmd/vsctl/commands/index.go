package commands

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/ingestion"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index [file]",
	Short: "Index documents from a JSON file into the local index",
	Long: `Index reads documents (a JSON array or one object per line, stdin
when no file or "-" is given), stores them and commits them to the local
index in one session.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		in, err := openInput(name)
		if err != nil {
			return err
		}
		defer in.Close()
		docs, err := ingestion.DecodeDocuments(in)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return fmt.Errorf("no documents to index")
		}

		eng, err := engine.Open(cmd.Context(), cfg, nil)
		if err != nil {
			return err
		}
		defer eng.Close()

		ids, err := eng.Indexer().IndexDocuments(cmd.Context(), collection, docs)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "indexed %d documents into %s (ids %d..%d)\n",
			len(ids), collection, ids[0], ids[len(ids)-1])
		return nil
	},
}
