package commands

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/kafka"
	"github.com/spf13/cobra"
)

var publishBatch int

var publishCmd = &cobra.Command{
	Use:   "publish [file]",
	Short: "Publish documents to the ingest topic for a running indexer",
	Args:  cobra.MaximumNArgs(1),
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

		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
		defer producer.Close()
		pub := publisher.New(producer)

		sent := 0
		for start := 0; start < len(docs); start += publishBatch {
			end := min(start+publishBatch, len(docs))
			batch := docs[start:end]
			if err := validator.ValidateIngest(collection, batch); err != nil {
				return fmt.Errorf("documents %d..%d: %w", start, end-1, err)
			}
			resp, err := pub.Ingest(cmd.Context(), collection, batch)
			if err != nil {
				return err
			}
			sent += resp.Accepted
		}
		fmt.Fprintf(cmd.OutOrStdout(), "published %d documents to %s on %s\n",
			sent, collection, cfg.Kafka.Topics.DocumentIngest)
		return nil
	},
}

func init() {
	publishCmd.Flags().IntVar(&publishBatch, "batch", 500, "documents per kafka write")
}
