package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/happyhackingspace/crftag/crfmodel"
	"github.com/happyhackingspace/crftag/docreader"
	"github.com/spf13/cobra"
)

func (c *CLI) newLabelCommand() *cobra.Command {
	var gazetteerPath string
	var splitOnBlankLines bool

	cmd := &cobra.Command{
		Use:   "label <modelfile> [textfile]",
		Short: "Tag a plain-text document with a trained model",
		Args:  cobra.RangeArgs(1, 2),
		Example: `  crftag label model.bin input.txt
  cat input.txt | crftag label model.bin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := loadClassifier(args[0], gazetteerPath)
			if err != nil {
				return err
			}

			var r = os.Stdin
			if len(args) == 2 {
				f, err := os.Open(args[1])
				if err != nil {
					return fmt.Errorf("open %s: %w", args[1], err)
				}
				defer func() { _ = f.Close() }()
				r = f
			}

			docs, err := (docreader.PlainTextReader{SplitOnBlankLines: splitOnBlankLines}).ReadDocuments(r)
			if err != nil {
				return err
			}

			start := time.Now()
			for _, doc := range docs {
				labels, err := cl.Predict(doc)
				if err != nil {
					return err
				}
				for i, tok := range doc {
					fmt.Printf("%s\t%s\n", tok.Word, labels[i])
				}
				fmt.Println()
			}
			slog.Debug("labeling completed", "documents", len(docs), "duration", time.Since(start))
			return nil
		},
	}

	cmd.Flags().StringVar(&gazetteerPath, "gazetteer", "", "Optional newline-delimited gazetteer file (must match training)")
	cmd.Flags().BoolVar(&splitOnBlankLines, "split-on-blank-lines", false, "Treat each blank-line-separated block as its own document")
	return cmd
}

func loadClassifier(modelPath, gazetteerPath string) (*crfmodel.Classifier, error) {
	model, err := crfmodel.Load(modelPath)
	if err != nil {
		return nil, err
	}
	if model.FactoryName != "wordshape" {
		return nil, &crfmodel.ConfigError{Msg: fmt.Sprintf("model was trained with feature factory %q, which the CLI cannot reconstruct", model.FactoryName)}
	}
	return &crfmodel.Classifier{Model: model, Factory: wordShapeFactory(gazetteerPath)}, nil
}
