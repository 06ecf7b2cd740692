package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/happyhackingspace/crftag/crfmodel"
	"github.com/happyhackingspace/crftag/docreader"
	"github.com/happyhackingspace/crftag/featurefactory"
	"github.com/spf13/cobra"
)

func (c *CLI) newTrainCommand() *cobra.Command {
	var dataFolder string
	var window int
	var background string
	var goldColumn int
	var relabel string
	var sigma float64
	var optimizer string
	var gazetteerPath string

	cmd := &cobra.Command{
		Use:   "train <modelfile>",
		Short: "Train a CRF model on column-format annotated documents",
		Args:  cobra.ExactArgs(1),
		Example: `  crftag train model.bin --data-folder data
  crftag train model.bin --data-folder data --relabel iob2 -v`,
		RunE: func(cmd *cobra.Command, args []string) error {
			modelPath := args[0]
			docs, err := readColumnFolder(dataFolder, goldColumn, relabel)
			if err != nil {
				return err
			}
			slog.Info("training classifier", "data-folder", dataFolder, "documents", len(docs), "output", modelPath)

			factory := wordShapeFactory(gazetteerPath)
			flags := crfmodel.DefaultFlags()
			flags.Window = window
			flags.BackgroundSymbol = background
			flags.Sigma = sigma
			flags.Optimizer = optimizerFromFlag(optimizer)

			start := time.Now()
			cl, err := crfmodel.Train(docs, factory, flags)
			if err != nil {
				return err
			}
			slog.Debug("training completed", "duration", time.Since(start), "features", cl.Model.NumFeatures())

			if err := cl.Model.Save(modelPath); err != nil {
				return err
			}
			slog.Info("model saved", "path", modelPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataFolder, "data-folder", "data", "Path to column-format annotation files")
	cmd.Flags().IntVar(&window, "window", 2, "Clique window size")
	cmd.Flags().StringVar(&background, "background", "O", "Background label")
	cmd.Flags().IntVar(&goldColumn, "gold-column", -1, "Gold-class column index (negative counts from the end)")
	cmd.Flags().StringVar(&relabel, "relabel", "", "Relabel gold tags before training: iob1, iob2, ioe1, ioe2, io, sbieo")
	cmd.Flags().Float64Var(&sigma, "sigma", 1.0, "Quadratic prior sigma")
	cmd.Flags().StringVar(&optimizer, "optimizer", "qn", "Optimizer: qn, sgd, sgd-to-qn")
	cmd.Flags().StringVar(&gazetteerPath, "gazetteer", "", "Optional newline-delimited gazetteer file")
	return cmd
}

func readColumnFolder(folder string, goldColumn int, relabel string) ([]crfmodel.Document, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("read data folder: %w", err)
	}
	cr := docreader.ColumnReader{GoldColumn: goldColumn, Relabel: relabel}

	var docs []crfmodel.Document
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(folder, e.Name())
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		fileDocs, err := cr.ReadDocuments(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		docs = append(docs, fileDocs...)
	}
	return docs, nil
}

func wordShapeFactory(gazetteerPath string) featurefactory.WordShapeFactory {
	f := featurefactory.WordShapeFactory{}
	if gazetteerPath == "" {
		return f
	}
	data, err := os.ReadFile(gazetteerPath)
	if err != nil {
		slog.Warn("could not read gazetteer file, continuing without it", "path", gazetteerPath, "err", err)
		return f
	}
	gaz := map[string]bool{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.ToLower(strings.TrimSpace(line))
		if line != "" {
			gaz[line] = true
		}
	}
	f.Gazetteer = gaz
	return f
}

func optimizerFromFlag(s string) crfmodel.OptimizerType {
	switch s {
	case "sgd":
		return crfmodel.ScaledSGD
	case "sgd-to-qn":
		return crfmodel.SGDToQN
	default:
		return crfmodel.QN
	}
}
