package cli

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/happyhackingspace/crftag/crfmodel"
	"github.com/spf13/cobra"
)

func (c *CLI) newEvaluateCommand() *cobra.Command {
	var dataFolder string
	var cvFolds int
	var window int
	var background string
	var goldColumn int
	var relabel string
	var gazetteerPath string

	cmd := &cobra.Command{
		Use:     "evaluate",
		Short:   "Evaluate tagging accuracy via cross-validation",
		Example: `  crftag evaluate --data-folder data --cv 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := readColumnFolder(dataFolder, goldColumn, relabel)
			if err != nil {
				return err
			}
			if len(docs) < cvFolds {
				return &crfmodel.ConfigError{Msg: fmt.Sprintf("only %d documents but %d folds requested", len(docs), cvFolds)}
			}
			slog.Info("evaluating", "folds", cvFolds, "documents", len(docs))

			factory := wordShapeFactory(gazetteerPath)
			flags := crfmodel.DefaultFlags()
			flags.Window = window
			flags.BackgroundSymbol = background

			start := time.Now()
			result, err := crossValidate(docs, factory, flags, cvFolds)
			if err != nil {
				return err
			}
			slog.Debug("evaluation completed", "duration", time.Since(start))

			fmt.Printf("Token accuracy: %.1f%% (%d/%d)\n", result.tokenAccuracy()*100, result.tokensCorrect, result.tokensTotal)
			fmt.Printf("Sequence accuracy: %.1f%% (%d/%d)\n", result.sequenceAccuracy()*100, result.sequencesCorrect, result.sequencesTotal)

			classes := result.classes()
			precision, recall, f1 := prfFromConfusion(result.confusion, classes)
			printConfusionMatrix(result.confusion, classes)
			printClassReport(result.confusion, classes, precision, recall, f1)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataFolder, "data-folder", "data", "Path to column-format annotation files")
	cmd.Flags().IntVar(&cvFolds, "cv", 5, "Number of cross-validation folds")
	cmd.Flags().IntVar(&window, "window", 2, "Clique window size")
	cmd.Flags().StringVar(&background, "background", "O", "Background label")
	cmd.Flags().IntVar(&goldColumn, "gold-column", -1, "Gold-class column index (negative counts from the end)")
	cmd.Flags().StringVar(&relabel, "relabel", "", "Relabel gold tags before evaluating: iob1, iob2, ioe1, ioe2, io, sbieo")
	cmd.Flags().StringVar(&gazetteerPath, "gazetteer", "", "Optional newline-delimited gazetteer file")
	return cmd
}

type cvResult struct {
	tokensCorrect, tokensTotal       int
	sequencesCorrect, sequencesTotal int
	confusion                        map[string]map[string]int
}

func (r cvResult) tokenAccuracy() float64 {
	if r.tokensTotal == 0 {
		return 0
	}
	return float64(r.tokensCorrect) / float64(r.tokensTotal)
}

func (r cvResult) sequenceAccuracy() float64 {
	if r.sequencesTotal == 0 {
		return 0
	}
	return float64(r.sequencesCorrect) / float64(r.sequencesTotal)
}

func (r cvResult) classes() []string {
	seen := map[string]bool{}
	for gold, row := range r.confusion {
		seen[gold] = true
		for pred := range row {
			seen[pred] = true
		}
	}
	classes := make([]string, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	return classes
}

func crossValidate(docs []crfmodel.Document, factory crfmodel.FeatureFactory, flags crfmodel.Flags, folds int) (cvResult, error) {
	result := cvResult{confusion: map[string]map[string]int{}}

	for fold := 0; fold < folds; fold++ {
		var train, test []crfmodel.Document
		for i, doc := range docs {
			if i%folds == fold {
				test = append(test, doc)
			} else {
				train = append(train, doc)
			}
		}
		if len(test) == 0 || len(train) == 0 {
			continue
		}

		cl, err := crfmodel.Train(train, factory, flags)
		if err != nil {
			return cvResult{}, fmt.Errorf("fold %d: %w", fold, err)
		}

		for _, doc := range test {
			predicted, err := cl.Predict(doc)
			if err != nil {
				return cvResult{}, fmt.Errorf("fold %d: %w", fold, err)
			}
			sequenceCorrect := true
			for i, tok := range doc {
				result.tokensTotal++
				if predicted[i] == tok.Gold {
					result.tokensCorrect++
				} else {
					sequenceCorrect = false
				}
				row, ok := result.confusion[tok.Gold]
				if !ok {
					row = map[string]int{}
					result.confusion[tok.Gold] = row
				}
				row[predicted[i]]++
			}
			result.sequencesTotal++
			if sequenceCorrect {
				result.sequencesCorrect++
			}
		}
	}
	return result, nil
}

// prfFromConfusion computes per-class precision/recall/f1 from a
// gold-row, predicted-column confusion map.
func prfFromConfusion(confusion map[string]map[string]int, classes []string) (precision, recall, f1 map[string]float64) {
	precision = make(map[string]float64, len(classes))
	recall = make(map[string]float64, len(classes))
	f1 = make(map[string]float64, len(classes))

	for _, cls := range classes {
		var truePos, predictedTotal, actualTotal int
		for _, gold := range classes {
			predictedTotal += confusion[gold][cls]
		}
		for _, pred := range confusion[cls] {
			actualTotal += pred
		}
		truePos = confusion[cls][cls]

		if predictedTotal > 0 {
			precision[cls] = float64(truePos) / float64(predictedTotal)
		}
		if actualTotal > 0 {
			recall[cls] = float64(truePos) / float64(actualTotal)
		}
		if precision[cls]+recall[cls] > 0 {
			f1[cls] = 2 * precision[cls] * recall[cls] / (precision[cls] + recall[cls])
		}
	}
	return precision, recall, f1
}

// printClassReport and printConfusionMatrix are adapted from the
// teacher's page-type evaluation report, generalized from a fixed
// page-type/form-type report to any tag set a column reader produces.
func printClassReport(confusion map[string]map[string]int, classes []string, precision, recall, f1 map[string]float64) {
	fmt.Printf("\nPer-class metrics:\n")
	fmt.Printf("%8s  %6s  %6s  %6s  %7s\n", "class", "prec", "recall", "f1", "support")
	for _, cls := range classes {
		support := 0
		for _, v := range confusion[cls] {
			support += v
		}
		fmt.Printf("%8s  %5.1f%%  %5.1f%%  %5.1f%%  %7d\n",
			cls, precision[cls]*100, recall[cls]*100, f1[cls]*100, support)
	}
}

func printConfusionMatrix(confusion map[string]map[string]int, classes []string) {
	if len(confusion) == 0 {
		return
	}

	sort.Slice(classes, func(i, j int) bool {
		ti, tj := 0, 0
		for _, v := range confusion[classes[i]] {
			ti += v
		}
		for _, v := range confusion[classes[j]] {
			tj += v
		}
		return ti > tj
	})

	fmt.Printf("\nConfusion matrix (rows=true, cols=predicted):\n")
	fmt.Printf("%8s", "")
	for _, c := range classes {
		fmt.Printf(" %5s", c)
	}
	fmt.Printf("  total  acc%%\n")

	for _, trueClass := range classes {
		fmt.Printf("%8s", trueClass)
		total := 0
		correct := 0
		for _, predClass := range classes {
			count := confusion[trueClass][predClass]
			total += count
			if trueClass == predClass {
				correct = count
			}
			if count == 0 {
				fmt.Printf("   %5s", ".")
			} else {
				fmt.Printf("   %3d", count)
			}
		}
		acc := 0.0
		if total > 0 {
			acc = float64(correct) / float64(total) * 100
		}
		fmt.Printf("  %5d %5.1f\n", total, acc)
	}
}
