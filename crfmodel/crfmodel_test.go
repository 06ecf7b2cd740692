package crfmodel

import (
	"bytes"
	"strings"
	"testing"

	"gopkg.in/vmihailenco/msgpack.v2"
)

// wordShapeStub is a minimal FeatureFactory for tests: order 0 emits
// the lowercased word, order 1 (if window > 1) emits a capitalization
// flag.
type wordShapeStub struct{}

func (wordShapeStub) Name() string { return "wordShapeStub" }

func (wordShapeStub) FeaturesAt(tokens Document, pos, window int) [][]string {
	out := make([][]string, window)
	word := tokens[pos].Word
	out[0] = []string{"w=" + strings.ToLower(word)}
	if window > 1 {
		if len(word) > 0 && word[0] >= 'A' && word[0] <= 'Z' {
			out[1] = []string{"cap"}
		} else {
			out[1] = []string{"lower"}
		}
	}
	return out
}

func toyDoc() Document {
	return Document{
		{Word: "John", Gold: "P"},
		{Word: "runs", Gold: "O"},
	}
}

func TestTrainThenPredictRecoversGoldLabels(t *testing.T) {
	flags := DefaultFlags()
	flags.Prior = "quadratic"
	flags.Sigma = 1.0
	flags.QNPasses = 200

	cl, err := Train([]Document{toyDoc()}, wordShapeStub{}, flags)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	preds, err := cl.Predict(toyDoc())
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	want := []string{"P", "O"}
	for i := range want {
		if preds[i] != want[i] {
			t.Errorf("preds[%d] = %s, want %s", i, preds[i], want[i])
		}
	}
}

func TestPredictOnEmptyDocumentReturnsEmptySlice(t *testing.T) {
	flags := DefaultFlags()
	cl, err := Train([]Document{toyDoc()}, wordShapeStub{}, flags)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	preds, err := cl.Predict(Document{})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(preds) != 0 {
		t.Errorf("expected empty slice, got %v", preds)
	}
}

func TestMarginalsSumToOnePerPosition(t *testing.T) {
	flags := DefaultFlags()
	cl, err := Train([]Document{toyDoc()}, wordShapeStub{}, flags)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	marg, err := cl.Marginals(toyDoc())
	if err != nil {
		t.Fatalf("Marginals: %v", err)
	}
	for pos, row := range marg {
		var sum float64
		for _, p := range row {
			sum += p
		}
		if sum < 0.999 || sum > 1.001 {
			t.Errorf("position %d marginals sum to %v, want ~1", pos, sum)
		}
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	flags := DefaultFlags()
	cl, err := Train([]Document{toyDoc()}, wordShapeStub{}, flags)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	var buf bytes.Buffer
	if err := cl.Model.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	loaded, err := Deserialize(&buf)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if loaded.NumClasses != cl.Model.NumClasses {
		t.Errorf("NumClasses = %d, want %d", loaded.NumClasses, cl.Model.NumClasses)
	}
	if loaded.Window() != cl.Model.Window() {
		t.Errorf("Window = %d, want %d", loaded.Window(), cl.Model.Window())
	}
	if loaded.FactoryName != cl.Model.FactoryName {
		t.Errorf("FactoryName = %q, want %q", loaded.FactoryName, cl.Model.FactoryName)
	}
	if len(loaded.Weights) != len(cl.Model.Weights) {
		t.Errorf("Weights row count = %d, want %d", len(loaded.Weights), len(cl.Model.Weights))
	}

	loadedClassifier := &Classifier{Model: loaded, Factory: wordShapeStub{}}
	preds, err := loadedClassifier.Predict(toyDoc())
	if err != nil {
		t.Fatalf("Predict after round-trip: %v", err)
	}
	if preds[0] != "P" || preds[1] != "O" {
		t.Errorf("round-tripped model predicts %v, want [P O]", preds)
	}
}

func TestDeserializeRejectsWrongVersion(t *testing.T) {
	bad := record{Version: FormatVersion + 1}
	data, err := msgpack.Marshal(bad)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	_, err = Deserialize(bytes.NewReader(data))
	if err == nil {
		t.Fatal("expected FormatError for wrong version")
	}
	if _, ok := err.(*FormatError); !ok {
		t.Errorf("expected *FormatError, got %T", err)
	}
}

func TestFeaturePruningDropsLowRangeFeatures(t *testing.T) {
	flags := DefaultFlags()
	flags.NumTimesPruneFeatures = 1
	flags.FeatureDiffThresh = 1e9 // threshold above any achievable range: prunes everything
	cl, err := Train([]Document{toyDoc()}, wordShapeStub{}, flags)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if cl.Model.NumFeatures() != 0 {
		t.Errorf("expected all features pruned, got %d remaining", cl.Model.NumFeatures())
	}
}

func TestDumpTextProducesNonEmptyOutput(t *testing.T) {
	flags := DefaultFlags()
	cl, err := Train([]Document{toyDoc()}, wordShapeStub{}, flags)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	var buf bytes.Buffer
	if err := cl.Model.DumpText(&buf); err != nil {
		t.Fatalf("DumpText: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("expected non-empty text dump")
	}
}
