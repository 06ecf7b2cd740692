package docreader

import (
	"strings"
	"testing"
)

func TestColumnReaderSplitsOnBlankLines(t *testing.T) {
	input := "John B-PERS\nSmith I-PERS\nruns O\n\nMary B-PERS\n"
	docs, err := ColumnReader{}.ReadDocuments(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if len(docs[0]) != 3 || len(docs[1]) != 1 {
		t.Fatalf("unexpected document sizes: %v / %v", len(docs[0]), len(docs[1]))
	}
	if docs[0][0].Word != "John" || docs[0][0].Gold != "B-PERS" {
		t.Errorf("unexpected first token: %+v", docs[0][0])
	}
}

func TestColumnReaderHonorsGoldColumnIndex(t *testing.T) {
	input := "John NNP B-PERS\nSmith NNP I-PERS\n"
	cr := ColumnReader{GoldColumn: 1}
	docs, err := cr.ReadDocuments(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadDocuments: %v", err)
	}
	if docs[0][0].Gold != "NNP" {
		t.Errorf("expected gold column 1 (NNP), got %q", docs[0][0].Gold)
	}
}

func TestColumnWriterRoundTripsWords(t *testing.T) {
	docs, _ := ColumnReader{}.ReadDocuments(strings.NewReader("John B-PERS\nruns O\n"))
	var buf strings.Builder
	err := ColumnWriter{}.WriteDocuments(&buf, docs, [][]string{{"B-PERS", "O"}})
	if err != nil {
		t.Fatalf("WriteDocuments: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "John\tB-PERS\tB-PERS") {
		t.Errorf("missing expected row in output: %q", out)
	}
}

func TestToIOB2AlwaysMarksEntityStart(t *testing.T) {
	in := []string{"O", "I-PERS", "I-PERS", "O"}
	got := ToIOB2(in)
	want := []string{"O", "B-PERS", "I-PERS", "O"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ToIOB2(%v)[%d] = %q, want %q", in, i, got[i], want[i])
		}
	}
}

func TestToIOEAlwaysMarksEntityEnd(t *testing.T) {
	in := []string{"O", "I-PERS", "I-PERS", "O"}
	got := ToIOE(in)
	want := []string{"O", "I-PERS", "E-PERS", "O"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ToIOE(%v)[%d] = %q, want %q", in, i, got[i], want[i])
		}
	}
}

func TestToIOB1OnlyMarksAdjacentEntities(t *testing.T) {
	// Two distinct PERS entities directly adjacent: the first entity's
	// start collapses to "I-" (nothing before it to disambiguate from),
	// but the second entity's start must stay "B-" since it touches a
	// same-type entity with no separating "O".
	in := []string{"B-PERS", "I-PERS", "B-PERS", "I-PERS"}
	got := ToIOB1(in)
	want := []string{"I-PERS", "I-PERS", "B-PERS", "I-PERS"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ToIOB1(%v)[%d] = %q, want %q", in, i, got[i], want[i])
		}
	}
}

func TestTokenizeSplitsWordsAndPunctuation(t *testing.T) {
	got := Tokenize("Hello, world!")
	want := []string{"Hello", ",", "world", "!"}
	if len(got) != len(want) {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPlainTextReaderSplitsOnBlankLines(t *testing.T) {
	pr := PlainTextReader{SplitOnBlankLines: true}
	docs, err := pr.ReadDocuments(strings.NewReader("hello world\n\nfoo bar\n"))
	if err != nil {
		t.Fatalf("ReadDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0][0].Word != "hello" || docs[0][0].Gold != "" {
		t.Errorf("unexpected token: %+v", docs[0][0])
	}
}
