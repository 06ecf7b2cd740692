// Package docreader holds the external-boundary helpers spec.md §1/§6
// explicitly carve out of the CRF core: a column (CoNLL-style) document
// reader/writer, a plain-text tokenizing reader for inference, and
// IOB/IOB2/IOE relabeling of gold tags. The CRF core never imports this
// package — it only ever sees the crfmodel.Document/Token values these
// readers produce.
package docreader

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/happyhackingspace/crftag/crfmodel"
)

var columnSplit = regexp.MustCompile(`\s+`)

// ColumnReader parses whitespace/tab-delimited column files: each
// non-blank line is one token, one designated column holds the gold
// class, and blank lines separate documents — the format
// CoNLLDocumentReaderAndWriter.java reads.
type ColumnReader struct {
	// GoldColumn is the zero-based index of the gold-class column.
	// Negative counts from the end (-1, the default zero value's
	// effective meaning once normalized, means "last column").
	GoldColumn int
	// Relabel, if non-empty, is applied to each document's gold tags
	// after reading — one of "iob1", "iob2", "ioe1", "ioe2", "io", or
	// "sbieo".
	Relabel string
}

// ReadDocuments splits r into documents on blank lines and parses each
// remaining line's columns into a crfmodel.Token.
func (cr ColumnReader) ReadDocuments(r io.Reader) ([]crfmodel.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var docs []crfmodel.Document
	var cur crfmodel.Document
	var golds []string

	flush := func() {
		if len(cur) == 0 {
			return
		}
		if cr.Relabel != "" {
			golds = relabel(golds, cr.Relabel)
			for i := range cur {
				cur[i].Gold = golds[i]
			}
		}
		docs = append(docs, cur)
		cur = nil
		golds = nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			flush()
			continue
		}
		bits := columnSplit.Split(line, -1)
		goldCol := cr.GoldColumn
		if goldCol == 0 {
			goldCol = -1
		}
		idx := goldCol
		if idx < 0 {
			idx = len(bits) + idx
		}
		if idx < 0 || idx >= len(bits) {
			return nil, &crfmodel.DataError{Msg: "column line has no gold column at configured index: " + line}
		}
		cur = append(cur, crfmodel.Token{Word: bits[0], Gold: bits[idx]})
		golds = append(golds, bits[idx])
	}
	if err := scanner.Err(); err != nil {
		return nil, &crfmodel.ResourceError{Msg: "reading column document", Err: err}
	}
	flush()
	return docs, nil
}

// ColumnWriter writes word/gold/guess rows one per line, with a blank
// line between documents — the counterpart to ColumnReader, and the
// format CoNLLDocumentReaderAndWriter.java's printAnswers emits.
type ColumnWriter struct{}

// WriteDocuments writes docs alongside their per-token predicted
// labels (guesses[i] must have the same length as docs[i]).
func (ColumnWriter) WriteDocuments(w io.Writer, docs []crfmodel.Document, guesses [][]string) error {
	bw := bufio.NewWriter(w)
	for i, doc := range docs {
		guess := guesses[i]
		for j, tok := range doc {
			g := ""
			if j < len(guess) {
				g = guess[j]
			}
			if _, err := bw.WriteString(tok.Word + "\t" + tok.Gold + "\t" + g + "\n"); err != nil {
				return &crfmodel.ResourceError{Msg: "writing column document", Err: err}
			}
		}
		if _, err := bw.WriteString("\n"); err != nil {
			return &crfmodel.ResourceError{Msg: "writing column document", Err: err}
		}
	}
	return bw.Flush()
}
