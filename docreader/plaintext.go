package docreader

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/happyhackingspace/crftag/crfmodel"
)

// tokenPattern splits text into runs of letters/digits or single
// punctuation characters — a small stand-in for PlainTextDocumentReader-
// AndWriter.java's PTBTokenizer, which this module does not depend on.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+|[^\s\p{L}\p{N}]`)

// Tokenize splits text into word/punctuation tokens.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(text, -1)
}

// PlainTextReader reads untagged text for inference, the counterpart to
// ColumnReader for prediction input: PlainTextDocumentReaderAndWriter.java's
// role without its gold-tag handling, since inference input carries none.
type PlainTextReader struct {
	// SplitOnBlankLines, if true, starts a new document at each blank
	// line; otherwise the whole input is a single document.
	SplitOnBlankLines bool
}

// ReadDocuments tokenizes r into one or more crfmodel.Document values,
// each Token.Gold left empty.
func (pr PlainTextReader) ReadDocuments(r io.Reader) ([]crfmodel.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var docs []crfmodel.Document
	var cur crfmodel.Document

	flush := func() {
		if len(cur) > 0 {
			docs = append(docs, cur)
			cur = nil
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if pr.SplitOnBlankLines && strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		for _, w := range Tokenize(line) {
			cur = append(cur, crfmodel.Token{Word: w})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &crfmodel.ResourceError{Msg: "reading plain text document", Err: err}
	}
	flush()
	return docs, nil
}
