package featurefactory

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/happyhackingspace/crftag/crfmodel"
	"github.com/happyhackingspace/crftag/internal/htmlutil"
	"github.com/happyhackingspace/crftag/internal/textutil"
)

// HTMLFactory adapts the teacher's goquery-based form field extraction
// (internal/htmlutil + the old per-field classifier's ElemFeatures) to
// emit opaque feature strings for the CRF core instead of driving a
// bespoke field-type classifier: order 0 gets the element's own
// lexical/structural features, order 1 gets its surrounding-text
// features, matching the two clique orders a window-2 model uses.
type HTMLFactory struct {
	form   *goquery.Selection
	fields []*goquery.Selection
	order0 [][]string
	order1 [][]string
}

func (f *HTMLFactory) Name() string { return "html-form-field" }

// NewHTMLFactory extracts the annotatable fields of form and
// precomputes their feature strings, returning the factory alongside a
// crfmodel.Document whose tokens are positioned 1:1 with those fields
// (Word holds the field's name attribute, for readability; Gold is
// left empty for the caller to fill in from an external annotation
// source before training).
func NewHTMLFactory(form *goquery.Selection) (*HTMLFactory, crfmodel.Document) {
	fields := htmlutil.GetFieldsToAnnotate(form)
	textAround := htmlutil.GetTextAroundElems(form, fields)

	f := &HTMLFactory{
		form:   form,
		fields: fields,
		order0: make([][]string, len(fields)),
		order1: make([][]string, len(fields)),
	}
	doc := make(crfmodel.Document, len(fields))

	for i, elem := range fields {
		name, _ := elem.Attr("name")
		doc[i] = crfmodel.Token{Word: name}
		f.order0[i] = elemFeatureStrings(elem, form, i, len(fields))
		f.order1[i] = surroundingFeatureStrings(textAround, elem)
	}
	return f, doc
}

func (f *HTMLFactory) FeaturesAt(tokens crfmodel.Document, pos, window int) [][]string {
	out := make([][]string, window)
	if window == 0 {
		return out
	}
	out[0] = f.order0[pos]
	for o := 1; o < window; o++ {
		out[o] = f.order1[pos]
	}
	return out
}

// elemFeatureStrings flattens the same field-level signals the
// teacher's ElemFeatures collected (tag, name, value, css class,
// label text, input type, select options) into opaque "key=value" /
// "key:item" strings, plus position markers.
func elemFeatureStrings(elem, form *goquery.Selection, idx, total int) []string {
	var feats []string
	add := func(key, val string) {
		if val != "" {
			feats = append(feats, key+"="+val)
		}
	}
	addEach := func(key string, vals []string) {
		for _, v := range vals {
			if v != "" {
				feats = append(feats, key+":"+v)
			}
		}
	}

	tag := goquery.NodeName(elem)
	add("tag", tag)

	name := textutil.Normalize(attr(elem, "name"))
	addEach("name", textutil.Tokenize(name))
	addEach("name-ngram", textutil.Ngrams(name, 3, 5))

	value := textutil.Normalize(attr(elem, "value"))
	addEach("value-ngram", textutil.Ngrams(value, 5, 5))

	cssClass := textutil.Normalize(attr(elem, "class"))
	addEach("css-ngram", textutil.Ngrams(cssClass, 5, 5))

	elemID := textutil.Normalize(attr(elem, "id"))
	addEach("id-ngram", textutil.Ngrams(elemID, 4, 4))
	addEach("id", textutil.Tokenize(elemID))

	help := textutil.Normalize(attr(elem, "title") + " " + attr(elem, "placeholder"))
	addEach("help", textutil.Tokenize(help))

	if label := htmlutil.FindLabel(form, elem); label != nil {
		labelText := textutil.Normalize(label.Text())
		addEach("label", textutil.Tokenize(labelText))
		addEach("label-ngram", textutil.Ngrams(labelText, 3, 5))
	}

	if tag == "input" {
		tp, exists := elem.Attr("type")
		if !exists {
			tp = "text"
		}
		add("input-type", strings.ToLower(tp))
	}

	if tag == "select" {
		elem.Find("option").Each(func(_ int, opt *goquery.Selection) {
			optText := textutil.Normalize(opt.Text())
			addEach("option-text", textutil.Tokenize(optText))
		})
	}

	if idx == 0 {
		feats = append(feats, "is-first")
	}
	if idx == total-1 {
		feats = append(feats, "is-last")
	}
	feats = append(feats, "bias")
	return feats
}

// surroundingFeatureStrings flattens the text immediately before and
// after elem into order-1 feature strings.
func surroundingFeatureStrings(textAround htmlutil.TextAround, elem *goquery.Selection) []string {
	var feats []string
	addEach := func(key string, vals []string) {
		for _, v := range vals {
			if v != "" {
				feats = append(feats, key+":"+v)
			}
		}
	}

	before := textutil.Tokenize(textutil.Normalize(textAround.Before[elem]))
	if len(before) > 6 {
		before = before[len(before)-6:]
	}
	addEach("text-before", textutil.TokenNgrams(before, 1, 2))

	after := textutil.Tokenize(textutil.Normalize(textAround.After[elem]))
	if len(after) > 5 {
		after = after[:5]
	}
	addEach("text-after", textutil.TokenNgrams(after, 1, 2))

	feats = append(feats, "bias")
	return feats
}

func attr(elem *goquery.Selection, name string) string {
	v, _ := elem.Attr(name)
	return v
}
