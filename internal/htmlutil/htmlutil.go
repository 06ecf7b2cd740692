// Package htmlutil provides HTML form and field extraction utilities.
package htmlutil

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// LoadHTMLString parses HTML string into a goquery Document.
func LoadHTMLString(htmlStr string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
}

// GetForms returns all <form> elements in the document.
func GetForms(doc *goquery.Document) []*goquery.Selection {
	var forms []*goquery.Selection
	doc.Find("form").Each(func(_ int, s *goquery.Selection) {
		forms = append(forms, s)
	})
	return forms
}

// GetVisibleFields returns visible form fields (textarea, select, button, non-hidden inputs).
func GetVisibleFields(form *goquery.Selection) []*goquery.Selection {
	var fields []*goquery.Selection
	form.Find("textarea, select, button, input").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "input" {
			tp, exists := s.Attr("type")
			if exists && strings.EqualFold(tp, "hidden") {
				return
			}
		}
		fields = append(fields, s)
	})
	return fields
}

// GetFieldsToAnnotate returns visible fields with non-empty name attribute.
func GetFieldsToAnnotate(form *goquery.Selection) []*goquery.Selection {
	visible := GetVisibleFields(form)
	var result []*goquery.Selection
	for _, f := range visible {
		if name, _ := f.Attr("name"); name != "" {
			result = append(result, f)
		}
	}
	return result
}

// FindLabel finds the <label> element associated with a form field.
// It checks for label[for=id] or ancestor <label>.
func FindLabel(form *goquery.Selection, elem *goquery.Selection) *goquery.Selection {
	// Try matching by for=id
	if id, exists := elem.Attr("id"); exists && id != "" {
		label := form.Find("label[for=\"" + id + "\"]")
		if label.Length() > 0 {
			return label.First()
		}
	}

	// Try ancestor <label>
	parent := elem.Closest("label")
	if parent.Length() > 0 {
		return parent
	}

	return nil
}
