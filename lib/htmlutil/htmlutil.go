package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText collapses inner whitespace and strips non-printable runes,
// the usual treatment for text pulled out of server-rendered markup.
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = strings.Trim(s, " \t\n")
	s = innerWhitespace.ReplaceAllString(s, " ")
	return s
}

// CellText reads the text of the i-th cell of a selection of cells.
// An out-of-range index yields "" rather than an error, the upstream
// document decides how many cells a row actually has.
func CellText(cells *goquery.Selection, i int) string {
	if i >= cells.Length() {
		return ""
	}
	return CleanText(cells.Eq(i).Text())
}

// KeyValueRows walks <tr> rows where the first <th> is a label and the
// <td> is its value, producing a label -> value mapping.
func KeyValueRows(rows *goquery.Selection) map[string]string {
	data := map[string]string{}
	rows.Each(func(_ int, tr *goquery.Selection) {
		key := CleanText(tr.Find("th").Text())
		if key == "" {
			return
		}
		data[key] = CleanText(tr.Find("td").Text())
	})
	return data
}

type Anchor struct {
	Name string
	Href string
}

// FirstAnchor returns the first <a> inside the selection, or a zero
// Anchor when there is none.
func FirstAnchor(sel *goquery.Selection) Anchor {
	link := sel.Find("a").First()
	if link.Length() == 0 {
		return Anchor{}
	}
	return Anchor{
		Name: CleanText(link.Text()),
		Href: link.AttrOr("href", ""),
	}
}
