package format

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// WriteXML emits a records document with one element per record and one child
// element per field. Text content is escaped for &, <, > and quotes.
func WriteXML(w io.Writer, records []Record) error {
	if _, err := io.WriteString(w, xml.Header+"<records>\n"); err != nil {
		return err
	}
	keys := headerKeys(records)
	var buf strings.Builder
	for _, record := range records {
		buf.Reset()
		buf.WriteString("  <record>\n")
		for _, key := range keys {
			name := elementName(key)
			buf.WriteString("    <")
			buf.WriteString(name)
			buf.WriteString(">")
			var escaped strings.Builder
			if err := xml.EscapeText(&escaped, []byte(stringify(record[key]))); err != nil {
				return err
			}
			buf.WriteString(escaped.String())
			buf.WriteString("</")
			buf.WriteString(name)
			buf.WriteString(">\n")
		}
		buf.WriteString("  </record>\n")
		if _, err := io.WriteString(w, buf.String()); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "</records>\n")
	return err
}

// elementName maps arbitrary field keys onto valid XML element names.
func elementName(key string) string {
	var b strings.Builder
	for _, r := range key {
		ok := r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
		if ok {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "field"
	}
	name := b.String()
	if unicode.IsDigit(rune(name[0])) {
		name = fmt.Sprintf("_%s", name)
	}
	return name
}
