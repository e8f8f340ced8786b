// Package format converts record sets into export artifacts.
package format

import (
	"fmt"
	"io"
	"sort"
	"strconv"
)

// Record is one flat row of exported data.
type Record = map[string]any

// Writer serialises a record set to w.
type Writer func(w io.Writer, records []Record) error

// headerKeys returns the sorted key set of the first record. The key set of
// the first record defines the column layout for the whole export.
func headerKeys(records []Record) []string {
	if len(records) == 0 {
		return nil
	}
	keys := make([]string, 0, len(records[0]))
	for k := range records[0] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
