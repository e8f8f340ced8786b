package format

import (
	"encoding/json"
	"io"
)

// WriteJSON emits a pretty-printed array of records. Empty input yields the
// literal empty array rather than null.
func WriteJSON(w io.Writer, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
