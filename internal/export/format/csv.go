package format

import (
	"encoding/csv"
	"io"
)

// WriteCSV emits a header row from the first record's key set, then one row
// per record. encoding/csv quotes fields containing commas or quotes and
// doubles embedded quotes.
func WriteCSV(w io.Writer, records []Record) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	keys := headerKeys(records)
	if keys == nil {
		return writer.Error()
	}
	if err := writer.Write(keys); err != nil {
		return err
	}
	row := make([]string, len(keys))
	for _, record := range records {
		for i, key := range keys {
			row[i] = stringify(record[key])
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
