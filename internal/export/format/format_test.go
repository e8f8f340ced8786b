package format

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSVQuoting(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []Record{
		{"name": "Doe, John", "note": `Say "Hi"`},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "name,note", lines[0])
	assert.Equal(t, `"Doe, John","Say ""Hi"""`, lines[1])
}

func TestWriteCSVHeaderFromFirstRecord(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []Record{
		{"b": 2, "a": 1},
		{"a": 3, "b": 4, "c": 5},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "a,b", lines[0])
	assert.Equal(t, "3,4", lines[2])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Empty(t, buf.String())
}

func TestWriteJSONPrettyArray(t *testing.T) {
	var buf bytes.Buffer
	err := WriteJSON(&buf, []Record{{"id": 1, "title": "hello"}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "\n  ")

	var out []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "hello", out[0]["title"])
}

func TestWriteJSONEmptyArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]", buf.String())
}

func TestWriteXMLEscaping(t *testing.T) {
	var buf bytes.Buffer
	err := WriteXML(&buf, []Record{
		{"title": `a & b < c > "d"`},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "<records>")
	assert.Contains(t, out, "&amp;")
	assert.Contains(t, out, "&lt;")
	assert.Contains(t, out, "&gt;")
	assert.Contains(t, out, "&#34;")
	assert.NotContains(t, out, `"d"`)
}

func TestWriteXMLElementNames(t *testing.T) {
	var buf bytes.Buffer
	err := WriteXML(&buf, []Record{
		{"created at": "now", "1st": "x"},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "<created_at>")
	assert.Contains(t, buf.String(), "<_1st>")
}

func TestWriteXLSXRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	err := WriteXLSX(&buf, []Record{
		{"first_name": "Ada", "role": "admin"},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Export")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"First Name", "Role"}, rows[0])
	assert.Equal(t, []string{"Ada", "admin"}, rows[1])
}
