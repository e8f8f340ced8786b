package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequiresApproval(t *testing.T) {
	sensitive := []string{"users"}

	assert.True(t, RequiresApproval("users", 10, sensitive, 1000))
	assert.True(t, RequiresApproval("pages", 1001, sensitive, 1000))
	assert.False(t, RequiresApproval("pages", 1000, sensitive, 1000))
	assert.False(t, RequiresApproval("pages", 10, sensitive, 1000))
	assert.False(t, RequiresApproval("media", 0, nil, 0))
}

func TestFormatContentType(t *testing.T) {
	assert.Equal(t, "text/csv", FormatCSV.ContentType())
	assert.Equal(t, "application/json", FormatJSON.ContentType())
	assert.Equal(t, "application/xml", FormatXML.ContentType())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", FormatXLSX.ContentType())
}

func TestKnownFormat(t *testing.T) {
	assert.True(t, KnownFormat(FormatCSV))
	assert.False(t, KnownFormat(Format("pdf")))
}
