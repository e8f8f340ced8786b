package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestComputeDiffNewRecord(t *testing.T) {
	diff := ComputeDiff(nil, strPtr(`{"a":1}`))
	assert.Equal(t, []string{"(new record)"}, diff.Added)
	assert.Empty(t, diff.Removed)
	assert.Empty(t, diff.Changed)
}

func TestComputeDiffDeletedRecord(t *testing.T) {
	diff := ComputeDiff(strPtr(`{"a":1}`), nil)
	assert.Equal(t, []string{"(deleted record)"}, diff.Removed)
	assert.Empty(t, diff.Added)
	assert.Empty(t, diff.Changed)
}

func TestComputeDiffBothAbsent(t *testing.T) {
	diff := ComputeDiff(nil, nil)
	assert.True(t, diff.Empty())
}

func TestComputeDiffChangedKeysOnly(t *testing.T) {
	diff := ComputeDiff(strPtr(`{"a":1,"b":2}`), strPtr(`{"a":2,"b":2}`))
	assert.Equal(t, []string{"a"}, diff.Changed)
	assert.Empty(t, diff.Added)
	assert.Empty(t, diff.Removed)
}

func TestComputeDiffAddedAndRemovedKeys(t *testing.T) {
	diff := ComputeDiff(strPtr(`{"a":1,"b":2}`), strPtr(`{"b":2,"c":3}`))
	assert.Equal(t, []string{"c"}, diff.Added)
	assert.Equal(t, []string{"a"}, diff.Removed)
	assert.Empty(t, diff.Changed)
}

func TestComputeDiffNestedValueChange(t *testing.T) {
	diff := ComputeDiff(strPtr(`{"meta":{"x":1}}`), strPtr(`{"meta":{"x":2}}`))
	assert.Equal(t, []string{"meta"}, diff.Changed)
}

func TestComputeDiffRawContentFallback(t *testing.T) {
	diff := ComputeDiff(strPtr(`not json`), strPtr(`{"a":1}`))
	assert.Equal(t, []string{"(raw content)"}, diff.Changed)

	diff = ComputeDiff(strPtr(`not json`), strPtr(`not json`))
	assert.True(t, diff.Empty())
}
