package audit

import (
	"encoding/json"
	"sort"
)

// Markers used when a side of the diff is absent or unparseable.
const (
	markerNewRecord     = "(new record)"
	markerDeletedRecord = "(deleted record)"
	markerRawContent    = "(raw content)"
)

// ComputeDiff compares two serialized snapshots key by key. Both absent
// yields an empty diff; a single side present yields the new/deleted record
// marker. When either side fails to parse as a structured record, a single
// raw-content changed marker is emitted if the raw values differ.
func ComputeDiff(before, after *string) Diff {
	var diff Diff
	switch {
	case before == nil && after == nil:
		return diff
	case before == nil:
		diff.Added = []string{markerNewRecord}
		return diff
	case after == nil:
		diff.Removed = []string{markerDeletedRecord}
		return diff
	}

	beforeMap, beforeOK := parseRecord(*before)
	afterMap, afterOK := parseRecord(*after)
	if !beforeOK || !afterOK {
		if *before != *after {
			diff.Changed = []string{markerRawContent}
		}
		return diff
	}

	for _, key := range sortedKeys(beforeMap, afterMap) {
		bv, inBefore := beforeMap[key]
		av, inAfter := afterMap[key]
		switch {
		case !inBefore:
			diff.Added = append(diff.Added, key)
		case !inAfter:
			diff.Removed = append(diff.Removed, key)
		case serialize(bv) != serialize(av):
			diff.Changed = append(diff.Changed, key)
		}
	}
	return diff
}

func parseRecord(raw string) (map[string]any, bool) {
	var record map[string]any
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, false
	}
	return record, true
}

func serialize(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func sortedKeys(maps ...map[string]any) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, m := range maps {
		for k := range m {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}
