package dataframe

import (
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/cespare/xxhash/v2"
	"github.com/paveg/cltv/internal/series"
)

const (
	keySeparator = "\x1f"
	nullMarker   = "\x00"
	valueMarker  = "\x01"
)

// keyIndex maps row keys to the rows that carry them. Keys are bucketed by
// their xxhash and kept in first-seen order.
type keyIndex struct {
	buckets map[uint64][]int
	entries []indexEntry
}

type indexEntry struct {
	key   string
	parts []string
	rows  []int
}

func newKeyIndex(estimatedSize int) *keyIndex {
	return &keyIndex{buckets: make(map[uint64][]int, estimatedSize)}
}

// add records row under key and reports whether the key was new
func (ix *keyIndex) add(key string, parts []string, row int) bool {
	hash := xxhash.Sum64String(key)
	for _, id := range ix.buckets[hash] {
		if ix.entries[id].key == key {
			ix.entries[id].rows = append(ix.entries[id].rows, row)
			return false
		}
	}
	ix.buckets[hash] = append(ix.buckets[hash], len(ix.entries))
	ix.entries = append(ix.entries, indexEntry{key: key, parts: parts, rows: []int{row}})
	return true
}

// rowKey builds the composite key of row across arrs. hasNull is true when
// any part of the key is null.
func rowKey(arrs []arrow.Array, row int) (key string, parts []string, hasNull bool) {
	var b strings.Builder
	parts = make([]string, len(arrs))
	for i, arr := range arrs {
		if i > 0 {
			b.WriteString(keySeparator)
		}
		if arr.IsNull(row) {
			hasNull = true
			b.WriteString(nullMarker)
			continue
		}
		parts[i] = series.FormatValue(arr, row)
		b.WriteString(valueMarker)
		b.WriteString(parts[i])
	}
	return b.String(), parts, hasNull
}

// columnArrays retains the arrays of the named columns; release with releaseArrays
func (df *DataFrame) columnArrays(names []string) []arrow.Array {
	arrs := make([]arrow.Array, len(names))
	for i, name := range names {
		arrs[i] = df.columns[name].Array()
	}
	return arrs
}

func releaseArrays(arrs []arrow.Array) {
	for _, arr := range arrs {
		if arr != nil {
			arr.Release()
		}
	}
}
