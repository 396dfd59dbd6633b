// Package testutil defines some useful functions for testing only.
package testutil

import (
	"testing"
	"unicode"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

// AssertEqual compares want and got on exported fields, failing the test with
// a readable diff when they differ.
func AssertEqual(t *testing.T, want, got any, msg string, format ...any) {
	t.Helper()

	diff := cmp.Diff(want, got, ExportedFieldsFilter())
	if diff != "" {
		t.Log(diff)
		t.Fatalf(msg, format...)
	}
}

// ExportedFieldsFilter is a go-cmp Option which ignores recursively unexported fields.
func ExportedFieldsFilter() cmp.Option {
	return cmp.FilterPath(func(p cmp.Path) bool {
		sf, ok := p.Index(-1).(cmp.StructField)
		if !ok {
			return false
		}
		r, _ := utf8.DecodeRuneInString(sf.Name())
		return !unicode.IsUpper(r)
	}, cmp.Ignore())
}
