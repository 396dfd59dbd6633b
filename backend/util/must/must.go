// Package must provides helpers for turning errors into panics,
// for places where an error is not expected to ever happen.
package must

// Do panics if err is not nil.
func Do(err error) {
	if err != nil {
		panic(err)
	}
}

// Do2 returns v, panicking if err is not nil.
func Do2[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
