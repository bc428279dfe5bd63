package ingest

// SetMaxPageBytes overrides the page size cap and returns a restore func.
func SetMaxPageBytes(n int64) func() {
	prev := maxPageBytes
	maxPageBytes = n
	return func() { maxPageBytes = prev }
}
