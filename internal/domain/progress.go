package domain

// ProgressFunc reports preload progress: (datasets done, datasets total).
type ProgressFunc func(loaded, total int)

// RefreshResult summarizes one dataset refresh.
type RefreshResult struct {
	Dataset   string // Which dataset this result is for
	FromCache bool   // true if the remote fetch failed or was skipped
	Count     int    // rows available after refresh
	Error     error  // remote error that forced the cache fallback
}
