package shared

// DefaultSearchLimit caps ledger search results when the caller passes no limit.
const DefaultSearchLimit = 20

// MaxSearchLimit is the largest limit honoured.
const MaxSearchLimit = 200

// ClampLimit normalises a requested result limit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		return MaxSearchLimit
	}
	return limit
}
