package model

// ObjectSnapshot is a loosely typed ledger object as returned by a read.
// Fields holds the decoded content fields; shapes vary between contract
// versions and are interpreted by the ledger field parser.
type ObjectSnapshot struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Owner   string         `json:"owner,omitempty"`
	Version uint64         `json:"version"`
	Fields  map[string]any `json:"fields"`
}

// Page is one page of a cursor-paginated listing.
type Page struct {
	Objects     []ObjectSnapshot `json:"objects"`
	NextCursor  string           `json:"next_cursor,omitempty"`
	HasNextPage bool             `json:"has_next_page"`
}
