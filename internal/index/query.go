package index

import "fleetdex/internal/store"

// ByIDs builds a filter selecting documents by identifier.
func ByIDs(ids ...string) store.Filter {
	return store.Filter{IDs: ids}
}

// ByTerm builds a filter matching a field against an exact value.
func ByTerm(field string, value any) store.Filter {
	return store.Filter{Term: &store.Term{Field: field, Value: value}}
}

// ByToken builds a filter matching an exact token inside a
// comma-joined field.
func ByToken(field, token string) store.Filter {
	return store.Filter{Token: &store.Term{Field: field, Value: token}}
}

// All builds a filter matching every document in the index.
func All() store.Filter {
	return store.Filter{}
}

// SearchOptions narrow and order a search. Select and Exclude are
// applied at the store's projection layer: results may come back
// partially populated, which callers must not mistake for absence.
type SearchOptions struct {
	// Select lists the only fields to return.
	Select []string
	// Exclude lists fields to omit. Select and Exclude must not both
	// be set.
	Exclude []string
	// Offset is the number of results to skip.
	Offset int
	// Limit bounds the result count. Zero means the store default.
	Limit int
	// Sort orders the results.
	Sort []store.Sort
	// Text is a free-text search term.
	Text string
}

// BuildSearch combines a filter and options into a store query.
func BuildSearch(filter store.Filter, opts SearchOptions) store.Query {
	return store.Query{
		Filter:  filter,
		Text:    opts.Text,
		Include: opts.Select,
		Exclude: opts.Exclude,
		From:    opts.Offset,
		Size:    opts.Limit,
		Sort:    opts.Sort,
	}
}
