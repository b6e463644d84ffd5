// Package searcher answers exact-match lookups over the node index.
//
// It backs the inspection endpoint (GET /graphs/{graphID}/nodes) and the
// search command. Queries are validated here so both callers report the
// same errors:
//
//	s, _ := searcher.NewNodeSearcher(searcher.WithStore(idx))
//	res, err := s.Search(ctx, searcher.Query{GraphID: "g1", Kind: "concept"})
//
// NodeSearcher is safe for concurrent use.
package searcher
