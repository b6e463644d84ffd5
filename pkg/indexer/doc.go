// Package indexer turns per-graph change sets into node index writes.
//
// The notification processor talks to an [Indexer]; the stock
// implementation is [GraphIndexer] over a [store.NodeIndex]. Decorators
// add cross-cutting behaviour without touching the processor:
//
//	┌────────────────────┐
//	│ notify.Processor   │
//	└─────────┬──────────┘
//	          │ Indexer
//	┌─────────▼──────────┐
//	│    Instrumented    │  metrics
//	└─────────┬──────────┘
//	┌─────────▼──────────┐
//	│      Guarded       │  circuit breaker
//	└─────────┬──────────┘
//	┌─────────▼──────────┐
//	│    GraphIndexer    │
//	└─────────┬──────────┘
//	          │ store.NodeIndex
//	     ┌────┴────┐
//	   bleve    sqlite
//
// # Usage
//
//	idx, _ := store.OpenNodeIndex(dataDir, "bleve")
//	gi, err := indexer.NewGraphIndexer(indexer.WithStore(idx))
//	if err != nil {
//	    return err
//	}
//	var ix indexer.Indexer = indexer.Guarded(gi, breaker)
//
// # Thread Safety
//
// All implementations are safe for concurrent use.
package indexer
