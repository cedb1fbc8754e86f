// Package indexer orchestrates incremental indexing runs: scanning the
// project tree, diffing files against stored records, embedding only the
// chunks that changed, and reconciling the store so the next run can be
// incremental again. Runs are exclusive per project root.
package indexer
