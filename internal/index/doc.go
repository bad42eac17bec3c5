// Package index builds the full-text index over the page record log and
// serializes it into one byte buffer that the shard package splits for
// static delivery.
//
// Two backends produce that buffer:
//   - bleve (default): a scorch index directory packed as a canonical tar
//   - sqlite: a single-file SQLite database with an FTS5 table
//
// Both index only the normalized text and store doc, page and text
// unindexed. Tokens are runs of [a-z0-9]; single-character tokens are dropped.
package index
