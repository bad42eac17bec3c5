// Package watcher watches a corpus directory for new documents.
//
// Only the directory itself is watched (no recursion) and only names with the
// configured extension are reported. Bursts of events, such as a large file
// being copied in several writes, are debounced into one batch.
//
// Usage:
//
//	w, err := watcher.New(watcher.Options{Dir: "public/pdfs", Extension: ".pdf", Debounce: 2 * time.Second})
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go func() { _ = w.Start(ctx) }()
//	for batch := range w.Batches() {
//	    // re-run extraction
//	}
package watcher
