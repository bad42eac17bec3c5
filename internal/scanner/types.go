// Package scanner discovers the documents of a corpus directory.
// Listing is flat (no recursion) and sorted so every run sees the same order.
package scanner

// Document is one corpus file.
type Document struct {
	// Name is the base file name, the document's identity in the manifest.
	Name string
	// Path is Name joined to the corpus directory.
	Path string
	// Size is the file size in bytes.
	Size int64
}

// ScanOptions configures a scan.
type ScanOptions struct {
	// Dir is the corpus directory.
	Dir string
	// Extension is the recognized document extension, e.g. ".pdf".
	// Matching is case-insensitive.
	Extension string
}
