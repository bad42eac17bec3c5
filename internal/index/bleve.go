package index

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/length"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/pagedex/internal/normalize"
	"github.com/Aman-CERP/pagedex/internal/records"
)

const bleveBatchSize = 1000

// BleveBackend builds a scorch index and packs its directory as a tar stream.
type BleveBackend struct{}

// Name implements Backend.
func (*BleveBackend) Name() string { return BackendBleve }

// createIndexMapping indexes norm with the pagedex analyzer and stores the
// remaining fields without indexing them.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()

	err := im.AddCustomTokenFilter(MinLengthFilterName, map[string]interface{}{
		"type": length.Name,
		"min":  float64(MinTokenLength),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add length filter: %w", err)
	}
	err = im.AddCustomAnalyzer(AnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": TokenizerName,
		"token_filters": []string{
			lowercase.Name,
			MinLengthFilterName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}
	im.DefaultAnalyzer = AnalyzerName
	im.IndexDynamic = false
	im.StoreDynamic = false
	im.DocValuesDynamic = false

	norm := bleve.NewTextFieldMapping()
	norm.Analyzer = AnalyzerName
	norm.Store = false
	norm.IncludeInAll = false
	norm.IncludeTermVectors = false
	norm.DocValues = false

	stored := func() *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Index = false
		fm.Store = true
		fm.IncludeInAll = false
		fm.IncludeTermVectors = false
		fm.DocValues = false
		return fm
	}
	page := bleve.NewNumericFieldMapping()
	page.Index = false
	page.Store = true
	page.IncludeInAll = false
	page.DocValues = false

	dm := bleve.NewDocumentStaticMapping()
	dm.AddFieldMappingsAt("norm", norm)
	dm.AddFieldMappingsAt("doc", stored())
	dm.AddFieldMappingsAt("text", stored())
	dm.AddFieldMappingsAt("page", page)
	im.DefaultMapping = dm

	return im, nil
}

// Build implements Backend.
func (b *BleveBackend) Build(ctx context.Context, recs []records.PageRecord, workDir string) ([]byte, error) {
	im, err := createIndexMapping()
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(workDir, "index.bleve")
	idx, err := bleve.New(dir, im)
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}

	batch := idx.NewBatch()
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			_ = idx.Close()
			return nil, err
		}
		doc := map[string]interface{}{
			"norm": rec.Norm,
			"doc":  rec.Doc,
			"page": float64(rec.Page),
			"text": rec.Text,
		}
		if err := batch.Index(strconv.Itoa(rec.ID), doc); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("index record %d: %w", rec.ID, err)
		}
		if batch.Size() >= bleveBatchSize {
			if err := idx.Batch(batch); err != nil {
				_ = idx.Close()
				return nil, fmt.Errorf("execute batch: %w", err)
			}
			batch = idx.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := idx.Batch(batch); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("execute batch: %w", err)
		}
	}
	if err := idx.Close(); err != nil {
		return nil, fmt.Errorf("close bleve index: %w", err)
	}

	var buf bytes.Buffer
	if err := packDir(&buf, dir); err != nil {
		return nil, fmt.Errorf("pack bleve index: %w", err)
	}
	return buf.Bytes(), nil
}

// Open implements Backend.
func (b *BleveBackend) Open(data []byte, workDir string) (Reader, error) {
	dir := filepath.Join(workDir, "index.bleve")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if err := unpackDir(bytes.NewReader(data), dir); err != nil {
		return nil, fmt.Errorf("unpack bleve index: %w", err)
	}
	idx, err := bleve.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}
	return &bleveReader{idx: idx}, nil
}

type bleveReader struct {
	idx bleve.Index
}

func (r *bleveReader) DocCount() (uint64, error) {
	return r.idx.DocCount()
}

func (r *bleveReader) Search(q string, limit int) ([]Hit, error) {
	tokens := Tokenize(normalize.Text(q))
	if len(tokens) == 0 {
		return []Hit{}, nil
	}
	conjuncts := make([]query.Query, 0, len(tokens))
	for _, tok := range tokens {
		tq := bleve.NewTermQuery(tok)
		tq.SetField("norm")
		conjuncts = append(conjuncts, tq)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(conjuncts...), limit, 0, false)
	req.Fields = []string{"doc", "page", "text"}
	res, err := r.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		if v, ok := h.Fields["doc"].(string); ok {
			hit.Doc = v
		}
		if v, ok := h.Fields["page"].(float64); ok {
			hit.Page = int(v)
		}
		if v, ok := h.Fields["text"].(string); ok {
			hit.Text = v
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (r *bleveReader) Terms() ([]string, error) {
	dict, err := r.idx.FieldDict("norm")
	if err != nil {
		return nil, err
	}
	defer func() { _ = dict.Close() }()

	var terms []string
	for {
		entry, err := dict.Next()
		if err != nil {
			return nil, err
		}
		if entry == nil {
			break
		}
		terms = append(terms, entry.Term)
	}
	return terms, nil
}

func (r *bleveReader) Close() error {
	return r.idx.Close()
}

// String helps debugging output.
func (h Hit) String() string {
	return fmt.Sprintf("%s p.%d: %s", h.Doc, h.Page+1, strings.TrimSpace(h.Text))
}
