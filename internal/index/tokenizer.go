package index

import (
	"strings"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/character"
	"github.com/blevesearch/bleve/v2/registry"
)

const (
	// TokenizerName is the registered bleve tokenizer splitting on non-alphanumerics.
	TokenizerName = "pagedex_alnum"

	// MinLengthFilterName is the custom length filter dropping 1-char tokens.
	MinLengthFilterName = "pagedex_min_length"

	// AnalyzerName is the custom analyzer applied to the norm field.
	AnalyzerName = "pagedex"

	// MinTokenLength is the shortest indexed token.
	MinTokenLength = 2
)

func init() {
	registry.RegisterTokenizer(TokenizerName, alnumTokenizerConstructor)
}

func isTokenRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func alnumTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return character.NewCharacterTokenizer(isTokenRune), nil
}

// Tokenize applies the index's tokenization to s: split on runs of
// characters outside [A-Za-z0-9], lowercase, drop tokens shorter than
// MinTokenLength.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return !isTokenRune(r) })
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) < MinTokenLength {
			continue
		}
		tokens = append(tokens, strings.ToLower(f))
	}
	return tokens
}
