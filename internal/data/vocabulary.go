package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Vocabulary maps tokens to feature indices.
type Vocabulary struct {
	tokens map[string]int
	size   int
}

// NewVocabulary builds a vocabulary from a token -> index mapping.
func NewVocabulary(tokens map[string]int) *Vocabulary {
	v := &Vocabulary{tokens: tokens}
	for _, idx := range tokens {
		if idx+1 > v.size {
			v.size = idx + 1
		}
	}
	return v
}

// Lookup returns the feature index of token.
func (v *Vocabulary) Lookup(token string) (int, bool) {
	idx, ok := v.tokens[token]
	return idx, ok
}

// Size is the width of the feature space the vocabulary spans.
func (v *Vocabulary) Size() int {
	return v.size
}

// Len is the number of known tokens.
func (v *Vocabulary) Len() int {
	return len(v.tokens)
}

// LoadVocabulary reads a YAML (or JSON) token -> index mapping.
func LoadVocabulary(path string) (*Vocabulary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary %s: %w", path, err)
	}

	var tokens map[string]int
	if err := yaml.Unmarshal(raw, &tokens); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary %s: %w", path, err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("vocabulary %s is empty", path)
	}

	for token, idx := range tokens {
		if idx < 0 {
			return nil, fmt.Errorf("vocabulary %s: negative index %d for %q", path, idx, token)
		}
	}

	return NewVocabulary(tokens), nil
}
