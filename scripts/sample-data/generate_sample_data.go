package main

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"classy/internal/data"
	"classy/internal/sparse"
	"classy/internal/transform"

	"github.com/alexflint/go-arg"
	"gopkg.in/yaml.v3"
)

var (
	positiveWords = []string{"good", "great", "excellent", "love", "happy", "fine"}
	negativeWords = []string{"bad", "awful", "terrible", "hate", "sad", "broken"}
	neutralWords  = []string{"the", "a", "product", "service", "was", "is", "it"}
)

type args struct {
	Out  string `arg:"--out" default:"sample" help:"output directory"`
	Rows int    `arg:"--rows" default:"20" help:"number of texts to generate"`
	Seed int64  `arg:"--seed" default:"1" help:"random seed"`
}

func main() {
	var a args
	arg.MustParse(&a)

	fmt.Printf("Generating sample data...\n")
	fmt.Printf("  Rows: %d\n", a.Rows)
	fmt.Printf("  Output: %s\n", a.Out)

	if err := os.MkdirAll(a.Out, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	vocab := make(map[string]int)
	for _, words := range [][]string{positiveWords, negativeWords, neutralWords} {
		for _, w := range words {
			vocab[w] = len(vocab)
		}
	}

	rng := rand.New(rand.NewSource(a.Seed))
	texts, labels := generateTexts(rng, a.Rows)

	if err := writeYAML(filepath.Join(a.Out, "vocabulary.yaml"), vocab); err != nil {
		log.Fatalf("Failed to write vocabulary: %v", err)
	}
	if err := writeYAML(filepath.Join(a.Out, "model.yaml"), sampleModel(vocab)); err != nil {
		log.Fatalf("Failed to write model: %v", err)
	}
	if err := writeTexts(filepath.Join(a.Out, "texts.tsv"), texts); err != nil {
		log.Fatalf("Failed to write texts: %v", err)
	}
	if err := writeIndex(filepath.Join(a.Out, "index.db"), texts, labels, data.NewVocabulary(vocab)); err != nil {
		log.Fatalf("Failed to write index: %v", err)
	}

	fmt.Printf("✓ Generated %d texts, %d vocabulary entries\n", len(texts), len(vocab))
	fmt.Printf("  classy predict --index %s --model %s --scores\n",
		filepath.Join(a.Out, "index.db"), filepath.Join(a.Out, "model.yaml"))
}

func generateTexts(rng *rand.Rand, n int) ([]string, []int) {
	texts := make([]string, n)
	labels := make([]int, n)

	for i := range texts {
		label := rng.Intn(2)
		sentiment := negativeWords
		if label == 1 {
			sentiment = positiveWords
		}

		words := make([]string, 0, 8)
		for j := 0; j < 3+rng.Intn(5); j++ {
			if rng.Float64() < 0.4 {
				words = append(words, sentiment[rng.Intn(len(sentiment))])
			} else {
				words = append(words, neutralWords[rng.Intn(len(neutralWords))])
			}
		}
		texts[i] = strings.Join(words, " ")
		labels[i] = label
	}
	return texts, labels
}

// sampleModel weighs positive words up and negative words down.
func sampleModel(vocab map[string]int) map[string]interface{} {
	coef := make([]float64, len(vocab))
	for _, w := range positiveWords {
		coef[vocab[w]] = 1.2
	}
	for _, w := range negativeWords {
		coef[vocab[w]] = -1.2
	}
	return map[string]interface{}{
		"name":      "sample-sentiment",
		"kind":      "logistic",
		"classes":   []int{0, 1},
		"coef":      [][]float64{coef},
		"intercept": []float64{0},
	}
}

func writeYAML(path string, v interface{}) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

func writeTexts(path string, texts []string) error {
	var sb strings.Builder
	for i, text := range texts {
		sb.WriteString("text-" + strconv.Itoa(i+1) + "\t" + text + "\n")
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

func writeIndex(path string, texts []string, labels []int, vocab *data.Vocabulary) error {
	idx := &data.Index{NFeatures: vocab.Size(), Labels: labels}
	for i, text := range texts {
		counts := make(map[int]float64)
		for _, tok := range transform.Tokenize(text) {
			if j, ok := vocab.Lookup(tok); ok {
				counts[j]++
			}
		}
		row := sparse.Vector{}
		for j := 0; j < vocab.Size(); j++ {
			if c, ok := counts[j]; ok {
				row.Indices = append(row.Indices, j)
				row.Values = append(row.Values, c)
			}
		}
		idx.Rows = append(idx.Rows, row)
		idx.TextIDs = append(idx.TextIDs, "text-"+strconv.Itoa(i+1))
	}
	return data.WriteIndex(path, idx)
}
