//go:build ignore

// Package main generates a synthetic markdown corpus for benchmarking
// index builds and search latency.
// Usage: go run scripts/generate-test-corpus.go -files 1000 -output testdata/bench
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 1000, "Number of files to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var sections = []string{
	"guides", "reference", "tutorials", "concepts", "troubleshooting",
	"api", "releases", "posts",
}

var topics = []string{
	"installation", "configuration", "authentication", "deployment",
	"monitoring", "caching", "pagination", "migrations", "webhooks",
	"rate-limiting", "indexing", "storage", "networking", "logging",
}

var vocabulary = []string{
	"server", "client", "request", "response", "token", "schema",
	"endpoint", "cluster", "replica", "snapshot", "queue", "worker",
	"pipeline", "timeout", "retry", "backoff", "handler", "payload",
	"throughput", "latency", "upstream", "downstream", "rollback",
}

// Roughly one in four documents is a draft so builds exercise skipping.
var statuses = []string{"publish", "publish", "publish", "draft"}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
		os.Exit(1)
	}

	for i := 0; i < *numFiles; i++ {
		section := sections[rng.Intn(len(sections))]
		topic := topics[rng.Intn(len(topics))]
		name := fmt.Sprintf("%s-%04d.md", topic, i)
		path := filepath.Join(*outputDir, section, name)

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(path, []byte(document(rng, topic, i)), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("generated %d files under %s\n", *numFiles, *outputDir)
}

func document(rng *rand.Rand, topic string, n int) string {
	var b strings.Builder

	title := titleCase(topic)
	fmt.Fprintf(&b, "---\ntitle: %s Guide %d\n", title, n)
	fmt.Fprintf(&b, "tags: [%s, docs]\n", strings.SplitN(topic, "-", 2)[0])
	fmt.Fprintf(&b, "status: %s\n---\n\n", statuses[rng.Intn(len(statuses))])
	fmt.Fprintf(&b, "# %s\n\n", title)

	paragraphs := 3 + rng.Intn(5)
	for p := 0; p < paragraphs; p++ {
		words := 40 + rng.Intn(80)
		for w := 0; w < words; w++ {
			b.WriteString(vocabulary[rng.Intn(len(vocabulary))])
			b.WriteByte(' ')
		}
		b.WriteString("\n\n")
	}

	// Occasionally include a fenced block to exercise code stripping.
	if rng.Intn(4) == 0 {
		b.WriteString("```\ncurl -s http://localhost:9000/search?q=example\n```\n")
	}

	return b.String()
}

func titleCase(s string) string {
	parts := strings.Split(s, "-")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
