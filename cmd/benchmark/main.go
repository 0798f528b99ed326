package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"hybridrag/config"
	"hybridrag/internal/cli"
	"hybridrag/internal/domain"
)

func main() {
	dir := flag.String("dir", ".", "Project directory holding the imported corpus")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	runs := flag.Int("n", 20, "Number of warm runs")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run cmd/benchmark/main.go -dir ./tmp -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Cold search latency (index build, query embedding)")
		fmt.Println("  2. Warm search latency (cached index and embedding)")
		fmt.Println("  3. Score breakdown of the top results")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := zap.NewNop()
	st, err := cli.OpenStore(cfg, *dir, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening corpus: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	embedder, err := cli.NewEmbedder(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedder not available: %v\n", err)
		os.Exit(1)
	}
	searcher, err := cli.NewSearcher(cfg, st, embedder, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating searcher: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	snap, err := st.Snapshot(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading corpus: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("HYBRID SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Documents: %d (snapshot %s)\n", snap.Len(), snap.ID)
	fmt.Printf("Model: %s (%s)\n", cfg.Embedding.Model, cfg.Embedding.Provider)
	fmt.Printf("Alpha: %.2f  Boost: %.2f  IDF: %s\n", cfg.Retrieve.Alpha, cfg.Retrieve.BoostBonus, cfg.Index.IDF)
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	start := time.Now()
	result, err := searcher.Search(ctx, *query, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	cold := time.Since(start)

	var warm time.Duration
	for i := 0; i < *runs; i++ {
		start = time.Now()
		if _, err := searcher.Search(ctx, *query, *topK); err != nil {
			fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
			os.Exit(1)
		}
		warm += time.Since(start)
	}

	if result.Outcome == domain.OutcomeEmptyCorpus {
		fmt.Println("Corpus is empty. Run 'hybridrag import' first.")
		return
	}

	fmt.Printf("Top %d results:\n\n", len(result.Documents))
	for i, d := range result.Documents {
		preview := strings.ReplaceAll(truncate(d.Document.Text, 150), "\n", " ")

		rating := "LOW"
		if d.Score > 0.7 {
			rating = "HIGH"
		} else if d.Score > 0.5 {
			rating = "GOOD"
		} else if d.Score > 0.3 {
			rating = "OK"
		}

		fmt.Printf("%d. [%s %.3f] %s  sparse=%.3f dense=%.3f boosted=%v\n",
			i+1, rating, d.Score, d.Document.ID, d.Sparse, d.Dense, d.Boosted)
		fmt.Printf("   %s\n\n", preview)
	}

	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("LATENCY:\n")
	fmt.Printf("  Cold search:  %s\n", cold)
	if *runs > 0 {
		fmt.Printf("  Warm average: %s over %d runs\n", warm/time.Duration(*runs), *runs)
	}
	fmt.Printf("  Outcome:      %s\n", result.Outcome)
}

// truncate cuts s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
