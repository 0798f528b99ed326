package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"hybridrag/internal/domain"
)

var (
	searchText    string
	searchTopK    int
	searchAlpha   float64
	searchJSON    bool
	searchExplain bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Rank the corpus against a query",
	Long: `Rank every document of the current corpus snapshot by fused BM25 and
embedding distance scores and print the top results.

Examples:
  hybridrag search -q "reset password"
  hybridrag search -q "reset password" -k 3 --alpha 0.8 --json`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchText, "query", "q", "", "search query (required)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().Float64Var(&searchAlpha, "alpha", 0, "weight of the BM25 score (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.Flags().BoolVar(&searchExplain, "explain", false, "show the score breakdown")
	searchCmd.MarkFlagRequired("query")
}

type searchOutput struct {
	Query      string             `json:"query"`
	Outcome    string             `json:"outcome"`
	SnapshotID string             `json:"snapshot_id"`
	Results    []searchOutputItem `json:"results"`
}

type searchOutputItem struct {
	ID      string  `json:"id"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
	Sparse  float64 `json:"sparse"`
	Dense   float64 `json:"dense"`
	Boosted bool    `json:"boosted"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	logger := GetLogger()

	if cmd.Flags().Changed("alpha") && (searchAlpha < 0 || searchAlpha > 1) {
		return fmt.Errorf("--alpha must be between 0 and 1, got %v", searchAlpha)
	}

	st, err := OpenStore(cfg, GetRootDir(), logger)
	if err != nil {
		return err
	}
	defer st.Close()

	embedder, err := NewEmbedder(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	searcher, err := NewSearcher(cfg, st, embedder, logger)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("alpha") {
		searcher = searcher.WithAlpha(searchAlpha)
	}

	result, err := searcher.Search(cmd.Context(), searchText, searchTopK)
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			return fmt.Errorf("query could not be embedded (set retrieve.degrade_to_sparse to rank on BM25 alone): %w", err)
		}
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return printSearchJSON(result)
	}
	printSearchText(result)
	return nil
}

func printSearchJSON(result domain.Result) error {
	out := searchOutput{
		Query:      searchText,
		Outcome:    string(result.Outcome),
		SnapshotID: result.SnapshotID,
		Results:    make([]searchOutputItem, len(result.Documents)),
	}
	for i, d := range result.Documents {
		out.Results[i] = searchOutputItem{
			ID:      d.Document.ID,
			Text:    d.Document.Text,
			Score:   d.Score,
			Sparse:  d.Sparse,
			Dense:   d.Dense,
			Boosted: d.Boosted,
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printSearchText(result domain.Result) {
	switch result.Outcome {
	case domain.OutcomeEmptyCorpus:
		fmt.Println("Corpus is empty. Run 'hybridrag import' first.")
		return
	case domain.OutcomeSparseOnly:
		fmt.Println("Note: query embedding unavailable, ranked on BM25 scores only.")
		fmt.Println()
	}

	for i, d := range result.Documents {
		fmt.Printf("--- [%d] %s (score: %.4f) ---\n", i+1, d.Document.ID, d.Score)
		if searchExplain {
			boost := ""
			if d.Boosted {
				boost = " +boost"
			}
			fmt.Printf("    sparse: %.4f  dense: %.4f%s\n", d.Sparse, d.Dense, boost)
		}
		fmt.Println(strings.TrimSpace(d.Document.Text))
		fmt.Println()
	}
}
