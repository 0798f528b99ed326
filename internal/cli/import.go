package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hybridrag/config"
	"hybridrag/internal/adapter/fs"
	"hybridrag/internal/adapter/store"
	"hybridrag/internal/port"
	"hybridrag/internal/usecase"
)

var importCmd = &cobra.Command{
	Use:   "import [path]",
	Short: "Publish a corpus snapshot from JSONL files",
	Long: `Read every corpus file under the given directory and publish the documents
as one new snapshot, replacing the previous corpus. Each line of a corpus file
is a JSON object with "id", "text" and "embedding".

Examples:
  hybridrag import .               # Import corpus files under the current directory
  hybridrag import ./data/corpus   # Import a specific directory`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	cfg := GetConfig()
	logger := GetLogger()

	if cfg.Store.Driver == "memory" {
		return fmt.Errorf("the memory store does not outlive the command; use 'hybridrag serve --import %s' instead", path)
	}

	st, err := OpenStore(cfg, GetRootDir(), logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if bolt, ok := st.(*store.BoltStore); ok {
		if err := clearIfRebuildNeeded(bolt, cfg); err != nil {
			return err
		}
	}

	fmt.Printf("Scanning %s...\n", path)

	result, err := importCorpus(cmd, cfg, st, path, logger, true)
	if err != nil {
		return err
	}

	// Record the embedding settings the new corpus was imported under.
	if bolt, ok := st.(*store.BoltStore); ok {
		if err := bolt.Migrate(cfg); err != nil {
			return fmt.Errorf("failed to update schema info: %w", err)
		}
	}

	fmt.Printf("\nImport complete:\n")
	fmt.Printf("  Files read:   %d\n", result.Files)
	fmt.Printf("  Documents:    %d\n", result.Documents)
	if result.Embedded > 0 {
		fmt.Printf("  Embedded:     %d\n", result.Embedded)
	}
	fmt.Printf("  Snapshot:     %s\n", result.SnapshotID)
	fmt.Printf("  Duration:     %s\n", formatDuration(result.Duration))
	return nil
}

// clearIfRebuildNeeded drops a corpus whose embeddings were made under other
// embedding settings, so a failed import cannot leave it searchable.
func clearIfRebuildNeeded(st *store.BoltStore, cfg *config.Config) error {
	rebuild, reason, err := st.NeedsRebuild(cfg)
	if err != nil {
		return fmt.Errorf("failed to check migration: %w", err)
	}
	if !rebuild {
		return nil
	}
	fmt.Printf("Corpus rebuild required: %s\n", reason)
	fmt.Println("Clearing existing corpus...")
	if err := st.Clear(); err != nil {
		return fmt.Errorf("failed to clear corpus: %w", err)
	}
	return nil
}

// importCorpus runs one import into publisher, drawing a progress bar when showProgress is set.
func importCorpus(cmd *cobra.Command, cfg *config.Config, publisher port.CorpusPublisher, path string, logger *zap.Logger, showProgress bool) (*usecase.ImportResult, error) {
	var embedder port.Embedder
	if cfg.Import.EmbedMissing {
		var err error
		embedder, err = NewEmbedder(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
	}

	walker := fs.NewWalker(cfg.Import.Includes, cfg.Import.Excludes)
	importUC := usecase.NewImportUseCase(walker, fs.NewJSONLReader(), publisher, embedder, cfg.Import.EmbedMissing, logger)

	var progress usecase.ProgressFunc
	if showProgress {
		progress = newProgressBar()
	}

	result, err := importUC.Import(cmd.Context(), path, progress)
	if err != nil {
		return nil, fmt.Errorf("import failed: %w", err)
	}
	return result, nil
}

func newProgressBar() usecase.ProgressFunc {
	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	var startTime time.Time

	return func(done, total int) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Importing[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		_ = bar.Set(done)

		if done > 0 {
			elapsed := time.Since(startTime)
			rate := float64(done) / elapsed.Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Importing[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
