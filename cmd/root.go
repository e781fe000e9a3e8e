package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"repocontext/internal/chunker"
	"repocontext/internal/config"
	"repocontext/internal/embeddings"
	"repocontext/internal/gitmine"
	"repocontext/internal/hybrid"
	"repocontext/internal/imports"
	"repocontext/internal/indexer"
	"repocontext/internal/mcp"
	"repocontext/internal/qdrant"
	"repocontext/internal/search"
	"repocontext/internal/utils"
	"repocontext/internal/watcher"
)

// Version info, overridden at build time via -ldflags "-X ...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "repocontext",
	Short: "Codebase context tool combining git history, imports and syntax-aware chunking",
	Long:  "A CLI for finding related files, extracting imports, chunking source code, watching file changes, and semantic code search",
}

var relatedCmd = &cobra.Command{
	Use:   "related",
	Short: "Find files that historically change together with a target file",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		dir, _ := cmd.Flags().GetString("dir")
		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			limit = 10
		}

		miner := gitmine.New()
		related := miner.RelatedFiles(cmd.Context(), file, dir, limit)
		return printJSON(related)
	},
}

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Rank candidate files by combined import and co-change relevance",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		dir, _ := cmd.Flags().GetString("dir")
		limit, _ := cmd.Flags().GetInt("limit")
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		if limit <= 0 {
			limit = 10
		}

		miner := gitmine.New()
		extractor := imports.NewExtractor()
		scorer := hybrid.NewScorer(miner, extractor)

		candidates := scorer.Context(cmd.Context(), file, dir, limit, threshold)
		return printJSON(candidates)
	},
}

var importsCmd = &cobra.Command{
	Use:   "imports",
	Short: "List module specifiers imported by a source file",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		extractor := imports.NewExtractor()
		specifiers, err := extractor.List(cmd.Context(), file)
		if err != nil {
			return err
		}
		return printJSON(specifiers)
	},
}

var chunksCmd = &cobra.Command{
	Use:   "chunks",
	Short: "Split a source file into function, method and class chunks",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		source, err := os.ReadFile(file)
		if err != nil {
			return err
		}

		chunks := chunker.ChunkFile(cmd.Context(), file, source)
		return printJSON(chunks)
	},
}

var globCmd = &cobra.Command{
	Use:   "glob",
	Short: "Find files matching a glob pattern, ** supported",
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern, _ := cmd.Flags().GetString("pattern")
		dir, _ := cmd.Flags().GetString("dir")

		matches, err := search.Glob(dir, pattern)
		if err != nil {
			return err
		}
		return printJSON(matches)
	},
}

var grepCmd = &cobra.Command{
	Use:   "grep",
	Short: "Search file contents for a literal substring",
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern, _ := cmd.Flags().GetString("pattern")
		dir, _ := cmd.Flags().GetString("dir")
		caseSensitive, _ := cmd.Flags().GetBool("case-sensitive")

		matches, err := search.Grep(cmd.Context(), pattern, dir, caseSensitive)
		if err != nil {
			return err
		}
		return printJSON(matches)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a directory tree and emit debounced change events as JSON lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		debounceMs, _ := cmd.Flags().GetInt("debounce")

		debounce := watcher.DefaultDebounce
		if debounceMs > 0 {
			debounce = time.Duration(debounceMs) * time.Millisecond
		}

		w, err := watcher.New(os.Stdout, debounce)
		if err != nil {
			return err
		}
		defer w.Close()

		if err := w.Watch(dir); err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "→ Watching %s (debounce %s)\n", dir, debounce)
		if err := w.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index codebase chunks to the vector database",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Load shared config (~/.repocontext/config.json) so OPENAI_*/QDRANT_*
		// from that file are visible as env vars when running via CLI.
		if err := config.LoadFromUserConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		}

		dir, _ := cmd.Flags().GetString("dir")

		qc, err := qdrant.NewClient()
		if err != nil {
			return err
		}
		defer qc.Close()

		ec := embeddings.NewClient()
		idx := indexer.NewIndexer(qc, ec)

		fmt.Printf("Indexing project at: %s\n", dir)
		return idx.IndexProject(cmd.Context(), dir)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run a natural language semantic code search over the index",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadFromUserConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		}

		q, _ := cmd.Flags().GetString("q")
		topK, _ := cmd.Flags().GetInt("top_k")
		dir, _ := cmd.Flags().GetString("dir")
		if topK <= 0 {
			topK = 10
		}

		root, err := utils.NormalizeProjectRoot(dir)
		if err != nil {
			return err
		}
		projectID, err := utils.ComputeProjectID(root)
		if err != nil {
			return fmt.Errorf("failed to compute project id: %w", err)
		}

		qc, err := qdrant.NewClient()
		if err != nil {
			return err
		}
		defer qc.Close()

		ec := embeddings.NewClient()
		vec, err := ec.Embed(cmd.Context(), q)
		if err != nil {
			return err
		}

		points, err := qc.Search(cmd.Context(), indexer.CollectionName(projectID), vec, uint64(topK))
		if err != nil {
			return err
		}

		results := make([]map[string]interface{}, 0, len(points))
		for _, p := range points {
			entry := qdrant.PayloadToMap(p.GetPayload())
			entry["score"] = p.GetScore()
			results = append(results, entry)
		}
		return printJSON(results)
	},
}

var clearIndexCmd = &cobra.Command{
	Use:   "clear-index",
	Short: "Delete the Qdrant collection and local state for a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadFromUserConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		}

		dir, _ := cmd.Flags().GetString("dir")
		root, err := utils.NormalizeProjectRoot(dir)
		if err != nil {
			return err
		}
		projectID, err := utils.ComputeProjectID(root)
		if err != nil {
			return fmt.Errorf("failed to compute project id: %w", err)
		}
		collection := indexer.CollectionName(projectID)

		qc, err := qdrant.NewClient()
		if err != nil {
			return err
		}
		defer qc.Close()

		fmt.Printf("Deleting collection: %s\n", collection)
		if err := qc.DeleteCollection(cmd.Context(), collection); err != nil {
			return err
		}
		if err := indexer.ClearProjectState(projectID); err != nil {
			fmt.Fprintf(os.Stderr, "⚠ Failed to remove local index state: %v\n", err)
		}
		fmt.Println("✓ Collection deleted")
		return nil
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadFromUserConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		}

		server := mcp.NewServer()
		return server.Run(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("repocontext %s\n", Version)
		fmt.Printf("  commit: %s\n", GitCommit)
		fmt.Printf("  built:  %s\n", BuildTime)
	},
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func init() {
	relatedCmd.Flags().String("file", "", "Target file to find co-change partners for")
	relatedCmd.Flags().String("dir", ".", "Repository root directory")
	relatedCmd.Flags().Int("limit", 10, "Maximum number of related files to return")

	contextCmd.Flags().String("file", "", "Target file to gather context for")
	contextCmd.Flags().String("dir", ".", "Repository root directory")
	contextCmd.Flags().Int("limit", 10, "Maximum number of candidates to return")
	contextCmd.Flags().Float64("threshold", 0, "Minimum score a candidate must reach")

	importsCmd.Flags().String("file", "", "Source file to extract imports from")

	chunksCmd.Flags().String("file", "", "Source file to chunk")

	globCmd.Flags().String("pattern", "", "Glob pattern, e.g. src/**/*.ts")
	globCmd.Flags().String("dir", ".", "Directory to search in")

	grepCmd.Flags().String("pattern", "", "Substring to search for")
	grepCmd.Flags().String("dir", ".", "Directory to search in")
	grepCmd.Flags().Bool("case-sensitive", false, "Match case exactly")

	watchCmd.Flags().String("dir", ".", "Directory tree to watch")
	watchCmd.Flags().Int("debounce", 0, "Debounce window in milliseconds (default 500)")

	indexCmd.Flags().String("dir", ".", "Project root directory")

	searchCmd.Flags().String("q", "", "Natural language query")
	searchCmd.Flags().Int("top_k", 10, "Maximum number of results to return")
	searchCmd.Flags().String("dir", ".", "Project root directory (must match the directory passed to 'repocontext index')")

	clearIndexCmd.Flags().String("dir", ".", "Project root directory to clear from Qdrant")

	rootCmd.AddCommand(relatedCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(importsCmd)
	rootCmd.AddCommand(chunksCmd)
	rootCmd.AddCommand(globCmd)
	rootCmd.AddCommand(grepCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(clearIndexCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
