package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vlt/internal/ctags"
	"vlt/internal/logging"
	"vlt/internal/repomap"
)

var indexCtags bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Scan the project and commit pending index changes",
	Long: `Index walks the source tree, queues changed files, and commits
them: chunks, graph nodes and edges, symbols, and embeddings when an
API key is configured. The repository map is regenerated afterwards.`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexCtags, "ctags", false, "also load symbols from universal-ctags")
}

func runIndex(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.ensureProject(); err != nil {
		return err
	}

	chat := a.chatClient()
	mgr := a.deltaManager(a.embedder(cmd.Context(), chat))

	queued, err := mgr.ScanProject(cmd.Context())
	if err != nil {
		return err
	}
	if queued == 0 {
		fmt.Println("index up to date")
	} else {
		entries, err := a.st.QueuedDeltas(a.cfg.Project.ID)
		if err != nil {
			return err
		}

		bar := progressbar.NewOptions(len(entries),
			progressbar.OptionSetDescription("indexing"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		var failed int
		for _, e := range entries {
			stats, err := mgr.CommitFiles(cmd.Context(), []string{e.FilePath})
			if err != nil {
				return err
			}
			failed += stats.Failed
			_ = bar.Add(1)
		}
		_ = bar.Finish()
		fmt.Printf("indexed %d files (%d failed)\n", len(entries)-failed, failed)
	}

	if indexCtags {
		symbols, err := ctags.Generate(cmd.Context(), a.cfg.Root(), logging.Named("ctags"))
		if err != nil {
			a.log.Warn("ctags generation failed", zap.Error(err))
		} else if err := a.st.SaveSymbols(symbols, a.cfg.Project.ID); err != nil {
			return err
		} else {
			fmt.Printf("loaded %d ctags symbols\n", len(symbols))
		}
	}

	return a.regenerateRepoMap()
}

// regenerateRepoMap rebuilds and persists the project-wide repo map from
// the current graph.
func (a *app) regenerateRepoMap() error {
	nodes, err := a.st.AllNodes(a.cfg.Project.ID)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return nil
	}
	edges, err := a.st.AllEdges(a.cfg.Project.ID)
	if err != nil {
		return err
	}

	m, stats := repomap.Generate(nodes, edges, repomap.Options{
		MaxTokens:         a.cfg.CodeRAG.RepoMap.MaxTokens,
		IncludeSignatures: a.cfg.CodeRAG.RepoMap.IncludeSignatures,
		IncludeDocstrings: a.cfg.CodeRAG.RepoMap.IncludeDocstrings,
	})
	if err := a.st.SaveRepoMap(m, a.cfg.Project.ID); err != nil {
		return err
	}
	fmt.Printf("repo map: %d/%d symbols across %d files (%d tokens)\n",
		stats.SymbolsIncluded, stats.SymbolsTotal, stats.FilesIncluded, m.TokenCount)
	return nil
}
