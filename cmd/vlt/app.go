package main

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"vlt/internal/codegraph"
	"vlt/internal/config"
	"vlt/internal/ctags"
	"vlt/internal/delta"
	"vlt/internal/llm"
	"vlt/internal/logging"
	"vlt/internal/oracle"
	"vlt/internal/store"
	"vlt/internal/summary"
)

// app bundles the wired collaborators behind every command: the loaded
// config, environment settings, and the opened store.
type app struct {
	cfg      *config.Config
	settings config.Settings
	st       *store.Store
	log      *zap.Logger
}

// openApp discovers vlt.toml from --dir and opens the project database
// at <project root>/.vlt/index.db.
func openApp() (*app, error) {
	cfg, err := config.Discover(dirFlag)
	if err != nil {
		return nil, err
	}

	settings := config.SettingsFromEnv()
	if settings.APIKey == "" {
		if key, err := loadStoredKey(); err == nil {
			settings.APIKey = key
		}
	}
	if settings.VaultURL != "" {
		cfg.Oracle.VaultURL = settings.VaultURL
	}

	st, err := store.Open(filepath.Join(cfg.Root(), ".vlt", "index.db"))
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, settings: settings, st: st, log: logging.L()}, nil
}

func (a *app) close() {
	if err := a.st.Close(); err != nil {
		a.log.Warn("store close failed", zap.Error(err))
	}
}

// chatClient returns the OpenAI-compatible client, available or not.
func (a *app) chatClient() llm.Client {
	return llm.NewOpenAIClient(a.settings.APIKey, a.settings.APIBaseURL,
		llm.WithEmbeddingModel(a.cfg.CodeRAG.Embedding.Model))
}

// embedder selects the embedding provider from config. The genai
// provider falls back to the chat client when no key is configured.
func (a *app) embedder(ctx context.Context, chat llm.Client) llm.Client {
	if a.cfg.CodeRAG.Embedding.Provider == "genai" && a.settings.GenAIKey != "" {
		client, err := llm.NewGenAIClient(ctx, a.settings.GenAIKey, a.cfg.CodeRAG.Embedding.Model, chat)
		if err == nil {
			return client
		}
		a.log.Warn("genai embedder unavailable, using default provider", zap.Error(err))
	}
	return chat
}

// symbolIndex loads the persisted symbol definitions into a ctags index.
func (a *app) symbolIndex() *ctags.Index {
	symbols, err := a.st.AllSymbols(a.cfg.Project.ID)
	if err != nil {
		a.log.Warn("symbol load failed", zap.Error(err))
		return ctags.NewIndex(nil)
	}
	return ctags.NewIndex(symbols)
}

// deltaManager builds the re-indexing coordinator rooted at the project.
func (a *app) deltaManager(embedder llm.Client) *delta.Manager {
	builder := codegraph.NewBuilder(logging.Named("codegraph"))
	return delta.NewManager(a.st, builder, embedder, a.cfg, a.cfg.Root(), logging.Named("delta"))
}

// newOracle wires the full query pipeline.
func (a *app) newOracle(ctx context.Context) *oracle.Oracle {
	chat := a.chatClient()
	embedder := a.embedder(ctx, chat)
	summarizer := summary.NewSummarizer(a.st, chat, a.cfg.Oracle.SynthesisModel, logging.Named("summary"))

	return oracle.New(oracle.Deps{
		Store:      a.st,
		Chat:       chat,
		Embedder:   embedder,
		Config:     a.cfg,
		Settings:   a.settings,
		Tags:       a.symbolIndex(),
		Summarizer: summarizer,
		Delta:      a.deltaManager(embedder),
		Log:        logging.Named("oracle"),
	})
}

// ensureProject registers the configured project in the store.
func (a *app) ensureProject() error {
	err := a.st.EnsureProject(store.Project{
		ID:          a.cfg.Project.ID,
		Name:        a.cfg.Project.Name,
		Description: a.cfg.Project.Description,
	})
	if err != nil {
		return fmt.Errorf("ensure project %s: %w", a.cfg.Project.ID, err)
	}
	return nil
}
