// Package app is the composition root: it turns settings into a graph of
// services with their adapters and owns their shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driven/ai"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driven/config/file"
	imageembed "github.com/givemeone1astkiss/ribo/internal/adapters/driven/embedding/image"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driven/extract"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driven/storage/memory"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driven/storage/milvus"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driven/storage/sqlite"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driven/tools"
	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
	"github.com/givemeone1astkiss/ribo/internal/core/services"
	"github.com/givemeone1astkiss/ribo/internal/logger"
	"github.com/givemeone1astkiss/ribo/internal/normalisers"
	"github.com/givemeone1astkiss/ribo/internal/normalisers/markdown"
	"github.com/givemeone1astkiss/ribo/internal/normalisers/pdf"
	"github.com/givemeone1astkiss/ribo/internal/normalisers/plaintext"
	"github.com/givemeone1astkiss/ribo/internal/postprocessors"
)

// ocrLanguage is the tesseract language pack used for page images.
const ocrLanguage = "eng"

// App holds every service built from one set of settings.
type App struct {
	Config    *domain.AppSettings
	Settings  *services.SettingsService
	Search    *services.SearchService
	Chat      *services.ChatService
	Ingestion *services.IngestionService
	Memory    *services.ConversationMemory
	Tools     *services.ToolRegistry
	Prompts   *file.PromptStore

	// Warnings are non-fatal problems found while wiring, e.g. a provider
	// that fell back or a missing external binary.
	Warnings []string

	closers []func() error
}

// LoadSettings reads .env, then config.toml in configDir (default ~/.ribo)
// with environment overrides layered on top.
func LoadSettings(configDir string) (*services.SettingsService, error) {
	if err := file.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}

	return services.NewSettingsService(file.NewEnvOverlay(store), ai.NewProbe(0)), nil
}

// New builds the application. configDir is where prompts live alongside
// config.toml; empty means ~/.ribo.
func New(ctx context.Context, settingsService *services.SettingsService, configDir string) (*App, error) {
	cfg, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	a := &App{Config: cfg, Settings: settingsService}
	if err := a.build(ctx, configDir); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, configDir string) error {
	cfg := a.Config

	// 1. AI providers
	aiResult := ai.Initialise(ctx, cfg)
	a.closers = append(a.closers, func() error { aiResult.Close(); return nil })
	a.Warnings = append(a.Warnings, aiResult.Warnings...)

	// 2. Index and registry
	index, registry, err := a.openIndex(ctx)
	if err != nil {
		return err
	}
	if err := a.checkDimensions(index.Text(), aiResult); err != nil {
		return err
	}

	// 3. Ingestion
	pipeline, err := postprocessors.DefaultPipeline(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		return fmt.Errorf("building chunk pipeline: %w", err)
	}
	registryOfNormalisers := normalisers.NewRegistry(pdf.New(), markdown.New(), plaintext.New())

	ingestOpts := []services.IngestionOption{
		services.WithIndexInfo(string(cfg.Index.Backend), cfg.Ingest.DataDir),
	}
	if pageImages, ok := a.pageImages(aiResult.EmbeddingService); ok {
		ingestOpts = append(ingestOpts, pageImages)
	}
	a.Ingestion = services.NewIngestionService(
		registryOfNormalisers, pipeline, aiResult.EmbeddingService, index, registry, ingestOpts...)

	// 4. Retrieval
	a.Search = services.NewSearchService(index, registry, aiResult.EmbeddingService,
		services.WithDefaultK(cfg.Retrieval.K),
		services.WithQueryTimeout(cfg.Retrieval.QueryTimeout))

	// 5. Prompts and classification
	promptDir := ""
	if configDir != "" {
		promptDir = filepath.Join(configDir, "prompts")
	}
	a.Prompts, err = file.NewPromptStore(promptDir)
	if err != nil {
		return fmt.Errorf("opening prompt store: %w", err)
	}
	if err := a.Prompts.Seed(); err != nil {
		a.Warnings = append(a.Warnings, "using built-in prompts: "+err.Error())
	}
	classifier := services.NewClassifier(aiResult.LLMService, a.Prompts)

	// 6. Tools
	a.Tools, err = services.NewToolRegistry(tools.NewCatalog(cfg.Tools.CatalogPath))
	if err != nil {
		return err
	}
	invoker := tools.NewHTTPInvoker(tools.Config{
		BaseURL:       cfg.Tools.BaseURL,
		Timeout:       cfg.Tools.Timeout,
		RatePerSecond: cfg.Tools.RatePerSecond,
	})
	orchestrator := services.NewToolOrchestrator(a.Tools, invoker)

	// 7. Conversation
	a.Memory = services.NewConversationMemory(cfg.Memory.Capacity)
	chatOpts := []services.ChatOption{
		services.WithChatTools(orchestrator),
		services.WithChatPrompts(a.Prompts),
		services.WithChatConfig(services.ChatConfigFromSettings(*cfg)),
	}
	if aiResult.LLMService != nil {
		chatOpts = append(chatOpts, services.WithChatLLM(aiResult.LLMService))
	}
	a.Chat = services.NewChatService(classifier, a.Search, a.Memory, chatOpts...)

	// 8. Registry and index agreement
	a.reportInconsistencies(ctx)

	logger.Debug("Application ready: backend=%s embedding=%s", cfg.Index.Backend, aiResult.EmbeddingService.ModelName())
	return nil
}

// checkDimensions rejects an embedder whose vectors cannot be stored in the
// text collection. A fallback embedder with the wrong width is refused
// outright; a deliberately changed provider only warns, since removing and
// re-ingesting the documents fixes it.
func (a *App) checkDimensions(text driven.VectorCollection, aiResult *ai.InitResult) error {
	stored, produced := text.Dimensions(), aiResult.EmbeddingService.Dimensions()
	if stored == 0 || produced == 0 || stored == produced {
		return nil
	}

	if aiResult.FellBack {
		return fmt.Errorf("%w: the %s collection holds %d-dimension vectors but the fallback embedder %s produces %d; "+
			"restore the embedding provider or remove the indexed documents",
			domain.ErrDimensionMismatch, text.Name(), stored, aiResult.EmbeddingService.ModelName(), produced)
	}

	msg := fmt.Sprintf("the %s collection holds %d-dimension vectors but %s produces %d; "+
		"searches will fail until the documents are removed and ingested again",
		text.Name(), stored, aiResult.EmbeddingService.ModelName(), produced)
	logger.Warn("%s", msg)
	a.Warnings = append(a.Warnings, msg)
	return nil
}

// reportInconsistencies turns registry/index disagreements into warnings.
func (a *App) reportInconsistencies(ctx context.Context) {
	found, err := a.Ingestion.CheckConsistency(ctx)
	if err != nil {
		a.Warnings = append(a.Warnings, "consistency check failed: "+err.Error())
		return
	}
	for _, inc := range found {
		msg := fmt.Sprintf("index inconsistency (%s): document %s in %s expected %d units, found %d",
			inc.Kind, inc.DocumentID, inc.Collection, inc.Expected, inc.Actual)
		logger.Warn("%s", msg)
		a.Warnings = append(a.Warnings, msg)
	}
}

// openIndex opens the configured collections. The memory backend keeps
// everything in process; milvus holds vectors remotely while the document
// registry stays in the local sqlite file.
func (a *App) openIndex(ctx context.Context) (driven.VectorIndex, driven.DocumentRegistry, error) {
	cfg := a.Config

	switch cfg.Index.Backend {
	case domain.IndexBackendMemory:
		return memory.NewIndex(), memory.NewRegistry(), nil

	case domain.IndexBackendMilvus:
		store, err := sqlite.NewStore(cfg.Index.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening registry: %w", err)
		}
		a.closers = append(a.closers, store.Close)

		remote, err := milvus.NewIndex(ctx, cfg.Index.MilvusAddress)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to milvus at %s: %w", cfg.Index.MilvusAddress, err)
		}
		a.closers = append(a.closers, remote.Close)
		return remote, store.Registry(), nil

	default:
		store, err := sqlite.NewStore(cfg.Index.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening index: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, store.Registry(), nil
	}
}

// pageImages enables PDF page image units when pdftoppm is installed.
// OCR is added when tesseract is installed too.
func (a *App) pageImages(textEmbedder driven.EmbeddingService) (services.IngestionOption, bool) {
	cfg := a.Config.Ingest

	if err := extract.CheckAvailable("pdftoppm"); err != nil {
		a.Warnings = append(a.Warnings, "page images disabled: "+err.Error())
		return nil, false
	}
	if err := os.MkdirAll(cfg.ImagesDir, 0o755); err != nil {
		a.Warnings = append(a.Warnings, "page images disabled: "+err.Error())
		return nil, false
	}

	opts := []imageembed.Option{imageembed.WithMaxSide(cfg.ImageMaxSide)}
	if err := extract.CheckAvailable("tesseract"); err == nil {
		opts = append(opts, imageembed.WithRecogniser(extract.NewTesseract(nil, ocrLanguage)))
	} else {
		logger.Debug("OCR disabled: %v", err)
	}

	embedder := imageembed.New(textEmbedder, opts...)
	return services.WithPageImages(extract.NewRasteriser(nil), embedder, cfg.ImagesDir, cfg.ImageDPI), true
}

// Close releases adapters in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
