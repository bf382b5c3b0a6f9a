package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
)

var errNoSettings = errors.New("settings service not configured")

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change ribo's configuration",
	Long: `Without a subcommand, print the effective configuration and whether it
can produce a working assistant.

Environment variables (RIBO_*, DEEPSEEK_API_KEY, ...) take precedence over
stored values.`,
	Annotations: map[string]string{skipServices: "true"},
	RunE:        runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store one setting",
	Long: `Store one setting under its dotted key.

  ribo settings set llm.provider openai
  ribo settings set index.backend milvus
  ribo settings set retrieval.k 40
  ribo settings set ingest.data_dir ~/papers`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Choose the embedding and LLM providers interactively",
	Args:  cobra.NoArgs,
	RunE:  runSettingsWizard,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Choose the embedding provider",
	Args:  cobra.NoArgs,
	RunE:  runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Choose the LLM provider",
	Args:  cobra.NoArgs,
	RunE:  runSettingsLLM,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsWizardCmd, settingsEmbeddingCmd, settingsLLMCmd)
	rootCmd.AddCommand(settingsCmd)
}

// section is one block of `ribo settings` output.
type section struct {
	title string
	rows  [][2]string
}

func (s *section) add(label, format string, args ...any) {
	s.rows = append(s.rows, [2]string{label, fmt.Sprintf(format, args...)})
}

func (s *section) addKey(provider domain.AIProvider, key string) {
	switch {
	case !provider.RequiresAPIKey():
	case key == "":
		s.add("API Key", "(not set)")
	default:
		s.add("API Key", "%s", maskAPIKey(key))
	}
}

func settingsSections(st *domain.AppSettings) []section {
	emb := section{title: "Embedding"}
	emb.add("Provider", "%s", st.Embedding.Provider.Description())
	emb.add("Model", "%s", st.Embedding.Model)
	if st.Embedding.BaseURL != "" {
		emb.add("Base URL", "%s", st.Embedding.BaseURL)
	}
	emb.addKey(st.Embedding.Provider, st.Embedding.APIKey)
	emb.add("Status", "%s", configured(st.Embedding.IsConfigured()))

	llm := section{title: "LLM"}
	llm.add("Provider", "%s", st.LLM.Provider.Description())
	llm.add("Model", "%s", st.LLM.Model)
	if st.LLM.BaseURL != "" {
		llm.add("Base URL", "%s", st.LLM.BaseURL)
	}
	llm.addKey(st.LLM.Provider, st.LLM.APIKey)
	llm.add("Temperature", "%.2f", st.LLM.Temperature)
	llm.add("Max tokens", "%d", st.LLM.MaxTokens)
	llm.add("Timeout", "%s", st.LLM.Timeout)
	llm.add("Status", "%s", configured(st.LLM.IsConfigured()))

	idx := section{title: "Index"}
	idx.add("Backend", "%s", st.Index.Backend)
	idx.add("Directory", "%s", st.Index.Dir)
	if st.Index.Backend == domain.IndexBackendMilvus {
		idx.add("Milvus", "%s", st.Index.MilvusAddress)
	}

	ing := section{title: "Ingest"}
	ing.add("Data directory", "%s", st.Ingest.DataDir)
	ing.add("Images directory", "%s", st.Ingest.ImagesDir)
	ing.add("Chunks", "%d chars, %d overlap", st.Ingest.ChunkSize, st.Ingest.ChunkOverlap)
	ing.add("Page images", "%d dpi, max side %d", st.Ingest.ImageDPI, st.Ingest.ImageMaxSide)

	ret := section{title: "Retrieval"}
	ret.add("k", "%d", st.Retrieval.K)
	ret.add("Context units", "%d text, %d image", st.Retrieval.ContextUnits, st.Retrieval.ImageUnits)
	ret.add("Minimum score", "%.2f", st.Retrieval.MinScore)
	ret.add("Query timeout", "%s", st.Retrieval.QueryTimeout)

	mem := section{title: "Memory"}
	mem.add("Capacity", "%d exchanges, %d in context", st.Memory.Capacity, st.Memory.ContextEntries)

	tools := section{title: "Tools"}
	tools.add("Base URL", "%s", st.Tools.BaseURL)
	tools.add("Timeout", "%s", st.Tools.Timeout)
	tools.add("Rate", "%.1f/s", st.Tools.RatePerSecond)
	if st.Tools.CatalogPath != "" {
		tools.add("Catalog", "%s", st.Tools.CatalogPath)
	}

	srv := section{title: "Server"}
	srv.add("Address", "%s", st.Server.Addr)

	return []section{emb, llm, idx, ing, ret, mem, tools, srv}
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNoSettings
	}
	st, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, sec := range settingsSections(st) {
		fmt.Fprintf(out, "[%s]\n", sec.title)
		for _, row := range sec.rows {
			fmt.Fprintf(out, "  %s: %s\n", row[0], row[1])
		}
		fmt.Fprintln(out)
	}

	if err := settingsService.Validate(); err != nil {
		fmt.Fprintf(out, "Warning: %v\nRun 'ribo settings wizard' to fix it.\n", err)
		return nil
	}
	fmt.Fprintln(out, "Configuration is valid.")
	return nil
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errNoSettings
	}
	key, value := args[0], args[1]
	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	if strings.HasSuffix(key, "api_key") {
		value = maskAPIKey(value)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, value)
	return nil
}

// providerStep is one provider question of the wizard.
type providerStep struct {
	kind      string
	providers []domain.AIProvider
	models    map[domain.AIProvider]string
	save      func(domain.AIProvider, string, string) error
	probe     func() error
}

func embeddingStep() providerStep {
	return providerStep{
		kind:      "embedding",
		providers: domain.AllEmbeddingProviders(),
		models:    domain.DefaultEmbeddingModels(),
		save:      settingsService.SetEmbeddingProvider,
		probe:     settingsService.ValidateEmbeddingConfig,
	}
}

func llmStep() providerStep {
	return providerStep{
		kind:      "LLM",
		providers: domain.AllLLMProviders(),
		models:    domain.DefaultLLMModels(),
		save:      settingsService.SetLLMProvider,
		probe:     settingsService.ValidateLLMConfig,
	}
}

// ask runs the step: pick a provider, a model and, when needed, a key,
// then store them and check the provider answers.
func (p providerStep) ask(cmd *cobra.Command, in *bufio.Reader) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Select the %s provider\n", p.kind)
	for i, prov := range p.providers {
		fmt.Fprintf(out, "  %d. %s\n", i+1, prov.Description())
	}
	fmt.Fprint(out, "\nChoice [1]: ")
	provider := p.providers[parseChoice(readLine(in), len(p.providers), 1)-1]

	model := p.models[provider]
	fmt.Fprintf(out, "Model [%s]: ", model)
	if typed := readLine(in); typed != "" {
		model = typed
	}

	var key string
	if provider.RequiresAPIKey() {
		fmt.Fprint(out, "API key: ")
		key = readPassword(cmd.InOrStdin(), in)
		fmt.Fprintln(out)
		if key == "" {
			return fmt.Errorf("API key is required for %s", provider.Description())
		}
	}

	if err := p.save(provider, model, key); err != nil {
		return fmt.Errorf("save %s provider: %w", p.kind, err)
	}

	fmt.Fprint(out, "Checking provider... ")
	if err := p.probe(); err != nil {
		fmt.Fprintln(out, "failed")
		return fmt.Errorf("%s provider check: %w", p.kind, err)
	}
	fmt.Fprintf(out, "ok\n%s provider: %s (%s)\n\n", p.kind, provider.Description(), model)
	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNoSettings
	}
	out := cmd.OutOrStdout()
	in := bufio.NewReader(cmd.InOrStdin())

	fmt.Fprintln(out, "1/2 Embeddings index the literature. The local provider needs no setup.")
	if err := embeddingStep().ask(cmd, in); err != nil {
		return err
	}
	fmt.Fprintln(out, "2/2 The LLM classifies questions and writes answers. Without one ribo replies with templates.")
	if err := llmStep().ask(cmd, in); err != nil {
		return err
	}

	if err := settingsService.Validate(); err != nil {
		fmt.Fprintf(out, "Warning: %v\n", err)
		return nil
	}
	fmt.Fprintln(out, "All settings are valid and saved.")
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNoSettings
	}
	return embeddingStep().ask(cmd, bufio.NewReader(cmd.InOrStdin()))
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNoSettings
	}
	return llmStep().ask(cmd, bufio.NewReader(cmd.InOrStdin()))
}

func readLine(r *bufio.Reader) string {
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}

// parseChoice reads a 1-based menu choice, falling back to def for
// anything outside [1, n].
func parseChoice(input string, n, def int) int {
	v, err := strconv.Atoi(input)
	if err != nil || v < 1 || v > n {
		return def
	}
	return v
}

// readPassword reads without echo when in is a terminal, else a plain line.
func readPassword(in io.Reader, r *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if pw, err := term.ReadPassword(int(f.Fd())); err == nil {
			return string(pw)
		}
	}
	return readLine(r)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
