package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/animus-ai/animus/internal/channels/discord"
	"github.com/animus-ai/animus/internal/config"
	"github.com/animus-ai/animus/internal/core"
	"github.com/animus-ai/animus/internal/llm"
	"github.com/animus-ai/animus/internal/memory"
	"github.com/animus-ai/animus/internal/memory/embeddings"
	embollama "github.com/animus-ai/animus/internal/memory/embeddings/ollama"
	embopenai "github.com/animus-ai/animus/internal/memory/embeddings/openai"
	"github.com/animus-ai/animus/internal/observability"
	"github.com/animus-ai/animus/internal/reminders"
	"github.com/animus-ai/animus/internal/tools"
	"github.com/animus-ai/animus/internal/tools/builtin"
	"github.com/animus-ai/animus/internal/tts"
)

// buildRunCmd creates the "run" command that starts the cognitive loop.
func buildRunCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the animus cognitive loop",
		Long: `Start the cognitive loop with all configured subsystems.

The agent will:
1. Load configuration and open the memory tiers (with daily rotation)
2. Discover installed tools and enable the builtins
3. Start the reminder scheduler and optional Discord adapter
4. Run the cognitive loop until interrupted

Lines typed on stdin are delivered as direct user input. Graceful
shutdown is handled on SIGINT/SIGTERM.`,
		Example: `  # Start with default config
  animus run

  # Start with custom config and debug logging
  animus run --config /etc/animus/animus.yaml --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "animus.yaml", "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func runAgent(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		// A missing default config file means run with defaults.
		if configPath != "animus.yaml" || !errors.Is(err, os.ErrNotExist) {
			return err
		}
		cfg = config.Default()
	}
	if debug {
		cfg.Log.Level = "debug"
	}
	log := observability.NewLogger(cfg.Log)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mem, err := openMemory(cfg, log, metrics)
	if err != nil {
		return fmt.Errorf("open memory: %w", err)
	}

	store, err := reminders.OpenStore(cfg.Reminders.Path, log)
	if err != nil {
		return fmt.Errorf("open reminder store: %w", err)
	}

	cognitive, err := llm.NewFromConfig(cfg.LLM, log, metrics)
	if err != nil {
		return fmt.Errorf("create language model client: %w", err)
	}
	response := cognitive
	if cfg.LLM.ResponseModel != "" {
		response = llm.WithModel(cognitive, cfg.LLM.ResponseModel)
	}

	var speaker tts.Speaker = tts.NopSpeaker{}
	if cfg.TTS.Enabled && cfg.TTS.Command != "" {
		speaker = tts.NewCommandSpeaker(cfg.TTS.Command, cfg.TTS.Args, log)
	}

	c := core.New(core.Options{
		Config:    cfg,
		Logger:    log,
		Metrics:   metrics,
		Cognitive: cognitive,
		Response:  response,
		Speaker:   speaker,
		Memory:    mem,
		Reminders: store,
	})

	if err := setupTools(ctx, c, cfg, mem, store, log); err != nil {
		return fmt.Errorf("set up tools: %w", err)
	}

	archiveOldDays(ctx, mem, cognitive, log)

	if cfg.Metrics.Enabled {
		startMetricsListener(ctx, cfg.Metrics.Addr, metrics, log)
	}

	var adapter *discord.Adapter
	if cfg.Discord.Enabled {
		adapter, err = discord.New(cfg.Discord.Token, cfg.Discord.Channels, c.PushChatMessage, log)
		if err != nil {
			return fmt.Errorf("create discord adapter: %w", err)
		}
		if err := adapter.Start(ctx); err != nil {
			return fmt.Errorf("start discord adapter: %w", err)
		}
		defer adapter.Stop()
	}

	go readUserInput(ctx, c, log)

	log.Info(ctx, "animus started", "agent", cfg.Agent.Name, "model", cognitive.Model())
	err = c.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c.Shutdown(shutdownCtx)
	if adapter != nil {
		adapter.Broadcast(shutdownCtx, "Going offline. See you soon.")
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func openMemory(cfg *config.Config, log *observability.Logger, metrics *observability.Metrics) (*memory.Manager, error) {
	var embedder embeddings.Provider
	switch cfg.Embeddings.Provider {
	case "openai":
		embedder = embopenai.New(embopenai.Config{
			APIKey:  cfg.Embeddings.APIKey,
			BaseURL: cfg.Embeddings.BaseURL,
			Model:   cfg.Embeddings.Model,
		})
	default:
		embedder = embollama.New(embollama.Config{
			BaseURL: cfg.Embeddings.BaseURL,
			Model:   cfg.Embeddings.Model,
			Timeout: time.Duration(cfg.Embeddings.TimeoutSeconds) * time.Second,
		})
	}

	return memory.Open(memory.Options{
		Dir:            cfg.Memory.Dir,
		BaseDir:        cfg.Memory.BaseDir,
		ShortCapacity:  cfg.Memory.ShortCapacity,
		UserWeight:     cfg.Memory.UserWeight,
		ThoughtsWeight: cfg.Memory.ThoughtsWeight,
		Embedder:       embedder,
		Logger:         log,
		Metrics:        metrics,
	})
}

// setupTools installs builtin manifests, registers factories, discovers
// everything in the tools directory, and enables the builtins.
func setupTools(ctx context.Context, c *core.Core, cfg *config.Config, mem *memory.Manager, store *reminders.Store, log *observability.Logger) error {
	for name, manifest := range builtin.Manifests {
		dir := filepath.Join(cfg.Tools.Dir, name)
		path := filepath.Join(dir, tools.ManifestFileName)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
			return err
		}
	}

	registry := c.Registry()
	registry.RegisterFactory("reminders", func() (tools.Tool, error) { return builtin.NewReminderTool(store), nil })
	registry.RegisterFactory("memory_search", func() (tools.Tool, error) { return builtin.NewMemorySearchTool(mem), nil })
	registry.RegisterFactory("system", func() (tools.Tool, error) { return builtin.NewSystemTool(mem), nil })

	if err := registry.Discover(ctx); err != nil {
		return err
	}
	for name := range builtin.Manifests {
		if err := registry.SetEnabled(ctx, name, true); err != nil {
			log.Warn(ctx, "could not enable builtin tool", "tool", name, "error", err)
		}
	}

	if cfg.Tools.Watch {
		if err := registry.Watch(ctx); err != nil {
			log.Warn(ctx, "tools hot-reload unavailable", "error", err)
		}
	}
	return nil
}

// archiveOldDays summarizes any days the memory rotation pulled out and
// folds them into the long tier.
func archiveOldDays(ctx context.Context, mem *memory.Manager, client llm.Client, log *observability.Logger) {
	for date, lines := range mem.DaysNeedingArchive() {
		prompt := "Summarize this day's conversation in 2-4 sentences, third person, " +
			"keeping names, decisions, and unfinished threads:\n\n" + strings.Join(lines, "\n")
		summary, err := client.Generate(ctx, prompt)
		if err != nil {
			log.Warn(ctx, "day summary failed, will retry next start", "date", date, "error", err)
			continue
		}
		if err := mem.ArchivePreviousDay(ctx, strings.TrimSpace(summary), date); err != nil {
			log.Warn(ctx, "archiving day failed", "date", date, "error", err)
		} else {
			log.Info(ctx, "archived day into long memory", "date", date)
		}
	}
}

func startMetricsListener(ctx context.Context, addr string, metrics *observability.Metrics, log *observability.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.Info(ctx, "metrics listener started", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(ctx, "metrics listener failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()
}

// readUserInput feeds stdin lines into the core as direct user input.
func readUserInput(ctx context.Context, c *core.Core, log *observability.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if reply, down := c.ProcessUserMessage(ctx, line); down {
			fmt.Println(reply)
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warn(ctx, "stdin closed", "error", err)
	}
}
