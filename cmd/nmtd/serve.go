package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"nmtd/internal/cache"
	"nmtd/internal/config"
	"nmtd/internal/detect"
	"nmtd/internal/device"
	"nmtd/internal/discovery"
	"nmtd/internal/httpapi"
	"nmtd/internal/maintainer"
	"nmtd/internal/orchestrator"
	"nmtd/internal/preprocess"
	"nmtd/internal/queue"
	"nmtd/internal/runtime"
	"nmtd/pkg/types"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the translation gateway HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "optional config file (.yaml/.json/.toml) to overlay before env vars")
	return cmd
}

func newLogger(cfg config.Config) zerolog.Logger {
	var w zerolog.ConsoleWriter
	base := zerolog.New(os.Stdout).With().Timestamp()
	if strings.ToLower(cfg.LogFormat) == "plain" {
		w = zerolog.NewConsoleWriter(func(o *zerolog.ConsoleWriter) { o.Out = os.Stdout })
		base = zerolog.New(w).With().Timestamp()
	}
	log := base.Logger()

	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return log.Level(lvl)
}

// loadConfig layers defaults, an optional config file, then the
// environment, matching the original implementation's config precedence
// (hardcoded defaults < config file < env vars).
func loadConfig(configPath string) (config.Config, error) {
	cfg := config.Defaults()
	if configPath != "" {
		fileCfg, err := config.Load(configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("load config file: %w", err)
		}
		cfg = fileCfg
	}
	return config.FromEnv(cfg), nil
}

func familiesFromStrings(names []string) []types.Family {
	out := make([]types.Family, 0, len(names))
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "opus-mt", "opus_mt", "opusmt":
			out = append(out, types.FamilyOpusMT)
		case "mbart50", "mbart-50", "mbart":
			out = append(out, types.FamilyMBart50)
		case "m2m100", "m2m-100", "m2m":
			out = append(out, types.FamilyM2M100)
		}
	}
	return out
}

func buildSnapshot(cfg config.Config) httpapi.ModelSnapshot {
	return httpapi.ModelSnapshot{
		DefaultFamily:            cfg.DefaultFamily,
		EasyNMTBatchSize:         cfg.EasyNMTBatchSize,
		MaxTextLen:               cfg.MaxTextLen(),
		MaxBeamSize:              cfg.MaxBeamSize(),
		MaxWorkersBackend:        cfg.MaxWorkersBackend,
		MaxWorkersFrontend:       cfg.MaxWorkersFrontend,
		InputSanitize:            cfg.InputSanitize,
		InputMinAlnumRatio:       cfg.InputMinAlnumRatio,
		InputMinChars:            cfg.InputMinChars,
		UndeterminedLangCode:     cfg.UndeterminedLangCode,
		AlignResponses:           cfg.AlignResponses,
		SanitizePlaceholder:      cfg.SanitizePlaceholder,
		SentenceSplittingDefault: cfg.PerformSentenceSplittingDefault,
		MaxSentenceChars:         cfg.MaxSentenceChars,
		MaxChunkChars:            cfg.MaxChunkChars,
		JoinSentencesWith:        cfg.JoinSentencesWith,
		PivotFallback:            cfg.PivotFallback,
		PivotLang:                cfg.PivotLang,
		LogLevel:                 cfg.LogLevel,
	}
}

// parsePreloadPairs parses PRELOAD_MODELS's "en->de;de->en" format, per
// original_source/tools/preload_models.py's pair-list argument.
func parsePreloadPairs(raw string) []types.Pair {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []types.Pair
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		segs := strings.SplitN(part, "->", 2)
		if len(segs) != 2 {
			continue
		}
		src := strings.TrimSpace(segs[0])
		tgt := strings.TrimSpace(segs[1])
		if src == "" || tgt == "" {
			continue
		}
		out = append(out, types.Pair{Src: src, Tgt: tgt})
	}
	return out
}

// preloadAtStartup warms the pipeline cache for each configured pair by
// running a trivial translation job through the orchestrator, exercising
// the same router/cache/runtime path a real request would, mirroring
// original_source/src/app.py's startup preload call.
func preloadAtStartup(ctx context.Context, orch *orchestrator.Orchestrator, pairs []types.Pair, log zerolog.Logger) {
	for _, p := range pairs {
		job := types.TranslationJob{
			Texts:      []string{"preload"},
			SourceLang: p.Src,
			TargetLang: p.Tgt,
			BeamSize:   1,
		}
		res := orch.Translate(ctx, job)
		if len(res.Items) > 0 && res.Items[0].Err != nil {
			log.Warn().Str("src", p.Src).Str("tgt", p.Tgt).Err(res.Items[0].Err).Msg("preload failed")
			continue
		}
		log.Info().Str("src", p.Src).Str("tgt", p.Tgt).Msg("preloaded model")
	}
}

func runServe(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	httpapi.SetLogger(log)
	httpapi.SetIncludeText(cfg.LogIncludeText)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSAllowedOrigins)

	dev := device.Resolve(device.Options{
		DeviceEnv:         cfg.Device,
		UseGPU:            cfg.UseGPU,
		MaxWorkersBackend: cfg.MaxWorkersBackend,
	}, device.NoGPU{})
	log.Info().Str("device", dev.String()).Int("max_inflight", dev.DefaultMaxInflight).Msg("device resolved")

	pc := cache.New(cfg.MaxCachedModels, log)
	disc := discovery.New(time.Duration(cfg.DiscoveryTTLSec)*time.Second, log)
	det := detect.NewStatistical()
	rt := runtime.Stub{}

	orch := orchestrator.New(orchestrator.Config{
		FallbackOrder:       familiesFromStrings(cfg.ModelFallbackOrder),
		AutoModelFallback:   cfg.AutoModelFallback,
		MaxSentenceChars:    cfg.MaxSentenceChars,
		MaxChunkChars:       cfg.MaxChunkChars,
		JoinSentencesWith:   cfg.JoinSentencesWith,
		AutoChunkEnabled:    cfg.AutoChunkEnabled,
		AutoChunkMaxChars:   cfg.AutoChunkMaxChars,
		InputSanitize:       cfg.InputSanitize,
		InputMinChars:       cfg.InputMinChars,
		InputMinAlnumRatio:  cfg.InputMinAlnumRatio,
		SanitizePlaceholder: cfg.SanitizePlaceholder,
		MaskOptions: preprocess.MaskOptions{
			Enabled:    cfg.SymbolMasking,
			MaskDigits: cfg.MaskDigits,
			MaskPunct:  cfg.MaskPunct,
			MaskEmoji:  cfg.MaskEmoji,
		},
		AlignResponses:     cfg.AlignResponses,
		PivotFallback:      cfg.PivotFallback,
		PivotLang:          cfg.PivotLang,
		EasyNMTBatchSize:   cfg.EasyNMTBatchSize,
		EasyNMTMaxBeamSize: cfg.MaxBeamSize(),
		EasyNMTMaxTextLen:  cfg.MaxTextLen(),
		Device:             dev.String(),
	}, pc, rt, disc, det, log)

	maxInflight := dev.DefaultMaxInflight
	if raw := strings.TrimSpace(cfg.MaxInflightTranslationsRaw); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			maxInflight = parsed
		}
	}

	gate := queue.New(queue.Options{
		CapacityInflight: maxInflight,
		CapacityWait:     cfg.MaxQueueSize,
		EnableQueue:      cfg.EnableQueue,
		Alpha:            cfg.RetryAfterAlpha,
		MinRetryAfterSec: cfg.RetryAfterMinSec,
		MaxRetryAfterSec: cfg.RetryAfterMaxSec,
	})

	srv := &httpapi.Server{
		Orchestrator: orch,
		Queue:        gate,
		Cache:        pc,
		Discovery:    disc,
		Detector:     det,
		Device:       dev,
		Snapshot:     buildSnapshot(cfg),
		Log:          log,
	}
	mux := httpapi.NewMux(srv)

	maintCtx, cancelMaint := context.WithCancel(context.Background())
	mt := maintainer.New(maintainer.Options{
		IdleCheckInterval:        time.Duration(cfg.IdleCheckIntervalSec) * time.Second,
		ModelIdleTimeout:         time.Duration(cfg.ModelIdleTimeoutSec) * time.Second,
		DeviceCacheClearInterval: time.Duration(cfg.DeviceCacheClearIntervalSec) * time.Second,
		MemoryMonitoringEnabled:  true,
	}, pc, map[string]cache.PressureSource{
		"ram": cache.NewRAMPressure(),
		"gpu": cache.NoGPUMemory{},
	}, map[string]float64{
		"ram": cfg.MemoryCriticalThreshold,
		"gpu": cfg.GPUMemoryCriticalThreshold,
	}, cfg.MemoryHysteresisMargin, maintainer.NoopClearer{}, log)
	go mt.Run(maintCtx)

	if pairs := parsePreloadPairs(cfg.PreloadModels); len(pairs) > 0 {
		log.Info().Int("pairs", len(pairs)).Msg("preloading configured model pairs")
		preloadAtStartup(context.Background(), orch, pairs, log)
	}

	httpSrv := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		cancelMaint()
		return err
	case <-sigCh:
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.GracefulTimeoutSec)*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown exceeded timeout")
	}
	cancelMaint()
	pc.PurgeAll()
	log.Info().Msg("shutdown complete")
	return nil
}
