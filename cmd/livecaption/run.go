package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/leonardotrapani/livecaption/internal/audio"
	"github.com/leonardotrapani/livecaption/internal/caption"
	"github.com/leonardotrapani/livecaption/internal/config"
	"github.com/leonardotrapani/livecaption/internal/notify"
	"github.com/leonardotrapani/livecaption/internal/observe"
	"github.com/leonardotrapani/livecaption/internal/pipeline"
	"github.com/leonardotrapani/livecaption/internal/recognition"
	"github.com/leonardotrapani/livecaption/internal/recognition/deepgram"
	"github.com/leonardotrapani/livecaption/internal/recognition/google"
	"github.com/leonardotrapani/livecaption/internal/relay"
	"github.com/leonardotrapani/livecaption/internal/render"
	"github.com/leonardotrapani/livecaption/internal/shutdown"
	"github.com/leonardotrapani/livecaption/internal/translate"
)

type runOptions struct {
	configPath  string
	source      string
	target      string
	recognizer  string
	translator  string
	fullscreen  bool
	plain       bool
	device      string
	metricsAddr string
	logFile     string
	notify      bool
}

func runCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Caption the microphone until interrupted",
		Long: `Capture the microphone, recognize speech and show translated captions.
Without --target captions are shown in the spoken language.
Press Ctrl+C to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCaptions(cmd, opts)
		},
	}

	bindRunFlags(cmd, &opts)
	return cmd
}

func bindRunFlags(cmd *cobra.Command, opts *runOptions) {
	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/livecaption/config.toml)")
	f.StringVarP(&opts.source, "source", "s", "", "spoken language code (default ru-RU)")
	f.StringVarP(&opts.target, "target", "t", "", "caption language code (default: the source, no translation)")
	f.StringVar(&opts.recognizer, "recognizer", "", "speech recognition: deepgram or google")
	f.StringVar(&opts.translator, "translator", "", "translation: deepl, openai, groq or none")
	f.BoolVarP(&opts.fullscreen, "fullscreen", "f", false, "show captions fullscreen")
	f.BoolVar(&opts.plain, "plain", false, "write final captions as plain lines")
	f.StringVar(&opts.device, "device", "", "audio input device name (see 'livecaption devices')")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9464")
	f.StringVar(&opts.logFile, "log-file", "", "write logs to this file instead of stderr")
	f.BoolVar(&opts.notify, "notify", false, "send desktop notifications on reconnects and errors")
}

// applyFlags overrides file values with the flags that were set.
func (o runOptions) applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("source") {
		c.General.Source = o.source
	}
	if flags.Changed("target") {
		c.General.Target = o.target
	}
	if flags.Changed("recognizer") {
		c.Recognition.Provider = o.recognizer
	}
	if flags.Changed("translator") {
		c.Translation.Provider = o.translator
	}
	if flags.Changed("device") {
		c.Audio.Device = o.device
	}
	if flags.Changed("metrics-addr") {
		c.Metrics.Addr = o.metricsAddr
	}
	if flags.Changed("notify") {
		c.General.Notify = o.notify
	}
	switch {
	case o.fullscreen:
		c.Caption.Mode = "fullscreen"
	case o.plain:
		c.Caption.Mode = "plain"
	}
}

func runCaptions(cmd *cobra.Command, opts runOptions) error {
	if err := config.LoadEnv(); err != nil {
		return err
	}

	mgr, err := config.NewManager(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	mgr.Update(func(c *config.Config) { opts.applyFlags(cmd, c) })
	cfg := mgr.GetConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	closeLog, err := setupLogging(opts.logFile, cfg.Caption.Mode)
	if err != nil {
		return err
	}
	defer closeLog()

	stop := shutdown.New(context.Background())
	stop.NotifySignals()
	defer stop.Close()
	ctx := shutdown.WithController(stop.Context(), stop)

	var metrics *observe.Metrics
	if cfg.Metrics.Addr != "" {
		provider, err := observe.InitProvider(version)
		if err != nil {
			return fmt.Errorf("failed to init metrics: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = provider.Shutdown(shutdownCtx)
		}()
		go func() {
			if err := provider.Serve(ctx, cfg.Metrics.Addr); err != nil {
				log.Printf("Metrics: server error: %v", err)
			}
		}()
		metrics = provider.Metrics
	}

	audioCfg := cfg.ToAudioConfig()
	dev, err := audio.NewDevice(audioCfg)
	if err != nil {
		return fmt.Errorf("failed to create audio device: %w", err)
	}
	src := audio.NewSource(dev, audioCfg.QueueSize, relay.WithDropHook(metrics.DropHook("audio")))

	backend, closeBackend, err := newBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	translator, err := translate.New(cfg.ToTranslateConfig())
	if err != nil {
		return err
	}

	sink, closeSink, err := newSink(cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	if styled, ok := sink.(interface{ SetStyle(render.Style) }); ok {
		mgr.OnChange(func(c *config.Config) { styled.SetStyle(c.ToStyle()) })
		if err := mgr.StartWatching(ctx); err != nil {
			log.Printf("Config manager: not watching for changes: %v", err)
		}
		defer mgr.Stop()
	}

	notifier := notify.New(cfg.General.Notify)
	p := pipeline.New(src, backend, translator, sink, pipeline.Config{
		Caption: cfg.ToCaptionConfig(),
		Session: recognition.SessionConfig{
			AttemptTimeout: cfg.Recognition.AttemptTimeout,
			OnStateChange:  notifier.StateChanged,
			Stop:           stop,
		},
		Metrics: metrics,
	})

	err = p.Run(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, shutdown.ErrRequested):
		return nil
	default:
		notifier.Error(err.Error())
		return err
	}
}

func newBackend(ctx context.Context, cfg *config.Config) (recognition.Backend, func(), error) {
	switch cfg.Recognition.Provider {
	case "google":
		b, err := google.New(ctx, cfg.ToGoogleConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create google recognizer: %w", err)
		}
		return b, func() { _ = b.Close() }, nil
	default:
		b, err := deepgram.New(cfg.ToDeepgramConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create deepgram recognizer: %w", err)
		}
		return b, func() {}, nil
	}
}

func newSink(cfg *config.Config) (caption.Sink, func(), error) {
	style := cfg.ToStyle()
	switch cfg.Caption.Mode {
	case "plain":
		s := render.NewPlainSink(os.Stdout)
		s.Speaker = style.ShowSpeaker
		return s, func() {}, nil
	case "fullscreen":
		height := 0
		if w, h, err := term.GetSize(os.Stdout.Fd()); err == nil {
			height = h
			if style.Width <= 0 || style.Width > w {
				style.Width = w
			}
		}
		s := render.NewFullscreenSink(os.Stdout, height, style)
		if err := s.Open(); err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		s := render.NewLineSink(os.Stdout, style)
		return s, func() { _ = s.Close() }, nil
	}
}

// setupLogging sends logs to path. Without a path, logs go to stderr except
// in fullscreen mode where they would draw over the captions.
func setupLogging(path, mode string) (func(), error) {
	if path == "" {
		if mode == "fullscreen" {
			log.SetOutput(io.Discard)
		}
		return func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		f.Close()
	}, nil
}
