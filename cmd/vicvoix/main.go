// VicVoix: a terminal form for cloud text-to-speech.
//
// Usage:
//
//	vicvoix [-config vicvoix.yaml] [-verbose] [-quiet] [-log-file path]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hammamikhairi/vicvoix/internal/config"
	"github.com/hammamikhairi/vicvoix/internal/conversation"
	"github.com/hammamikhairi/vicvoix/internal/display"
	"github.com/hammamikhairi/vicvoix/internal/export"
	"github.com/hammamikhairi/vicvoix/internal/logger"
	"github.com/hammamikhairi/vicvoix/internal/playback"
	"github.com/hammamikhairi/vicvoix/internal/session"
	"github.com/hammamikhairi/vicvoix/internal/speech"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "config file (default: ./vicvoix.yaml, then the user config dir)")
	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	quiet := flag.Bool("quiet", false, "disable all logging")
	logFile := flag.String("log-file", "", "file to write logs to (use \"stderr\" to log to console; overrides logging.file)")
	loadVoices := flag.Bool("load-voices", false, "fetch the voice list on startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		os.Exit(2)
	}

	// Configure logger.
	logLevel := cfg.LogLevel()
	if *verbose {
		logLevel = logger.LevelVerbose
	}
	if *quiet {
		logLevel = logger.LevelOff
	}

	// Direct logs to a file by default so the form stays clean.
	path := cfg.Logging.File
	if *logFile != "" {
		path = *logFile
	}
	var logOut io.Writer = os.Stderr
	if path != "" && path != "stderr" {
		dir := filepath.Dir(path)
		if dir != "" && dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", path, err)
		} else {
			logOut = f
			defer f.Close()
		}
	}

	// Third-party libraries log through the standard logger; keep them
	// off the terminal too.
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(logLevel, logOut)
	if cfg.File != "" {
		log.Info("loaded config file %s", cfg.File)
	}

	// Cancelled on SIGINT/SIGTERM; the form quits with it.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Wire dependencies.
	client := speech.NewClient(cfg.API.Key, log,
		speech.WithBaseURL(cfg.API.BaseURL),
		speech.WithHTTPTimeout(cfg.API.Timeout),
	)
	builder := speech.NewBuilder(cfg.Synthesis.MaxChars, cfg.Synthesis.SampleRateHertz)

	ui := display.NewUI(display.Options{
		MaxChars:   builder.MaxChars(),
		SliderStep: cfg.Slider.Step,
		SeekStep:   cfg.Playback.SeekStep,
		Styles:     styles(cfg.Synthesis.DefaultStyle),
	})
	notifier := conversation.NewCLINotifier(log, ui.Printf)

	var device playback.Device = playback.NoDevice{}
	oto := playback.NewOtoDevice(cfg.Synthesis.SampleRateHertz, log)
	if err := oto.Init(); err != nil {
		log.Error("audio output unavailable, playback disabled: %v", err)
	} else {
		device = oto
	}
	player := playback.NewController(device, log,
		playback.WithReportInterval(cfg.Playback.ReportInterval),
		playback.WithStateHook(ui.OnPlaybackState),
		playback.WithProgressHook(ui.OnPlaybackProgress),
		playback.WithErrorHook(ui.OnPlaybackError),
	)

	var gate export.PermissionGate
	if cfg.Export.LegacyPermissions {
		gate = export.DirGate{}
	}

	orch := session.New(session.Deps{
		Voices:   client,
		Synth:    client,
		Builder:  builder,
		Player:   player,
		Exporter: export.NewController(gate, log),
		Picker:   display.NewPicker(ui, cfg.Export.Dir),
		Notifier: notifier,
	}, log,
		session.WithLocale(cfg.Synthesis.Locale),
		session.WithControlMax(cfg.Slider.Max),
		session.WithDefaults(cfg.Synthesis.DefaultRate, cfg.Synthesis.DefaultPitch, cfg.Synthesis.DefaultStyle),
		session.WithPlayAfterExport(cfg.Export.PlayAfter),
		session.WithNamePrefix(cfg.Export.NamePrefix),
	)
	defer orch.Close()
	ui.Bind(orch, player)

	fmt.Println(display.RenderBanner(fmt.Sprintf("%s text-to-speech · ctrl+l loads voices · ctrl+c quits", cfg.Synthesis.Locale)))
	fmt.Println()

	if *loadVoices {
		go func() {
			ui.WaitReady()
			orch.LoadVoices(ctx)
		}()
	}

	// Bubble Tea owns the terminal. Blocks until quit.
	if err := ui.Run(ctx); err != nil {
		log.Error("display: %v", err)
	}
	orch.Close()
	log.Info("bye")
}

// styles returns the selectable style tokens, with the configured default
// included.
func styles(def string) []string {
	out := append([]string(nil), speech.Styles...)
	for _, s := range out {
		if s == def {
			return out
		}
	}
	return append(out, def)
}
