// voicecli is a terminal thin client for a Nia voice hub: it records the
// mic, ships WAV to the hub (STT + LLM + TTS run there), and plays the
// streamed MP3 reply. Text mode types commands instead of speaking.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dimiro1/banner"

	"github.com/niahub/voicecli/pkg/client"
	"github.com/niahub/voicecli/pkg/config"
	"github.com/niahub/voicecli/pkg/errorsx"
	"github.com/niahub/voicecli/pkg/hub"
	"github.com/niahub/voicecli/pkg/logging"
	"github.com/niahub/voicecli/pkg/metrics"
	"github.com/niahub/voicecli/pkg/mic"
	"github.com/niahub/voicecli/pkg/playback"
	"github.com/niahub/voicecli/pkg/redact"
	"github.com/niahub/voicecli/pkg/wake"
)

const version = "1.0.0"

func printBanner() {
	tpl := "{{ .Title \"NIA\" \"\" 0 }}voicecli " + version + "\n"
	banner.Init(os.Stdout, true, true, bytes.NewBufferString(tpl))
}

func main() {
	textMode := flag.Bool("text", false, "text-only mode: type commands instead of speaking")
	hubURL := flag.String("hub", "", "hub URL, e.g. https://192.168.39.10:18080 (overrides NIA_HUB_URL)")
	apiKey := flag.String("key", "", "hub API key (overrides NIA_API_KEY)")
	certPath := flag.String("cert", "", "path to hub TLS cert PEM for verification (overrides NIA_HUB_CERT)")
	wakeModel := flag.String("wake", "", "enable wake-word mode with MODEL (default, "+strings.Join(wake.Models(), ", ")+"); requires PICOVOICE_ACCESS_KEY")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *hubURL != "" {
		cfg.HubURL = *hubURL
	}
	if *apiKey != "" {
		cfg.APIKey = *apiKey
	}
	if *certPath != "" {
		cfg.HubCert = *certPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	// "--wake default" selects the built-in default keyword.
	if strings.EqualFold(*wakeModel, "default") {
		*wakeModel = wake.DefaultModel
	}

	logger := logging.InitLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	slog.SetDefault(logger)
	redact.SetEnabled(cfg.RedactPII)

	var observer metrics.Observer = metrics.NoopObserver{}
	if cfg.MetricsFile != "" {
		f, err := os.OpenFile(cfg.MetricsFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Warn("metrics file unavailable", "path", cfg.MetricsFile, "error", err)
		} else {
			async := metrics.NewAsyncObserver(metrics.NewJSONLObserver(f), 256)
			defer func() {
				async.Close()
				f.Close()
			}()
			observer = async
		}
	}

	printBanner()
	if cfg.Source != "" {
		fmt.Printf("  Config: %s\n", cfg.Source)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "\n  Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "  Create a .env file or use --hub URL / --key KEY")
		os.Exit(1)
	}

	hubClient, err := hub.NewHTTPClient(hub.Options{
		BaseURL:  cfg.HubURL,
		APIKey:   cfg.APIKey,
		CertPath: cfg.HubCert,
		Room:     cfg.Room,
		Logger:   logging.NewComponentLogger(logger, "hub"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "\n  Error: %v\n", err)
		os.Exit(1)
	}

	var recorder mic.Recorder
	if !*textMode {
		recorder, err = mic.NewPortAudioRecorder(mic.PortAudioOptions{
			Logger: logging.NewComponentLogger(logger, "mic"),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "\n  Error: audio input unavailable: %v\n", err)
			fmt.Fprintln(os.Stderr, "  Use --text to run without a microphone")
			os.Exit(1)
		}
		defer recorder.Close()
	}

	cli := client.New(client.Options{
		Hub:        hubClient,
		Recorder:   recorder,
		PlayerSpec: playback.Discover(),
		TextMode:   *textMode,
		WakeModel:  *wakeModel,
		CertPinned: hubClient.Pinned(),
		Logger:     logger,
		Metrics:    observer,
	})

	if *wakeModel != "" && !*textMode {
		engine := wake.NewPorcupineEngine(
			os.Getenv("PICOVOICE_ACCESS_KEY"),
			*wakeModel,
			cli.HandleWake,
			logging.NewComponentLogger(logger, "wake"),
		)
		cli.AttachWakeEngine(engine)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\n  Connecting to hub at %s …\n", cfg.HubURL)
	if err := cli.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "\n  %v\n", err)
		if hint := errorsx.Hint(err); hint != "" {
			fmt.Fprintf(os.Stderr, "  %s\n", hint)
		}
		os.Exit(1)
	}
}
