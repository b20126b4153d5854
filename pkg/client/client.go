// Package client is the interactive front end: it arbitrates turn
// triggers, drives one turn at a time through the hub, and streams the
// reply audio into the playback sink.
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/niahub/voicecli/pkg/hub"
	"github.com/niahub/voicecli/pkg/metrics"
	"github.com/niahub/voicecli/pkg/mic"
	"github.com/niahub/voicecli/pkg/playback"
	"github.com/niahub/voicecli/pkg/session"
	"github.com/niahub/voicecli/pkg/turn"
	"github.com/niahub/voicecli/pkg/wake"
)

// MinCaptureBytes rejects captures of under roughly 0.1s of encoded
// audio; anything shorter is treated as "nothing captured" and never
// reaches the hub.
const MinCaptureBytes = 2500

// Trigger identifies what started a turn, for logging.
type Trigger string

const (
	TriggerManual   Trigger = "manual-audio"
	TriggerWake     Trigger = "wake-audio"
	TriggerInline   Trigger = "inline-text"
	TriggerImplicit Trigger = "implicit-text"
)

// AudioSink is the per-turn playback destination. The default is a
// playback.Sink; tests substitute fakes.
type AudioSink interface {
	Open() error
	Write(chunk []byte) error
	Close() error
}

// Options wires the client's collaborators.
type Options struct {
	Hub        hub.Client
	Recorder   mic.Recorder
	PlayerSpec playback.LaunchSpec
	Session    *session.State
	TextMode   bool
	WakeModel  string
	// CertPinned is display-only: whether the hub TLS cert is verified
	// against a pinned PEM.
	CertPinned bool
	Logger     *slog.Logger
	Metrics    metrics.Observer
	In         io.Reader
	Out        io.Writer
	// SinkFactory overrides sink construction (tests only).
	SinkFactory func() AudioSink
}

// Client owns the command loop, the turn guard, and the wake bridge.
type Client struct {
	hub      hub.Client
	recorder mic.Recorder
	sess     *session.State
	guard    *turn.Guard
	newSink  func() AudioSink

	// engineMu guards engine and bridge: shutdown nils them while a
	// racing turn's prompt may still read them.
	engineMu  sync.Mutex
	engine    wake.Engine
	bridge    *wake.Bridge
	wakeModel string

	textMode     bool
	certPinned   bool
	playerSpec   playback.LaunchSpec
	playerWarned bool

	logger  *slog.Logger
	metrics metrics.Observer
	in      io.Reader
	out     io.Writer

	// runCtx is the lifetime of the command loop; wake-triggered turns
	// inherit it.
	runCtx context.Context
}

func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sess := opts.Session
	if sess == nil {
		sess = session.NewState()
	}
	in := opts.In
	if in == nil {
		in = os.Stdin
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	obs := opts.Metrics
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	c := &Client{
		hub:        opts.Hub,
		recorder:   opts.Recorder,
		sess:       sess,
		guard:      turn.NewGuard(),
		textMode:   opts.TextMode,
		certPinned: opts.CertPinned,
		wakeModel:  opts.WakeModel,
		playerSpec: opts.PlayerSpec,
		logger:     logger,
		metrics:    obs,
		in:         in,
		out:        &syncWriter{w: out},
		runCtx:     context.Background(),
	}
	c.newSink = opts.SinkFactory
	if c.newSink == nil {
		c.newSink = func() AudioSink {
			return playback.NewSinkWithOptions(opts.PlayerSpec, playback.SinkOptions{Logger: logger})
		}
	}
	return c
}

// Guard exposes the turn guard for wiring and tests.
func (c *Client) Guard() *turn.Guard { return c.guard }

// Session exposes the session state.
func (c *Client) Session() *session.State { return c.sess }

// AttachWakeEngine installs the detection engine behind a wake bridge.
// Call before Start; the engine's detection callback must invoke
// HandleWake.
func (c *Client) AttachWakeEngine(engine wake.Engine) {
	bridge := wake.NewBridge(engine, c.guard, func() {
		// Once accepted, a turn runs to completion; shutdown never aborts
		// the in-flight remote call.
		c.RunVoiceTurn(context.WithoutCancel(c.runCtx), TriggerWake)
	}, c.logger)
	c.setEngine(engine, bridge)
}

// HandleWake is the detection-engine callback entry point.
func (c *Client) HandleWake() {
	c.engineMu.Lock()
	bridge := c.bridge
	c.engineMu.Unlock()
	if bridge == nil {
		return
	}
	bridge.HandleDetection()
}

func (c *Client) setEngine(engine wake.Engine, bridge *wake.Bridge) {
	c.engineMu.Lock()
	c.engine = engine
	c.bridge = bridge
	c.engineMu.Unlock()
}

func (c *Client) wakeEngine() wake.Engine {
	c.engineMu.Lock()
	defer c.engineMu.Unlock()
	return c.engine
}

// Start connects to the hub, applies its configuration, arms the wake
// engine, and runs the command loop until quit or ctx cancellation.
// Errors returned here are the startup-fatal class; everything after the
// loop begins is recovered at the turn boundary.
func (c *Client) Start(ctx context.Context) error {
	c.runCtx = ctx

	n, err := c.hub.ConnectWithRetry(ctx, 3)
	if err != nil {
		return fmt.Errorf("hub connection failed: %w", err)
	}
	fmt.Fprintf(c.out, "  %s %d tools loaded\n", green.Sprint("✓"), n)

	dev, err := c.hub.FetchDeviceConfig(ctx)
	if err != nil {
		return fmt.Errorf("fetch device config: %w", err)
	}
	ai, err := c.hub.FetchAIConfig(ctx)
	if err != nil {
		return fmt.Errorf("fetch ai config: %w", err)
	}
	if _, err := c.hub.FetchSystemContext(ctx); err != nil {
		return fmt.Errorf("fetch system context: %w", err)
	}
	if err := c.hub.ResetConversation(ctx, c.sess.ID()); err != nil {
		return fmt.Errorf("reset conversation: %w", err)
	}

	if dev.Room != "" {
		dim.Fprintf(c.out, "  Room: %s\n", dev.Room)
	}
	if ai != (hub.AIConfig{}) {
		dim.Fprintf(c.out, "  LLM: %s | STT: %s | TTS: %s\n",
			orDefault(ai.LLMModel, "?"), orDefault(ai.STTBaseURL, "openai"), orDefault(ai.TTSBaseURL, "openai"))
	}

	if !c.textMode && !c.playerSpec.Available {
		yellow.Fprintln(c.out, "  ⚠  No MP3 player found — audio won't play. Install ffmpeg or mpv.")
		c.playerWarned = true
	}

	if engine := c.wakeEngine(); engine != nil && !c.textMode {
		if err := engine.Start(); err != nil {
			yellow.Fprintf(c.out, "  ⚠  Wake engine unavailable (%v) — continuing without wake word.\n", err)
			c.setEngine(nil, nil)
		}
	} else {
		c.setEngine(nil, nil)
	}

	c.hr()
	mode := "voice"
	switch {
	case c.wakeEngine() != nil:
		mode = "wake:" + c.wakeModel
	case c.textMode:
		mode = "text"
	}
	tlsNote := "unverified TLS"
	if c.certPinned {
		tlsNote = "✓ cert pinned"
	}
	fmt.Fprintf(c.out, "  %s  mode=%s  session=%s  %s\n",
		green.Sprint("Ready!"), mode, c.sess.Short(), dim.Sprintf("(%s)", tlsNote))
	c.hr()
	fmt.Fprintln(c.out)

	return c.Run(ctx)
}

func (c *Client) shutdown() {
	c.engineMu.Lock()
	engine := c.engine
	c.engine = nil
	c.bridge = nil
	c.engineMu.Unlock()
	if engine != nil {
		engine.Stop()
	}
	fmt.Fprintln(c.out)
	dim.Fprintln(c.out, "  Goodbye!")
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
