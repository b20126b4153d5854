package wake

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	porcupine "github.com/Picovoice/porcupine/binding/go/v3"
	"github.com/gordonklaus/portaudio"

	"github.com/niahub/voicecli/pkg/errorsx"
)

// DefaultModel is the built-in keyword used when --wake is given without
// a model name.
const DefaultModel = "jarvis"

var builtinModels = map[string]porcupine.BuiltInKeyword{
	"jarvis":    porcupine.JARVIS,
	"alexa":     porcupine.ALEXA,
	"computer":  porcupine.COMPUTER,
	"porcupine": porcupine.PORCUPINE,
	"bumblebee": porcupine.BUMBLEBEE,
}

// Models lists the supported built-in wake models.
func Models() []string {
	names := make([]string, 0, len(builtinModels))
	for name := range builtinModels {
		names = append(names, name)
	}
	return names
}

// PorcupineEngine detects a built-in wake word on the default input
// device. It pauses itself before firing the detection callback.
type PorcupineEngine struct {
	accessKey string
	model     string
	onDetect  func()
	logger    *slog.Logger

	mu      sync.Mutex
	paused  bool
	stopped bool

	pp     porcupine.Porcupine
	stream *portaudio.Stream
	frame  []int16
	done   chan struct{}
}

func NewPorcupineEngine(accessKey, model string, onDetect func(), logger *slog.Logger) *PorcupineEngine {
	if model == "" || strings.EqualFold(model, "default") {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PorcupineEngine{
		accessKey: accessKey,
		model:     strings.ToLower(model),
		onDetect:  onDetect,
		logger:    logger,
	}
}

func (e *PorcupineEngine) Start() error {
	keyword, ok := builtinModels[e.model]
	if !ok {
		return errorsx.Wrap(fmt.Errorf("unknown wake model %q (have: %s)", e.model, strings.Join(Models(), ", ")), errorsx.ReasonWakeStart)
	}
	if e.accessKey == "" {
		return errorsx.Wrap(fmt.Errorf("PICOVOICE_ACCESS_KEY is not set"), errorsx.ReasonWakeStart)
	}

	e.pp = porcupine.Porcupine{
		AccessKey:       e.accessKey,
		BuiltInKeywords: []porcupine.BuiltInKeyword{keyword},
	}
	if err := e.pp.Init(); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonWakeStart)
	}

	if err := portaudio.Initialize(); err != nil {
		_ = e.pp.Delete()
		return errorsx.Wrap(err, errorsx.ReasonWakeStart)
	}
	e.frame = make([]int16, porcupine.FrameLength)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(porcupine.SampleRate), porcupine.FrameLength, e.frame)
	if err != nil {
		_ = e.pp.Delete()
		_ = portaudio.Terminate()
		return errorsx.Wrap(err, errorsx.ReasonWakeStart)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = e.pp.Delete()
		_ = portaudio.Terminate()
		return errorsx.Wrap(err, errorsx.ReasonWakeStart)
	}

	e.stream = stream
	e.done = make(chan struct{})
	go e.listen()
	return nil
}

func (e *PorcupineEngine) listen() {
	defer close(e.done)
	for {
		e.mu.Lock()
		stopped, paused := e.stopped, e.paused
		e.mu.Unlock()
		if stopped {
			return
		}
		if paused {
			// Stream is stopped while paused; idle instead of spinning.
			time.Sleep(50 * time.Millisecond)
			continue
		}

		if err := e.stream.Read(); err != nil {
			e.logger.Debug("wake stream read failed", "error", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		idx, err := e.pp.Process(e.frame)
		if err != nil {
			e.logger.Debug("wake processing failed", "error", err)
			continue
		}
		if idx >= 0 {
			e.logger.Debug("wake word detected", "model", e.model)
			e.Pause()
			e.onDetect()
		}
	}
}

func (e *PorcupineEngine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused || e.stopped {
		return
	}
	e.paused = true
	if e.stream != nil {
		_ = e.stream.Stop()
	}
}

func (e *PorcupineEngine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.paused || e.stopped {
		return
	}
	e.paused = false
	if e.stream != nil {
		_ = e.stream.Start()
	}
}

func (e *PorcupineEngine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.mu.Unlock()

	if e.done != nil {
		<-e.done
	}
	if e.stream != nil {
		_ = e.stream.Stop()
		_ = e.stream.Close()
	}
	_ = e.pp.Delete()
	_ = portaudio.Terminate()
}
