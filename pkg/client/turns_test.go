package client

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"

	"github.com/niahub/voicecli/pkg/hub"
	"github.com/niahub/voicecli/pkg/logging"
	"github.com/niahub/voicecli/pkg/metrics"
	"github.com/niahub/voicecli/pkg/playback"
)

func init() {
	// Keep ANSI escapes out of output assertions.
	color.NoColor = true
}

type fakeHub struct {
	mu sync.Mutex

	toolCount int

	voiceCalls   int
	voiceWAV     []byte
	voiceSession string
	chunks       [][]byte
	result       hub.VoiceResult
	streamErr    error
	voiceErr     error

	chatCalls int
	chatText  string
	chatReply string
	chatErr   error
	// chatBlock, when set, holds Chat open until closed so tests can
	// race other client actions against an in-flight turn.
	chatBlock chan struct{}

	resetCalls    int
	resetSessions []string
}

func (f *fakeHub) ConnectWithRetry(ctx context.Context, maxRetries int) (int, error) {
	return f.toolCount, nil
}

func (f *fakeHub) FetchDeviceConfig(ctx context.Context) (hub.DeviceConfig, error) {
	return hub.DeviceConfig{}, nil
}

func (f *fakeHub) FetchAIConfig(ctx context.Context) (hub.AIConfig, error) {
	return hub.AIConfig{}, nil
}

func (f *fakeHub) FetchSystemContext(ctx context.Context) (string, error) {
	return "", nil
}

func (f *fakeHub) ResetConversation(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCalls++
	f.resetSessions = append(f.resetSessions, sessionID)
	return nil
}

func (f *fakeHub) VoicePipeline(ctx context.Context, wav []byte, sessionID string) (*hub.VoiceStream, error) {
	f.mu.Lock()
	f.voiceCalls++
	f.voiceWAV = wav
	f.voiceSession = sessionID
	f.mu.Unlock()
	if f.voiceErr != nil {
		return nil, f.voiceErr
	}
	stream := hub.NewVoiceStream()
	go func() {
		for _, c := range f.chunks {
			stream.Emit(c)
		}
		stream.Finish(f.result, f.streamErr)
	}()
	return stream, nil
}

func (f *fakeHub) Chat(ctx context.Context, text, sessionID string) (string, error) {
	f.mu.Lock()
	f.chatCalls++
	f.chatText = text
	block := f.chatBlock
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.chatErr != nil {
		return "", f.chatErr
	}
	return f.chatReply, nil
}

func (f *fakeHub) voiceCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.voiceCalls
}

type fakeRecorder struct {
	wav []byte
	err error
}

func (f *fakeRecorder) Record(ctx context.Context) ([]byte, error) { return f.wav, f.err }
func (f *fakeRecorder) Close() error                               { return nil }

type fakeSink struct {
	mu         sync.Mutex
	openErr    error
	opens      int
	writes     [][]byte
	closes     int
	lateWrites int
}

func (f *fakeSink) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	return f.openErr
}

func (f *fakeSink) Write(chunk []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closes > 0 {
		f.lateWrites++
		return nil
	}
	c := make([]byte, len(chunk))
	copy(c, chunk)
	f.writes = append(f.writes, c)
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

// safeBuffer lets assertions read output while a turn goroutine is
// still writing.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestClient(h *fakeHub, rec *fakeRecorder, sink *fakeSink) (*Client, *safeBuffer) {
	out := &safeBuffer{}
	c := New(Options{
		Hub:        h,
		Recorder:   rec,
		PlayerSpec: playback.LaunchSpec{Available: true},
		Logger:     logging.NewLogger(&bytes.Buffer{}, slog.LevelDebug, "text"),
		Out:        out,
		SinkFactory: func() AudioSink {
			return sink
		},
	})
	return c, out
}

func TestVoiceTurnStreamsChunksAndPrintsResult(t *testing.T) {
	h := &fakeHub{
		chunks: [][]byte{[]byte("one"), []byte("two"), []byte("three")},
		result: hub.VoiceResult{Transcript: "turn on the lights", Reply: "Done."},
	}
	rec := &fakeRecorder{wav: make([]byte, 50000)}
	sink := &fakeSink{}
	c, out := newTestClient(h, rec, sink)

	c.RunVoiceTurn(context.Background(), TriggerManual)

	if h.voiceCallCount() != 1 {
		t.Fatalf("expected 1 voice call, got %d", h.voiceCallCount())
	}
	if len(sink.writes) != 3 {
		t.Fatalf("expected 3 sink writes, got %d", len(sink.writes))
	}
	for i, want := range []string{"one", "two", "three"} {
		if string(sink.writes[i]) != want {
			t.Fatalf("write %d = %q, want %q", i, sink.writes[i], want)
		}
	}
	if sink.closes == 0 {
		t.Fatalf("sink was never closed")
	}
	if sink.lateWrites != 0 {
		t.Fatalf("%d writes arrived after close", sink.lateWrites)
	}
	text := out.String()
	if !strings.Contains(text, "You: turn on the lights") {
		t.Fatalf("transcript missing from output:\n%s", text)
	}
	if !strings.Contains(text, "Nia: Done.") {
		t.Fatalf("reply missing from output:\n%s", text)
	}
	if c.guard.Busy() {
		t.Fatalf("guard still busy after turn")
	}
}

func TestShortCaptureSkipsHubCall(t *testing.T) {
	h := &fakeHub{}
	rec := &fakeRecorder{wav: make([]byte, 1200)}
	sink := &fakeSink{}
	c, out := newTestClient(h, rec, sink)

	c.RunVoiceTurn(context.Background(), TriggerManual)

	if h.voiceCallCount() != 0 {
		t.Fatalf("short capture must not reach the hub")
	}
	if sink.opens != 0 {
		t.Fatalf("no sink should be opened for a rejected capture")
	}
	if !strings.Contains(out.String(), "Nothing captured") {
		t.Fatalf("missing 'Nothing captured' status:\n%s", out.String())
	}
	if c.guard.Busy() {
		t.Fatalf("guard still busy after short capture")
	}
}

func TestCaptureAtThresholdReachesHub(t *testing.T) {
	h := &fakeHub{result: hub.VoiceResult{Transcript: "hi", Reply: "hello"}}
	rec := &fakeRecorder{wav: make([]byte, MinCaptureBytes)}
	sink := &fakeSink{}
	c, _ := newTestClient(h, rec, sink)

	c.RunVoiceTurn(context.Background(), TriggerManual)
	if h.voiceCallCount() != 1 {
		t.Fatalf("threshold capture should reach the hub")
	}
}

func TestVoiceTurnRecordsMetrics(t *testing.T) {
	h := &fakeHub{
		chunks: [][]byte{[]byte("audio")},
		result: hub.VoiceResult{Transcript: "hi", Reply: "hello"},
	}
	obs := metrics.NewMemoryObserver()
	sink := &fakeSink{}
	c := New(Options{
		Hub:        h,
		Recorder:   &fakeRecorder{wav: make([]byte, 50000)},
		PlayerSpec: playback.LaunchSpec{Available: true},
		Logger:     logging.NewLogger(&bytes.Buffer{}, slog.LevelDebug, "text"),
		Out:        &bytes.Buffer{},
		Metrics:    obs,
		SinkFactory: func() AudioSink {
			return sink
		},
	})

	c.RunVoiceTurn(context.Background(), TriggerManual)

	got := map[string]metrics.Event{}
	for _, ev := range obs.Snapshot() {
		got[ev.Name] = ev
	}
	capture, ok := got["turn.capture_bytes"]
	if !ok || capture.Value != 50000 {
		t.Fatalf("capture_bytes event missing or wrong: %+v", got)
	}
	dur, ok := got["turn.duration"]
	if !ok {
		t.Fatalf("duration event missing: %+v", got)
	}
	if dur.Tags["trigger"] != string(TriggerManual) || dur.Tags["kind"] != "voice" {
		t.Fatalf("unexpected duration tags: %v", dur.Tags)
	}
}

func TestMidStreamErrorStillClosesSinkAndReleasesGuard(t *testing.T) {
	h := &fakeHub{
		chunks:    [][]byte{[]byte("partial")},
		streamErr: errors.New("hub fell over"),
	}
	rec := &fakeRecorder{wav: make([]byte, 50000)}
	sink := &fakeSink{}
	c, out := newTestClient(h, rec, sink)

	c.RunVoiceTurn(context.Background(), TriggerManual)

	if len(sink.writes) != 1 {
		t.Fatalf("expected 1 write before failure, got %d", len(sink.writes))
	}
	if sink.closes == 0 {
		t.Fatalf("sink must be closed on the error path")
	}
	if !strings.Contains(out.String(), "hub fell over") {
		t.Fatalf("error status missing:\n%s", out.String())
	}
	if c.guard.Busy() {
		t.Fatalf("guard leaked on error path")
	}
}

func TestVoiceCallErrorReleasesGuard(t *testing.T) {
	h := &fakeHub{voiceErr: errors.New("connection refused")}
	rec := &fakeRecorder{wav: make([]byte, 50000)}
	sink := &fakeSink{}
	c, out := newTestClient(h, rec, sink)

	c.RunVoiceTurn(context.Background(), TriggerManual)

	if sink.opens != 0 {
		t.Fatalf("sink must not open when the call never starts")
	}
	if !strings.Contains(out.String(), "connection refused") {
		t.Fatalf("error status missing:\n%s", out.String())
	}
	if c.guard.Busy() {
		t.Fatalf("guard leaked on call error")
	}
}

func TestCaptureErrorReleasesGuard(t *testing.T) {
	h := &fakeHub{}
	rec := &fakeRecorder{err: errors.New("no input device")}
	sink := &fakeSink{}
	c, out := newTestClient(h, rec, sink)

	c.RunVoiceTurn(context.Background(), TriggerManual)

	if h.voiceCallCount() != 0 {
		t.Fatalf("hub must not be called when capture fails")
	}
	if !strings.Contains(out.String(), "no input device") {
		t.Fatalf("error status missing:\n%s", out.String())
	}
	if c.guard.Busy() {
		t.Fatalf("guard leaked on capture error")
	}
}

func TestEmptyTranscriptReportsNothingTranscribed(t *testing.T) {
	h := &fakeHub{result: hub.VoiceResult{Transcript: "", Reply: ""}}
	rec := &fakeRecorder{wav: make([]byte, 50000)}
	sink := &fakeSink{}
	c, out := newTestClient(h, rec, sink)

	c.RunVoiceTurn(context.Background(), TriggerManual)
	if !strings.Contains(out.String(), "Nothing transcribed") {
		t.Fatalf("missing 'Nothing transcribed' status:\n%s", out.String())
	}
}

func TestNoPlayerWarnsOnceAndTurnSucceeds(t *testing.T) {
	h := &fakeHub{
		chunks: [][]byte{[]byte("audio")},
		result: hub.VoiceResult{Transcript: "hi", Reply: "hello"},
	}
	rec := &fakeRecorder{wav: make([]byte, 50000)}
	sink := &fakeSink{openErr: playback.ErrNoPlayer}
	c, out := newTestClient(h, rec, sink)

	c.RunVoiceTurn(context.Background(), TriggerManual)
	c.RunVoiceTurn(context.Background(), TriggerManual)

	if got := strings.Count(out.String(), "No MP3 player found"); got != 1 {
		t.Fatalf("expected a single no-player warning, got %d:\n%s", got, out.String())
	}
	if !strings.Contains(out.String(), "Nia: hello") {
		t.Fatalf("reply should still print without a player:\n%s", out.String())
	}
}

func TestTextTurnPrintsReply(t *testing.T) {
	h := &fakeHub{chatReply: "All lights are on."}
	sink := &fakeSink{}
	c, out := newTestClient(h, &fakeRecorder{}, sink)

	c.RunTextTurn(context.Background(), "turn on the lights", TriggerInline)

	if h.chatCalls != 1 || h.chatText != "turn on the lights" {
		t.Fatalf("chat not invoked correctly: calls=%d text=%q", h.chatCalls, h.chatText)
	}
	if sink.opens != 0 {
		t.Fatalf("text turns never open a sink")
	}
	if !strings.Contains(out.String(), "Nia: All lights are on.") {
		t.Fatalf("reply missing:\n%s", out.String())
	}
	if c.guard.Busy() {
		t.Fatalf("guard still busy after text turn")
	}
}

func TestTextTurnErrorReleasesGuard(t *testing.T) {
	h := &fakeHub{chatErr: errors.New("hub timeout")}
	c, out := newTestClient(h, &fakeRecorder{}, &fakeSink{})

	c.RunTextTurn(context.Background(), "hello", TriggerImplicit)

	if !strings.Contains(out.String(), "hub timeout") {
		t.Fatalf("error status missing:\n%s", out.String())
	}
	if c.guard.Busy() {
		t.Fatalf("guard leaked")
	}
}

func TestTurnRejectedWhileGuardHeld(t *testing.T) {
	h := &fakeHub{}
	rec := &fakeRecorder{wav: make([]byte, 50000)}
	c, _ := newTestClient(h, rec, &fakeSink{})

	if !c.guard.TryEnter() {
		t.Fatalf("setup: guard entry failed")
	}
	c.RunVoiceTurn(context.Background(), TriggerWake)
	if h.voiceCallCount() != 0 {
		t.Fatalf("turn body ran despite busy guard")
	}
	c.guard.Leave()
}
