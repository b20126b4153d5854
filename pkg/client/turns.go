package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/niahub/voicecli/pkg/metrics"
	"github.com/niahub/voicecli/pkg/playback"
	"github.com/niahub/voicecli/pkg/redact"
	"github.com/niahub/voicecli/pkg/turn"
)

// recordTurn emits a turn.duration event tagged with what triggered the
// turn and whether audio or text carried it.
func (c *Client) recordTurn(trigger Trigger, kind string, started time.Time) {
	c.metrics.RecordEvent(metrics.Event{
		Name:  "turn.duration",
		Time:  time.Now(),
		Value: time.Since(started).Seconds(),
		Tags:  map[string]string{"trigger": string(trigger), "kind": kind},
	})
}

// RunVoiceTurn executes one full voice turn: capture, hub call, streamed
// playback, result printing. It is a no-op when another turn holds the
// guard; callers pre-check Busy, this is defense in depth.
func (c *Client) RunVoiceTurn(ctx context.Context, trigger Trigger) {
	if !c.guard.TryEnter() {
		c.logger.Debug("voice turn rejected, guard busy", "trigger", trigger)
		return
	}
	defer c.prompt()
	defer c.guard.Leave()
	defer c.recordTurn(trigger, "voice", time.Now())

	c.guard.SetPhase(turn.PhaseListening)
	c.status("🎙", green, "Listening… (speak now, stops on silence)")

	wav, err := c.recorder.Record(ctx)
	if err != nil {
		c.status("❌", red, fmt.Sprintf("Error: %v", err))
		c.logger.Warn("capture failed", "trigger", trigger, "error", err)
		return
	}
	c.metrics.RecordEvent(metrics.Event{
		Name:  "turn.capture_bytes",
		Time:  time.Now(),
		Value: float64(len(wav)),
		Tags:  map[string]string{"trigger": string(trigger)},
	})
	if len(wav) < MinCaptureBytes {
		c.status("💤", dim, "Nothing captured")
		return
	}
	c.runPipeline(ctx, wav, trigger)
}

// runPipeline streams the WAV to the hub and the reply audio to the
// sink. The sink is opened lazily on the first chunk and closed on every
// exit path.
func (c *Client) runPipeline(ctx context.Context, wav []byte, trigger Trigger) {
	c.guard.SetPhase(turn.PhaseThinking)
	c.status("⏳", yellow, "Thinking (hub: STT → LLM → TTS)…")

	stream, err := c.hub.VoicePipeline(ctx, wav, c.sess.ID())
	if err != nil {
		c.status("❌", red, fmt.Sprintf("Error: %v", err))
		c.logger.Warn("voice pipeline failed", "trigger", trigger, "error", err)
		return
	}

	sink := c.newSink()
	defer sink.Close()

	opened := false
	for chunk := range stream.Chunks() {
		if !opened {
			opened = true
			c.guard.SetPhase(turn.PhaseSpeaking)
			c.status("🔊", cyan, "Speaking…")
			if err := sink.Open(); err != nil {
				if errors.Is(err, playback.ErrNoPlayer) {
					if !c.playerWarned {
						c.playerWarned = true
						yellow.Fprintln(c.out, "  ⚠  No MP3 player found — audio won't play.")
					}
				} else {
					c.logger.Warn("player failed to start", "error", err)
				}
				// Keep draining so the hub call can finish; writes on an
				// unopened sink are discarded.
			}
		}
		if err := sink.Write(chunk); err != nil {
			c.logger.Warn("playback write failed", "error", err)
		}
	}

	result, err := stream.Wait()

	// Let the player drain before printing so the result text is not
	// interleaved with in-progress audio.
	if closeErr := sink.Close(); closeErr != nil {
		c.logger.Debug("player close", "error", closeErr)
	}

	if err != nil {
		c.status("❌", red, fmt.Sprintf("Error: %v", err))
		c.logger.Warn("voice pipeline failed mid-stream", "trigger", trigger, "error", err)
		return
	}

	fmt.Fprintln(c.out)
	if result.Transcript != "" {
		fmt.Fprintf(c.out, "  %s %s\n", dim.Sprint("You:"), result.Transcript)
		fmt.Fprintf(c.out, "  %s %s\n", cyan.Sprint("Nia:"), result.Reply)
		c.logger.Debug("voice turn complete",
			"trigger", trigger,
			"transcript", redact.Transcript(result.Transcript),
			"reply", redact.Transcript(result.Reply))
	} else {
		c.status("💤", dim, "Nothing transcribed (silence?)")
	}
	fmt.Fprintln(c.out)
}

// RunTextTurn sends literal text through the hub's chat endpoint. The
// reply is printed, not vocalized.
func (c *Client) RunTextTurn(ctx context.Context, text string, trigger Trigger) {
	if !c.guard.TryEnter() {
		c.logger.Debug("text turn rejected, guard busy", "trigger", trigger)
		return
	}
	defer c.prompt()
	defer c.guard.Leave()
	defer c.recordTurn(trigger, "text", time.Now())

	c.guard.SetPhase(turn.PhaseThinking)
	fmt.Fprintln(c.out)
	dim.Fprintf(c.out, "  → %s\n", text)
	c.status("⏳", yellow, "Thinking (hub: LLM + tool calls)…")

	reply, err := c.hub.Chat(ctx, text, c.sess.ID())
	if err != nil {
		c.status("❌", red, fmt.Sprintf("Error: %v", err))
		c.logger.Warn("chat failed", "trigger", trigger, "error", err)
		return
	}

	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "  %s %s\n", cyan.Sprint("Nia:"), reply)
	fmt.Fprintln(c.out)
	c.logger.Debug("text turn complete", "trigger", trigger, "reply", redact.Transcript(reply))
}
