package mic

import (
	"bytes"
	"context"
	"encoding/binary"
	"log/slog"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/niahub/voicecli/pkg/errorsx"
)

const (
	// SampleRate matches what the hub's STT expects.
	SampleRate    = 16000
	channels      = 1
	bitsPerSample = 16
	frameSamples  = 512
)

// PortAudioOptions tunes the silence auto-stop behaviour.
type PortAudioOptions struct {
	// SilenceThreshold is the RMS amplitude (int16 scale) below which a
	// frame counts as silence.
	SilenceThreshold float64
	// TrailingSilence ends the capture once this much silence follows
	// speech.
	TrailingSilence time.Duration
	// MaxDuration hard-caps a capture that never goes quiet.
	MaxDuration time.Duration
	Logger      *slog.Logger
}

// PortAudioRecorder captures 16 kHz mono PCM16 from the default input
// device via PortAudio.
type PortAudioRecorder struct {
	opts PortAudioOptions
}

func NewPortAudioRecorder(opts PortAudioOptions) (*PortAudioRecorder, error) {
	if opts.SilenceThreshold <= 0 {
		opts.SilenceThreshold = 500
	}
	if opts.TrailingSilence <= 0 {
		opts.TrailingSilence = 1200 * time.Millisecond
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonMicCapture)
	}
	return &PortAudioRecorder{opts: opts}, nil
}

func (r *PortAudioRecorder) Close() error {
	return portaudio.Terminate()
}

func (r *PortAudioRecorder) Record(ctx context.Context) ([]byte, error) {
	in := make([]int16, frameSamples)
	stream, err := portaudio.OpenDefaultStream(channels, 0, float64(SampleRate), frameSamples, in)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonMicCapture)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonMicCapture)
	}
	defer stream.Stop()

	var pcm bytes.Buffer
	frameDur := time.Duration(frameSamples) * time.Second / SampleRate
	var silentFor time.Duration
	var elapsed time.Duration
	heardSpeech := false

	for {
		select {
		case <-ctx.Done():
			return r.finish(pcm.Bytes()), ctx.Err()
		default:
		}

		if err := stream.Read(); err != nil {
			return nil, errorsx.Wrap(err, errorsx.ReasonMicCapture)
		}
		_ = binary.Write(&pcm, binary.LittleEndian, in)
		elapsed += frameDur

		if rms(in) >= r.opts.SilenceThreshold {
			heardSpeech = true
			silentFor = 0
		} else {
			silentFor += frameDur
		}

		if heardSpeech && silentFor >= r.opts.TrailingSilence {
			break
		}
		if elapsed >= r.opts.MaxDuration {
			r.opts.Logger.Debug("capture hit max duration", "elapsed", elapsed)
			break
		}
	}

	return r.finish(pcm.Bytes()), nil
}

func (r *PortAudioRecorder) finish(pcm []byte) []byte {
	return EncodeWAV(pcm, SampleRate, channels, bitsPerSample)
}

func rms(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}
