// Package hub talks to the voice hub: capability discovery, config
// pulls, conversation reset, and the two processing calls (voice and
// chat). STT, LLM reasoning, and TTS all run on the hub; this side only
// ships bytes.
package hub

import "context"

// Client is the hub contract consumed by the turn executor and the
// command loop. The HTTP implementation lives in this package; tests
// substitute fakes.
type Client interface {
	// ConnectWithRetry performs capability discovery, retrying internally.
	// It returns the number of tools the hub exposes.
	ConnectWithRetry(ctx context.Context, maxRetries int) (int, error)

	FetchDeviceConfig(ctx context.Context) (DeviceConfig, error)
	FetchAIConfig(ctx context.Context) (AIConfig, error)
	FetchSystemContext(ctx context.Context) (string, error)

	// ResetConversation clears server-side history for the session.
	ResetConversation(ctx context.Context, sessionID string) error

	// VoicePipeline posts captured WAV audio and returns a stream of reply
	// audio chunks plus the final transcript/reply pair.
	VoicePipeline(ctx context.Context, wav []byte, sessionID string) (*VoiceStream, error)

	// Chat is the text-only variant. No audio is streamed.
	Chat(ctx context.Context, text, sessionID string) (string, error)
}
