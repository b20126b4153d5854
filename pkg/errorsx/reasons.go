package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonHubConnect ReasonCode = "hub_connect"
	ReasonHubConfig  ReasonCode = "hub_config"
	ReasonHubVoice   ReasonCode = "hub_voice"
	ReasonHubChat    ReasonCode = "hub_chat"
	ReasonHubReset   ReasonCode = "hub_reset"

	ReasonMicCapture ReasonCode = "mic_capture"

	ReasonPlaybackSpawn ReasonCode = "playback_spawn"

	ReasonWakeStart ReasonCode = "wake_start"
)

var hints = map[ReasonCode]string{
	ReasonHubConnect:    "Is the hub running? Check NIA_HUB_URL and NIA_API_KEY.",
	ReasonMicCapture:    "Check the microphone, or run with --text.",
	ReasonPlaybackSpawn: "Install ffmpeg or mpv for audio playback.",
	ReasonWakeStart:     "Check PICOVOICE_ACCESS_KEY and the --wake model name.",
}
