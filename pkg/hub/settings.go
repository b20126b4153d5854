package hub

import (
	"strings"

	"github.com/mitchellh/mapstructure"
)

// DeviceConfig is the per-device configuration the hub pushes down.
type DeviceConfig struct {
	Room     string `mapstructure:"room"`
	Volume   int    `mapstructure:"volume"`
	TTSVoice string `mapstructure:"tts_voice"`
}

// AIConfig describes the hub's processing stack, for display only.
type AIConfig struct {
	LLMModel   string `mapstructure:"llm_model"`
	STTBaseURL string `mapstructure:"stt_base_url"`
	TTSBaseURL string `mapstructure:"tts_base_url"`
}

// decodeSettings decodes a free-form settings map into a typed struct,
// tolerating stringly-typed values and loose key spelling.
func decodeSettings(input map[string]any, out any) error {
	if len(input) == 0 {
		return nil
	}
	cfg := &mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           out,
		WeaklyTypedInput: true,
		MatchName: func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		},
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func normalizeKey(value string) string {
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", "")
	value = strings.ReplaceAll(value, "-", "")
	return value
}
