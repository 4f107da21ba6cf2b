package transcription

import (
	"strings"

	"github.com/tidwall/gjson"
)

const transcriptPath = "channel.alternatives.0.transcript"

// ExtractTranscript pulls the best transcript out of a recognition payload.
// Anything missing, mistyped or not final yields "".
func ExtractTranscript(payload []byte) string {
	if len(payload) == 0 || !gjson.ValidBytes(payload) {
		return ""
	}
	if final := gjson.GetBytes(payload, "is_final"); final.Exists() && final.Type == gjson.False {
		return ""
	}
	res := gjson.GetBytes(payload, transcriptPath)
	if res.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(res.Str)
}
