package config

import "time"

// SpeechConfig controls the text-to-speech pipeline that voices
// donation messages. The budget fields cap how much synthesis a single
// streamer may consume; counters live in Redis and reset with the
// calendar day and month.
type SpeechConfig struct {
	Enabled        bool
	APIURL         string        // synthesis endpoint, empty disables speech
	APIKey         string        // bearer token for the synthesis API
	Timeout        time.Duration // per-request synthesis timeout
	MaxMessageLen  int           // messages longer than this are truncated before synthesis
	WindowRequests int           // requests allowed per five-minute window
	DailyRequests  int           // synthesis requests per streamer per day
	MonthlyRequest int           // synthesis requests per streamer per month
	DailyChars     int           // synthesized characters per streamer per day
	MonthlyChars   int           // synthesized characters per streamer per month
}

func LoadSpeechConfig() SpeechConfig {
	return SpeechConfig{
		Enabled:        envBool("SPEECH_ENABLED", true),
		APIURL:         envStr("SPEECH_API_URL", ""),
		APIKey:         envStr("SPEECH_API_KEY", ""),
		Timeout:        envDur("SPEECH_TIMEOUT", 10*time.Second),
		MaxMessageLen:  envInt("SPEECH_MAX_MESSAGE_LEN", 300),
		WindowRequests: envInt("SPEECH_WINDOW_REQUESTS", 5),
		DailyRequests:  envInt("SPEECH_DAILY_REQUESTS", 200),
		MonthlyRequest: envInt("SPEECH_MONTHLY_REQUESTS", 3000),
		DailyChars:     envInt("SPEECH_DAILY_CHARS", 30000),
		MonthlyChars:   envInt("SPEECH_MONTHLY_CHARS", 500000),
	}
}
