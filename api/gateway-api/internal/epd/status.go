// Copyright (c) 2024-2026 SohriAI
//
// Licensed under GPL-2.0 with Sohri Additional Terms.
// See LICENSE.md for commercial usage.
package internal_epd

// Status is the per-chunk verdict of the endpoint detector. The integer
// values are the wire contract; 5 is unassigned upstream.
type Status int

const (
	StatusWaiting    Status = 0
	StatusSpeech     Status = 1
	StatusPause      Status = 2
	StatusEnd        Status = 3
	StatusTimeout    Status = 4
	StatusMaxTimeout Status = 6
	StatusNone       Status = 7
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "EPD_WAITING"
	case StatusSpeech:
		return "EPD_SPEECH"
	case StatusPause:
		return "EPD_PAUSE"
	case StatusEnd:
		return "EPD_END"
	case StatusTimeout:
		return "EPD_TIMEOUT"
	case StatusMaxTimeout:
		return "EPD_MAX_TIMEOUT"
	case StatusNone:
		return "EPD_NONE"
	default:
		return "EPD_UNKNOWN"
	}
}

// Event is one inbound JSON frame from the detector.
type Event struct {
	SessionID   string   `json:"session_id"`
	Status      Status   `json:"status"`
	SpeechScore *float64 `json:"speech_score,omitempty"`
}
