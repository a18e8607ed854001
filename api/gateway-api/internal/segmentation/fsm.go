// Copyright (c) 2024-2026 SohriAI
//
// Licensed under GPL-2.0 with Sohri Additional Terms.
// See LICENSE.md for commercial usage.

package internal_segmentation

import (
	internal_epd "github.com/sohriai/gateway/api/gateway-api/internal/epd"
)

// Segmentation constants, in chunk units (one chunk = one detector event,
// nominally 100ms of audio).
const (
	// PreRoll is how many chunks before the first speech event are included
	// in the utterance, so the leading phoneme is not clipped.
	PreRoll = 4
	// PartialStep is the in-speech cadence of interim recognitions.
	PartialStep = 5
	// LongPause is the pause length (counted from utterance start) beyond
	// which a pause closes the utterance instead of emitting an interim.
	LongPause = 50
)

// Emit is one recognition request produced by the state machine: the chunk
// range [Start, End) and whether it closes the utterance.
type Emit struct {
	Start   int
	End     int
	IsFinal bool
}

// FSM segments one session's detector status stream into utterances. It
// counts detector events, never bytes or wall time: NChunks is the session
// clock and only the detector advances it.
//
// Invariants: 0 <= Start <= End <= NChunks after every event; Flag implies
// a speech event has been seen since the last reset.
type FSM struct {
	Start      int
	End        int
	Flag       bool // an utterance is open
	Recognized bool // a short-pause interim was already emitted for it
	LastChunk  int  // chunk index of the most recent enqueue
	NChunks    int  // detector events observed; never resets
}

func NewFSM() *FSM {
	return &FSM{}
}

// OnStatus advances the clock by one chunk and applies the transition rules,
// returning the recognition requests this event produced (at most one).
func (f *FSM) OnStatus(status internal_epd.Status) []Emit {
	f.NChunks++

	switch status {
	case internal_epd.StatusSpeech:
		return f.onSpeech()
	case internal_epd.StatusPause:
		return f.onPause()
	case internal_epd.StatusEnd:
		return f.onEnd()
	default:
		return nil
	}
}

func (f *FSM) onSpeech() []Emit {
	var emits []Emit

	if !f.Flag {
		f.Flag = true
		f.Start = f.NChunks - PreRoll
		if f.Start < 0 {
			f.Start = 0
		}
		f.LastChunk = f.NChunks
	} else if f.NChunks-f.LastChunk >= PartialStep {
		f.End = f.NChunks
		if f.End-f.Start > 1 {
			emits = append(emits, Emit{Start: f.Start, End: f.End, IsFinal: false})
		}
		f.LastChunk = f.NChunks
	}

	f.Recognized = false
	return emits
}

func (f *FSM) onPause() []Emit {
	if f.Recognized {
		return nil
	}

	var emits []Emit
	f.End = f.NChunks

	if f.NChunks-f.Start > LongPause {
		if f.End-f.Start > 1 {
			emits = append(emits, Emit{Start: f.Start, End: f.End, IsFinal: true})
		}
		f.reset()
		return emits
	}

	f.LastChunk = f.NChunks
	if f.End-f.Start > 1 {
		emits = append(emits, Emit{Start: f.Start, End: f.End, IsFinal: false})
	}
	f.Recognized = true
	return emits
}

func (f *FSM) onEnd() []Emit {
	if !f.Flag {
		return nil
	}

	var emits []Emit
	f.End = f.NChunks
	if f.End-f.Start > 1 {
		emits = append(emits, Emit{Start: f.Start, End: f.End, IsFinal: true})
	}
	f.reset()
	return emits
}

// Leftover closes an utterance at turn end: when more than one chunk of
// audio sits past the current start, the remainder becomes one last final.
func (f *FSM) Leftover() []Emit {
	if !f.Flag || f.NChunks-f.Start <= 1 {
		return nil
	}
	f.End = f.NChunks
	emit := Emit{Start: f.Start, End: f.End, IsFinal: true}
	f.reset()
	return []Emit{emit}
}

// reset closes the current utterance. The clock keeps running; Start and
// End collapse to the reset point.
func (f *FSM) reset() {
	f.Start = f.End
	f.Flag = false
	f.Recognized = false
	f.LastChunk = f.NChunks
}
