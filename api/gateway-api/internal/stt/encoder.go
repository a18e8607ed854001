// Copyright (c) 2024-2026 SohriAI
//
// Licensed under GPL-2.0 with Sohri Additional Terms.
// See LICENSE.md for commercial usage.

package internal_stt

import (
	"bytes"
	"fmt"
	"os/exec"

	internal_audio "github.com/sohriai/gateway/api/gateway-api/internal/audio"
)

// Encoder turns raw wire PCM into the container format the recognition API
// accepts. Both WAV and MP3 are valid at that boundary; the choice is a
// deployment knob.
type Encoder interface {
	Encode(pcm []byte) ([]byte, error)
	Ext() string
}

// NewEncoder returns the encoder for a configured format name.
func NewEncoder(format string) (Encoder, error) {
	switch format {
	case "", "wav":
		return wavEncoder{}, nil
	case "mp3":
		return mp3Encoder{}, nil
	default:
		return nil, fmt.Errorf("stt: unsupported audio format %q", format)
	}
}

type wavEncoder struct{}

func (wavEncoder) Encode(pcm []byte) ([]byte, error) {
	return internal_audio.EncodeWAV(pcm), nil
}

func (wavEncoder) Ext() string { return "wav" }

// mp3Encoder shells out to ffmpeg, feeding raw PCM on stdin.
type mp3Encoder struct{}

func (mp3Encoder) Encode(pcm []byte) ([]byte, error) {
	cmd := exec.Command("ffmpeg",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", internal_audio.SampleRate),
		"-ac", fmt.Sprintf("%d", internal_audio.Channels),
		"-i", "pipe:0",
		"-f", "mp3",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(pcm)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("stt: mp3 encode failed: %w: %s", err, errBuf.String())
	}
	return out.Bytes(), nil
}

func (mp3Encoder) Ext() string { return "mp3" }
