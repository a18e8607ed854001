// Copyright (c) 2024-2026 SohriAI
//
// Licensed under GPL-2.0 with Sohri Additional Terms.
// See LICENSE.md for commercial usage.

package internal_audio

// Wire PCM format: 16 kHz mono signed 16-bit little-endian.
const (
	SampleRate          = 16000
	Channels            = 1
	AudioBytesPerSample = 2  // LINEAR16 → 2 bytes per sample
	AudioBitsPerSample  = 16 // LINEAR16 → 16 bits per sample
	AudioPCMFormat      = 1  // WAV PCM format tag

	// ChunkSamples is the nominal payload of one client audio message:
	// 100ms at 16kHz.
	ChunkSamples = 1600
	ChunkBytes   = ChunkSamples * AudioBytesPerSample
)

// BytesPerSecond is the PCM byte rate of the wire format.
func BytesPerSecond() int {
	return SampleRate * Channels * AudioBytesPerSample
}
