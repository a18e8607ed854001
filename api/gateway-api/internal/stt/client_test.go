// Copyright (c) 2024-2026 SohriAI
//
// Licensed under GPL-2.0 with Sohri Additional Terms.
// See LICENSE.md for commercial usage.

package internal_stt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal_artifacts "github.com/sohriai/gateway/api/gateway-api/internal/artifacts"
	internal_audio "github.com/sohriai/gateway/api/gateway-api/internal/audio"
	internal_type "github.com/sohriai/gateway/api/gateway-api/internal/type"
	"github.com/sohriai/gateway/pkg/commons"
)

type receivedPart struct {
	field    string
	filename string
	size     int
}

func newBatchServer(t *testing.T, respond func(stems []string) []utteranceResult, wantAuth string) (*httptest.Server, *[]receivedPart) {
	t.Helper()
	var parts []receivedPart

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wantAuth != "" {
			assert.Equal(t, wantAuth, r.Header.Get("Authorization"))
		}
		require.NoError(t, r.ParseMultipartForm(32<<20))

		var stems []string
		for field, headers := range r.MultipartForm.File {
			for _, h := range headers {
				parts = append(parts, receivedPart{field: field, filename: h.Filename, size: int(h.Size)})
				stems = append(stems, strings.TrimSuffix(h.Filename, filepath.Ext(h.Filename)))
			}
		}

		resp := batchResponse{}
		resp.Content.Result.Utterances = respond(stems)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, &parts
}

func newTestClient(t *testing.T, url, token string) *Client {
	t.Helper()
	logger, err := commons.NewApplicationLogger()
	require.NoError(t, err)
	encoder, err := NewEncoder("wav")
	require.NoError(t, err)
	artifacts := internal_artifacts.NewStore(logger, t.TempDir())
	return NewClient(logger, url, url, token, encoder, artifacts)
}

func batchItem(session string, seq uint64, start, end int, final bool) internal_type.BatchItem {
	return internal_type.BatchItem{
		WorkItem: internal_type.WorkItem{
			SessionID: session, Sequence: seq, Start: start, End: end, IsFinal: final,
		},
		PCM: make([]byte, (end-start)*internal_audio.ChunkBytes),
	}
}

func TestClient_BatchRoundTrip(t *testing.T) {
	server, parts := newBatchServer(t, func(stems []string) []utteranceResult {
		out := make([]utteranceResult, len(stems))
		for i, stem := range stems {
			out[i] = utteranceResult{ID: stem, Text: "text for " + stem}
		}
		return out
	}, "Bearer secret-token")

	c := newTestClient(t, server.URL, "secret-token")
	items := []internal_type.BatchItem{
		batchItem("sess-a", 0, 0, 9, false),
		batchItem("sess-a", 1, 0, 10, true),
	}

	recs, err := c.Batch(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	byseq := map[uint64]internal_type.Recognition{}
	for _, rec := range recs {
		byseq[rec.Sequence] = rec
	}
	assert.Equal(t, "text for sess-a_0-9", byseq[0].Result)
	assert.False(t, byseq[0].IsFinal)
	assert.Equal(t, "text for sess-a_0-10", byseq[1].Result)
	assert.True(t, byseq[1].IsFinal)
	assert.Greater(t, byseq[0].Elapsed.Nanoseconds(), int64(0))

	// One "files" part per item, WAV header included in the upload size.
	require.Len(t, *parts, 2)
	for _, p := range *parts {
		assert.Equal(t, "files", p.field)
		assert.True(t, strings.HasPrefix(p.filename, "sess-a_"), p.filename)
		assert.True(t, strings.HasSuffix(p.filename, ".wav"), p.filename)
	}
}

func TestClient_BatchOmittedUtterance(t *testing.T) {
	// The server answers only the first stem; the missing one is simply
	// absent from the results.
	server, _ := newBatchServer(t, func(stems []string) []utteranceResult {
		return []utteranceResult{{ID: stems[0], Text: "only one"}}
	}, "")

	c := newTestClient(t, server.URL, "")
	recs, err := c.Batch(context.Background(), []internal_type.BatchItem{
		batchItem("sess-a", 0, 0, 5, false),
		batchItem("sess-a", 1, 5, 12, false),
	})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestClient_BatchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	c := newTestClient(t, server.URL, "")
	_, err := c.Batch(context.Background(), []internal_type.BatchItem{
		batchItem("sess-a", 0, 0, 5, false),
	})
	assert.Error(t, err)
}

func TestClient_BatchEmpty(t *testing.T) {
	c := newTestClient(t, "http://unused.invalid", "")
	recs, err := c.Batch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, recs)
}

func TestClient_BatchUnknownResponseID(t *testing.T) {
	server, _ := newBatchServer(t, func(stems []string) []utteranceResult {
		return []utteranceResult{{ID: "not-a-known-stem", Text: "??"}}
	}, "")

	c := newTestClient(t, server.URL, "")
	recs, err := c.Batch(context.Background(), []internal_type.BatchItem{
		batchItem("sess-a", 0, 0, 5, false),
	})
	require.NoError(t, err)
	assert.Empty(t, recs, "results with unknown utterance ids are discarded")
}

func TestClient_ScratchFilesRemoved(t *testing.T) {
	logger, err := commons.NewApplicationLogger()
	require.NoError(t, err)
	dir := t.TempDir()
	artifacts := internal_artifacts.NewStore(logger, dir)
	encoder, err := NewEncoder("wav")
	require.NoError(t, err)

	server, _ := newBatchServer(t, func(stems []string) []utteranceResult {
		return nil
	}, "")
	c := NewClient(logger, server.URL, server.URL, "", encoder, artifacts)

	_, err = c.Batch(context.Background(), []internal_type.BatchItem{
		batchItem("sess-a", 0, 0, 5, false),
	})
	require.NoError(t, err)

	var leftover []string
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			leftover = append(leftover, path)
		}
		return nil
	})
	assert.Empty(t, leftover, "scratch files are unlinked after the response")
}

func TestNewEncoder(t *testing.T) {
	for _, format := range []string{"", "wav"} {
		enc, err := NewEncoder(format)
		require.NoError(t, err)
		assert.Equal(t, "wav", enc.Ext())
	}

	enc, err := NewEncoder("mp3")
	require.NoError(t, err)
	assert.Equal(t, "mp3", enc.Ext())

	_, err = NewEncoder("ogg")
	assert.Error(t, err)
}

func TestWavEncoder_WrapsPCM(t *testing.T) {
	enc, err := NewEncoder("wav")
	require.NoError(t, err)
	pcm := make([]byte, internal_audio.ChunkBytes)
	out, err := enc.Encode(pcm)
	require.NoError(t, err)
	assert.Equal(t, 44+len(pcm), len(out))
	assert.Equal(t, "RIFF", string(out[:4]))
}
