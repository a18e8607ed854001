// Copyright (c) 2024-2026 SohriAI
//
// Licensed under GPL-2.0 with Sohri Additional Terms.
// See LICENSE.md for commercial usage.

package internal_stt

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	internal_artifacts "github.com/sohriai/gateway/api/gateway-api/internal/artifacts"
	internal_type "github.com/sohriai/gateway/api/gateway-api/internal/type"
	"github.com/sohriai/gateway/pkg/commons"
)

// Client is the stateless batch caller for the recognition HTTP API. It
// encodes each utterance, posts one multipart form with repeated "files"
// parts, and reassociates response entries with inputs by utterance id.
type Client struct {
	logger    commons.Logger
	http      *resty.Client
	url       string
	batchURL  string
	token     string
	encoder   Encoder
	artifacts *internal_artifacts.Store
}

type utteranceResult struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
}

type batchResponse struct {
	Content struct {
		Result struct {
			Utterances []utteranceResult `json:"utterances"`
		} `json:"result"`
	} `json:"content"`
}

func NewClient(logger commons.Logger, url, batchURL, token string, encoder Encoder, artifacts *internal_artifacts.Store) *Client {
	return &Client{
		logger:    logger,
		http:      resty.New().SetTimeout(30 * time.Second),
		url:       url,
		batchURL:  batchURL,
		token:     token,
		encoder:   encoder,
		artifacts: artifacts,
	}
}

// Batch posts all items as one multipart request. Entries missing from the
// response are simply absent from the returned slice; the caller treats them
// as non-fatal holes. Results carry the per-call elapsed time for session
// stats.
func (c *Client) Batch(ctx context.Context, items []internal_type.BatchItem) ([]internal_type.Recognition, error) {
	if len(items) == 0 {
		return nil, nil
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeader("accept", "application/json").
		SetResult(&batchResponse{})
	if c.token != "" {
		req.SetHeader("Authorization", "Bearer "+c.token)
	}

	byID := make(map[string]internal_type.BatchItem, len(items))
	var scratch []string
	defer func() {
		for _, p := range scratch {
			c.artifacts.Remove(p)
		}
	}()

	for _, item := range items {
		encoded, err := c.encoder.Encode(item.PCM)
		if err != nil {
			c.logger.Warnw("stt: skipping unencodable utterance", "utteranceId", item.UtteranceID(), "error", err)
			continue
		}
		id := item.UtteranceID()
		byID[id] = item

		if path, err := c.artifacts.Write(item.SessionID, id, c.encoder.Ext(), encoded); err != nil {
			c.logger.Warnw("stt: failed to write scratch file", "utteranceId", id, "error", err)
		} else {
			scratch = append(scratch, path)
		}

		filename := fmt.Sprintf("%s.%s", id, c.encoder.Ext())
		req.SetFileReader("files", filename, bytes.NewReader(encoded))
	}
	if len(byID) == 0 {
		return nil, nil
	}

	started := time.Now()
	resp, err := req.Post(c.batchURL)
	if err != nil {
		return nil, fmt.Errorf("stt: batch request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("stt: batch request returned %s", resp.Status())
	}
	elapsed := time.Since(started)

	body, ok := resp.Result().(*batchResponse)
	if !ok {
		return nil, fmt.Errorf("stt: unexpected batch response shape")
	}

	out := make([]internal_type.Recognition, 0, len(body.Content.Result.Utterances))
	for _, u := range body.Content.Result.Utterances {
		item, ok := byID[u.ID]
		if !ok {
			c.logger.Warnw("stt: discarding result with unknown utterance id", "id", u.ID)
			continue
		}
		out = append(out, internal_type.Recognition{
			SessionID: item.SessionID,
			Sequence:  item.Sequence,
			Result:    u.Text,
			IsFinal:   item.IsFinal,
			Elapsed:   elapsed,
		})
	}
	return out, nil
}

// Recognize posts a single utterance to the non-batch endpoint with field
// name "file". Used by operational tooling; the gateway itself batches.
func (c *Client) Recognize(ctx context.Context, item internal_type.BatchItem) (string, error) {
	encoded, err := c.encoder.Encode(item.PCM)
	if err != nil {
		return "", err
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeader("accept", "application/json").
		SetResult(&batchResponse{}).
		SetFileReader("file", fmt.Sprintf("%s.%s", item.UtteranceID(), c.encoder.Ext()), bytes.NewReader(encoded))
	if c.token != "" {
		req.SetHeader("Authorization", "Bearer "+c.token)
	}

	resp, err := req.Post(c.url)
	if err != nil {
		return "", fmt.Errorf("stt: request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("stt: request returned %s", resp.Status())
	}
	body, ok := resp.Result().(*batchResponse)
	if !ok || len(body.Content.Result.Utterances) == 0 {
		return "", fmt.Errorf("stt: empty recognition response")
	}
	return body.Content.Result.Utterances[0].Text, nil
}
