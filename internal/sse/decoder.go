// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sse decodes the event-stream wire format used by OpenAI-compatible
// completion endpoints.
package sse

import (
	"bufio"
	"bytes"
	"io"
)

// dataPrefix is the record prefix carrying a payload. Everything else on the
// wire (comments, ids, keep-alive blank lines) is skipped.
var dataPrefix = []byte("data:")

// doneSentinel marks graceful end-of-stream. Processing stops immediately
// when it is seen, even if more bytes remain buffered.
var doneSentinel = []byte("[DONE]")

// Decoder turns a raw byte stream into discrete event payloads. It owns the
// line reassembly: chunks arrive with arbitrary boundaries and a partial
// trailing line is buffered until its newline shows up, so multi-byte text
// split across chunks is never broken. One Decoder serves one stream.
type Decoder struct {
	r    *bufio.Reader
	done bool
}

// NewDecoder wraps a stream body. The reader is consumed lazily: each Next
// call reads only as far as the next complete record.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next data payload, or io.EOF when the stream is over —
// either because the transport ended or because the [DONE] sentinel
// arrived. An unterminated trailing line at end-of-stream is discarded, not
// an error. Non-data lines and blank lines are skipped silently.
func (d *Decoder) Next() ([]byte, error) {
	if d.done {
		return nil, io.EOF
	}

	for {
		line, err := d.r.ReadBytes('\n')
		if err != nil {
			// A partial line with no terminating newline is dropped; the
			// transport ended mid-record and best-effort means we keep
			// whatever fully-framed records we already delivered.
			if err == io.EOF {
				d.done = true
				return nil, io.EOF
			}
			return nil, err
		}

		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			continue
		}
		if !bytes.HasPrefix(line, dataPrefix) {
			continue
		}

		payload := bytes.TrimSpace(line[len(dataPrefix):])
		if len(payload) == 0 {
			continue
		}
		if bytes.Equal(payload, doneSentinel) {
			d.done = true
			return nil, io.EOF
		}
		return payload, nil
	}
}
