// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package extract

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/mozilla-services/syncstorage-go/storage"
)

// bsoWire is the wire shape of a single BSO in a request body. A field
// named "collection" is accepted (§4.7) and simply dropped — it is
// never read back into storage.BSOWrite.
type bsoWire struct {
	ID         string  `json:"id"`
	Payload    *string `json:"payload"`
	SortIndex  *int32  `json:"sortindex"`
	TTL        *int64  `json:"ttl"`
	Collection *string `json:"collection"`
}

func (w bsoWire) toWrite() storage.BSOWrite {
	return storage.BSOWrite{ID: w.ID, Payload: w.Payload, SortIndex: w.SortIndex, TTL: w.TTL}
}

// validateBounds enforces §3's sortindex/ttl ranges, shared by the
// single-item and batch extractors.
func (w bsoWire) validateBounds() error {
	if w.SortIndex != nil && (*w.SortIndex < storage.MinSortIndex || *w.SortIndex > storage.MaxSortIndex) {
		return Class.New("sortindex %d outside [%d, %d]", *w.SortIndex, storage.MinSortIndex, storage.MaxSortIndex)
	}
	if w.TTL != nil && (*w.TTL < 0 || *w.TTL > storage.MaxTTLSeconds) {
		return Class.New("ttl %d outside [0, %d]", *w.TTL, storage.MaxTTLSeconds)
	}
	return nil
}

// BsoBody parses a single-BSO JSON body, rejecting unknown fields,
// out-of-range sortindex/ttl (§3), and payloads over
// maxRecordPayloadBytes.
func BsoBody(body []byte, maxRecordPayloadBytes int64) (storage.BSOWrite, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	var w bsoWire
	if err := dec.Decode(&w); err != nil {
		return storage.BSOWrite{}, Class.New("malformed bso body: %v", err)
	}
	if err := w.validateBounds(); err != nil {
		return storage.BSOWrite{}, err
	}
	if w.Payload != nil && int64(len(*w.Payload)) > maxRecordPayloadBytes {
		return storage.BSOWrite{}, Class.New("payload exceeds max_record_payload_bytes")
	}
	return w.toWrite(), nil
}

// BsoBodies parses a batch body in one of application/json,
// text/plain, or application/newlines (one JSON object per line), per
// §4.7. An item whose payload exceeds MaxRecordPayloadBytes, or that
// pushes the running body size past MaxPostBytes, lands in Invalid with
// reason "retry bytes" rather than aborting the whole request. A
// malformed item, a missing or duplicate id, or an out-of-range
// sortindex/ttl is a fatal validation error for the whole body.
type BsoBodiesResult struct {
	Valid   []storage.BSOWrite
	Invalid map[string]string
}

func BsoBodies(body []byte, contentType string, limits Limits) (BsoBodiesResult, error) {
	var raws []json.RawMessage
	switch {
	case strings.Contains(contentType, "application/newlines"):
		scanner := bufio.NewScanner(bytes.NewReader(body))
		scanner.Buffer(make([]byte, 0, 64*1024), int(limits.MaxRequestBytes))
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			raws = append(raws, append(json.RawMessage(nil), line...))
		}
		if err := scanner.Err(); err != nil {
			return BsoBodiesResult{}, Class.New("failed reading newline body: %v", err)
		}
	default: // application/json or text/plain: a JSON array
		if err := json.Unmarshal(body, &raws); err != nil {
			return BsoBodiesResult{}, Class.New("malformed batch body: %v", err)
		}
	}

	result := BsoBodiesResult{Invalid: map[string]string{}}
	seen := map[string]bool{}
	var cumulative int64

	for _, raw := range raws {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		var w bsoWire
		if err := dec.Decode(&w); err != nil {
			return BsoBodiesResult{}, Class.New("malformed item in batch body: %v", err)
		}
		if w.ID == "" {
			return BsoBodiesResult{}, Class.New("batch item missing id")
		}
		if seen[w.ID] {
			return BsoBodiesResult{}, Class.New("duplicate id %q in batch body", w.ID)
		}
		seen[w.ID] = true
		if err := w.validateBounds(); err != nil {
			return BsoBodiesResult{}, err
		}

		size := int64(len(raw))
		cumulative += size
		if w.Payload != nil && int64(len(*w.Payload)) > limits.MaxRecordPayloadBytes {
			result.Invalid[w.ID] = "retry bytes"
			continue
		}
		if cumulative > limits.MaxPostBytes {
			result.Invalid[w.ID] = "retry bytes"
			continue
		}
		result.Valid = append(result.Valid, w.toWrite())
	}
	return result, nil
}

// ReadLimitedBody reads r fully, failing if it exceeds
// maxRequestBytes, matching the server's blanket request-size ceiling
// ahead of any body-specific parsing.
func ReadLimitedBody(r io.Reader, maxRequestBytes int64) ([]byte, error) {
	limited := io.LimitReader(r, maxRequestBytes+1)
	b, err := io.ReadAll(limited)
	if err != nil {
		return nil, Class.Wrap(err)
	}
	if int64(len(b)) > maxRequestBytes {
		return nil, Class.New("request body exceeds max_request_bytes")
	}
	return b, nil
}
