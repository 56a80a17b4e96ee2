// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

type sampleRequest struct {
	Query       string   `cbor:"query"`
	ResultIDs   []string `cbor:"result_ids"`
	Assumptions []string `cbor:"assumptions,omitempty"`
}

func TestMarshalDeterministic(t *testing.T) {
	request := sampleRequest{Query: "x^2", ResultIDs: []string{"Result", "Plot"}}

	first, err := Marshal(request)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(request)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("encodings differ:\n%x\n%x", first, second)
	}
}

func TestJSONTagFallback(t *testing.T) {
	type image struct {
		Src   string `json:"src"`
		Width int    `json:"width"`
	}
	data, err := Marshal(image{Src: "https://example/MSP1.gif", Width: 300})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded map[string]any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded["src"] != "https://example/MSP1.gif" {
		t.Errorf("src = %v, want the json-tagged field name", decoded["src"])
	}
	if _, exists := decoded["Src"]; exists {
		t.Error("Go field name leaked into the encoding")
	}
}

func TestStreamCarriesConsecutiveValues(t *testing.T) {
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, query := range []string{"x^2", "x^3", "sin x"} {
		if err := encoder.Encode(sampleRequest{Query: query, ResultIDs: []string{"Result"}}); err != nil {
			t.Fatalf("Encode(%q): %v", query, err)
		}
	}

	decoder := NewDecoder(&buffer)
	for _, want := range []string{"x^2", "x^3", "sin x"} {
		var got sampleRequest
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got.Query != want {
			t.Errorf("Query = %q, want %q", got.Query, want)
		}
	}
}

func TestRawMessageDefersDecoding(t *testing.T) {
	payload, err := Marshal(sampleRequest{Query: "x^2", ResultIDs: []string{"Result"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	type envelope struct {
		Kind    string     `cbor:"kind"`
		Payload RawMessage `cbor:"payload"`
	}
	data, err := Marshal(envelope{Kind: "fetchResult", Payload: payload})
	if err != nil {
		t.Fatalf("Marshal envelope: %v", err)
	}

	var outer envelope
	if err := Unmarshal(data, &outer); err != nil {
		t.Fatalf("Unmarshal envelope: %v", err)
	}
	var inner sampleRequest
	if err := Unmarshal(outer.Payload, &inner); err != nil {
		t.Fatalf("Unmarshal payload: %v", err)
	}
	if inner.Query != "x^2" || len(inner.ResultIDs) != 1 {
		t.Errorf("payload = %+v", inner)
	}
}
