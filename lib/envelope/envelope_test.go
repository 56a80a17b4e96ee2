// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"errors"
	"testing"

	"github.com/bureau-foundation/moresteps/lib/codec"
	"github.com/bureau-foundation/moresteps/lib/errs"
)

func TestDecodeDispatchesOnKind(t *testing.T) {
	messages := []Message{
		FetchResult{Query: "x^2", ResultIDs: []string{"Result", "Limit"}, Deferred: true},
		FetchDeferred{Reference: "https://example/async?id=1"},
		ImageDataRequest{Query: "x^2", ResultID: "Result", Assumptions: []string{"a"}},
		Prefetch{Query: "x^2", ResultIDs: []string{"Result"}},
	}

	for index, message := range messages {
		t.Run(string(message.Kind()), func(t *testing.T) {
			encoded, err := Encode(uint64(index+1), message)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if encoded.Sequence != uint64(index+1) || encoded.Kind != message.Kind() {
				t.Fatalf("envelope header = (%d, %s)", encoded.Sequence, encoded.Kind)
			}

			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			switch want := message.(type) {
			case FetchResult:
				got, ok := decoded.(FetchResult)
				if !ok || got.Query != want.Query || len(got.ResultIDs) != 2 || !got.Deferred {
					t.Errorf("decoded = %#v", decoded)
				}
			case FetchDeferred:
				got, ok := decoded.(FetchDeferred)
				if !ok || got.Reference != want.Reference {
					t.Errorf("decoded = %#v", decoded)
				}
			case ImageDataRequest:
				got, ok := decoded.(ImageDataRequest)
				if !ok || got.ResultID != want.ResultID || len(got.Assumptions) != 1 {
					t.Errorf("decoded = %#v", decoded)
				}
			case Prefetch:
				if _, ok := decoded.(Prefetch); !ok {
					t.Errorf("decoded = %#v", decoded)
				}
			}
		})
	}
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	if _, err := Decode(Envelope{Sequence: 1, Kind: "msImageUrlReq"}); err == nil {
		t.Fatal("Decode accepted an unknown kind")
	}
}

func TestDecodeRejectsMissingPayload(t *testing.T) {
	if _, err := Decode(Envelope{Sequence: 1, Kind: KindFetchResult}); err == nil {
		t.Fatal("Decode accepted an empty payload")
	}
}

func TestNewReplyCarriesResult(t *testing.T) {
	request, err := Encode(9, ImageDataRequest{Query: "x^2", ResultID: "Result"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	reply, err := NewReply(request, &ImageData{Src: "https://example/MSP1.gif", Width: 300, Height: 40}, nil)
	if err != nil {
		t.Fatalf("NewReply: %v", err)
	}
	if !reply.Reply || reply.Sequence != 9 || reply.Error != nil {
		t.Fatalf("reply header = %+v", reply)
	}
	var data ImageData
	if err := codec.Unmarshal(reply.Payload, &data); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if data.Src != "https://example/MSP1.gif" || data.Width != 300 {
		t.Errorf("data = %+v", data)
	}
}

func TestNewReplyCarriesTypedError(t *testing.T) {
	request := Envelope{Sequence: 4, Kind: KindFetchResult}
	reply, err := NewReply(request, nil, &errs.NoCredentialError{Name: "appid"})
	if err != nil {
		t.Fatalf("NewReply: %v", err)
	}
	var noCredential *errs.NoCredentialError
	if !errors.As(errs.FromWire(reply.Error), &noCredential) {
		t.Fatalf("reply error = %v", reply.Error)
	}
	if len(reply.Payload) != 0 {
		t.Error("error reply carries a payload")
	}
}

func TestFindPod(t *testing.T) {
	result := &QueryResult{Pods: []Pod{{ID: "Input"}, {ID: "Result", Title: "Result"}}}
	if pod, ok := result.FindPod("Result"); !ok || pod.Title != "Result" {
		t.Errorf("FindPod(Result) = (%+v, %v)", pod, ok)
	}
	if _, ok := result.FindPod("Plot"); ok {
		t.Error("FindPod found a missing pod")
	}
}
