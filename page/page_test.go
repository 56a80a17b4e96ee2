// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package page

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/moresteps/lib/channel"
	"github.com/bureau-foundation/moresteps/lib/envelope"
	"github.com/bureau-foundation/moresteps/lib/errs"
	"github.com/bureau-foundation/moresteps/lib/stream"
	"github.com/bureau-foundation/moresteps/lib/testutil"
)

// fakeContent answers ImageDataRequests from a table keyed by result
// identifier and records Prefetch messages.
type fakeContent struct {
	mu         sync.Mutex
	images     map[string]*envelope.ImageData
	failures   map[string]error
	requests   []envelope.ImageDataRequest
	prefetches []envelope.Prefetch
}

func (f *fakeContent) CallInto(_ context.Context, message envelope.Message, result any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch message := message.(type) {
	case envelope.ImageDataRequest:
		f.requests = append(f.requests, message)
		if err := f.failures[message.ResultID]; err != nil {
			return err
		}
		*(result.(**envelope.ImageData)) = f.images[message.ResultID]
	case envelope.Prefetch:
		f.prefetches = append(f.prefetches, message)
	}
	return nil
}

func stepByStepEvent(query, podID string) stream.Event {
	data, _ := json.Marshal(map[string]any{
		"type":  "stepByStep",
		"query": query,
		"extra": "kept",
		"pod": map[string]any{
			"id": podID,
			"subpods": []any{
				map[string]any{
					"title": "Possible intermediate steps",
					"img":   map[string]any{"src": "https://example.test/preview.gif", "width": 100, "height": 50},
				},
			},
		},
	})
	return stream.Event{Type: "message", Data: data}
}

func runEnrichment(t *testing.T, pageContext *Context, event *stream.Event) error {
	t.Helper()
	enrichment, err := pageContext.Enricher().Inspect(event)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if enrichment == nil {
		t.Fatal("Inspect returned no enrichment for a step-by-step event")
	}
	return enrichment(context.Background())
}

func TestEnrichRewritesImage(t *testing.T) {
	content := &fakeContent{images: map[string]*envelope.ImageData{
		"Indefinite": {Src: "https://example.test/MSP/full.gif", Width: 400, Height: 900, Host: "https://www5b.example.test"},
	}}
	page := New(content, nil, testutil.DiscardLogger())

	event := stepByStepEvent("integrate x^2", "Indefinite")
	if err := runEnrichment(t, page, &event); err != nil {
		t.Fatalf("enrichment: %v", err)
	}

	var document struct {
		Host  string `json:"host"`
		Extra string `json:"extra"`
		Pod   struct {
			Subpods []struct {
				Title string         `json:"title"`
				Image envelope.Image `json:"img"`
			} `json:"subpods"`
		} `json:"pod"`
	}
	if err := json.Unmarshal(event.Data, &document); err != nil {
		t.Fatalf("decoding rewritten event: %v", err)
	}
	image := document.Pod.Subpods[0].Image
	if image.Src != "https://example.test/MSP/full.gif" || image.Width != 400 || image.Height != 900 {
		t.Errorf("image = %+v", image)
	}
	if document.Host != "https://www5b.example.test" {
		t.Errorf("host = %q", document.Host)
	}
	if document.Extra != "kept" || document.Pod.Subpods[0].Title != "Possible intermediate steps" {
		t.Errorf("unrelated fields lost: %s", event.Data)
	}
	if !page.Markers().Contains("https://example.test/MSP/full.gif") {
		t.Error("patched image not added to markers")
	}

	if len(content.requests) != 1 || content.requests[0].Query != "integrate x^2" || content.requests[0].ResultID != "Indefinite" {
		t.Errorf("requests = %+v", content.requests)
	}
}

func TestEnrichNullReplyLeavesEvent(t *testing.T) {
	page := New(&fakeContent{}, nil, testutil.DiscardLogger())

	event := stepByStepEvent("q", "Missing")
	before := string(event.Data)
	if err := runEnrichment(t, page, &event); err != nil {
		t.Fatalf("enrichment: %v", err)
	}
	if string(event.Data) != before {
		t.Errorf("event changed on a null reply:\n%s", event.Data)
	}
	if page.Markers().Len() != 0 {
		t.Error("markers grew on a null reply")
	}
}

func TestEnrichCallFailure(t *testing.T) {
	failure := &errs.TransportError{Op: "post", Err: errs.ErrClosed}
	page := New(&fakeContent{failures: map[string]error{"A": failure}}, nil, testutil.DiscardLogger())

	event := stepByStepEvent("q", "A")
	if err := runEnrichment(t, page, &event); !errors.Is(err, errs.ErrClosed) {
		t.Fatalf("enrichment error = %v, want wrapped ErrClosed", err)
	}
}

func TestInspectIgnoresOtherEvents(t *testing.T) {
	page := New(&fakeContent{}, nil, testutil.DiscardLogger())
	event := stream.Event{Data: []byte(`{"type":"pods","pods":[]}`)}
	enrichment, err := page.Enricher().Inspect(&event)
	if err != nil || enrichment != nil {
		t.Fatalf("Inspect = (%v, %v), want pass-through", enrichment != nil, err)
	}
}

func TestInspectMalformed(t *testing.T) {
	page := New(&fakeContent{}, nil, testutil.DiscardLogger())
	for _, data := range []string{
		`not json`,
		`{"type":"stepByStep","pod":{"id":"A"}}`,
		`{"type":"stepByStep","query":"q"}`,
		`{"type":"stepByStep","query":"q","pod":{}}`,
	} {
		event := stream.Event{Data: []byte(data)}
		if _, err := page.Enricher().Inspect(&event); err == nil {
			t.Errorf("Inspect(%s) succeeded", data)
		}
	}
}

func TestEnrichPodWithoutImage(t *testing.T) {
	content := &fakeContent{images: map[string]*envelope.ImageData{"A": {Src: "s"}}}
	page := New(content, nil, testutil.DiscardLogger())
	event := stream.Event{Data: []byte(`{"type":"stepByStep","query":"q","pod":{"id":"A","subpods":[]}}`)}
	if err := runEnrichment(t, page, &event); err == nil {
		t.Fatal("enrichment succeeded without a subpod to patch")
	}
	if page.Markers().Len() != 0 {
		t.Error("markers grew for an unpatched event")
	}
}

func TestInspectReadsAssumptions(t *testing.T) {
	content := &fakeContent{}
	page := New(content, nil, testutil.DiscardLogger())
	event := stream.Event{Data: []byte(`{"type":"stepByStep","query":"q","assumptions":["a1","a2"],"pod":{"id":"A"}}`)}
	if err := runEnrichment(t, page, &event); err != nil {
		t.Fatalf("enrichment: %v", err)
	}
	if got := content.requests[0].Assumptions; len(got) != 2 || got[0] != "a1" || got[1] != "a2" {
		t.Errorf("assumptions = %q", got)
	}
}

func TestPrefetch(t *testing.T) {
	content := &fakeContent{}
	page := New(content, nil, testutil.DiscardLogger())

	if err := page.Prefetch(context.Background(), "q", nil, nil); err != nil {
		t.Fatalf("empty Prefetch: %v", err)
	}
	if err := page.Prefetch(context.Background(), "q", []string{"A", "B"}, []string{"x"}); err != nil {
		t.Fatalf("Prefetch: %v", err)
	}
	if len(content.prefetches) != 1 || len(content.prefetches[0].ResultIDs) != 2 {
		t.Errorf("prefetches = %+v", content.prefetches)
	}
}

// TestStreamOrderOverBridge wires the enricher into an interceptor and
// answers image requests over a real channel, releasing the first
// event's reply last. Delivery must still follow arrival order.
func TestStreamOrderOverBridge(t *testing.T) {
	pageEnd, contentEnd := channel.Pipe()
	pageBridge := channel.New(pageEnd, testutil.DiscardLogger())
	contentBridge := channel.New(contentEnd, testutil.DiscardLogger())
	t.Cleanup(func() {
		pageBridge.Close()
		contentBridge.Close()
	})

	releaseFirst := make(chan struct{})
	contentBridge.Handle(envelope.KindImageData, func(ctx context.Context, message envelope.Message) (any, error) {
		request := message.(envelope.ImageDataRequest)
		if request.ResultID == "First" {
			select {
			case <-releaseFirst:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return &envelope.ImageData{Src: "https://example.test/MSP/" + request.ResultID, Width: 1, Height: 1}, nil
	})

	page := New(pageBridge, nil, testutil.DiscardLogger())
	interceptor, err := stream.NewInterceptor(context.Background(), stream.InterceptorConfig{
		Enricher: page.Enricher(),
		Logger:   testutil.DiscardLogger(),
	})
	if err != nil {
		t.Fatalf("NewInterceptor: %v", err)
	}

	delivered := make(chan stream.Event, 4)
	listener := interceptor.Wrap(func(event stream.Event) { delivered <- event })

	listener(stepByStepEvent("q", "First"))
	listener(stream.Event{Data: []byte(`{"type":"other"}`)})
	listener(stepByStepEvent("q", "Second"))

	testutil.RequireNoReceive(t, delivered, 100*time.Millisecond, "events delivered before the first enrichment finished")
	close(releaseFirst)

	first := testutil.RequireReceive(t, delivered, 5*time.Second, "first event")
	second := testutil.RequireReceive(t, delivered, 5*time.Second, "second event")
	third := testutil.RequireReceive(t, delivered, 5*time.Second, "third event")

	for index, check := range []struct {
		event stream.Event
		want  string
	}{
		{first, "https://example.test/MSP/First"},
		{third, "https://example.test/MSP/Second"},
	} {
		if !containsJSON(check.event.Data, check.want) {
			t.Errorf("event %d not patched: %s", index, check.event.Data)
		}
	}
	if string(second.Data) != `{"type":"other"}` {
		t.Errorf("middle event = %s", second.Data)
	}
	if page.Markers().Len() != 2 {
		t.Errorf("markers = %d, want 2", page.Markers().Len())
	}
}

func containsJSON(data []byte, src string) bool {
	var document struct {
		Pod struct {
			Subpods []struct {
				Image envelope.Image `json:"img"`
			} `json:"subpods"`
		} `json:"pod"`
	}
	if json.Unmarshal(data, &document) != nil || len(document.Pod.Subpods) == 0 {
		return false
	}
	return document.Pod.Subpods[0].Image.Src == src
}
