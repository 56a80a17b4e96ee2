// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/moresteps/lib/envelope"
	"github.com/bureau-foundation/moresteps/lib/errs"
	"github.com/bureau-foundation/moresteps/lib/testutil"
)

// newBridgePair returns a caller bridge and a server bridge connected
// by an in-process pipe.
func newBridgePair(t *testing.T) (*Bridge, *Bridge) {
	t.Helper()
	left, right := Pipe()
	caller := New(left, testutil.DiscardLogger())
	server := New(right, testutil.DiscardLogger())
	t.Cleanup(func() {
		caller.Close()
		server.Close()
	})
	return caller, server
}

func echoImage(_ context.Context, message envelope.Message) (any, error) {
	request := message.(envelope.ImageDataRequest)
	return &envelope.ImageData{Src: "https://images/" + request.ResultID, Width: 10, Height: 20}, nil
}

func TestCallRoundTrip(t *testing.T) {
	caller, server := newBridgePair(t)
	server.Handle(envelope.KindImageData, echoImage)

	var data envelope.ImageData
	err := caller.CallInto(context.Background(), envelope.ImageDataRequest{Query: "x^2", ResultID: "Result"}, &data)
	if err != nil {
		t.Fatalf("CallInto: %v", err)
	}
	if data.Src != "https://images/Result" || data.Width != 10 || data.Height != 20 {
		t.Errorf("data = %+v", data)
	}
}

func TestRepliesMatchedBySequence(t *testing.T) {
	caller, server := newBridgePair(t)

	release := make(chan struct{})
	server.Handle(envelope.KindImageData, func(ctx context.Context, message envelope.Message) (any, error) {
		if message.(envelope.ImageDataRequest).ResultID == "slow" {
			<-release
		}
		return echoImage(ctx, message)
	})

	slowResult := make(chan envelope.ImageData, 1)
	go func() {
		var data envelope.ImageData
		if err := caller.CallInto(context.Background(), envelope.ImageDataRequest{ResultID: "slow"}, &data); err != nil {
			t.Errorf("slow call: %v", err)
		}
		slowResult <- data
	}()

	var fast envelope.ImageData
	if err := caller.CallInto(context.Background(), envelope.ImageDataRequest{ResultID: "fast"}, &fast); err != nil {
		t.Fatalf("fast call: %v", err)
	}
	if fast.Src != "https://images/fast" {
		t.Errorf("fast call got %q", fast.Src)
	}

	close(release)
	slow := testutil.RequireReceive(t, slowResult, 5*time.Second, "slow reply")
	if slow.Src != "https://images/slow" {
		t.Errorf("slow call got %q", slow.Src)
	}
}

func TestEmptyReplyLeavesResultUntouched(t *testing.T) {
	caller, server := newBridgePair(t)
	server.Handle(envelope.KindImageData, func(context.Context, envelope.Message) (any, error) {
		return nil, nil
	})

	var data *envelope.ImageData
	if err := caller.CallInto(context.Background(), envelope.ImageDataRequest{ResultID: "Result"}, &data); err != nil {
		t.Fatalf("CallInto: %v", err)
	}
	if data != nil {
		t.Errorf("data = %+v, want nil", data)
	}
}

func TestErrorReplyIsTyped(t *testing.T) {
	caller, server := newBridgePair(t)
	server.Handle(envelope.KindFetchResult, func(context.Context, envelope.Message) (any, error) {
		return nil, &errs.NoCredentialError{Name: "appid"}
	})

	_, err := caller.Call(context.Background(), envelope.FetchResult{Query: "x", ResultIDs: []string{"Result"}})
	var noCredential *errs.NoCredentialError
	if !errors.As(err, &noCredential) {
		t.Fatalf("Call error = %v, want NoCredentialError", err)
	}
}

func TestUnhandledKindRepliesWithError(t *testing.T) {
	caller, server := newBridgePair(t)
	server.Handle(envelope.KindImageData, echoImage)

	_, err := caller.Call(context.Background(), envelope.Prefetch{Query: "x", ResultIDs: []string{"Result"}})
	var remote *errs.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("Call error = %v, want RemoteError", err)
	}
}

func TestPeerCloseRejectsPendingCalls(t *testing.T) {
	caller, server := newBridgePair(t)

	entered := make(chan struct{})
	server.Handle(envelope.KindImageData, func(ctx context.Context, _ envelope.Message) (any, error) {
		close(entered)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	result := make(chan error, 1)
	go func() {
		_, err := caller.Call(context.Background(), envelope.ImageDataRequest{ResultID: "Result"})
		result <- err
	}()

	testutil.RequireClosed(t, entered, 5*time.Second, "handler entered")
	server.Close()

	err := testutil.RequireReceive(t, result, 5*time.Second, "pending call result")
	var transport *errs.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("Call error = %v, want TransportError", err)
	}
}

func TestCallAfterCloseFails(t *testing.T) {
	caller, _ := newBridgePair(t)
	caller.Close()

	_, err := caller.Call(context.Background(), envelope.ImageDataRequest{ResultID: "Result"})
	var transport *errs.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("Call error = %v, want TransportError", err)
	}
}

func TestCallHonoursContext(t *testing.T) {
	caller, server := newBridgePair(t)
	server.Handle(envelope.KindImageData, func(ctx context.Context, _ envelope.Message) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := caller.Call(ctx, envelope.ImageDataRequest{ResultID: "Result"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Call error = %v, want DeadlineExceeded", err)
	}
}

func TestDuplicateHandlerPanics(t *testing.T) {
	_, server := newBridgePair(t)
	server.Handle(envelope.KindImageData, echoImage)

	defer func() {
		if recover() == nil {
			t.Error("second Handle for the same kind did not panic")
		}
	}()
	server.Handle(envelope.KindImageData, echoImage)
}
