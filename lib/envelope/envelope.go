// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"fmt"

	"github.com/bureau-foundation/moresteps/lib/codec"
	"github.com/bureau-foundation/moresteps/lib/errs"
)

// Envelope is one message crossing a boundary.
type Envelope struct {
	Sequence uint64           `cbor:"seq"`
	Kind     Kind             `cbor:"kind"`
	Reply    bool             `cbor:"reply,omitempty"`
	Payload  codec.RawMessage `cbor:"payload,omitempty"`
	Error    *errs.WireError  `cbor:"error,omitempty"`
}

// Encode wraps message in a request envelope with the given sequence
// number.
func Encode(sequence uint64, message Message) (Envelope, error) {
	payload, err := codec.Marshal(message)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding %s payload: %w", message.Kind(), err)
	}
	return Envelope{
		Sequence: sequence,
		Kind:     message.Kind(),
		Payload:  payload,
	}, nil
}

// Decode returns the typed request carried by a request envelope.
func Decode(envelope Envelope) (Message, error) {
	switch envelope.Kind {
	case KindFetchResult:
		return decodeAs[FetchResult](envelope)
	case KindFetchDeferred:
		return decodeAs[FetchDeferred](envelope)
	case KindImageData:
		return decodeAs[ImageDataRequest](envelope)
	case KindPrefetch:
		return decodeAs[Prefetch](envelope)
	default:
		return nil, fmt.Errorf("unknown message kind %q", envelope.Kind)
	}
}

func decodeAs[T Message](envelope Envelope) (Message, error) {
	var message T
	if len(envelope.Payload) == 0 {
		return nil, fmt.Errorf("%s envelope %d has no payload", envelope.Kind, envelope.Sequence)
	}
	if err := codec.Unmarshal(envelope.Payload, &message); err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", envelope.Kind, err)
	}
	return message, nil
}

// NewReply builds the reply to request. A non-nil err produces an
// error reply and result is ignored. A nil result produces an empty
// payload.
func NewReply(request Envelope, result any, err error) (Envelope, error) {
	reply := Envelope{
		Sequence: request.Sequence,
		Kind:     request.Kind,
		Reply:    true,
	}
	if err != nil {
		reply.Error = errs.Wire(err)
		return reply, nil
	}
	if result != nil {
		payload, marshalErr := codec.Marshal(result)
		if marshalErr != nil {
			return Envelope{}, fmt.Errorf("encoding %s reply: %w", request.Kind, marshalErr)
		}
		reply.Payload = payload
	}
	return reply, nil
}
