// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package envelope defines the correlated request/response messages
// exchanged across context boundaries.
//
// Every message travels inside an [Envelope]: a sequence number unique
// per sender per channel, a kind tag, and an encoded payload. A reply
// envelope carries the sequence number of the request it answers,
// either a payload or a typed error record, and the Reply flag.
//
// Request payloads form a closed sum type. [Message] is implemented
// only by the variants in this package, one per kind:
//
//   - [FetchResult]: content → background, one upstream query for a
//     batch of result identifiers.
//   - [FetchDeferred]: content → background, follow a deferred
//     reference returned for an expensive result.
//   - [ImageDataRequest]: page → content, one result identifier.
//   - [Prefetch]: page → content, warm the cache for several result
//     identifiers without waiting.
//
// [Decode] dispatches on the kind tag to the matching variant; callers
// then switch on the concrete type rather than probing fields.
//
// Reply payloads are [QueryResult] (background → content) and
// [ImageData] (content → page). These types carry `json` tags because
// the same shapes are decoded from the upstream API's JSON.
package envelope
