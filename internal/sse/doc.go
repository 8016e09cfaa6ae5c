// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sse implements the streaming half of the OpenAI-compatible chat
// protocol: a frame decoder that reassembles "data:" records from arbitrary
// byte chunks, and a pure extractor that turns one record into an
// incremental content delta plus optional usage totals.
//
// Malformed records are skipped by design. Some backends interleave
// keep-alive noise or vendor frames into the stream; a record that does not
// parse is dropped and the stream continues. The stream body being absent or
// unreadable is a different matter and is surfaced as an error by the
// caller.
package sse
