// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model defines the conversation data model shared by the store,
// the streaming engine, and the UI: conversations, messages, the message
// status machine, generation metadata, and model capability tables.
package model
