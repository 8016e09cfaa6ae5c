// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// tidechat is a terminal chat client for OpenAI-compatible completion
// servers.
package main

import "github.com/tidechat/tidechat-tui/internal/cli"

func main() {
	cli.Execute()
}
