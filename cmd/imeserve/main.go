// Copyright 2025 The WordServe Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the imeserve input method engine server and its CLI tools.

imeserve turns typed key codes into ranked text candidates using a code table
dictionary, the way shape based Chinese input methods such as Wubi or Cangjie
work. Editors spawn it and talk msgpack-RPC over stdin/stdout; see package
server for the protocol.

# Usage

Start the server with the configured code table:

	imeserve

Use a specific table and enable debug logging:

	imeserve serve --codetable /path/to/wubi.txt -d

Try a table interactively:

	imeserve repl --limit 9

Find the codes of a text:

	imeserve lookup 工

# Code tables

A code table is a UTF-8 text file with one entry per line, tab separated:

	工	a	250
	式	aa
	啊	aad	100

The priority column is optional. Table names without a directory are looked
up under $XDG_DATA_HOME/imeserve/codetable.

# Configuration

Runtime configuration lives in $XDG_CONFIG_HOME/imeserve/config.toml and is
created with defaults when missing:

	[engine]
	kind = "codetable"
	codetable = "wubi.txt"
	perfect_only = false

	[dict]
	encoding = "utf-8"
	default_priority = 100
	normalize = true
	watch = false

	[server]
	max_candidates = 0
	cache_size = 4096

	[log]
	level = "warn"
	file = ""

	[metrics]
	addr = ""

With watch enabled the code table is reloaded whenever the file changes.
Contexts already in progress finish on the table they started with.

Logs never go to stdout, since stdout carries the RPC stream.
*/
package main

import (
	"os"

	"github.com/charmbracelet/log"
)

const (
	Version = "0.1.0-beta"
	AppName = "imeserve"
	gh      = "https://github.com/bastiangx/imeserve"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
