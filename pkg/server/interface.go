/*
Package server implements msgpack-RPC for input method sessions.

The server reads msgpack-RPC messages from stdin and writes responses to stdout,
so an editor can spawn the binary and talk to it the same way it talks to any
other msgpack-RPC plugin host.

# IPC

Requests and responses follow the msgpack-RPC framing:

	[0, msgid, method, params]    request
	[1, msgid, error, result]     response
	[2, method, params]           notification (ignored)

A typical session starts a context, feeds codes, and confirms a candidate:

	[0, 1, "start_context", []]              -> [1, 1, nil, {"key": "3f0c...", "id": 1}]
	[0, 2, "input_char", ["3f0c...", "a"]]   -> [1, 2, nil, {"codes": "a", "candidates": [...]}]
	[0, 3, "confirm", ["3f0c...", 1]]        -> [1, 3, nil, {"text": "工"}]

Every candidate carries the remaining codes needed to reach it and whether it
is a perfect or prefix match:

	{"text": "式", "codes": "a", "match": "prefix"}

Backspace returns the same shape as input_char, or the string "cancel" once
the input is empty; the context is gone at that point.

Errors are sent back as a string in the error slot and never stop the server.
Unknown methods get "not impl".

# Methods

	initialize     [{kind, codetable, perfect_only}]  -> "ok"
	start_context  [key?]                             -> {key, id}
	input_char     [key, ch]                          -> {codes, candidates}
	backspace      [key]                              -> {codes, candidates} | "cancel"
	cancel         [key]                              -> "canceled"
	confirm        [key, index]                       -> {text}
	keycodes       []                                 -> "abc..."
	lookup         [prefix, limit?]                   -> [{text, codes, priority}]
	health         []                                 -> "ok"

ch may be a one character string or an integer code point.
*/
package server

const (
	msgRequest      = 0
	msgResponse     = 1
	msgNotification = 2
)

// Candidate is one ranked candidate on the wire.
type Candidate struct {
	Text  string `msgpack:"text"`
	Codes string `msgpack:"codes"`
	Match string `msgpack:"match"`
}

// EditResponse answers input_char and non canceling backspace calls.
type EditResponse struct {
	Codes      string      `msgpack:"codes"`
	Candidates []Candidate `msgpack:"candidates"`
}

// StartResponse answers start_context.
type StartResponse struct {
	Key string `msgpack:"key"`
	ID  uint64 `msgpack:"id"`
}

// ConfirmResponse answers confirm.
type ConfirmResponse struct {
	Text string `msgpack:"text"`
}

// InitializeRequest is the single parameter of initialize.
type InitializeRequest struct {
	Kind        string `msgpack:"kind"`
	CodeTable   string `msgpack:"codetable"`
	PerfectOnly bool   `msgpack:"perfect_only"`
}

const (
	resultOK       = "ok"
	resultCancel   = "cancel"
	resultCanceled = "canceled"
	errNotImpl     = "not impl"
)
