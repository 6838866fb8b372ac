package server

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bastiangx/imeserve/pkg/engine"
	"github.com/bastiangx/imeserve/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type response struct {
	id     any
	err    any
	result any
}

func writeTable(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wubi.txt")
	require.NoError(t, os.WriteFile(path, []byte("工\ta\t250\n式\taa\n啊\taad\n"), 0o644))
	return path
}

// roundTrip encodes msgs, serves them, and decodes every response.
func roundTrip(t *testing.T, reg *session.Registry, msgs ...[]any) []response {
	t.Helper()
	var in, out bytes.Buffer
	enc := msgpack.NewEncoder(&in)
	for _, m := range msgs {
		require.NoError(t, enc.Encode(m))
	}

	srv := NewServer(reg, &in, &out)
	require.NoError(t, srv.Serve(context.Background()))

	dec := msgpack.NewDecoder(&out)
	dec.UseLooseInterfaceDecoding(true)
	var got []response
	for out.Len() > 0 {
		v, err := dec.DecodeInterfaceLoose()
		require.NoError(t, err)
		arr, ok := v.([]any)
		require.True(t, ok)
		require.Len(t, arr, 4)
		kind, _ := toInt(arr[0])
		require.EqualValues(t, msgResponse, kind)
		got = append(got, response{id: arr[1], err: arr[2], result: arr[3]})
	}
	return got
}

func ready(t *testing.T) *session.Registry {
	t.Helper()
	reg := session.NewRegistry(session.DefaultOptions())
	require.NoError(t, reg.Initialize(engine.Configuration{Kind: engine.KindCodeTable, CodeTable: writeTable(t)}))
	return reg
}

func field(t *testing.T, v any, name string) any {
	t.Helper()
	m, ok := v.(map[string]any)
	require.True(t, ok, "expected a map, got %T", v)
	return m[name]
}

func TestHealthAndUnknown(t *testing.T) {
	got := roundTrip(t, session.NewRegistry(session.DefaultOptions()),
		[]any{0, 1, "health", []any{}},
		[]any{0, 2, "frobnicate", []any{}},
	)
	require.Len(t, got, 2)
	assert.EqualValues(t, 1, got[0].id)
	assert.Nil(t, got[0].err)
	assert.Equal(t, "ok", got[0].result)
	assert.Equal(t, "not impl", got[1].err)
	assert.Nil(t, got[1].result)
}

func TestNotificationsAndJunkAreSkipped(t *testing.T) {
	got := roundTrip(t, session.NewRegistry(session.DefaultOptions()),
		[]any{2, "redraw", []any{}},
		[]any{"junk"},
		[]any{0, 5, "health", []any{}},
	)
	require.Len(t, got, 1)
	assert.EqualValues(t, 5, got[0].id)
}

func TestInitialize(t *testing.T) {
	path := writeTable(t)
	reg := session.NewRegistry(session.DefaultOptions())
	params := map[string]any{"kind": "codetable", "codetable": path, "perfect_only": true}

	got := roundTrip(t, reg,
		[]any{0, 1, "keycodes", []any{}},
		[]any{0, 2, "initialize", []any{params}},
		[]any{0, 3, "initialize", []any{params}},
		[]any{0, 4, "keycodes", []any{}},
	)
	require.Len(t, got, 4)
	assert.Contains(t, got[0].err, "not initialized")
	assert.Equal(t, "ok", got[1].result)
	assert.Contains(t, got[2].err, "already initialized")
	assert.Equal(t, "ad", got[3].result)
	assert.True(t, reg.Configuration().PerfectOnly)
}

func TestInitializeUnknownKind(t *testing.T) {
	got := roundTrip(t, session.NewRegistry(session.DefaultOptions()),
		[]any{0, 1, "initialize", []any{map[string]any{"kind": "pinyin"}}},
	)
	assert.Contains(t, got[0].err, "unsupported engine")
}

func TestEditingSession(t *testing.T) {
	reg := ready(t)
	got := roundTrip(t, reg,
		[]any{0, 1, "start_context", []any{"buf"}},
		[]any{0, 2, "input_char", []any{"buf", "a"}},
		[]any{0, 3, "input_char", []any{"buf", int('a')}},
		[]any{0, 4, "backspace", []any{"buf"}},
		[]any{0, 5, "backspace", []any{"buf"}},
		[]any{0, 6, "input_char", []any{"buf", "a"}},
	)
	require.Len(t, got, 6)

	assert.Equal(t, "buf", field(t, got[0].result, "key"))
	assert.EqualValues(t, 1, field(t, got[0].result, "id"))

	assert.Equal(t, "a", field(t, got[1].result, "codes"))
	candidates := field(t, got[1].result, "candidates").([]any)
	require.Len(t, candidates, 3)
	assert.Equal(t, "工", field(t, candidates[0], "text"))
	assert.Equal(t, "perfect", field(t, candidates[0], "match"))
	assert.Equal(t, "", field(t, candidates[0], "codes"))
	assert.Equal(t, "式", field(t, candidates[1], "text"))
	assert.Equal(t, "prefix", field(t, candidates[1], "match"))
	assert.Equal(t, "a", field(t, candidates[1], "codes"))

	assert.Equal(t, "aa", field(t, got[2].result, "codes"))
	assert.Equal(t, "a", field(t, got[3].result, "codes"))
	assert.Equal(t, "cancel", got[4].result)
	assert.Contains(t, got[5].err, "unknown input context")
}

func TestConfirmAndCancel(t *testing.T) {
	reg := ready(t)
	got := roundTrip(t, reg,
		[]any{0, 1, "start_context", []any{"a"}},
		[]any{0, 2, "input_char", []any{"a", "a"}},
		[]any{0, 3, "confirm", []any{"a", 9}},
		[]any{0, 4, "confirm", []any{"a", 2}},
		[]any{0, 5, "start_context", []any{"b"}},
		[]any{0, 6, "cancel", []any{"b"}},
		[]any{0, 7, "cancel", []any{"b"}},
	)
	require.Len(t, got, 7)
	assert.Contains(t, got[2].err, "out of range")
	assert.Equal(t, "式", field(t, got[3].result, "text"))
	assert.Equal(t, "canceled", got[5].result)
	assert.NotNil(t, got[6].err)
	assert.Zero(t, reg.Len())
}

func TestStartContextGeneratesKey(t *testing.T) {
	got := roundTrip(t, ready(t), []any{0, 1, "start_context", []any{}})
	key, ok := field(t, got[0].result, "key").(string)
	require.True(t, ok)
	assert.Len(t, key, 36)
}

func TestBadParams(t *testing.T) {
	reg := ready(t)
	got := roundTrip(t, reg,
		[]any{0, 1, "start_context", []any{"k"}},
		[]any{0, 2, "input_char", []any{"k"}},
		[]any{0, 3, "input_char", []any{"k", "ab"}},
		[]any{0, 4, "input_char", []any{42, "a"}},
		[]any{0, 5, "confirm", []any{"k", "x"}},
		[]any{0, 6, "lookup", []any{}},
	)
	require.Len(t, got, 6)
	for _, r := range got[1:] {
		assert.NotNil(t, r.err, "request %v", r.id)
	}
}

func TestLookup(t *testing.T) {
	got := roundTrip(t, ready(t), []any{0, 1, "lookup", []any{"式", 5}})
	entries := got[0].result.([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "aa", field(t, entries[0], "codes"))
	assert.EqualValues(t, 100, field(t, entries[0], "priority"))
}

func TestRuneParam(t *testing.T) {
	r, err := runeParam("啊")
	require.NoError(t, err)
	assert.Equal(t, '啊', r)

	r, err = runeParam(uint8('z'))
	require.NoError(t, err)
	assert.Equal(t, 'z', r)

	_, err = runeParam("")
	assert.Error(t, err)
	_, err = runeParam(-1)
	assert.Error(t, err)
	_, err = runeParam(3.5)
	assert.Error(t, err)

	for _, n := range []int{0xd800, 0xdbff, 0xdc00, 0xdfff, 0x110000} {
		_, err = runeParam(n)
		assert.Error(t, err, "%#x", n)
	}
	r, err = runeParam(uint16(0xe000))
	require.NoError(t, err)
	assert.Equal(t, rune(0xe000), r)
}

func TestInputCharRejectsSurrogate(t *testing.T) {
	got := roundTrip(t, ready(t),
		[]any{0, 1, "start_context", []any{"k"}},
		[]any{0, 2, "input_char", []any{"k", 0xd800}},
		[]any{0, 3, "input_char", []any{"k", int('a')}},
	)
	require.Len(t, got, 3)
	assert.NotNil(t, got[1].err)
	require.Nil(t, got[2].err)
	// the rejected code never reached the context
	assert.Equal(t, "a", field(t, got[2].result, "codes"))
}
