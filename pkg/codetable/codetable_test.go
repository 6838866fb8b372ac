package codetable

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bastiangx/imeserve/pkg/dictionary"
	"github.com/bastiangx/imeserve/pkg/engine"
	"github.com/bastiangx/imeserve/pkg/trie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(text, code string, priority uint32) dictionary.Entry {
	return dictionary.Entry{Text: text, Code: code, Priority: priority}
}

func newTable(t *testing.T, opts Options, entries ...dictionary.Entry) *CodeTable {
	t.Helper()
	table, err := New(entries, opts)
	require.NoError(t, err)
	return table
}

func texts(candidates []engine.Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Text
	}
	return out
}

func TestRankPriorityWithinDepth(t *testing.T) {
	table := newTable(t, DefaultOptions(), entry("low", "a", 50), entry("high", "a", 90))
	n, ok := table.Get("a")
	require.True(t, ok)

	got := Rank(n, []rune("a"))
	assert.Equal(t, []string{"high", "low"}, texts(got))
}

func TestRankDepthBeatsPriority(t *testing.T) {
	table := newTable(t, DefaultOptions(), entry("deep", "ab", 1000), entry("shallow", "a", 10))
	n, ok := table.Get("a")
	require.True(t, ok)

	got := Rank(n, []rune("a"))
	require.Len(t, got, 2)
	assert.Equal(t, "shallow", got[0].Text)
	assert.Equal(t, engine.PerfectMatch, got[0].Match)
	assert.Empty(t, got[0].RemainingCodes)
	assert.Equal(t, "deep", got[1].Text)
	assert.Equal(t, engine.PrefixMatch, got[1].Match)
	assert.Equal(t, []rune("b"), got[1].RemainingCodes)
}

func TestRankBreadthFirstOrder(t *testing.T) {
	table := newTable(t, DefaultOptions(),
		entry("ac", "ac", 1),
		entry("ab", "ab", 1),
		entry("abc", "abc", 500),
		entry("a", "a", 1),
	)
	n, _ := table.Get("a")
	got := Rank(n, []rune("a"))
	assert.Equal(t, []string{"a", "ab", "ac", "abc"}, texts(got))
	assert.Equal(t, "abc"+"bc", got[3].Message())
}

func TestRankEmptyInput(t *testing.T) {
	table := newTable(t, DefaultOptions(), entry("a", "a", 1))
	assert.Empty(t, Rank(table.Root(), nil))
	assert.Empty(t, Rank(nil, []rune("a")))
}

func TestScenarioEqualPriorityKeepsDictionaryOrder(t *testing.T) {
	table := newTable(t, DefaultOptions(),
		entry("1", "aad", 100),
		entry("2", "aad", 100),
		entry("啊", "aad", 100),
	)
	ctx := table.NewContext(1)

	got, codes := ctx.Feed('a')
	assert.Equal(t, "a", codes)
	assert.Len(t, got, 3)

	_, codes = ctx.Feed('a')
	assert.Equal(t, "aa", codes)

	got, codes = ctx.Feed('d')
	assert.Equal(t, "aad", codes)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"1", "2", "啊"}, texts(got))
	for _, c := range got {
		assert.Equal(t, engine.PerfectMatch, c.Match)
	}
}

func TestCodesRoundTrip(t *testing.T) {
	table := newTable(t, DefaultOptions(),
		entry("a", "a", 1),
		entry("ab", "ab", 1),
		entry("abc", "abc", 1),
	)
	ctx := table.NewContext(7)
	assert.Equal(t, "", ctx.Codes())
	assert.Equal(t, engine.ContextID(7), ctx.ID())

	for i, want := range []string{"a", "ab", "abc"} {
		_, codes := ctx.Feed(rune("abc"[i]))
		assert.Equal(t, want, codes)
		assert.Equal(t, want, ctx.Codes())
	}

	res := ctx.Backspace()
	assert.False(t, res.Cancel)
	assert.Equal(t, "ab", res.Codes)
	assert.Equal(t, []string{"ab", "abc"}, texts(res.Candidates))

	res = ctx.Backspace()
	assert.False(t, res.Cancel)
	assert.Equal(t, "a", ctx.Codes())
	assert.Equal(t, []string{"a", "ab", "abc"}, texts(res.Candidates))

	res = ctx.Backspace()
	assert.True(t, res.Cancel)
	assert.Equal(t, "", ctx.Codes())
	assert.Same(t, table.Root(), ctx.Position())
	assert.Zero(t, ctx.Overflow())
}

func TestOverflowOnEmptyRoot(t *testing.T) {
	table := newTable(t, DefaultOptions())
	ctx := table.NewContext(1)

	for i := 1; i <= 3; i++ {
		got, _ := ctx.Feed('x')
		assert.Empty(t, got)
		assert.Equal(t, i, ctx.Overflow())
	}
	assert.Equal(t, "xxx", ctx.Codes())

	res := ctx.Backspace()
	assert.False(t, res.Cancel)
	assert.Empty(t, res.Candidates)
	assert.Equal(t, 2, ctx.Overflow())

	res = ctx.Backspace()
	assert.False(t, res.Cancel)
	assert.Empty(t, res.Candidates)
	assert.Equal(t, 1, ctx.Overflow())

	// the last code empties the input, which always cancels
	res = ctx.Backspace()
	assert.True(t, res.Cancel)
	assert.Zero(t, ctx.Overflow())
}

func TestOverflowReversesToPreOverflowCandidates(t *testing.T) {
	table := newTable(t, DefaultOptions(), entry("工", "a", 1), entry("式", "aa", 1))
	ctx := table.NewContext(1)

	before, _ := ctx.Feed('a')
	require.Equal(t, []string{"工", "式"}, texts(before))

	for i := 1; i <= 3; i++ {
		got, _ := ctx.Feed('x')
		assert.Empty(t, got)
		assert.Equal(t, i, ctx.Overflow())
	}

	res := ctx.Backspace()
	assert.Empty(t, res.Candidates)
	res = ctx.Backspace()
	assert.Empty(t, res.Candidates)
	res = ctx.Backspace()
	assert.False(t, res.Cancel)
	assert.Equal(t, "a", res.Codes)
	assert.Equal(t, before, res.Candidates)
}

func TestOverflowClearDoesNotMovePosition(t *testing.T) {
	table := newTable(t, DefaultOptions(), entry("a", "a", 1), entry("ab", "ab", 1))
	ctx := table.NewContext(1)
	ctx.Feed('a')
	ctx.Feed('b')
	atB := ctx.Position()

	got, codes := ctx.Feed('z')
	assert.Empty(t, got)
	assert.Equal(t, "abz", codes)
	assert.Same(t, atB, ctx.Position())

	res := ctx.Backspace()
	assert.Zero(t, ctx.Overflow())
	assert.Same(t, atB, ctx.Position())
	assert.Equal(t, []string{"ab"}, texts(res.Candidates))

	res = ctx.Backspace()
	assert.Same(t, atB.Parent(), ctx.Position())
	assert.Equal(t, []string{"a", "ab"}, texts(res.Candidates))
}

func TestBackspaceWithoutParentLinks(t *testing.T) {
	// built without the finalize pass, so no node knows its parent
	tr := trie.New[rune, ResultValue]().Insert([]rune("ab"), ResultValue{Text: "ab"})
	ranker, err := NewRanker(0)
	require.NoError(t, err)
	ctx := newContext(1, tr.Root(), ranker, false)

	ctx.Feed('a')
	ctx.Feed('b')
	res := ctx.Backspace()
	assert.False(t, res.Cancel)
	assert.Empty(t, res.Candidates)
	assert.Equal(t, "a", res.Codes)
}

func TestPerfectOnly(t *testing.T) {
	opts := DefaultOptions()
	opts.PerfectOnly = true
	table := newTable(t, opts, entry("a", "a", 1), entry("ab", "ab", 1))
	assert.True(t, table.PerfectOnly())

	got, _ := table.NewContext(1).Feed('a')
	assert.Equal(t, []string{"a"}, texts(got))
}

func TestContextsAreIndependent(t *testing.T) {
	table := newTable(t, DefaultOptions(), entry("a", "a", 1), entry("b", "b", 1))
	one := table.StartContext(1)
	two := table.StartContext(2)

	one.Feed('a')
	got, codes := two.Feed('b')
	assert.Equal(t, "b", codes)
	assert.Equal(t, []string{"b"}, texts(got))
	assert.Equal(t, "a", one.Codes())
}

func TestKeycodesSorted(t *testing.T) {
	table := newTable(t, DefaultOptions(), entry("x", "zb", 1), entry("y", "ab", 1), entry("w", "m", 1))
	assert.Equal(t, []rune("abmz"), table.Keycodes())

	// callers get a copy
	kc := table.Keycodes()
	kc[0] = '!'
	assert.Equal(t, 'a', table.Keycodes()[0])
}

func TestNewRejectsEmptyCode(t *testing.T) {
	_, err := New([]dictionary.Entry{entry("a", "", 1)}, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyCode))
}

func TestLookup(t *testing.T) {
	table := newTable(t, DefaultOptions(),
		entry("工", "a", 10),
		entry("工", "aaaa", 90),
		entry("工人", "aw", 5),
		entry("啊", "aad", 1),
	)

	got := table.Lookup("工", 0)
	require.Len(t, got, 3)
	assert.Equal(t, LookupResult{Text: "工", Code: "aaaa", Priority: 90}, got[0])
	assert.Equal(t, LookupResult{Text: "工", Code: "a", Priority: 10}, got[1])
	assert.Equal(t, "工人", got[2].Text)

	assert.Len(t, table.Lookup("工", 1), 1)
	assert.Empty(t, table.Lookup("不", 0))
	assert.Len(t, table.Lookup("", 0), 4)
}

func TestRankerCache(t *testing.T) {
	table := newTable(t, DefaultOptions(), entry("a", "a", 1), entry("ab", "ab", 1))
	ranker := table.Ranker()
	assert.Zero(t, ranker.Len())

	first, _ := table.NewContext(1).Feed('a')
	second, _ := table.NewContext(2).Feed('a')
	assert.Equal(t, first, second)
	assert.Equal(t, 1, ranker.Len())

	ranker.Purge()
	assert.Zero(t, ranker.Len())

	uncached, err := NewRanker(0)
	require.NoError(t, err)
	n, _ := table.Get("a")
	assert.Equal(t, first, uncached.Rank(n, []rune("a")))
	assert.Zero(t, uncached.Len())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wubi.txt")
	require.NoError(t, os.WriteFile(path, []byte("# table\n工\ta\t250\n啊\taad\n"), 0o644))

	table, err := Load(path, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, path, table.Source())
	assert.Equal(t, engine.KindCodeTable, table.Kind())

	got, _ := table.NewContext(1).Feed('a')
	assert.Equal(t, []string{"工", "啊"}, texts(got))

	_, err = Load(filepath.Join(dir, "missing.txt"), DefaultOptions())
	assert.Error(t, err)
}

func BenchmarkFeed(b *testing.B) {
	entries := make([]dictionary.Entry, 0, 26*26)
	for i := 'a'; i <= 'z'; i++ {
		for j := 'a'; j <= 'z'; j++ {
			entries = append(entries, entry(string([]rune{i, j}), string([]rune{i, j}), uint32(j)))
		}
	}
	table, err := New(entries, DefaultOptions())
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ctx := table.NewContext(engine.ContextID(i))
		ctx.Feed('q')
		ctx.Feed('w')
	}
}
