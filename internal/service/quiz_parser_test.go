package service

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBank = `[
  {"text": "Q0", "options": ["a", "b", "c"], "correct_index": 1, "topic": "Networks"},
  {"text": "Q1", "options": ["a", "b"], "correct_index": 0, "verified": true, "explanation": "because", "topic": "Databases"},
  {"text": "Q2", "options": ["a", "b", "c", "d"], "correct_index": 3, "topic": "Networks"},
  {"text": "Q3", "options": ["a", "b"], "correct_index": 1},
  {"text": "Q4", "options": ["a", "b"], "correct_index": 0, "topic": "networks"}
]`

func parseBank(t *testing.T, src string) *Store {
	t.Helper()
	store, err := ParseStore(strings.NewReader(src), LoadOptions{})
	require.NoError(t, err)
	return store
}

func TestParseStoreKeysFollowSourceOrder(t *testing.T) {
	store := parseBank(t, sampleBank)

	require.Equal(t, 5, store.Len())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, store.Keys())

	q, ok := store.Get(2)
	require.True(t, ok)
	assert.Equal(t, "Q2", q.Text)
	assert.Equal(t, 3, q.CorrectIndex)

	_, ok = store.Get(5)
	assert.False(t, ok)
	_, ok = store.Get(-1)
	assert.False(t, ok)
}

func TestParseStoreDefaults(t *testing.T) {
	store, err := ParseStore(strings.NewReader(`[{}]`), LoadOptions{Lenient: true})
	require.NoError(t, err)

	q, ok := store.Get(0)
	require.True(t, ok)
	assert.Equal(t, Question{
		Text:    "question unavailable",
		Options: []string{},
	}, q)
	assert.Empty(t, store.Topics())
}

func TestParseStoreValidation(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"too few options", `[{"text": "x", "options": ["only"], "correct_index": 0}]`},
		{"too many options", `[{"text": "x", "options": ["1","2","3","4","5","6","7"], "correct_index": 0}]`},
		{"index past options", `[{"text": "x", "options": ["a","b"], "correct_index": 2}]`},
		{"negative index", `[{"text": "x", "options": ["a","b"], "correct_index": -1}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStore(strings.NewReader(tt.src), LoadOptions{})
			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, 0, loadErr.Index)

			store, err := ParseStore(strings.NewReader(tt.src), LoadOptions{Lenient: true})
			require.NoError(t, err)
			assert.Equal(t, 1, store.Len())
		})
	}
}

func TestParseStoreMalformed(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"object instead of list", `{"text": "not an array"}`},
		{"truncated", `[{"text": "q", "options": ["a", "b"]`},
		{"trailing garbage", `[{"text": "q", "options": ["a", "b"], "correct_index": 0}] this is not json`},
		{"second document", `[] []`},
		{"empty input", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStore(strings.NewReader(tt.src), LoadOptions{Lenient: true})

			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, -1, loadErr.Index)
		})
	}
}

func TestParseStoreTrailingWhitespace(t *testing.T) {
	store, err := ParseStore(strings.NewReader("[{\"text\": \"q\", \"options\": [\"a\", \"b\"], \"correct_index\": 0}]\n\n  "), LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestLoadStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "questions.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleBank), 0o644))

	store, err := LoadStore(path, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, store.Len())

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadStore(filepath.Join(dir, "nope.json"), LoadOptions{})
		var loadErr *LoadError
		require.True(t, errors.As(err, &loadErr))
		assert.True(t, errors.Is(err, os.ErrNotExist))
		assert.Contains(t, err.Error(), "nope.json")
	})

	t.Run("bad entry carries path", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`[{"options": ["a"]}]`), 0o644))

		_, err := LoadStore(bad, LoadOptions{})
		var loadErr *LoadError
		require.True(t, errors.As(err, &loadErr))
		assert.Equal(t, bad, loadErr.Path)
		assert.Contains(t, err.Error(), "entry 0")
	})
}

func TestStoreTopics(t *testing.T) {
	store := parseBank(t, sampleBank)

	// Distinct spellings stay distinct; the list is sorted.
	assert.Equal(t, []string{"Databases", "Networks", "networks"}, store.Topics())

	topic, ok := store.MatchTopic("  NETWORKS ")
	require.True(t, ok)
	assert.Equal(t, "Networks", topic)

	topic, ok = store.MatchTopic("networks")
	require.True(t, ok)
	assert.Equal(t, "networks", topic)

	_, ok = store.MatchTopic("Compilers")
	assert.False(t, ok)
	_, ok = store.MatchTopic("")
	assert.False(t, ok)
}

func TestStoreCount(t *testing.T) {
	store := parseBank(t, sampleBank)

	assert.Equal(t, 5, store.Count(""))
	assert.Equal(t, 3, store.Count("networks"))
	assert.Equal(t, 1, store.Count("Databases"))
	assert.Equal(t, 0, store.Count("Compilers"))
}

func TestStoreKeysExcludingTopic(t *testing.T) {
	store := parseBank(t, sampleBank)

	assert.Equal(t, []int{1, 3}, store.KeysExcludingTopic("Networks"))
	assert.Equal(t, []int{0, 2, 3, 4}, store.KeysExcludingTopic("databases"))
}
