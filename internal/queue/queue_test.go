package queue

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recaops/ods-sync/internal/schema"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newQueue(t *testing.T) *Queue {
	t.Helper()
	dir := t.TempDir()
	return New(filepath.Join(dir, "pendiente.jsonl"), filepath.Join(dir, "ods.xlsx"), testLogger())
}

func TestAdd_AppendsOneLinePerEntry(t *testing.T) {
	q := newQueue(t)
	rec := schema.Record{"id": "a-1"}
	require.NoError(t, q.Add(ActionAppend, rec, rec, ReasonLocked, nil))
	require.NoError(t, q.Add(ActionDelete, nil, rec, ReasonError, nil))

	lines, err := q.lines()
	require.NoError(t, err)
	require.Len(t, lines, 2)

	var first Entry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, ActionAppend, first.Action)
	assert.Equal(t, ReasonLocked, first.Reason)
	assert.Equal(t, "a-1", first.Ods["id"])
	assert.NotEmpty(t, first.Timestamp)
	assert.NotNil(t, first.Meta)

	var second Entry
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, ActionDelete, second.Action)
	assert.Equal(t, "a-1", second.Original["id"])
}

func TestAdd_EscapesNonASCII(t *testing.T) {
	q := newQueue(t)
	rec := schema.Record{"nombre_profesional": "Andrés Muñoz", "año_servicio": 2026}
	require.NoError(t, q.Add(ActionUpdate, rec, rec, ReasonLocked, nil))

	data, err := os.ReadFile(q.path)
	require.NoError(t, err)
	raw := string(data)
	for _, r := range raw {
		assert.Less(t, r, rune(0x80), "queue lines must be pure ASCII")
	}
	assert.Contains(t, raw, `Andrés Muñoz`)
	assert.Contains(t, raw, `año_servicio`)

	// The escaping is plain JSON; decoding restores the original text.
	lines, err := q.lines()
	require.NoError(t, err)
	var entry Entry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "Andrés Muñoz", entry.Ods["nombre_profesional"])
}

func TestStatus_CountsPendingLines(t *testing.T) {
	q := newQueue(t)

	status, err := q.Status()
	require.NoError(t, err)
	assert.Equal(t, 0, status.Pending)
	assert.False(t, status.Locked)

	rec := schema.Record{"id": "a-1"}
	require.NoError(t, q.Add(ActionAppend, rec, rec, ReasonLocked, nil))
	require.NoError(t, q.Add(ActionUpdate, rec, rec, ReasonLocked, nil))

	status, err = q.Status()
	require.NoError(t, err)
	assert.Equal(t, 2, status.Pending)
}

func TestClear_TruncatesAndToleratesMissingFile(t *testing.T) {
	q := newQueue(t)
	require.NoError(t, q.Clear(), "clearing a queue that never existed is fine")

	rec := schema.Record{"id": "a-1"}
	require.NoError(t, q.Add(ActionAppend, rec, rec, ReasonLocked, nil))
	require.NoError(t, q.Clear())

	status, err := q.Status()
	require.NoError(t, err)
	assert.Equal(t, 0, status.Pending)
}

func TestRewrite_EmptyLeavesEmptyFile(t *testing.T) {
	q := newQueue(t)
	rec := schema.Record{"id": "a-1"}
	require.NoError(t, q.Add(ActionAppend, rec, rec, ReasonLocked, nil))
	require.NoError(t, q.rewrite(nil))

	data, err := os.ReadFile(q.path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestEscapeNonASCII_SurrogatePairs(t *testing.T) {
	out := string(escapeNonASCII([]byte(`{"v":"𝄞"}`)))
	assert.Equal(t, `{"v":"𝄞"}`, out)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "𝄞", decoded["v"])
}

func TestEscapeNonASCII_LeavesASCIIAlone(t *testing.T) {
	in := `{"id":"a-1","n":42}`
	assert.Equal(t, in, string(escapeNonASCII([]byte(in))))
	assert.False(t, strings.Contains(string(escapeNonASCII([]byte(in))), `\u`))
}
