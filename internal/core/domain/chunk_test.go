package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatChunkID(t *testing.T) {
	tests := []struct {
		name    string
		tag     string
		seq     int
		want    string
		wantErr error
	}{
		{name: "first chunk", tag: "XYZ", seq: 1, want: "XYZ001"},
		{name: "two digit", tag: "AOU", seq: 42, want: "AOU042"},
		{name: "last sequence", tag: "AAA", seq: 999, want: "AAA999"},
		{name: "overflow", tag: "AAA", seq: 1000, wantErr: ErrSequenceOverflow},
		{name: "zero sequence", tag: "AAA", seq: 0, wantErr: ErrInvalidInput},
		{name: "lowercase tag", tag: "abc", seq: 1, wantErr: ErrInvalidInput},
		{name: "short tag", tag: "AB", seq: 1, wantErr: ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatChunkID(tt.tag, tt.seq)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseChunkID(t *testing.T) {
	t.Run("round trips", func(t *testing.T) {
		tag, seq, err := ParseChunkID("HAQ017")
		require.NoError(t, err)
		assert.Equal(t, "HAQ", tag)
		assert.Equal(t, 17, seq)
	})

	for _, bad := range []string{"", "HAQ", "HAQ0001", "haq001", "HA1001", "HAQ00A", "HAQ000"} {
		t.Run("rejects "+bad, func(t *testing.T) {
			_, _, err := ParseChunkID(bad)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestChunk_Validate(t *testing.T) {
	valid := Chunk{ChunkID: "XYZ001", Text: "t", FileName: "report.pdf", StartPage: 1, EndPage: 3}
	assert.NoError(t, valid.Validate())
	assert.Equal(t, "XYZ", valid.Tag())

	backwards := valid
	backwards.StartPage, backwards.EndPage = 4, 2
	assert.ErrorIs(t, backwards.Validate(), ErrInvalidInput)

	zero := valid
	zero.StartPage = 0
	assert.ErrorIs(t, zero.Validate(), ErrInvalidInput)

	badID := valid
	badID.ChunkID = "XYZ1"
	assert.ErrorIs(t, badID.Validate(), ErrInvalidInput)
}

func TestChunk_JSONFieldNames(t *testing.T) {
	data, err := json.Marshal(Chunk{ChunkID: "XYZ001", Text: "hello", FileName: "a.pdf", StartPage: 2, EndPage: 5})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"chunk_id":"XYZ001","text":"hello","file_name":"a.pdf","start_page":2,"end_page":5}`,
		string(data))
}

func TestSegment_PageRange(t *testing.T) {
	s := Segment{Content: "x", Pages: []int{7, 3, 5}}
	assert.True(t, s.HasPages())
	assert.Equal(t, 3, s.StartPage())
	assert.Equal(t, 7, s.EndPage())

	empty := Segment{Content: "x"}
	assert.False(t, empty.HasPages())
	assert.Zero(t, empty.StartPage())
	assert.Zero(t, empty.EndPage())
}

func TestBatchReport_Summary(t *testing.T) {
	report := BatchReport{Items: []ItemResult{
		{Item: "a.csv"},
		{Item: "b.xlsx", Err: errors.New("corrupt")},
		{Item: "c.csv"},
	}}

	assert.Equal(t, 2, report.Succeeded())
	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, "2 successful, 1 failed", report.Summary())
	require.Len(t, report.Failures(), 1)
	assert.Equal(t, "b.xlsx", report.Failures()[0].Item)
}

func TestSearchMode_IsValid(t *testing.T) {
	assert.True(t, SearchModeTextOnly.IsValid())
	assert.True(t, SearchModeHybrid.IsValid())
	assert.False(t, SearchMode("full").IsValid())
	assert.False(t, SearchMode("").IsValid())
	assert.True(t, SearchModeHybrid.RequiresEmbedding())
	assert.Equal(t, "Text Only (keyword search)", SearchModeTextOnly.Description())
}

func TestWorkspaceSettings_Dirs(t *testing.T) {
	w := WorkspaceSettings{Root: "/ws"}
	assert.Equal(t, "/ws/docs/unprocessed", w.DocsInbox())
	assert.Equal(t, "/ws/results/chunk-form", w.ChunkFormDir())
	assert.Equal(t, "/ws/databases", w.DatabasesDir())
	assert.Equal(t, "/ws/registry.json", w.RegistryPath())
	assert.Len(t, w.Dirs(), 8)
}
