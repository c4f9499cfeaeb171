package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textUnit(number int, text string) ContentUnit {
	return ContentUnit{Type: UnitPage, Number: number, Text: text, CharEstimate: len(text)}
}

func imageUnit(number int) ContentUnit {
	return ContentUnit{Type: UnitPage, Number: number, ImageBase64: "aGVsbG8=", ImageMediaType: "image/png"}
}

func TestPackDocumentBatches_ImagePagesAreSoloBatches(t *testing.T) {
	units := []ContentUnit{textUnit(1, "short"), imageUnit(2), textUnit(3, "short")}

	batches := packDocumentBatches(units, 2000)

	require.Len(t, batches, 3)
	assert.Equal(t, []int{1}, batches[0].unitNumbers())
	assert.Equal(t, []int{2}, batches[1].unitNumbers())
	assert.Equal(t, []int{3}, batches[2].unitNumbers())
}

func TestPackDocumentBatches_SmallTextPagesPackTogether(t *testing.T) {
	units := []ContentUnit{textUnit(1, "aaaa"), textUnit(2, "bbbb"), textUnit(3, "cccc")}

	batches := packDocumentBatches(units, 2000)

	require.Len(t, batches, 1)
	assert.Equal(t, []int{1, 2, 3}, batches[0].unitNumbers())
}

func TestPackDocumentBatches_BudgetSplitsBatches(t *testing.T) {
	big := strings.Repeat("x", 400) // ~101 tokens
	units := []ContentUnit{textUnit(1, big), textUnit(2, big), textUnit(3, big)}

	batches := packDocumentBatches(units, 150)

	require.Len(t, batches, 3)
	for i, b := range batches {
		assert.Equal(t, []int{i + 1}, b.unitNumbers())
	}
}

func TestPackDocumentBatches_OversizedTextPageStillBatches(t *testing.T) {
	huge := strings.Repeat("x", 100000)
	units := []ContentUnit{textUnit(1, huge)}

	batches := packDocumentBatches(units, 2000)

	require.Len(t, batches, 1)
	assert.Equal(t, []int{1}, batches[0].unitNumbers())
}

func TestParseChunkResponse_Valid(t *testing.T) {
	text := `{"chunks":[
		{"content":"Revenue grew 12%","summary":"growth","pillar":"financial_health","chunk_type":"metric","confidence":0.9},
		{"content":"Team restructure","summary":"","pillar":"leadership_transition","chunk_type":"narrative"}
	]}`

	outputs, err := parseChunkResponse(text)
	require.NoError(t, err)
	require.Len(t, outputs, 2)
	assert.Equal(t, "Revenue grew 12%", outputs[0].Content)
	assert.Equal(t, "financial_health", string(outputs[0].Pillar))
	assert.Equal(t, "metric", string(outputs[0].ChunkType))
	require.NotNil(t, outputs[0].Confidence)
	assert.InDelta(t, 0.9, *outputs[0].Confidence, 1e-9)
	assert.Nil(t, outputs[1].Confidence)
}

func TestParseChunkResponse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"not json", "here are your chunks"},
		{"no chunks", `{"chunks":[]}`},
		{"empty content", `{"chunks":[{"content":"  ","pillar":"general","chunk_type":"narrative"}]}`},
		{"unknown pillar", `{"chunks":[{"content":"x","pillar":"finance","chunk_type":"narrative"}]}`},
		{"confidence out of range", `{"chunks":[{"content":"x","pillar":"general","chunk_type":"narrative","confidence":1.5}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseChunkResponse(tt.text)
			assert.Error(t, err)
		})
	}
}

func TestParseChunkResponse_UnknownChunkTypeFallsBackToNarrative(t *testing.T) {
	text := `{"chunks":[{"content":"x","pillar":"general","chunk_type":"prose"}]}`

	outputs, err := parseChunkResponse(text)
	require.NoError(t, err)
	assert.Equal(t, "narrative", string(outputs[0].ChunkType))
}

func TestContinuationContext(t *testing.T) {
	assert.Equal(t, "", continuationContext(nil))

	withSummary := []ChunkOutput{{Content: "long body", Summary: "the summary"}}
	assert.Equal(t, "the summary", continuationContext(withSummary))

	long := strings.Repeat("a", 300)
	noSummary := []ChunkOutput{{Content: long}}
	got := continuationContext(noSummary)
	assert.Len(t, got, 240)
	assert.Equal(t, long[60:], got)
}

func TestAssignContinuity(t *testing.T) {
	outputs := []ChunkOutput{
		{Content: "first", Summary: "s1"},
		{Content: "second", Summary: "s2"},
		{Content: "third"},
	}

	assignContinuity(outputs, "prior batch tail")

	assert.Equal(t, "prior batch tail", outputs[0].PreviousContext)
	assert.Equal(t, "s1", outputs[1].PreviousContext)
	assert.Equal(t, "s2", outputs[2].PreviousContext)
}
