package spreadsheet_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizlens/internal/spreadsheet"
)

func TestPackerPack_SplitsAtTokenCeiling(t *testing.T) {
	// Each row estimates to 100/4+1 = 26 tokens; three fit under 80, the
	// fourth starts a new section.
	p := spreadsheet.NewPacker(80, 0)
	row := strings.Repeat("x", 100)

	sections := p.Pack([]string{row, row, row, row})

	require.Len(t, sections, 2)
	assert.Len(t, sections[0].Rows, 3)
	assert.Len(t, sections[1].Rows, 1)
	assert.Equal(t, 78, sections[0].EstimatedTokens)
}

func TestPackerPack_HeaderCostSeedsEachSection(t *testing.T) {
	p := spreadsheet.NewPacker(80, 30)
	row := strings.Repeat("x", 100)

	sections := p.Pack([]string{row, row, row})

	// With 30 header tokens seeded, only one 26-token row fits per section.
	require.Len(t, sections, 3)
	for _, sec := range sections {
		assert.Equal(t, 56, sec.EstimatedTokens)
	}
}

func TestPackerPack_SkipsBlankRows(t *testing.T) {
	p := spreadsheet.NewPacker(100, 0)

	sections := p.Pack([]string{"a\tb", "", "   ", "c\td"})

	require.Len(t, sections, 1)
	assert.Equal(t, []string{"a\tb", "c\td"}, sections[0].Rows)
}

func TestPackerPack_OversizedRowKeepsOwnSection(t *testing.T) {
	p := spreadsheet.NewPacker(50, 0)
	huge := strings.Repeat("x", 1000)

	sections := p.Pack([]string{"small", huge, "small"})

	require.Len(t, sections, 3)
	assert.Equal(t, []string{huge}, sections[1].Rows)
}

func TestPackerPack_EmptySourceYieldsPlaceholder(t *testing.T) {
	p := spreadsheet.NewPacker(100, 10)

	sections := p.Pack(nil)

	require.Len(t, sections, 1)
	assert.True(t, sections[0].Placeholder)
	assert.Empty(t, sections[0].Rows)
	assert.Equal(t, 10, sections[0].EstimatedTokens)

	// All-blank input behaves like an empty source.
	sections = p.Pack([]string{"", "  "})
	require.Len(t, sections, 1)
	assert.True(t, sections[0].Placeholder)
}

func TestNewPacker_Defaults(t *testing.T) {
	p := spreadsheet.NewPacker(0, -5)
	assert.Equal(t, 2000, p.MaxTokens)
	assert.Equal(t, 0, p.HeaderTokens)
}
