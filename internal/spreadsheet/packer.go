package spreadsheet

import "strings"

const (
	charsPerToken     = 4
	rowOverheadTokens = 1
)

// Section is one packed group of rows whose estimated token count fits the
// ceiling, except when it holds a single row that alone exceeds it.
type Section struct {
	Rows            []string
	EstimatedTokens int
	// Placeholder marks the single section produced for an empty source.
	Placeholder bool
}

// Packer greedily packs rows into sections under a token ceiling. The
// estimate is chars/4 plus a per-row overhead, seeded with a fixed header
// cost per section.
type Packer struct {
	MaxTokens    int
	HeaderTokens int
}

// NewPacker creates a Packer, applying defaults for non-positive limits.
func NewPacker(maxTokens, headerTokens int) Packer {
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	if headerTokens < 0 {
		headerTokens = 0
	}
	return Packer{MaxTokens: maxTokens, HeaderTokens: headerTokens}
}

func rowTokens(row string) int {
	return len(row)/charsPerToken + rowOverheadTokens
}

// Pack splits rows into sections in source order. Fully blank rows are
// skipped. A row that alone exceeds the ceiling still becomes its own
// section, never dropped. An empty source yields exactly one placeholder
// section.
func (p Packer) Pack(rows []string) []Section {
	var sections []Section
	var cur []string
	est := p.HeaderTokens

	flush := func() {
		if len(cur) == 0 {
			return
		}
		sections = append(sections, Section{Rows: cur, EstimatedTokens: est})
		cur = nil
		est = p.HeaderTokens
	}

	for _, row := range rows {
		if strings.TrimSpace(row) == "" {
			continue
		}
		rt := rowTokens(row)
		if len(cur) > 0 && est+rt > p.MaxTokens {
			flush()
		}
		cur = append(cur, row)
		est += rt
	}
	flush()

	if len(sections) == 0 {
		return []Section{{Placeholder: true, EstimatedTokens: p.HeaderTokens}}
	}
	return sections
}
