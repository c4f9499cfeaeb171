package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bizlens/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the CSV header row (14 columns).
var columns = []string{
	"Chunk ID",
	"Run ID",
	"Source Type",
	"Document ID",
	"Connector",
	"Entity Type",
	"Pillar",
	"Chunk Type",
	"Page",
	"Index",
	"Confidence",
	"Summary",
	"Content",
	"Created At",
}

// Writer wraps csv.Writer for exporting chunks as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteChunks converts a batch of chunks to CSV rows and writes them.
func (w *Writer) WriteChunks(chunks []domain.Chunk) error {
	for i := range chunks {
		row := chunkToRow(&chunks[i])
		if err := w.csv.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

func chunkToRow(c *domain.Chunk) []string {
	row := make([]string, len(columns))

	row[0] = c.ID.String()
	row[1] = c.RunID.String()
	row[2] = string(c.SourceType)
	if c.DocumentID != nil {
		row[3] = c.DocumentID.String()
	}
	row[4] = string(c.ConnectorType)
	row[5] = c.EntityType
	row[6] = string(c.Pillar)
	row[7] = string(c.ChunkType)
	row[8] = strconv.Itoa(c.PageNumber)
	row[9] = strconv.Itoa(c.ChunkIndex)
	row[10] = formatConfidence(c.ConfidenceScore)
	row[11] = c.Summary
	row[12] = c.Content
	row[13] = c.CreatedAt.Format(time.RFC3339)

	return row
}

func formatConfidence(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a source name for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns a sanitized filename for Content-Disposition header.
// Format: {sanitized_source_name}_{YYYY-MM-DD}.csv
func BuildFilename(sourceName string) string {
	sanitized := SanitizeFilename(sourceName)
	date := time.Now().Format("2006-01-02")
	return fmt.Sprintf("%s_%s.csv", sanitized, date)
}
