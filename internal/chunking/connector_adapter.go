package chunking

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"bizlens/internal/domain"
)

// ConnectorAdapter normalizes batches of raw records from an external
// connector: one content unit per record batch, batch boundaries set by the
// aggregation policy for the entity type.
type ConnectorAdapter struct {
	agg *AggregationTable
}

// NewConnectorAdapter creates a ConnectorAdapter using the given aggregation table.
func NewConnectorAdapter(agg *AggregationTable) *ConnectorAdapter {
	return &ConnectorAdapter{agg: agg}
}

func (a *ConnectorAdapter) SourceType() domain.SourceType {
	return domain.SourceTypeConnector
}

func (a *ConnectorAdapter) Normalize(input ChunkInput) (*NormalizedInput, error) {
	conn := input.Connector
	if conn == nil {
		return nil, fmt.Errorf("%w: connector payload missing", domain.ErrInvalidInput)
	}
	if conn.ConnectorType == "" {
		return nil, fmt.Errorf("%w: connector type missing", domain.ErrInvalidInput)
	}
	if conn.EntityType == "" {
		return nil, fmt.Errorf("%w: connector entity type missing", domain.ErrInvalidInput)
	}
	if len(conn.Records) == 0 {
		return nil, fmt.Errorf("%w: connector has no records", domain.ErrInvalidInput)
	}

	policy := a.agg.Lookup(domain.SourceTypeConnector, conn.EntityType)

	var units []ContentUnit
	var lines []string
	chars := 0
	flush := func() {
		if len(lines) == 0 {
			return
		}
		text := strings.Join(lines, "\n")
		units = append(units, ContentUnit{
			Type:         UnitRecordBatch,
			Number:       len(units) + 1,
			Text:         text,
			CharEstimate: len(text),
		})
		lines = nil
		chars = 0
	}

	for i, rec := range conn.Records {
		raw, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d is not serializable", domain.ErrInvalidInput, i)
		}
		line := string(raw)
		// A batch holds at most MaxUnits records and at most MaxChars of
		// serialized content; a single oversized record still forms a batch.
		if len(lines) > 0 && (len(lines) >= policy.MaxUnits || chars+len(line) > policy.MaxChars) {
			flush()
		}
		lines = append(lines, line)
		chars += len(line)
	}
	flush()

	return &NormalizedInput{
		Units: units,
		Context: map[string]string{
			"connector":     string(conn.ConnectorType),
			"entity_type":   conn.EntityType,
			"total_units":   strconv.Itoa(len(units)),
			"total_records": strconv.Itoa(len(conn.Records)),
		},
		TenantID:      input.TenantID,
		CompanyID:     input.CompanyID,
		ConnectorType: conn.ConnectorType,
		EntityType:    conn.EntityType,
	}, nil
}

func (a *ConnectorAdapter) Denormalize(outputs []ChunkOutput, input ChunkInput) []domain.Chunk {
	now := time.Now().UTC()
	var connectorType domain.ConnectorType
	var entityType string
	if input.Connector != nil {
		connectorType = input.Connector.ConnectorType
		entityType = input.Connector.EntityType
	}

	records := make([]domain.Chunk, 0, len(outputs))
	for _, out := range outputs {
		records = append(records, domain.Chunk{
			ID:              uuid.New(),
			TenantID:        input.TenantID,
			CompanyID:       input.CompanyID,
			RunID:           input.RunID,
			SourceType:      domain.SourceTypeConnector,
			ConnectorType:   connectorType,
			EntityType:      entityType,
			Content:         out.Content,
			Summary:         out.Summary,
			Pillar:          out.Pillar,
			ChunkType:       out.ChunkType,
			PageNumber:      out.PageNumber,
			ChunkIndex:      out.ChunkIndex,
			ConfidenceScore: out.Confidence,
			Metadata:        marshalMetadata(out.Metadata),
			PreviousContext: out.PreviousContext,
			Embedding:       marshalEmbedding(out.Embedding),
			CreatedAt:       now,
		})
	}
	return records
}
