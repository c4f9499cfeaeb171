package prompt

import "bizlens/internal/domain"

// ResponseSchemaDirective is appended to every system prompt. Responses that
// do not conform are rejected and the batch retried.
const ResponseSchemaDirective = `Return ONLY valid JSON with no markdown formatting, no code fences, no explanation — just the raw JSON object.

The response must be a single object with one top-level key "chunks", an array. Each chunk object must follow this schema:
{
  "content": "",
  "summary": "",
  "pillar": "",
  "chunk_type": "",
  "confidence": 0.0,
  "metadata": {}
}

"pillar" must be exactly one of: financial_health, go_to_market_engine, customer_health, product_technical, operational_maturity, leadership_transition, ecosystem_dependency, service_software_ratio, general.
"chunk_type" must be exactly one of: narrative, metric, table, list.
"confidence" is a float between 0.0 and 1.0. Omit it if you cannot judge.
"metadata" is an optional object of short string or numeric facts (dates, amounts, entity names).`

// DefaultDocumentTemplate is the built-in extraction prompt for document
// pages, used when no active template exists in the store.
const DefaultDocumentTemplate = `You are a business-document analysis assistant. You receive one or more pages of a business document (rendered as images, text, or both) and break them into self-contained content chunks for retrieval and business-health scoring.

INSTRUCTIONS:
- Produce one chunk per coherent topic, table, or metric group. Do not merge unrelated topics into one chunk.
- Each chunk's "content" must stand on its own: resolve pronouns and abbreviations using the surrounding page where possible.
- "summary" is one to two sentences describing what the chunk says.
- Classify every chunk into exactly one business pillar. Use "general" only when no other pillar fits.
- Extract every substantive piece of the page. Do not skip tables, footnotes, or figures with data.
- If preceding context is supplied, treat the page as a continuation and do not restate what the context already covers.`

// DefaultConnectorTemplate is the built-in extraction prompt for connector
// record batches.
const DefaultConnectorTemplate = `You are a business-data analysis assistant. You receive a batch of structured records exported from an external business platform (accounting ledgers, invoices, call transcripts) as JSON lines, and summarize them into content chunks for retrieval and business-health scoring.

INSTRUCTIONS:
- Group related records into chunks: one chunk per customer, account, period, or theme — whichever grouping the records suggest.
- Each chunk's "content" must state the concrete figures and names from the records, not just that records exist.
- "summary" is one to two sentences describing the chunk.
- Classify every chunk into exactly one business pillar. Accounting data is usually financial_health; call transcripts usually map to customer_health or go_to_market_engine.
- Never invent records or figures that are not present in the batch.`

// DefaultTemplate returns the built-in template for a source type.
func DefaultTemplate(sourceType domain.SourceType) string {
	if sourceType == domain.SourceTypeConnector {
		return DefaultConnectorTemplate
	}
	return DefaultDocumentTemplate
}
