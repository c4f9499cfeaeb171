package domain

// SourceType identifies the family of raw content a chunking request carries.
type SourceType string

const (
	SourceTypeDocument  SourceType = "document"
	SourceTypeConnector SourceType = "connector"
)

// SupportedSourceTypes lists the source types the pipeline can route.
var SupportedSourceTypes = map[SourceType]bool{
	SourceTypeDocument:  true,
	SourceTypeConnector: true,
}

// Pillar classifies a chunk's subject matter into one of nine fixed
// business-health dimensions.
type Pillar string

const (
	PillarFinancialHealth      Pillar = "financial_health"
	PillarGoToMarket           Pillar = "go_to_market_engine"
	PillarCustomerHealth       Pillar = "customer_health"
	PillarProductTechnical     Pillar = "product_technical"
	PillarOperationalMaturity  Pillar = "operational_maturity"
	PillarLeadershipTransition Pillar = "leadership_transition"
	PillarEcosystemDependency  Pillar = "ecosystem_dependency"
	PillarServiceSoftwareRatio Pillar = "service_software_ratio"
	PillarGeneral              Pillar = "general"
)

// ValidPillars maps every accepted pillar label. LLM output carrying any
// other label is treated as malformed and the batch retried.
var ValidPillars = map[Pillar]bool{
	PillarFinancialHealth:      true,
	PillarGoToMarket:           true,
	PillarCustomerHealth:       true,
	PillarProductTechnical:     true,
	PillarOperationalMaturity:  true,
	PillarLeadershipTransition: true,
	PillarEcosystemDependency:  true,
	PillarServiceSoftwareRatio: true,
	PillarGeneral:              true,
}

// ChunkType describes the shape of a chunk's content.
type ChunkType string

const (
	ChunkTypeNarrative ChunkType = "narrative"
	ChunkTypeMetric    ChunkType = "metric"
	ChunkTypeTable     ChunkType = "table"
	ChunkTypeList      ChunkType = "list"
)

// ValidChunkTypes maps every accepted chunk type label.
var ValidChunkTypes = map[ChunkType]bool{
	ChunkTypeNarrative: true,
	ChunkTypeMetric:    true,
	ChunkTypeTable:     true,
	ChunkTypeList:      true,
}

// ConnectorType identifies an external data platform ingested via raw records.
type ConnectorType string

const (
	ConnectorQuickBooks ConnectorType = "quickbooks"
	ConnectorXero       ConnectorType = "xero"
	ConnectorFireflies  ConnectorType = "fireflies"
)

// RunStatus represents the lifecycle of a chunking run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusProcessing RunStatus = "processing"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// UserRole defines the role hierarchy within a tenant, as asserted by the
// external identity provider.
type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleMember UserRole = "member"
)
