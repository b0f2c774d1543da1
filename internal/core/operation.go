package core

// OperationKind is used to identify what kind of operation is being performed by migration.
type OperationKind string

const (
	OperationSQL        OperationKind = "SQL"
	OperationNote       OperationKind = "NOTE"
	OperationBreaking   OperationKind = "BREAKING"
	OperationUnresolved OperationKind = "UNRESOLVED"
)

// OperationRisk is used to identify the risk level of an operation.
type OperationRisk string

const (
	RiskInfo     OperationRisk = "INFO"
	RiskWarning  OperationRisk = "WARNING"
	RiskBreaking OperationRisk = "BREAKING"
	RiskCritical OperationRisk = "CRITICAL"
)

// Operation is a single step of a migration plan. SQL operations carry the
// forward statement and, when one exists, the statement undoing it.
type Operation struct {
	Kind OperationKind `json:"kind" yaml:"kind"`

	SQL         string `json:"sql,omitempty" yaml:"sql,omitempty"`
	RollbackSQL string `json:"rollbackSql,omitempty" yaml:"rollbackSql,omitempty"`

	// Table is the table the operation applies to, if any.
	Table string `json:"table,omitempty" yaml:"table,omitempty"`

	Risk         OperationRisk `json:"risk,omitempty" yaml:"risk,omitempty"`
	RequiresLock bool          `json:"requiresLock,omitempty" yaml:"requiresLock,omitempty"`

	UnresolvedReason string `json:"unresolvedReason,omitempty" yaml:"unresolvedReason,omitempty"`
}
