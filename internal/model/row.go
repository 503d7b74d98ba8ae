package model

// Column labels as they appear in the remote table.
const (
	ColWorkItem    = "Work Item"
	ColProject     = "Project"
	ColStatus      = "Status"
	ColStartDate   = "Start Date"
	ColEndDate     = "End Date"
	ColResponsible = "Responsible"
	ColEmail       = "Email"
	ColPhase       = "Phase"
	ColYear        = "Year"
)

// Columns is the canonical column ordering used when serializing rows
// for upload. Cells are always emitted in this order.
var Columns = []string{
	ColWorkItem,
	ColProject,
	ColStatus,
	ColStartDate,
	ColEndDate,
	ColResponsible,
	ColEmail,
	ColPhase,
	ColYear,
}

// SyncRow is one flattened work record headed for the remote table.
// Keys are column labels; values are string, int, or time.Time. A field
// with no value is a missing key, never a nil value. The remote API
// interprets omission, so absent fields must not be serialized at all.
type SyncRow map[string]any

// DateFormat is the wire format for date values.
const DateFormat = "2006-01-02"
