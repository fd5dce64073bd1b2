package sync

// Plan describes one table's transfer. Schema and PrefixedTableName
// start unresolved and are populated exactly once by the prepare stage;
// an already-set schema is never overwritten.
type Plan struct {
	TableName    string
	Columns      []string // empty means all source columns
	PrimaryKey   string
	TargetPrefix string

	// Resolved by prepare.
	Schema            map[string]string
	PrefixedTableName string
}

// Resolved reports whether the prepare stage has run for this plan.
func (p *Plan) Resolved() bool {
	return p.PrefixedTableName != ""
}
