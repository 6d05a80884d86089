package logg

// Field keys shared by every component logger.
const (
	Layer     = "layer"
	Operation = "operation"
	URL       = "url"
	TabID     = "tab_id"
	Endpoint  = "endpoint"
	Method    = "method"
	CommandID = "command_id"
	Selector  = "selector"
	CycleID   = "cycle_id"
	Code      = "code"
)
