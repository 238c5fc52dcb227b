package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldError      = "error"
	FieldUnit       = "unit"
	FieldYear       = "year"
	FieldExternalID = "external_id"
	FieldAmount     = "amount"
	FieldStatus     = "status"
	FieldFile       = "file"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentImport  = "import"
	ComponentReports = "reports"
	ComponentStorage = "storage"
	ComponentReview  = "review"
	ComponentExport  = "export"
	ComponentWorker  = "worker"
)
