package redcap

// OperationType identifies which REDCap API resource and action a request
// targets. The set is open: new operations appear as the API grows, and the
// empty OperationType deliberately skips payload validation for raw calls.
type OperationType string

const (
	ExportRecord           OperationType = "exp_record"
	ImportRecord           OperationType = "imp_record"
	Metadata               OperationType = "metadata"
	ExportFile             OperationType = "exp_file"
	ImportFile             OperationType = "imp_file"
	ExportEvent            OperationType = "exp_event"
	ExportArm              OperationType = "exp_arm"
	ExportFormEventMapping OperationType = "exp_fem"
	ExportUser             OperationType = "exp_user"
)

// validationRule captures the minimum payload contract for one operation:
// the parameters required beyond token and content, the value the content
// discriminator must carry, and the message reported on a mismatch.
type validationRule struct {
	extra    []string
	content  string
	mismatch string
}

// validationRules is the authoritative copy of the REDCap API's minimum
// per-operation contract. Keep it in sync with the API documentation.
var validationRules = map[OperationType]validationRule{
	ExportRecord: {
		extra:    []string{"type", "format"},
		content:  "record",
		mismatch: "exporting record but content is not record",
	},
	ImportRecord: {
		extra:    []string{"type", "overwriteBehavior", "data", "format"},
		content:  "record",
		mismatch: "importing record but content is not record",
	},
	Metadata: {
		extra:    []string{"format"},
		content:  "metadata",
		mismatch: "requesting metadata but content is not metadata",
	},
	ExportFile: {
		extra:    []string{"action", "record", "field"},
		content:  "file",
		mismatch: "exporting file but content is not file",
	},
	ImportFile: {
		extra:    []string{"action", "record", "field"},
		content:  "file",
		mismatch: "importing file but content is not file",
	},
	ExportEvent: {
		extra:    []string{"format"},
		content:  "event",
		mismatch: "exporting events but content is not event",
	},
	ExportArm: {
		extra:    []string{"format"},
		content:  "arm",
		mismatch: "exporting arms but content is not arm",
	},
	ExportFormEventMapping: {
		extra:    []string{"format"},
		content:  "formEventMapping",
		mismatch: "exporting form-event mappings but content is not formEventMapping",
	},
	ExportUser: {
		extra:    []string{"format"},
		content:  "user",
		mismatch: "exporting users but content is not user",
	},
}
