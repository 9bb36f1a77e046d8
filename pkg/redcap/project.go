package redcap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"

	"github.com/goccy/go-json"
)

// OverwriteBehavior controls what a record import does to fields the
// imported rows leave unset.
type OverwriteBehavior string

const (
	// OverwriteNormal leaves previously stored values untouched.
	OverwriteNormal OverwriteBehavior = "normal"
	// OverwriteOverwrite erases values the imported rows do not specify.
	OverwriteOverwrite OverwriteBehavior = "overwrite"
)

// Project is the higher-level client for one REDCap project. Construction
// loads the project's structure — metadata, field names and labels, forms,
// and for longitudinal projects the events and arms — and each method
// assembles a payload and hands it to a Request.
type Project struct {
	cfg      *Config
	logger   *slog.Logger
	execOpts []ExecuteOption

	metadata    []map[string]any
	fieldNames  []string
	fieldLabels []string
	defField    string
	forms       []string

	events   []map[string]any
	armNums  []string
	armNames []string
}

// ProjectOption configures a Project at construction time.
type ProjectOption func(*Project)

// WithExecuteOptions appends transport options to every call the project
// makes, after the options derived from its Config.
func WithExecuteOptions(opts ...ExecuteOption) ProjectOption {
	return func(p *Project) {
		p.execOpts = append(p.execOpts, opts...)
	}
}

// WithProjectLogger sets the structured logger the project and its
// requests report to.
func WithProjectLogger(logger *slog.Logger) ProjectOption {
	return func(p *Project) {
		p.logger = logger
	}
}

// NewProject connects to a REDCap project and loads its structure. The
// first metadata field is taken as the default record id field. A project
// that reports an error for the event export is treated as
// non-longitudinal, not as a failure.
func NewProject(ctx context.Context, cfg *Config, opts ...ProjectOption) (*Project, error) {
	if cfg == nil {
		return nil, NewConfigurationError("config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Project{cfg: cfg, logger: slog.Default()}
	p.execOpts = append(cfg.executeOptions(), p.execOpts...)
	for _, opt := range opts {
		opt(p)
	}

	metadata, err := p.ExportMetadata(ctx, ExportMetadataOptions{})
	if err != nil {
		return nil, fmt.Errorf("loading project metadata: %w", err)
	}
	p.metadata = metadata

	p.fieldNames, err = p.FilterMetadata("field_name")
	if err != nil {
		return nil, err
	}
	p.defField = p.fieldNames[0]
	p.fieldLabels, err = p.FilterMetadata("field_label")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, field := range metadata {
		if form, ok := field["form_name"].(string); ok && !seen[form] {
			seen[form] = true
			p.forms = append(p.forms, form)
		}
	}

	if err := p.loadLongitudinal(ctx); err != nil {
		return nil, err
	}

	p.logger.Debug("project loaded",
		slog.String("name", cfg.Name),
		slog.Int("fields", len(p.fieldNames)),
		slog.Int("events", len(p.events)),
	)
	return p, nil
}

// loadLongitudinal probes the event export to decide whether the project is
// longitudinal and, when it is, records its events and arms.
func (p *Project) loadLongitudinal(ctx context.Context) error {
	result, err := p.do(ctx, p.basePayload("event", FormatJSON), ExportEvent)
	if err != nil {
		return err
	}
	// Non-longitudinal projects answer {"error": ...} here.
	if m, ok := result.Content.(map[string]any); ok {
		if _, failed := m["error"]; failed {
			return nil
		}
	}
	events, err := jsonRows(result.Content)
	if err != nil {
		return err
	}
	p.events = events

	result, err = p.do(ctx, p.basePayload("arm", FormatJSON), ExportArm)
	if err != nil {
		return err
	}
	arms, err := jsonRows(result.Content)
	if err != nil {
		return err
	}
	for _, arm := range arms {
		p.armNums = append(p.armNums, fmt.Sprint(arm["arm_num"]))
		p.armNames = append(p.armNames, fmt.Sprint(arm["name"]))
	}
	return nil
}

// FieldNames returns the project's field names, metadata order.
func (p *Project) FieldNames() []string { return p.fieldNames }

// DefaultField returns the field used as the record identifier, the first
// field of the metadata.
func (p *Project) DefaultField() string { return p.defField }

// Forms returns the project's form names.
func (p *Project) Forms() []string { return p.forms }

// Events returns the project's events; empty for non-longitudinal projects.
func (p *Project) Events() []map[string]any { return p.events }

// Arms returns the project's arm numbers and names; empty for
// non-longitudinal projects.
func (p *Project) Arms() ([]string, []string) { return p.armNums, p.armNames }

// NamesLabels returns the field names alongside their labels.
func (p *Project) NamesLabels() ([]string, []string) {
	return p.fieldNames, p.fieldLabels
}

// FilterMetadata returns the value the given key carries in each metadata
// field that has it. Fails when no field carries the key at all.
func (p *Project) FilterMetadata(key string) ([]string, error) {
	var values []string
	for _, field := range p.metadata {
		if v, ok := field[key]; ok {
			values = append(values, fmt.Sprint(v))
		}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("key %q not found in metadata", key)
	}
	return values, nil
}

// MetadataType returns the validation type REDCap applies to the field, or
// the empty string when the field has none.
func (p *Project) MetadataType(fieldName string) string {
	value, _ := p.metaMetadata(fieldName, "text_validation_type_or_show_slider_number")
	return value
}

// metaMetadata returns the value of key for the named metadata field.
func (p *Project) metaMetadata(fieldName, key string) (string, error) {
	for _, field := range p.metadata {
		if field["field_name"] == fieldName {
			if v, ok := field[key]; ok {
				return fmt.Sprint(v), nil
			}
			break
		}
	}
	return "", fmt.Errorf("%s not in metadata field %s", key, fieldName)
}

// ExportMetadataOptions narrows a metadata export.
type ExportMetadataOptions struct {
	// Fields limits the export to these fields.
	Fields []string
	// Forms limits the export to these forms.
	Forms []string
}

// ExportMetadata exports the project's metadata as decoded rows.
func (p *Project) ExportMetadata(ctx context.Context, opts ExportMetadataOptions) ([]map[string]any, error) {
	result, err := p.do(ctx, p.metadataPayload(FormatJSON, opts), Metadata)
	if err != nil {
		return nil, err
	}
	return jsonRows(result.Content)
}

// ExportMetadataRaw exports the project's metadata as csv or xml text.
func (p *Project) ExportMetadataRaw(ctx context.Context, format string, opts ExportMetadataOptions) (string, error) {
	result, err := p.do(ctx, p.metadataPayload(format, opts), Metadata)
	if err != nil {
		return "", err
	}
	text, _ := result.Content.(string)
	return text, nil
}

func (p *Project) metadataPayload(format string, opts ExportMetadataOptions) Payload {
	pl := p.basePayload("metadata", format)
	if len(opts.Fields) > 0 {
		pl["fields"] = strings.Join(opts.Fields, ",")
	}
	if len(opts.Forms) > 0 {
		pl["forms"] = strings.Join(opts.Forms, ",")
	}
	return pl
}

// ExportRecordsOptions narrows a record export.
type ExportRecordsOptions struct {
	// Records limits the export to these record ids; all by default.
	Records []string
	// Fields limits the export to these fields; all by default.
	Fields []string
	// Forms limits the export to records of these forms. Replace spaces in
	// form names with underscores.
	Forms []string
	// Events limits the export to these unique events; longitudinal
	// projects only.
	Events []string
	// RawOrLabel exports raw coded values ("raw", the default), option
	// labels ("label"), or both.
	RawOrLabel string
	// EventName exports the event label ("label", the default) or the
	// unique event name ("unique").
	EventName string
}

// ExportRecords pulls records as decoded rows.
func (p *Project) ExportRecords(ctx context.Context, opts ExportRecordsOptions) ([]map[string]any, error) {
	result, err := p.do(ctx, p.recordsPayload(FormatJSON, opts), ExportRecord)
	if err != nil {
		return nil, err
	}
	return jsonRows(result.Content)
}

// ExportRecordsRaw pulls records as csv or xml text.
func (p *Project) ExportRecordsRaw(ctx context.Context, format string, opts ExportRecordsOptions) (string, error) {
	result, err := p.do(ctx, p.recordsPayload(format, opts), ExportRecord)
	if err != nil {
		return "", err
	}
	text, _ := result.Content.(string)
	return text, nil
}

func (p *Project) recordsPayload(format string, opts ExportRecordsOptions) Payload {
	pl := p.basePayload("record", format)
	lists := map[string][]string{
		"records": opts.Records,
		"fields":  opts.Fields,
		"forms":   opts.Forms,
		"events":  opts.Events,
	}
	for key, values := range lists {
		if len(values) > 0 {
			pl[key] = strings.Join(values, ",")
		}
	}
	if opts.RawOrLabel != "" {
		pl["rawOrLabel"] = opts.RawOrLabel
	}
	if opts.EventName != "" {
		pl["eventName"] = opts.EventName
	}
	return pl
}

// FilterRecords exports the given fields, applies match to each row, and
// re-exports the matching records limited to outputFields (the default id
// field when empty). The default id field is exported alongside fields so
// every row can be identified. No matches means an empty result: an empty
// records filter would export the whole project instead.
func (p *Project) FilterRecords(ctx context.Context, fields []string, match func(map[string]any) bool, outputFields []string) ([]map[string]any, error) {
	for _, field := range fields {
		if !p.hasField(field) {
			return nil, NewConfigurationError(fmt.Sprintf("%q is not a valid field", field))
		}
	}
	exportFields := append(append([]string{}, fields...), p.defField)
	rows, err := p.ExportRecords(ctx, ExportRecordsOptions{Fields: exportFields})
	if err != nil {
		return nil, err
	}

	var matches []string
	for _, row := range rows {
		if match(row) {
			matches = append(matches, fmt.Sprint(row[p.defField]))
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}

	if len(outputFields) == 0 {
		outputFields = []string{p.defField}
	}
	return p.ExportRecords(ctx, ExportRecordsOptions{Records: matches, Fields: outputFields})
}

// ImportRecords imports rows into the project. Row keys should be project
// field names; the server reports unknown keys in its response. The result
// is the server's decoded answer, normally a count of imported records.
func (p *Project) ImportRecords(ctx context.Context, records []map[string]any, overwrite OverwriteBehavior) (any, error) {
	if overwrite == "" {
		overwrite = OverwriteNormal
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("marshaling records: %w", err)
	}
	pl := p.basePayload("record", FormatJSON)
	pl["overwriteBehavior"] = string(overwrite)
	pl["data"] = string(data)

	result, err := p.do(ctx, pl, ImportRecord)
	if err != nil {
		return nil, err
	}
	return result.Content, nil
}

// ExportFile exports the file stored in the given field of one record. The
// second return value carries the parameters of the response content type,
// where REDCap reports the stored file's name and mime type. Pass the
// unique event name for longitudinal projects, "" otherwise.
func (p *Project) ExportFile(ctx context.Context, record, field, event string) ([]byte, map[string]string, error) {
	if !p.hasField(field) {
		return nil, nil, NewConfigurationError(fmt.Sprintf("%q is not a valid field", field))
	}
	pl := p.filePayload("export", record, field, event)
	result, err := p.do(ctx, pl, ExportFile)
	if err != nil {
		return nil, nil, err
	}
	content, _ := result.Content.([]byte)

	info := map[string]string{}
	if ct := result.Headers.Get("Content-Type"); ct != "" {
		if _, params, err := mime.ParseMediaType(ct); err == nil {
			info = params
		}
	}
	return content, info, nil
}

// ImportFile stores the content read from reader into the given file field
// of one record. name is the file name shown in the REDCap UI. A successful
// import has an empty response, surfaced as an empty map.
func (p *Project) ImportFile(ctx context.Context, record, field, name string, reader io.Reader, event string) (any, error) {
	if !p.hasField(field) {
		return nil, NewConfigurationError(fmt.Sprintf("%q is not a valid field", field))
	}
	if fieldType, _ := p.metaMetadata(field, "field_type"); fieldType != "file" {
		return nil, NewConfigurationError(fmt.Sprintf("%q is not a file field", field))
	}
	pl := p.filePayload("import", record, field, event)
	result, err := p.do(ctx, pl, ImportFile, WithFile("file", name, reader))
	if err != nil {
		return nil, err
	}
	return result.Content, nil
}

func (p *Project) filePayload(action, record, field, event string) Payload {
	// File calls take returnFormat instead of format.
	pl := p.basePayload("file", "")
	pl["returnFormat"] = FormatJSON
	pl["action"] = action
	pl["record"] = record
	pl["field"] = field
	if event != "" {
		pl["event"] = event
	}
	return pl
}

// ExportUsers exports the project's users and their rights.
func (p *Project) ExportUsers(ctx context.Context) ([]map[string]any, error) {
	return p.exportContent(ctx, "user", ExportUser)
}

// ExportEvents exports the project's events; longitudinal projects only.
func (p *Project) ExportEvents(ctx context.Context) ([]map[string]any, error) {
	return p.exportContent(ctx, "event", ExportEvent)
}

// ExportArms exports the project's arms; longitudinal projects only.
func (p *Project) ExportArms(ctx context.Context) ([]map[string]any, error) {
	return p.exportContent(ctx, "arm", ExportArm)
}

// ExportFormEventMapping exports which forms are bound to which events.
func (p *Project) ExportFormEventMapping(ctx context.Context) ([]map[string]any, error) {
	return p.exportContent(ctx, "formEventMapping", ExportFormEventMapping)
}

func (p *Project) exportContent(ctx context.Context, content string, op OperationType) ([]map[string]any, error) {
	result, err := p.do(ctx, p.basePayload(content, FormatJSON), op)
	if err != nil {
		return nil, err
	}
	return jsonRows(result.Content)
}

// basePayload assembles the keys every call shares. Metadata and file calls
// have no record type.
func (p *Project) basePayload(content, format string) Payload {
	pl := Payload{"token": p.cfg.Token, "content": content}
	if format != "" {
		pl["format"] = format
	}
	if content != "metadata" && content != "file" {
		pl["type"] = "flat"
	}
	return pl
}

func (p *Project) do(ctx context.Context, pl Payload, op OperationType, extra ...ExecuteOption) (*Result, error) {
	req, err := NewRequest(p.cfg.URL, pl, op, WithLogger(p.logger))
	if err != nil {
		return nil, err
	}
	opts := make([]ExecuteOption, 0, len(p.execOpts)+len(extra))
	opts = append(opts, p.execOpts...)
	opts = append(opts, extra...)
	return req.Execute(ctx, opts...)
}

func (p *Project) hasField(name string) bool {
	for _, field := range p.fieldNames {
		if field == name {
			return true
		}
	}
	return false
}

// jsonRows converts a decoded json array into rows. The API answers every
// export with an array of objects; anything else means the caller decoded
// an error response.
func jsonRows(content any) ([]map[string]any, error) {
	items, ok := content.([]any)
	if !ok {
		return nil, &DecodingError{Format: FormatJSON, Err: fmt.Errorf("expected array, got %T", content)}
	}
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		row, ok := item.(map[string]any)
		if !ok {
			return nil, &DecodingError{Format: FormatJSON, Err: fmt.Errorf("expected object row, got %T", item)}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
