package redcap

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

// Response formats the API negotiates through the format and returnFormat
// payload keys.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXML  = "xml"
)

// decode routes a response body by operation type, requested format, and
// parse outcome. The decision table, top to bottom:
//
//	export-file              -> check HTTP status, then raw bytes verbatim
//	json, parse succeeds     -> the decoded value
//	json, parse fails,
//	  operation import-file  -> empty object (successful imports have no body)
//	json, parse fails        -> DecodingError
//	csv, xml, anything else  -> body text unchanged
//
// The status check exists only for file exports: on success the body is the
// file itself, on failure it is an error message in the same position, so
// the status line is the only failure signal. Every other operation reports
// errors in-band and is decoded regardless of status.
func decode(op OperationType, format string, status int, body []byte) (any, error) {
	if op == ExportFile {
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return nil, &TransportError{StatusCode: status, Body: body}
		}
		return body, nil
	}

	if format != FormatJSON {
		return string(body), nil
	}

	var content any
	if err := json.Unmarshal(sanitizeJSON(body), &content); err != nil {
		if op == ImportFile {
			return map[string]any{}, nil
		}
		return nil, &DecodingError{Format: format, Err: err}
	}
	return content, nil
}

// sanitizeJSON escapes raw control characters inside string literals. The
// server is known to emit them, and a strict decoder rejects the result.
func sanitizeJSON(body []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(body))
	inString, escaped := false, false
	for _, c := range body {
		switch {
		case escaped:
			escaped = false
			out.WriteByte(c)
		case inString && c == '\\':
			escaped = true
			out.WriteByte(c)
		case c == '"':
			inString = !inString
			out.WriteByte(c)
		case inString && c < 0x20:
			fmt.Fprintf(&out, `\u%04x`, c)
		default:
			out.WriteByte(c)
		}
	}
	return out.Bytes()
}
