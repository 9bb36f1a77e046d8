package redcap_test

import (
	"testing"

	"github.com/Varadharajan88/gocap/pkg/redcap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validPayloads carries a minimal passing payload for every operation in
// the rule table.
var validPayloads = map[redcap.OperationType]redcap.Payload{
	redcap.ExportRecord: {
		"token": "T", "content": "record", "type": "flat", "format": "json",
	},
	redcap.ImportRecord: {
		"token": "T", "content": "record", "type": "flat",
		"overwriteBehavior": "normal", "data": "[]", "format": "json",
	},
	redcap.Metadata: {
		"token": "T", "content": "metadata", "format": "json",
	},
	redcap.ExportFile: {
		"token": "T", "content": "file", "action": "export",
		"record": "1", "field": "consent_form", "returnFormat": "json",
	},
	redcap.ImportFile: {
		"token": "T", "content": "file", "action": "import",
		"record": "1", "field": "consent_form", "returnFormat": "json",
	},
	redcap.ExportEvent: {
		"token": "T", "content": "event", "format": "json",
	},
	redcap.ExportArm: {
		"token": "T", "content": "arm", "format": "json",
	},
	redcap.ExportFormEventMapping: {
		"token": "T", "content": "formEventMapping", "format": "json",
	},
	redcap.ExportUser: {
		"token": "T", "content": "user", "format": "json",
	},
}

// requiredKeys is each operation's full required set, token and content
// included.
var requiredKeys = map[redcap.OperationType][]string{
	redcap.ExportRecord:           {"token", "content", "type", "format"},
	redcap.ImportRecord:           {"token", "content", "type", "overwriteBehavior", "data", "format"},
	redcap.Metadata:               {"token", "content", "format"},
	redcap.ExportFile:             {"token", "content", "action", "record", "field"},
	redcap.ImportFile:             {"token", "content", "action", "record", "field"},
	redcap.ExportEvent:            {"token", "content", "format"},
	redcap.ExportArm:              {"token", "content", "format"},
	redcap.ExportFormEventMapping: {"token", "content", "format"},
	redcap.ExportUser:             {"token", "content", "format"},
}

func clonePayload(p redcap.Payload) redcap.Payload {
	out := make(redcap.Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func TestNewRequest_ValidPayloads(t *testing.T) {
	for op, payload := range validPayloads {
		t.Run(string(op), func(t *testing.T) {
			req, err := redcap.NewRequest("https://redcap.example.org/api/", payload, op)

			require.NoError(t, err)
			assert.Equal(t, "json", req.Format())
		})
	}
}

func TestNewRequest_MissingKeyNamesIt(t *testing.T) {
	for op, keys := range requiredKeys {
		for _, key := range keys {
			t.Run(string(op)+"/"+key, func(t *testing.T) {
				payload := clonePayload(validPayloads[op])
				delete(payload, key)

				_, err := redcap.NewRequest("https://redcap.example.org/api/", payload, op)

				var valErr *redcap.ValidationError
				require.ErrorAs(t, err, &valErr)
				assert.Equal(t, []string{key}, valErr.Missing)
			})
		}
	}
}

func TestNewRequest_WrongContentValue(t *testing.T) {
	payload := clonePayload(validPayloads[redcap.ExportRecord])
	payload["content"] = "metadata"

	_, err := redcap.NewRequest("https://redcap.example.org/api/", payload, redcap.ExportRecord)

	var valErr *redcap.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "exporting record but content is not record", valErr.Error())
}

func TestNewRequest_EmptyOperationSkipsValidation(t *testing.T) {
	// No token, no content: the empty operation type is the documented
	// validation bypass for raw calls.
	req, err := redcap.NewRequest("https://redcap.example.org/api/", redcap.Payload{"format": "csv"}, "")

	require.NoError(t, err)
	assert.Equal(t, "csv", req.Format())
}

func TestNewRequest_UnknownOperationFailsFast(t *testing.T) {
	payload := redcap.Payload{"token": "T", "content": "record", "format": "json"}

	_, err := redcap.NewRequest("https://redcap.example.org/api/", payload, "exp_bogus")

	var unknownErr *redcap.UnknownOperationError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, redcap.OperationType("exp_bogus"), unknownErr.Type)
}

func TestNewRequest_NoFormatKey(t *testing.T) {
	_, err := redcap.NewRequest("https://redcap.example.org/api/", redcap.Payload{"token": "T"}, "")

	var cfgErr *redcap.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestNewRequest_ReturnFormatWins(t *testing.T) {
	payload := redcap.Payload{"returnFormat": "csv", "format": "json"}

	req, err := redcap.NewRequest("https://redcap.example.org/api/", payload, "")

	require.NoError(t, err)
	assert.Equal(t, "csv", req.Format())
}

func TestNewRequest_EmptyEndpoint(t *testing.T) {
	_, err := redcap.NewRequest("", redcap.Payload{"format": "json"}, "")

	var cfgErr *redcap.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestNewRequest_NilPayload(t *testing.T) {
	_, err := redcap.NewRequest("https://redcap.example.org/api/", nil, "")

	var cfgErr *redcap.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestValidate_DoesNotMutatePayload(t *testing.T) {
	payload := clonePayload(validPayloads[redcap.Metadata])

	_, err := redcap.NewRequest("https://redcap.example.org/api/", payload, redcap.Metadata)

	require.NoError(t, err)
	assert.Equal(t, validPayloads[redcap.Metadata], payload)
}
