package redcap_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Varadharajan88/gocap/pkg/redcap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError_Message(t *testing.T) {
	err := redcap.NewValidationError("exporting record but content is not record")

	assert.Equal(t, "exporting record but content is not record", err.Error())
}

func TestValidationError_MissingKeys(t *testing.T) {
	err := redcap.NewMissingKeysError([]string{"content", "token"})

	assert.Equal(t, "required keys: content, token", err.Error())
	assert.Equal(t, []string{"content", "token"}, err.Missing)
}

func TestConfigurationError(t *testing.T) {
	err := redcap.NewConfigurationError("endpoint URL is empty")

	assert.Equal(t, "endpoint URL is empty", err.Error())
}

func TestUnknownOperationError(t *testing.T) {
	err := &redcap.UnknownOperationError{Type: "exp_bogus"}

	assert.Equal(t, `unknown operation type "exp_bogus"`, err.Error())
}

func TestTransportError_Status(t *testing.T) {
	err := &redcap.TransportError{StatusCode: 403, Body: []byte(`{"error":"no access"}`)}

	assert.Equal(t, `server returned status 403: {"error":"no access"}`, err.Error())
}

func TestTransportError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &redcap.TransportError{Err: cause}

	assert.Equal(t, "transport: connection refused", err.Error())
	require.ErrorIs(t, err, cause)
}

func TestDecodingError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("invalid character 'x'")
	err := &redcap.DecodingError{Format: redcap.FormatJSON, Err: cause}

	assert.Equal(t, "decoding json response: invalid character 'x'", err.Error())
	require.ErrorIs(t, err, cause)
}
