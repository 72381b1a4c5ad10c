package protocol

import (
	"context"
	"testing"

	"github.com/dukex/nodebase/pkg/execerr"
	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleData struct {
	VariableName string `json:"variableName" label:"Variable name" validate:"required,varname"`
	CredentialID string `json:"credentialId" label:"Credential ID" validate:"required"`
	Method       string `json:"method"       label:"Method"        validate:"omitempty,oneof=GET POST"`
	Timeout      int    `json:"timeout"`
}

func TestDecodeAndValidate_FirstMissingFieldByLabel(t *testing.T) {
	var data sampleData

	err := DecodeAndValidate("OpenAI node", map[string]any{"variableName": "answer"}, &data)
	require.Error(t, err)
	assert.Equal(t, "OpenAI node: Credential ID is missing", err.Error())
	assert.False(t, execerr.IsRetriable(err))

	err = DecodeAndValidate("OpenAI node", map[string]any{}, &data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Variable name is missing")
}

func TestDecodeAndValidate_Rules(t *testing.T) {
	var data sampleData

	err := DecodeAndValidate("node", map[string]any{"variableName": "1abc", "credentialId": "c"}, &data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Variable name must start with")

	data = sampleData{}
	err = DecodeAndValidate("node", map[string]any{"variableName": "a", "credentialId": "c", "method": "TRACE"}, &data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Method must be one of GET POST")

	data = sampleData{}
	err = DecodeAndValidate("node", map[string]any{"variableName": "$ok_1", "credentialId": "c", "timeout": "15"}, &data)
	require.NoError(t, err)
	assert.Equal(t, 15, data.Timeout)
}

func TestDecode_TypeMismatch(t *testing.T) {
	var data sampleData

	err := Decode("node", map[string]any{"timeout": map[string]any{"x": 1}}, &data)
	require.Error(t, err)
	assert.Equal(t, execerr.KindValidation, execerr.KindOf(err))
}

func TestInput_PublishHelpers(t *testing.T) {
	var published []status.Status

	in := Input{
		Publish: func(_ context.Context, s status.Status) {
			published = append(published, s)
		},
	}

	in.Loading(t.Context())
	next, err := in.Succeed(t.Context(), models.Context{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, models.Context{"a": 1}, next)

	_, err = Input{}.Fail(t.Context(), assert.AnError)
	assert.ErrorIs(t, err, assert.AnError)

	assert.Equal(t, []status.Status{status.Loading, status.Success}, published)
}
