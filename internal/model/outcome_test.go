package model_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracklet-io/tracklet/internal/model"
)

func TestOutcomeValidate(t *testing.T) {
	v := int64(5)
	s := "x"

	assert.NoError(t, model.Outcome{IDRun: 1, VInteger: &v}.Validate())
	assert.NoError(t, model.Outcome{IDRun: 1, VJSONB: json.RawMessage(`{}`)}.Validate())

	err := model.Outcome{IDRun: 1}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no value column")

	err = model.Outcome{IDRun: 1, VInteger: &v, VString: &s}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one")
}

func TestRunIsFather(t *testing.T) {
	assert.True(t, model.Run{IDRun: 1}.IsFather())

	father := int64(1)
	assert.False(t, model.Run{IDRun: 2, IDRunFather: &father}.IsFather())
}
