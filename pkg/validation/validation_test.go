package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErr "github.com/taskhall/engine/pkg/errors"
)

type signup struct {
	Email    string   `json:"email" validate:"required,email"`
	Nickname string   `json:"nickname" validate:"required,max=8"`
	Tags     []string `json:"tags" validate:"max=2,dive,max=3"`
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	err := Struct(signup{Email: "nope", Nickname: "a-very-long-name", Tags: []string{"a", "b", "c"}})
	require.Error(t, err)

	ae, ok := appErr.As(err)
	require.True(t, ok)
	assert.Equal(t, appErr.CodeInvalid, ae.Code)

	fields, ok := ae.Meta["fields"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a valid email", fields["email"])
	assert.Equal(t, "must be at most 8 characters", fields["nickname"])
	assert.Equal(t, "must have at most 2 items", fields["tags"])
}

func TestStructDiveUsesIndexedPath(t *testing.T) {
	err := Struct(signup{Email: "a@b.co", Nickname: "ok", Tags: []string{"long-tag"}})
	require.Error(t, err)

	ae, _ := appErr.As(err)
	fields := ae.Meta["fields"].(map[string]string)
	assert.Contains(t, fields, "tags[0]")
}

func TestStructValid(t *testing.T) {
	assert.NoError(t, Struct(signup{Email: "a@b.co", Nickname: "ok"}))
}
