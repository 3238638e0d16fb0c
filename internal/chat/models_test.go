package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elishakaranja/Mindset-coach/internal/ai"
)

func TestRole_ScanAndValue(t *testing.T) {
	var r Role
	require.NoError(t, r.Scan("assistant"))
	assert.Equal(t, RoleAssistant, r)
	require.NoError(t, r.Scan([]byte("user")))
	assert.Equal(t, RoleUser, r)

	assert.Error(t, r.Scan("system"))
	assert.Error(t, r.Scan(42))

	v, err := RoleUser.Value()
	require.NoError(t, err)
	assert.Equal(t, "user", v)

	_, err = Role(0).Value()
	assert.Error(t, err)
}

func TestBuildTranscript(t *testing.T) {
	assert.Empty(t, BuildTranscript(nil))

	got := BuildTranscript([]Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "again"},
	})
	assert.Equal(t, []ai.Turn{
		{Role: ai.RoleUser, Text: "hi"},
		{Role: ai.RoleAssistant, Text: "hello"},
		{Role: ai.RoleUser, Text: "again"},
	}, got)
}
