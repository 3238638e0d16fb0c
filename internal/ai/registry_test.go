package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoProvider struct{ model string }

func (p echoProvider) Name() string { return "echo" }

func (p echoProvider) Complete(_ context.Context, _ string, _ []Turn, prompt string) (string, error) {
	return p.model + ":" + prompt, nil
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(" Echo ", func(ctx context.Context, model string) (Provider, error) {
		return echoProvider{model: model}, nil
	})

	p, err := reg.Get(context.Background(), "ECHO", "m")
	require.NoError(t, err)
	out, err := p.Complete(context.Background(), "", nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, "m:hi", out)

	_, err = reg.Get(context.Background(), "nope", "")
	assert.ErrorContains(t, err, "registered: echo")
	assert.Equal(t, []string{"echo"}, reg.Names())
}

func TestRoleString(t *testing.T) {
	assert.Equal(t, "user", RoleUser.String())
	assert.Equal(t, "assistant", RoleAssistant.String())
	assert.Equal(t, "Role(9)", Role(9).String())
}
