package persona

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elishakaranja/Mindset-coach/internal/common"
)

func TestBuiltin(t *testing.T) {
	r := MustBuiltin()
	assert.Equal(t, DefaultKey, r.DefaultKey())

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "sophia", list[0].ID)
	assert.Equal(t, "marcus", list[1].ID)

	p, err := r.Get("MaRcUs")
	require.NoError(t, err)
	assert.Equal(t, "Marcus", p.Name)
	assert.Contains(t, p.Instruction, "stoic")
}

func TestGet_Unknown(t *testing.T) {
	_, err := MustBuiltin().Get("unknown")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPublicViewsHideInstruction(t *testing.T) {
	r := MustBuiltin()
	b, err := json.Marshal(r.List())
	require.NoError(t, err)
	assert.NotContains(t, string(b), "YOUR PERSONALITY")

	p, _ := r.Get("sophia")
	b, err = json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "instruction")
}

func TestNew_Validation(t *testing.T) {
	ok := Personality{ID: "a", Name: "A", Instruction: "be a"}

	_, err := New("missing", ok)
	assert.Error(t, err)

	_, err = New("a", ok, Personality{ID: "A", Instruction: "dup"})
	assert.Error(t, err)

	_, err = New("a", Personality{ID: "a"})
	assert.Error(t, err)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default: Zen
personalities:
  - id: Zen
    name: Zen
    tagline: calm
    description: quiet
    instruction: breathe
`), 0o600))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "zen", r.DefaultKey())
	assert.True(t, r.Has("ZEN"))
	assert.False(t, r.Has("sophia"))
}
