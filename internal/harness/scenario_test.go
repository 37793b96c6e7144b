package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario_Valid(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: minimal
description: one conversation
user: u1
start: 2025-01-02T03:04:05Z
steps:
  - op: create_conversation
    args: { title: Hello }
assertions:
  - type: conversations
    ids: [id-0001]
`))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, "u1", s.User)
	assert.True(t, s.Start.Equal(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)))
	require.Len(t, s.Steps, 1)
	assert.Equal(t, OpCreateConversation, s.Steps[0].Op)
	assert.Equal(t, "Hello", s.Steps[0].Args["title"])
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, []string{"id-0001"}, s.Assertions[0].IDs)
}

func TestParseScenario_DefaultStart(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: no-start
description: uses the default clock start
steps:
  - op: advance
    args: { duration: 1h }
`))
	require.NoError(t, err)
	assert.True(t, s.Start.Equal(DefaultStart))
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "name: x\ndescription: d\nassertion: []\nsteps:\n  - op: reset\n",
			want: "field assertion not found",
		},
		{
			name: "missing name",
			yaml: "description: d\nsteps:\n  - op: reset\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: x\nsteps:\n  - op: reset\n",
			want: "description is required",
		},
		{
			name: "no steps",
			yaml: "name: x\ndescription: d\n",
			want: "steps list is required",
		},
		{
			name: "unknown op",
			yaml: "name: x\ndescription: d\nsteps:\n  - op: teleport\n",
			want: `unknown op "teleport"`,
		},
		{
			name: "missing arg",
			yaml: "name: x\ndescription: d\nuser: u1\nsteps:\n  - op: create_message\n    args: { conversation: c1 }\n",
			want: `create_message requires arg "content"`,
		},
		{
			name: "missing user",
			yaml: "name: x\ndescription: d\nsteps:\n  - op: hide\n    args: { conversation: c1 }\n",
			want: "hide needs a user",
		},
		{
			name: "empty expect",
			yaml: "name: x\ndescription: d\nsteps:\n  - op: reset\n    expect: {}\n",
			want: "error is required",
		},
		{
			name: "tree without conversation",
			yaml: "name: x\ndescription: d\nsteps:\n  - op: reset\nassertions:\n  - type: tree\n",
			want: "conversation is required for tree",
		},
		{
			name: "entity without expectation",
			yaml: "name: x\ndescription: d\nsteps:\n  - op: reset\nassertions:\n  - type: entity\n    kind: user\n    id: u1\n",
			want: "expect or absent is required",
		},
		{
			name: "unknown assertion",
			yaml: "name: x\ndescription: d\nsteps:\n  - op: reset\nassertions:\n  - type: vibes\n",
			want: `unknown assertion type "vibes"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadScenario_Fixtures(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	for _, p := range paths {
		s, err := LoadScenario(p)
		require.NoError(t, err, p)
		assert.Equal(t, s.Name, filepath.Base(p[:len(p)-len(".yaml")]), "scenario name must match file name")
	}
}
