package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	tree := map[string][]string{
		"auth":          {"login", "logout", "status"},
		"post":          {"list", "show", "like", "unlike", "toggle-like", "create", "delete"},
		"comment":       {"list", "create", "delete", "like", "unlike"},
		"notifications": {"list", "count", "read", "read-all"},
		"progress":      {"report", "play"},
	}
	for parent, children := range tree {
		for _, child := range children {
			c, _, err := rootCmd.Find([]string{parent, child})
			require.NoError(t, err, "%s %s", parent, child)
			assert.Equal(t, child, c.Name(), "%s %s", parent, child)
		}
	}

	for _, name := range []string{"watch", "connect", "completion", "version"} {
		c, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}
}

func TestAliases(t *testing.T) {
	c, _, err := rootCmd.Find([]string{"posts", "like"})
	require.NoError(t, err)
	assert.Equal(t, "like", c.Name())
	assert.Equal(t, "post", c.Parent().Name())

	c, _, err = rootCmd.Find([]string{"notif", "count"})
	require.NoError(t, err)
	assert.Equal(t, "notifications", c.Parent().Name())
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(nil)

	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "Community CLI v"+Version+"\n", buf.String())
}

func TestWatchFlags(t *testing.T) {
	for _, name := range []string{"types", "no-prefetch", "metrics-addr"} {
		assert.NotNil(t, watchCmd.Flags().Lookup(name), name)
	}
	assert.NotNil(t, connectCmd.Flags().Lookup("timeout"))
}
