package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/leafscan/internal/buildinfo"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := RootCommand(buildinfo.NewContext("1.2.3", "2026-10-01"))
	assert.Equal(t, "1.2.3 (built 2026-10-01)", root.Version)

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"detect", "serve", "history", "labels"})

	for _, flag := range []string{"config", "debug", "model", "labels", "threads"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}

	detect, _, err := root.Find([]string{"detect"})
	require.NoError(t, err)
	assert.NotNil(t, detect.Flags().Lookup("ask"))

	for _, sub := range []string{"list", "latest", "delete"} {
		c, _, err := root.Find([]string{"history", sub})
		require.NoError(t, err)
		assert.Equal(t, sub, c.Name())
	}
}
