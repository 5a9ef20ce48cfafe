package classifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lserrors "github.com/tphakala/leafscan/internal/errors"
)

func writeLabels(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labels.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadLabels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    Labels
		wantErr string
	}{
		{
			name:    "inverts by index",
			content: `{"rust": 4, "miner": 0, "phoma": 3, "nodisease": 1, "other": 2}`,
			want:    Labels{"miner", "nodisease", "other", "phoma", "rust"},
		},
		{
			name:    "custom set",
			content: `{"healthy": 1, "blight": 0}`,
			want:    Labels{"blight", "healthy"},
		},
		{name: "gap", content: `{"miner": 0, "rust": 2}`, wantErr: "outside"},
		{name: "duplicate", content: `{"miner": 0, "rust": 0}`, wantErr: "share index 0"},
		{name: "negative", content: `{"miner": -1}`, wantErr: "outside"},
		{name: "empty", content: `{}`, wantErr: "empty"},
		{name: "malformed", content: `["miner"]`, wantErr: "parse labels"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			labels, err := LoadLabels(writeLabels(t, tt.content))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, lserrors.IsCategory(err, lserrors.CategoryLabelLoad))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, labels)
		})
	}
}

func TestLoadLabels_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	labels, err := LoadLabels(filepath.Join(t.TempDir(), "labels.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultLabels, labels)
}

func TestLabels_Name(t *testing.T) {
	t.Parallel()

	for i, want := range DefaultLabels {
		got, ok := DefaultLabels.Name(i)
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok := DefaultLabels.Name(5)
	assert.False(t, ok)
	_, ok = DefaultLabels.Name(-1)
	assert.False(t, ok)
	assert.Equal(t, 5, DefaultLabels.Len())
}

func TestDisplay(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Rust", Display("rust"))
	assert.Equal(t, "Nodisease", Display(" nodisease "))
}
