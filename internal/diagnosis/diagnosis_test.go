package diagnosis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/leafscan/internal/classifier"
	"github.com/tphakala/leafscan/internal/errors"
	"github.com/tphakala/leafscan/internal/remedy"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		probs  []float32
		labels classifier.Labels
		want   Prediction
	}{
		{
			name:   "healthy leaf",
			probs:  []float32{0.05, 0.9, 0.02, 0.01, 0.02},
			labels: classifier.DefaultLabels,
			want:   Prediction{Index: 1, Label: "nodisease", Confidence: 0.9},
		},
		{
			name:   "rust",
			probs:  []float32{0.1, 0.1, 0.1, 0.1, 0.6},
			labels: classifier.DefaultLabels,
			want:   Prediction{Index: 4, Label: "rust", Confidence: 0.6},
		},
		{
			name:   "tie picks first",
			probs:  []float32{0.4, 0.4, 0.2},
			labels: classifier.DefaultLabels,
			want:   Prediction{Index: 0, Label: "miner", Confidence: 0.4},
		},
		{
			name:   "index beyond labels",
			probs:  []float32{0.1, 0.1, 0.8},
			labels: classifier.Labels{"a", "b"},
			want:   Prediction{Index: 2, Label: "class_2", Confidence: 0.8},
		},
		{
			name:   "no labels",
			probs:  []float32{0.3, 0.7},
			labels: nil,
			want:   Prediction{Index: 1, Label: "class_1", Confidence: 0.7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Resolve(tt.probs, tt.labels)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_Deterministic(t *testing.T) {
	t.Parallel()

	probs := []float32{0.2, 0.1, 0.3, 0.35, 0.05}
	first, err := Resolve(probs, classifier.DefaultLabels)
	require.NoError(t, err)
	second, err := Resolve(probs, classifier.DefaultLabels)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "phoma", first.Label)
}

func TestResolve_Invalid(t *testing.T) {
	t.Parallel()

	nan := float32(math.NaN())
	tests := []struct {
		name    string
		probs   []float32
		wantErr error
	}{
		{"empty", nil, ErrEmptyPrediction},
		{"NaN among scores", []float32{0.1, 0.2, nan, 0.6, 0.1}, classifier.ErrInference},
		{"NaN first", []float32{nan, 0.9}, classifier.ErrInference},
		{"NaN last", []float32{0.9, nan}, classifier.ErrInference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Resolve(tt.probs, classifier.DefaultLabels)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, errors.IsCategory(err, errors.CategoryInference))
			assert.Equal(t, Prediction{}, got)
		})
	}
}

func TestDecide_Healthy(t *testing.T) {
	t.Parallel()

	pred, err := Resolve([]float32{0.05, 0.9, 0.02, 0.01, 0.02}, classifier.DefaultLabels)
	require.NoError(t, err)

	out := Decide(pred, remedy.DefaultTable())
	assert.Equal(t, Healthy, out.Kind)
	assert.Equal(t, MessageHealthy, out.Message)
	assert.Equal(t, "No disease detected - leaf is healthy", out.Advice)
	assert.Empty(t, out.Remedy)
	assert.InDelta(t, 0.9, out.Prediction.Confidence, 1e-6)
	assert.False(t, out.CanTranslate)
	assert.False(t, out.CanChat)
	assert.False(t, out.CanExport)
}

func TestDecide_Unrecognized(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		pred Prediction
	}{
		{"index four", Prediction{Index: 4, Label: "rust", Confidence: 0.7}},
		{"other label", Prediction{Index: 2, Label: "Other", Confidence: 0.5}},
		{"index four beats nodisease", Prediction{Index: 4, Label: "nodisease", Confidence: 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := Decide(tt.pred, remedy.DefaultTable())
			assert.Equal(t, Unrecognized, out.Kind)
			assert.Equal(t, "The above photo cannot be recognized as a coffee leaf.", out.Message)
			assert.Equal(t, AdviceUnrecognized, out.Advice)
			assert.Empty(t, out.Remedy)
			assert.False(t, out.CanTranslate)
			assert.False(t, out.CanChat)
		})
	}
}

func TestDecide_Diseased(t *testing.T) {
	t.Parallel()

	table := remedy.DefaultTable()
	out := Decide(Prediction{Index: 0, Label: "miner", Confidence: 0.8}, table)

	assert.Equal(t, Diseased, out.Kind)
	assert.Equal(t, table.Lookup("miner"), out.Remedy)
	assert.Equal(t, out.Remedy, out.Advice)
	assert.Equal(t, "The disease predicted here is miner.\nRemedies: "+table.Lookup("miner"), out.Message)
	assert.True(t, out.CanTranslate)
	assert.True(t, out.CanChat)
	assert.True(t, out.CanAnalyze)
	assert.True(t, out.CanExport)
}

func TestDecide_UnknownLabelUsesFallback(t *testing.T) {
	t.Parallel()

	out := Decide(Prediction{Index: 7, Label: "class_7"}, remedy.DefaultTable())
	assert.Equal(t, Diseased, out.Kind)
	assert.Contains(t, out.Remedy, "General remedies for class_7")
}

type emptyRemedies struct{}

func (emptyRemedies) Lookup(string) string { return "" }

func TestDiseaseMessage_NoRemedy(t *testing.T) {
	t.Parallel()

	out := Decide(Prediction{Index: 3, Label: "phoma"}, emptyRemedies{})
	assert.Equal(t, "The disease predicted here is phoma.", out.Message)
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "unrecognized", Unrecognized.String())
	assert.Equal(t, "healthy", Healthy.String())
	assert.Equal(t, "diseased", Diseased.String())
	assert.Equal(t, "unknown", Kind(9).String())

	text, err := Diseased.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "diseased", string(text))
}
