package classifier

import "math"

// quantParams mirrors the scale and zero point of an integer tensor.
type quantParams struct {
	scale     float64
	zeroPoint int
}

// identity parameters are used when a model reports scale 0, which
// TensorFlow Lite uses for "not quantized".
func (q quantParams) effective() quantParams {
	if q.scale == 0 {
		return quantParams{scale: 1}
	}
	return q
}

func quantizeValue(v float32, q quantParams, lo, hi int) int {
	q = q.effective()
	n := int(math.Round(float64(v)/q.scale)) + q.zeroPoint
	return min(max(n, lo), hi)
}

// quantizeUint8 fills dst with src mapped through q and clamped to [0,255].
func quantizeUint8(dst []uint8, src []float32, q quantParams) {
	for i, v := range src {
		dst[i] = uint8(quantizeValue(v, q, 0, math.MaxUint8)) //nolint:gosec // clamped above
	}
}

// quantizeInt8 fills dst with src mapped through q and clamped to [-128,127].
func quantizeInt8(dst []int8, src []float32, q quantParams) {
	for i, v := range src {
		dst[i] = int8(quantizeValue(v, q, math.MinInt8, math.MaxInt8)) //nolint:gosec // clamped above
	}
}

func dequantizeUint8(src []uint8, q quantParams) []float32 {
	q = q.effective()
	out := make([]float32, len(src))
	for i, v := range src {
		out[i] = float32(float64(int(v)-q.zeroPoint) * q.scale)
	}
	return out
}

func dequantizeInt8(src []int8, q quantParams) []float32 {
	q = q.effective()
	out := make([]float32, len(src))
	for i, v := range src {
		out[i] = float32(float64(int(v)-q.zeroPoint) * q.scale)
	}
	return out
}
