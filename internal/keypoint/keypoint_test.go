package keypoint

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// diagonal returns n points where point k is (k, k).
func diagonal(n int) []Point {
	points := make([]Point, n)
	for k := range points {
		points[k] = Point{X: float64(k), Y: float64(k)}
	}
	return points
}

func TestReorderToTarget(t *testing.T) {
	t.Run("Should return 17 keypoints with full confidence", func(t *testing.T) {
		kps, err := ReorderToTarget(diagonal(SourceLandmarks))
		require.NoError(t, err)
		require.Len(t, kps, TargetLandmarks)
		for i, kp := range kps {
			assert.Equal(t, 1.0, kp.Confidence, "keypoint %d", i)
		}
	})

	t.Run("Should place source point table[i] at target position i", func(t *testing.T) {
		points := make([]Point, SourceLandmarks)
		for k := range points {
			points[k] = Point{X: float64(k) * 10, Y: float64(k)*10 + 1}
		}

		kps, err := ReorderToTarget(points)
		require.NoError(t, err)
		table := Mapping()
		for i, kp := range kps {
			assert.Equal(t, points[table[i]].X, kp.X, "x of keypoint %d", i)
			assert.Equal(t, points[table[i]].Y, kp.Y, "y of keypoint %d", i)
		}
	})

	t.Run("Should match the diagonal scenario exactly", func(t *testing.T) {
		kps, err := ReorderToTarget(diagonal(SourceLandmarks))
		require.NoError(t, err)

		want := []float64{0, 14, 15, 16, 17, 5, 2, 6, 3, 7, 4, 11, 8, 12, 9, 13, 10}
		for i, v := range want {
			assert.Equal(t, Keypoint{X: v, Y: v, Confidence: 1.0}, kps[i])
		}
	})

	t.Run("Should fail out of range with 17 points", func(t *testing.T) {
		_, err := ReorderToTarget(diagonal(17))
		require.ErrorIs(t, err, ErrIndexOutOfRange)
	})

	t.Run("Should fail out of range with no points", func(t *testing.T) {
		_, err := ReorderToTarget(nil)
		require.ErrorIs(t, err, ErrIndexOutOfRange)
	})

	t.Run("Should ignore points past the source schema", func(t *testing.T) {
		withExtras, err := ReorderToTarget(diagonal(25))
		require.NoError(t, err)
		exact, err := ReorderToTarget(diagonal(SourceLandmarks))
		require.NoError(t, err)
		assert.Equal(t, exact, withExtras)
	})
}

func TestMapping(t *testing.T) {
	table := Mapping()
	require.Len(t, table, TargetLandmarks)

	seen := make(map[int]bool)
	for _, src := range table {
		assert.GreaterOrEqual(t, src, 0)
		assert.Less(t, src, SourceLandmarks)
		assert.NotEqual(t, NeckIndex, src, "neck must never be mapped")
		seen[src] = true
	}
	for src := 0; src < SourceLandmarks; src++ {
		if src == NeckIndex {
			continue
		}
		assert.True(t, seen[src], "source index %d unreferenced", src)
	}

	// callers get a copy
	table[0] = 99
	assert.Equal(t, 0, Mapping()[0])
}

func TestKeypoint_JSON(t *testing.T) {
	kp := Keypoint{X: 12.5, Y: 7, Confidence: 1}

	data, err := json.Marshal(kp)
	require.NoError(t, err)
	assert.JSONEq(t, `[12.5, 7, 1]`, string(data))

	var back Keypoint
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, kp, back)

	assert.Error(t, json.Unmarshal([]byte(`[1, 2]`), &back))
	assert.Error(t, json.Unmarshal([]byte(`{"x": 1}`), &back))
}
