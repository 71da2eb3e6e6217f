package matcher

import (
	"testing"

	"hirebizz-go/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAverage(t *testing.T) {
	t.Run("单位向量的均值", func(t *testing.T) {
		result, err := Average([][]float64{
			{1, 0},
			{0, 1},
		})
		require.NoError(t, err)
		assert.Equal(t, []float64{0.5, 0.5}, result)
	})

	t.Run("单向量返回自身", func(t *testing.T) {
		result, err := Average([][]float64{{0.2, 0.4, 0.6}})
		require.NoError(t, err)
		assert.Equal(t, []float64{0.2, 0.4, 0.6}, result)
	})

	t.Run("空集合报错", func(t *testing.T) {
		_, err := Average(nil)
		assert.ErrorIs(t, err, apperr.ErrDimensionMismatch)
	})

	t.Run("维度不一致报错", func(t *testing.T) {
		_, err := Average([][]float64{
			{1, 2, 3},
			{1, 2},
		})
		assert.ErrorIs(t, err, apperr.ErrDimensionMismatch)
	})

	t.Run("零维向量报错", func(t *testing.T) {
		_, err := Average([][]float64{{}})
		assert.ErrorIs(t, err, apperr.ErrDimensionMismatch)
	})

	t.Run("均值分量是逐元素和除以个数", func(t *testing.T) {
		embeddings := [][]float64{
			{3, 6, 9},
			{1, 2, 3},
			{2, 4, 6},
		}
		result, err := Average(embeddings)
		require.NoError(t, err)
		assert.InDelta(t, 2.0, result[0], 1e-9)
		assert.InDelta(t, 4.0, result[1], 1e-9)
		assert.InDelta(t, 6.0, result[2], 1e-9)
	})

	t.Run("输入顺序不影响结果", func(t *testing.T) {
		a, err := Average([][]float64{{1, 2}, {3, 4}, {5, 6}})
		require.NoError(t, err)
		b, err := Average([][]float64{{5, 6}, {1, 2}, {3, 4}})
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}
