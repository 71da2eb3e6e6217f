package matcher

import (
	"fmt"

	"hirebizz-go/internal/apperr"
)

// Average 将一组等维向量按元素求均值，得到代表整份简历的查询向量。
// 空集合或维度不一致时返回 ErrDimensionMismatch。
func Average(embeddings [][]float64) ([]float64, error) {
	if len(embeddings) == 0 {
		return nil, apperr.Wrap(apperr.ErrDimensionMismatch, "Average", "", "向量集为空", nil)
	}

	dim := len(embeddings[0])
	if dim == 0 {
		return nil, apperr.Wrap(apperr.ErrDimensionMismatch, "Average", "", "向量维度为0", nil)
	}

	sum := make([]float64, dim)
	for i, vec := range embeddings {
		if len(vec) != dim {
			return nil, apperr.Wrap(apperr.ErrDimensionMismatch, "Average", "",
				fmt.Sprintf("第%d个向量维度 %d 与首向量维度 %d 不一致", i, len(vec), dim), nil)
		}
		for j, v := range vec {
			sum[j] += v
		}
	}

	n := float64(len(embeddings))
	for j := range sum {
		sum[j] /= n
	}
	return sum, nil
}
