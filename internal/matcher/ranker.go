package matcher

import (
	"context"
	"fmt"
	"math"
	"sort"

	"hirebizz-go/internal/apperr"
	"hirebizz-go/internal/constants"
	"hirebizz-go/internal/storage"
	"hirebizz-go/internal/types"
)

// Ranker 基于向量索引对岗位做相关度排序
type Ranker struct {
	index storage.JobVectorIndex
}

// NewRanker 创建Ranker
func NewRanker(index storage.JobVectorIndex) *Ranker {
	return &Ranker{index: index}
}

// Rank 在候选池宽度candidatePoolSize下查询与查询向量最相似的limit个岗位，
// 并换算为 [0,100] 区间的相关度分数。
// 要求 limit > 0 且 candidatePoolSize >= limit。
func (r *Ranker) Rank(ctx context.Context, queryVector []float64, limit, candidatePoolSize int) ([]types.JobRelevanceResult, error) {
	if limit <= 0 {
		return nil, apperr.Wrap(apperr.ErrInvalidSearchParameters, "Rank", "",
			fmt.Sprintf("limit必须为正数，实际 %d", limit), nil)
	}
	if candidatePoolSize < limit {
		return nil, apperr.Wrap(apperr.ErrInvalidSearchParameters, "Rank", "",
			fmt.Sprintf("candidatePoolSize (%d) 不能小于 limit (%d)", candidatePoolSize, limit), nil)
	}

	candidates, err := r.index.SearchSimilarJobs(ctx, queryVector, limit, candidatePoolSize)
	if err != nil {
		return nil, err
	}

	results := make([]types.JobRelevanceResult, 0, len(candidates))
	for _, c := range candidates {
		// 载荷缺失的候选无法还原岗位信息，直接跳过
		if c.JobID == "" || c.Payload == nil {
			continue
		}
		results = append(results, types.JobRelevanceResult{
			JobID:     c.JobID,
			Title:     payloadString(c.Payload, "title"),
			Location:  payloadString(c.Payload, "location"),
			Company:   payloadString(c.Payload, "company"),
			Skills:    payloadStrings(c.Payload, "skills"),
			Relevancy: clampRelevancy(c.Score * constants.RelevancyScale),
		})
	}

	// 相关度降序，同分时按岗位ID升序保证结果确定性
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Relevancy != results[j].Relevancy {
			return results[i].Relevancy > results[j].Relevancy
		}
		return results[i].JobID < results[j].JobID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// clampRelevancy 将分数裁剪到 [0,100] 区间。
// NaN按0处理，避免污染排序的确定性。
func clampRelevancy(score float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// payloadString 从载荷中读取字符串字段
func payloadString(payload map[string]interface{}, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

// payloadStrings 从载荷中读取字符串数组字段
func payloadStrings(payload map[string]interface{}, key string) []string {
	raw, ok := payload[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
