package matcher

import (
	"context"
	"math"
	"testing"

	"hirebizz-go/internal/apperr"
	"hirebizz-go/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIndex 返回预设候选的向量索引桩
type fakeIndex struct {
	candidates []storage.JobCandidate
	err        error

	gotLimit         int
	gotNumCandidates int
}

func (f *fakeIndex) SearchSimilarJobs(ctx context.Context, queryVector []float64, limit, numCandidates int) ([]storage.JobCandidate, error) {
	f.gotLimit = limit
	f.gotNumCandidates = numCandidates
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

func (f *fakeIndex) UpsertJobEmbedding(ctx context.Context, jobID string, vector []float64, payload map[string]interface{}) error {
	return nil
}

func payloadFor(title string) map[string]interface{} {
	return map[string]interface{}{
		"title":    title,
		"location": "远程",
		"company":  "示例公司",
		"skills":   []interface{}{"Go", "MySQL"},
	}
}

func TestRankerValidation(t *testing.T) {
	r := NewRanker(&fakeIndex{})

	t.Run("limit必须为正数", func(t *testing.T) {
		_, err := r.Rank(context.Background(), []float64{1}, 0, 100)
		assert.ErrorIs(t, err, apperr.ErrInvalidSearchParameters)
	})

	t.Run("候选池不能小于limit", func(t *testing.T) {
		_, err := r.Rank(context.Background(), []float64{1}, 10, 5)
		assert.ErrorIs(t, err, apperr.ErrInvalidSearchParameters)
	})

	t.Run("候选池等于limit合法", func(t *testing.T) {
		_, err := r.Rank(context.Background(), []float64{1}, 10, 10)
		assert.NoError(t, err)
	})
}

func TestRankerScoring(t *testing.T) {
	idx := &fakeIndex{
		candidates: []storage.JobCandidate{
			{JobID: "job-b", Score: 0.72, Payload: payloadFor("后端工程师")},
			{JobID: "job-a", Score: 0.72, Payload: payloadFor("平台工程师")},
			{JobID: "job-c", Score: 0.91, Payload: payloadFor("基础架构工程师")},
			{JobID: "job-d", Score: 1.2, Payload: payloadFor("搜索工程师")},
			{JobID: "job-e", Score: -0.1, Payload: payloadFor("数据工程师")},
		},
	}
	r := NewRanker(idx)

	results, err := r.Rank(context.Background(), []float64{1}, 10, 100)
	require.NoError(t, err)
	require.Len(t, results, 5)

	// 分数裁剪到 [0,100]
	assert.Equal(t, 100.0, results[0].Relevancy)
	assert.Equal(t, "job-d", results[0].JobID)
	assert.Equal(t, 0.0, results[4].Relevancy)
	assert.Equal(t, "job-e", results[4].JobID)

	// 相似度0.91换算为91
	assert.InDelta(t, 91.0, results[1].Relevancy, 1e-9)

	// 同分时按岗位ID升序
	assert.Equal(t, "job-a", results[2].JobID)
	assert.Equal(t, "job-b", results[3].JobID)

	// 载荷字段透传
	assert.Equal(t, "基础架构工程师", results[1].Title)
	assert.Equal(t, []string{"Go", "MySQL"}, results[1].Skills)
}

func TestRankerNaNScoreTreatedAsZero(t *testing.T) {
	idx := &fakeIndex{
		candidates: []storage.JobCandidate{
			{JobID: "job-a", Score: math.NaN(), Payload: payloadFor("后端工程师")},
			{JobID: "job-b", Score: 0.5, Payload: payloadFor("平台工程师")},
			{JobID: "job-c", Score: math.NaN(), Payload: payloadFor("数据工程师")},
		},
	}
	r := NewRanker(idx)

	results, err := r.Rank(context.Background(), []float64{1}, 10, 100)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// NaN分数按0处理，排序保持确定性
	assert.Equal(t, "job-b", results[0].JobID)
	assert.Equal(t, 50.0, results[0].Relevancy)
	assert.Equal(t, "job-a", results[1].JobID)
	assert.Equal(t, 0.0, results[1].Relevancy)
	assert.Equal(t, "job-c", results[2].JobID)
	assert.Equal(t, 0.0, results[2].Relevancy)
}

func TestRankerSkipsCandidatesWithoutPayload(t *testing.T) {
	idx := &fakeIndex{
		candidates: []storage.JobCandidate{
			{JobID: "job-a", Score: 0.9, Payload: payloadFor("后端工程师")},
			{JobID: "", Score: 0.95, Payload: nil},
			{JobID: "job-b", Score: 0.8, Payload: nil},
		},
	}
	r := NewRanker(idx)

	results, err := r.Rank(context.Background(), []float64{1}, 10, 100)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "job-a", results[0].JobID)
}

func TestRankerPassesPoolSizeToIndex(t *testing.T) {
	idx := &fakeIndex{}
	r := NewRanker(idx)

	_, err := r.Rank(context.Background(), []float64{1}, 7, 42)
	require.NoError(t, err)
	assert.Equal(t, 7, idx.gotLimit)
	assert.Equal(t, 42, idx.gotNumCandidates)
}

func TestRankerTruncatesToLimit(t *testing.T) {
	idx := &fakeIndex{
		candidates: []storage.JobCandidate{
			{JobID: "job-1", Score: 0.9, Payload: payloadFor("a")},
			{JobID: "job-2", Score: 0.8, Payload: payloadFor("b")},
			{JobID: "job-3", Score: 0.7, Payload: payloadFor("c")},
		},
	}
	r := NewRanker(idx)

	results, err := r.Rank(context.Background(), []float64{1}, 2, 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, "job-1", results[0].JobID)
	assert.Equal(t, "job-2", results[1].JobID)
}
