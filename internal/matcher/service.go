package matcher

import (
	"context"
	"time"

	"hirebizz-go/internal/constants"
	"hirebizz-go/internal/logger"
	"hirebizz-go/internal/metrics"
	"hirebizz-go/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var matcherTracer = otel.Tracer("hirebizz-go/matcher")

// EmbeddingSource 简历嵌入向量的读取接口
type EmbeddingSource interface {
	// GetResumeEmbeddings 记录不存在或向量集为空时返回 apperr.ErrResumeEmbeddingsNotFound
	GetResumeEmbeddings(ctx context.Context, userID string) ([][]float64, error)
}

// Service 匹配编排器：读取嵌入向量、聚合、排序
type Service struct {
	embeddings        EmbeddingSource
	ranker            *Ranker
	limit             int
	candidatePoolSize int
}

// Option 定义Service构造函数选项
type Option func(*Service)

// WithLimit 设置返回的岗位数量
func WithLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

// WithCandidatePoolSize 设置近似搜索候选池宽度
func WithCandidatePoolSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.candidatePoolSize = size
		}
	}
}

// NewService 创建匹配编排器
func NewService(embeddings EmbeddingSource, ranker *Ranker, opts ...Option) *Service {
	s := &Service{
		embeddings:        embeddings,
		ranker:            ranker,
		limit:             constants.DefaultMatchLimit,
		candidatePoolSize: constants.DefaultCandidatePoolSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MatchJobsForUser 为用户计算相关岗位列表。
// 用户没有可用的简历嵌入向量时返回 ErrResumeEmbeddingsNotFound。
func (s *Service) MatchJobsForUser(ctx context.Context, userID string) ([]types.JobRelevanceResult, error) {
	ctx, span := matcherTracer.Start(ctx, "Matcher.MatchJobsForUser",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("match.limit", s.limit),
			attribute.Int("match.candidate_pool_size", s.candidatePoolSize),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.MatchLatency.Observe(time.Since(start).Seconds())
	}()

	embeddings, err := s.embeddings.GetResumeEmbeddings(ctx, userID)
	if err != nil {
		metrics.MatchRequests.WithLabelValues("embeddings_not_found").Inc()
		return nil, err
	}

	queryVector, err := Average(embeddings)
	if err != nil {
		metrics.MatchRequests.WithLabelValues("aggregation_failed").Inc()
		return nil, err
	}

	results, err := s.ranker.Rank(ctx, queryVector, s.limit, s.candidatePoolSize)
	if err != nil {
		metrics.MatchRequests.WithLabelValues("rank_failed").Inc()
		return nil, err
	}

	metrics.MatchRequests.WithLabelValues("success").Inc()
	logger.Debug().
		Str("user_id", userID).
		Int("result_count", len(results)).
		Msg("岗位匹配完成")
	span.SetAttributes(attribute.Int("match.result_count", len(results)))
	return results, nil
}
