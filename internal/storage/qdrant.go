package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"hirebizz-go/internal/apperr"
	"hirebizz-go/internal/config"
	"hirebizz-go/internal/metrics"
	"hirebizz-go/internal/tracing"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// 定义Qdrant的专用tracer
var qdrantTracer = otel.Tracer("hirebizz-go/storage/qdrant")

// QdrantPointIDNamespace 用于从岗位ID派生确定性的Qdrant点ID。
// 同一个岗位的向量重复写入时始终落在同一个点上。
var QdrantPointIDNamespace = uuid.Must(uuid.FromString("4b8f1a0e-9d3c-4f6a-b1e7-2c5d8a9f0b3d"))

// JobCandidate 向量索引返回的一个候选岗位
type JobCandidate struct {
	JobID   string                 // 岗位ID
	Score   float64                // 相似度分数
	Payload map[string]interface{} // 岗位载荷数据
}

// JobVectorIndex 岗位向量索引接口
type JobVectorIndex interface {
	// SearchSimilarJobs 在候选池宽度numCandidates下近似搜索与查询向量最相似的limit个岗位
	SearchSimilarJobs(ctx context.Context, queryVector []float64, limit, numCandidates int) ([]JobCandidate, error)

	// UpsertJobEmbedding 写入或更新一个岗位的向量及载荷
	UpsertJobEmbedding(ctx context.Context, jobID string, vector []float64, payload map[string]interface{}) error
}

// 确保Qdrant实现了JobVectorIndex接口
var _ JobVectorIndex = (*Qdrant)(nil)

// Qdrant 提供岗位向量索引功能
type Qdrant struct {
	endpoint       string
	collectionName string
	vectorSize     int
	distanceMetric string
	apiKey         string
	httpClient     *http.Client
	retryBackoff   time.Duration
}

// QdrantOption 定义Qdrant构造函数选项
type QdrantOption func(*Qdrant)

// WithDistanceMetric 设置距离度量
func WithDistanceMetric(metric string) QdrantOption {
	return func(q *Qdrant) {
		q.distanceMetric = metric
	}
}

// WithHTTPTimeout 设置HTTP客户端超时
func WithHTTPTimeout(timeout time.Duration) QdrantOption {
	return func(q *Qdrant) {
		q.httpClient = &http.Client{Timeout: timeout}
	}
}

// WithRetryBackoff 设置单次重试前的退避时间
func WithRetryBackoff(backoff time.Duration) QdrantOption {
	return func(q *Qdrant) {
		q.retryBackoff = backoff
	}
}

// NewQdrant 创建Qdrant客户端
func NewQdrant(cfg *config.QdrantConfig, opts ...QdrantOption) (*Qdrant, error) {
	if cfg == nil {
		return nil, fmt.Errorf("qdrant配置不能为空")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:6333"
	}

	collectionName := cfg.Collection
	if collectionName == "" {
		collectionName = "job_embeddings"
	}

	vectorSize := cfg.Dimension
	if vectorSize <= 0 {
		vectorSize = 1024
	}

	q := &Qdrant{
		endpoint:       endpoint,
		collectionName: collectionName,
		vectorSize:     vectorSize,
		distanceMetric: "Cosine",
		apiKey:         cfg.APIKey,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		retryBackoff:   200 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(q)
	}

	if err := q.ensureCollectionExists(context.Background()); err != nil {
		return nil, fmt.Errorf("确保集合 '%s' 存在失败: %w", collectionName, err)
	}

	log.Printf("成功连接到Qdrant服务器: %s，并确保集合 '%s' 存在", endpoint, collectionName)
	return q, nil
}

// ensureCollectionExists 确保向量集合存在
func (q *Qdrant) ensureCollectionExists(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.EnsureCollectionExists",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("net.peer.name", q.endpoint),
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "check_collection"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("db.vector_size", q.vectorSize),
	)

	url := fmt.Sprintf("%s/collections/%s", q.endpoint, q.collectionName)
	body, statusCode, err := q.doRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("检查集合失败: %w", err)
	}

	// 如果集合不存在，则创建它
	if statusCode == http.StatusNotFound {
		span.AddEvent("collection_not_found", trace.WithAttributes(
			attribute.String("action", "create_collection"),
		))
		log.Printf("集合 '%s' 不存在，将创建新集合", q.collectionName)
		return q.createCollection(ctx)
	}
	if statusCode != http.StatusOK {
		err := fmt.Errorf("检查集合失败，状态码: %d, 响应: %s", statusCode, string(body))
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	// 检查集合配置是否匹配当前配置
	var collectionInfo struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size     int    `json:"size"`
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &collectionInfo); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("解析集合信息失败: %w", err)
	}

	existingSize := collectionInfo.Result.Config.Params.Vectors.Size
	existingDistance := collectionInfo.Result.Config.Params.Vectors.Distance
	if existingSize != q.vectorSize || existingDistance != q.distanceMetric {
		log.Printf("警告: 现有集合配置与当前配置不匹配。现有: 维度=%d, 距离=%s; 当前: 维度=%d, 距离=%s",
			existingSize, existingDistance, q.vectorSize, q.distanceMetric)
		span.AddEvent("collection_config_mismatch", trace.WithAttributes(
			attribute.Int("expected_vector_size", q.vectorSize),
			attribute.String("expected_distance", q.distanceMetric),
		))
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// createCollection 创建新的向量集合
func (q *Qdrant) createCollection(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.CreateCollection",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "create_collection"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("db.vector_size", q.vectorSize),
		attribute.String("db.vector.distance", q.distanceMetric),
	)

	reqBody := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     q.vectorSize,
			"distance": q.distanceMetric,
		},
	}

	url := fmt.Sprintf("%s/collections/%s", q.endpoint, q.collectionName)
	body, statusCode, err := q.doRequest(ctx, http.MethodPut, url, reqBody)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("创建集合请求失败: %w", err)
	}
	if statusCode != http.StatusOK {
		err := fmt.Errorf("创建集合失败，状态码: %d, 响应: %s", statusCode, string(body))
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	span.SetStatus(codes.Ok, "")
	log.Printf("成功创建Qdrant集合: %s，维度: %d", q.collectionName, q.vectorSize)
	return nil
}

// SearchSimilarJobs 近似最近邻搜索候选岗位。
// numCandidates映射到HNSW的ef参数，控制搜索时扫描的候选池宽度。
// 单次失败后重试一次，仍失败则返回 ErrIndexUnavailable。
func (q *Qdrant) SearchSimilarJobs(ctx context.Context, queryVector []float64, limit, numCandidates int) ([]JobCandidate, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.SearchSimilarJobs",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "search"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("search.limit", limit),
		attribute.Int("search.num_candidates", numCandidates),
	)

	if len(queryVector) != q.vectorSize {
		err := apperr.Wrap(apperr.ErrDimensionMismatch, "SearchSimilarJobs", "",
			fmt.Sprintf("期望维度 %d，实际 %d", q.vectorSize, len(queryVector)), nil)
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	reqBody := map[string]interface{}{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
		"params": map[string]interface{}{
			"hnsw_ef": numCandidates,
		},
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", q.endpoint, q.collectionName)

	body, statusCode, err := q.doRequest(ctx, http.MethodPost, url, reqBody)
	if retryableSearchFailure(err, statusCode) {
		// 瞬时故障重试一次
		metrics.IndexRetries.Inc()
		span.AddEvent("search_retry")
		select {
		case <-time.After(q.retryBackoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		body, statusCode, err = q.doRequest(ctx, http.MethodPost, url, reqBody)
	}
	if err != nil {
		wrapped := apperr.Wrap(apperr.ErrIndexUnavailable, "SearchSimilarJobs", "", "", err)
		tracing.RecordError(span, wrapped, tracing.ErrorTypeVectorDB)
		return nil, wrapped
	}
	if statusCode != http.StatusOK {
		wrapped := apperr.Wrap(apperr.ErrIndexUnavailable, "SearchSimilarJobs", "",
			fmt.Sprintf("状态码: %d, 响应: %s", statusCode, string(body)), nil)
		tracing.RecordError(span, wrapped, tracing.ErrorTypeVectorDB)
		return nil, wrapped
	}

	var searchResp struct {
		Result []struct {
			ID      interface{}            `json:"id"`
			Score   float64                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &searchResp); err != nil {
		wrapped := apperr.Wrap(apperr.ErrIndexUnavailable, "SearchSimilarJobs", "", "解析搜索响应失败", err)
		tracing.RecordError(span, wrapped, tracing.ErrorTypeVectorDB)
		return nil, wrapped
	}

	candidates := make([]JobCandidate, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		jobID, _ := r.Payload["job_id"].(string)
		candidates = append(candidates, JobCandidate{
			JobID:   jobID,
			Score:   r.Score,
			Payload: r.Payload,
		})
	}

	span.SetAttributes(attribute.Int("search.result_count", len(candidates)))
	span.SetStatus(codes.Ok, "")
	return candidates, nil
}

// UpsertJobEmbedding 写入或更新岗位向量，点ID由岗位ID确定性派生
func (q *Qdrant) UpsertJobEmbedding(ctx context.Context, jobID string, vector []float64, payload map[string]interface{}) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.UpsertJobEmbedding",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "upsert"),
		attribute.String("db.collection", q.collectionName),
		attribute.String("job.id", jobID),
	)

	if len(vector) != q.vectorSize {
		err := apperr.Wrap(apperr.ErrDimensionMismatch, "UpsertJobEmbedding", "",
			fmt.Sprintf("岗位 %s: 期望维度 %d，实际 %d", jobID, q.vectorSize, len(vector)), nil)
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return err
	}

	pointID := uuid.NewV5(QdrantPointIDNamespace, jobID).String()
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["job_id"] = jobID

	reqBody := map[string]interface{}{
		"points": []map[string]interface{}{
			{
				"id":      pointID,
				"vector":  vector,
				"payload": payload,
			},
		},
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", q.endpoint, q.collectionName)
	body, statusCode, err := q.doRequest(ctx, http.MethodPut, url, reqBody)
	if err != nil {
		wrapped := apperr.Wrap(apperr.ErrIndexUnavailable, "UpsertJobEmbedding", "", jobID, err)
		tracing.RecordError(span, wrapped, tracing.ErrorTypeVectorDB)
		return wrapped
	}
	if statusCode != http.StatusOK {
		wrapped := apperr.Wrap(apperr.ErrIndexUnavailable, "UpsertJobEmbedding", "",
			fmt.Sprintf("岗位 %s: 状态码: %d, 响应: %s", jobID, statusCode, string(body)), nil)
		tracing.RecordError(span, wrapped, tracing.ErrorTypeVectorDB)
		return wrapped
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// retryableSearchFailure 判断搜索失败是否值得重试。
// 只有传输错误与5xx视为瞬时故障，4xx是确定性失败，重试无意义。
func retryableSearchFailure(err error, statusCode int) bool {
	return err != nil || statusCode >= http.StatusInternalServerError
}

// doRequest 发送HTTP请求并读取完整响应体，注入追踪上下文
func (q *Qdrant) doRequest(ctx context.Context, method, url string, reqBody interface{}) ([]byte, int, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return nil, 0, fmt.Errorf("序列化请求体失败: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	// 注入OpenTelemetry追踪上下文到HTTP请求
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("读取响应体失败: %w", err)
	}
	return respBody, resp.StatusCode, nil
}
