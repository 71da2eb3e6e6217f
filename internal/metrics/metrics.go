package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 简历生命周期与匹配流程的业务指标
var (
	// OrphanedBlobs 新简历对象已上传但记录更新失败产生的孤儿对象数
	OrphanedBlobs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hirebizz",
		Subsystem: "resume",
		Name:      "orphaned_blobs_total",
		Help:      "上传成功但记录持久化失败而遗留在对象存储中的对象数量",
	})

	// ResumeOperations 简历替换/删除操作计数，按操作与结果分类
	ResumeOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hirebizz",
		Subsystem: "resume",
		Name:      "operations_total",
		Help:      "简历生命周期操作计数",
	}, []string{"operation", "status"})

	// MatchRequests 岗位匹配请求计数
	MatchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hirebizz",
		Subsystem: "matching",
		Name:      "requests_total",
		Help:      "岗位匹配请求计数",
	}, []string{"status"})

	// MatchCacheHits 匹配结果缓存命中计数
	MatchCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hirebizz",
		Subsystem: "matching",
		Name:      "cache_total",
		Help:      "匹配结果缓存命中/未命中计数",
	}, []string{"result"})

	// IndexRetries 向量索引查询重试计数
	IndexRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hirebizz",
		Subsystem: "index",
		Name:      "retries_total",
		Help:      "向量索引查询失败后的重试次数",
	})

	// MatchLatency 匹配全链路耗时
	MatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hirebizz",
		Subsystem: "matching",
		Name:      "duration_seconds",
		Help:      "单次匹配请求的全链路耗时",
		Buckets:   prometheus.DefBuckets,
	})
)

// Serve 在独立地址上暴露 /metrics，阻塞运行，应在goroutine中调用
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
