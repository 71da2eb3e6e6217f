package storage

import (
	"fmt"
	"io"
	"log"
	"os"

	"hirebizz-go/internal/config"
	"hirebizz-go/internal/storage/models"
)

// Storage 聚合所有存储组件
type Storage struct {
	MinIO    *MinIO    // 简历对象存储
	UserDB   *MySQL    // 用户/岗位主库
	ResumeDB *MySQL    // 简历嵌入向量库（只读）
	Redis    *Redis    // 分布式锁与匹配结果缓存
	Qdrant   *Qdrant   // 岗位向量索引
	RabbitMQ *RabbitMQ // 事件发布与索引摄取
}

// NewStorage 按配置初始化所有存储组件，任一组件失败时回滚已建立的连接
func NewStorage(cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	s := &Storage{}

	var minioLogger *log.Logger
	if cfg.MinIO.EnableTestLogging {
		minioLogger = log.New(os.Stdout, "[MinIO] ", log.LstdFlags)
	} else {
		minioLogger = log.New(io.Discard, "", 0)
	}

	minioClient, err := NewMinIO(&cfg.MinIO, minioLogger)
	if err != nil {
		return nil, fmt.Errorf("初始化MinIO失败: %w", err)
	}
	s.MinIO = minioClient

	userDB, err := NewMySQL(&cfg.UserDB, &models.User{}, &models.Job{})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("初始化用户库失败: %w", err)
	}
	s.UserDB = userDB

	// 嵌入向量库由外部流水线写入，本服务不迁移表结构
	resumeDB, err := NewMySQL(&cfg.ResumeDB)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("初始化简历分析库失败: %w", err)
	}
	s.ResumeDB = resumeDB

	redisClient, err := NewRedis(&cfg.Redis)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("初始化Redis失败: %w", err)
	}
	s.Redis = redisClient

	qdrantClient, err := NewQdrant(&cfg.Qdrant)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("初始化Qdrant失败: %w", err)
	}
	s.Qdrant = qdrantClient

	rabbitClient, err := NewRabbitMQ(&cfg.RabbitMQ)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("初始化RabbitMQ失败: %w", err)
	}
	s.RabbitMQ = rabbitClient

	return s, nil
}

// Close 关闭所有已建立的存储连接
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			log.Printf("关闭RabbitMQ连接失败: %v", err)
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Printf("关闭Redis连接失败: %v", err)
		}
	}
	if s.ResumeDB != nil {
		if err := s.ResumeDB.Close(); err != nil {
			log.Printf("关闭简历分析库连接失败: %v", err)
		}
	}
	if s.UserDB != nil {
		if err := s.UserDB.Close(); err != nil {
			log.Printf("关闭用户库连接失败: %v", err)
		}
	}
}
