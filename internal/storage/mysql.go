package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"hirebizz-go/internal/apperr"
	"hirebizz-go/internal/config"
	"hirebizz-go/internal/storage/models"
	"hirebizz-go/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("hirebizz-go/storage/mysql")

type spanContextKey struct{}

// GormTracingPlugin 是一个GORM插件，用于向OpenTelemetry中添加数据库操作的追踪点
type GormTracingPlugin struct {
	tracer trace.Tracer
	dbName string
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	// 为所有CRUD操作注册Before和After回调
	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}

	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}

	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}

	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}

	if err := cb.Row().Before("gorm:row").Register("otel:before_row", p.before("ROW")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("otel:after_row", p.after()); err != nil {
		return err
	}

	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after()); err != nil {
		return err
	}

	return nil
}

// before 返回在GORM操作之前执行的回调函数
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		spanName := fmt.Sprintf("%s %s", operation, tableName)
		newCtx, span := p.tracer.Start(ctx, spanName,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		)

		// 将span保存在DB上下文中，以便在after回调中使用
		db.Statement.Context = context.WithValue(newCtx, spanContextKey{}, span)
	}
}

// after 返回在GORM操作之后执行的回调函数
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(spanContextKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

		// ErrRecordNotFound 是业务逻辑正常情况的一部分，不应作为错误处理
		if db.Error != nil {
			if errors.Is(db.Error, gorm.ErrRecordNotFound) {
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				span.SetAttributes(attribute.String("error.type", "database_error"))
				span.RecordError(db.Error)
				span.SetStatus(codes.Error, db.Error.Error())
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// NewGormTracingPlugin 创建一个新的GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer: mysqlTracer,
		dbName: dbName,
	}
}

// MySQL 提供关系数据库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端并迁移给定的模型。
// migrateModels为空时跳过迁移（用于只读库）。
func NewMySQL(cfg *config.MySQLConfig, migrateModels ...interface{}) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	// 构建DSN，添加超时设置
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	case 4:
		logLevel = logger.Info
	default:
		logLevel = logger.Warn
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	// 注册OpenTelemetry追踪插件
	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	m := &MySQL{db: db, cfg: cfg}

	if len(migrateModels) > 0 {
		if err := m.autoMigrateSchema(migrateModels); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
		}
	}

	log.Printf("成功连接到MySQL数据库 %s", cfg.Database)
	return m, nil
}

// autoMigrateSchema 使用GORM自动迁移数据库表结构
func (m *MySQL) autoMigrateSchema(migrateModels []interface{}) error {
	// 迁移期间关闭SQL日志打印
	silentDB := m.db.Session(&gorm.Session{Logger: logger.Default.LogMode(logger.Silent)})
	if err := silentDB.AutoMigrate(migrateModels...); err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// GetUserByID 通过ID获取用户记录
func (m *MySQL) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := m.db.WithContext(ctx).First(&user, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Wrap(apperr.ErrUserNotFound, "GetUserByID", userID, "", nil)
		}
		return nil, apperr.Wrap(apperr.ErrStorageUnavailable, "GetUserByID", userID, "查询用户记录失败", err)
	}
	return &user, nil
}

// GetResumeAsset 读取用户当前的简历资产。
// 用户没有简历时返回 (nil, nil)；定位符与对象键只设置了其中一个时
// 返回 ErrDataInconsistency。
func (m *MySQL) GetResumeAsset(ctx context.Context, userID string) (*types.ResumeAsset, error) {
	user, err := m.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	hasLocator := user.ResumeLocator != nil && *user.ResumeLocator != ""
	hasKey := user.ResumeObjectKey != nil && *user.ResumeObjectKey != ""

	switch {
	case hasLocator && hasKey:
		return &types.ResumeAsset{
			Locator:   *user.ResumeLocator,
			ObjectKey: *user.ResumeObjectKey,
		}, nil
	case !hasLocator && !hasKey:
		return nil, nil
	default:
		// 成对不变量被破坏
		return nil, apperr.Wrap(apperr.ErrDataInconsistency, "GetResumeAsset", userID,
			"简历定位符与对象键只设置了其中一个", nil)
	}
}

// SetResumeAsset 在单条UPDATE中同时写入定位符与对象键，保证成对不变量
func (m *MySQL) SetResumeAsset(ctx context.Context, userID string, asset types.ResumeAsset) error {
	if asset.Locator == "" || asset.ObjectKey == "" {
		return apperr.Wrap(apperr.ErrInvalidAsset, "SetResumeAsset", userID,
			"定位符与对象键必须同时非空", nil)
	}

	result := m.db.WithContext(ctx).Model(&models.User{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"resume_locator":    asset.Locator,
			"resume_object_key": asset.ObjectKey,
		})
	if result.Error != nil {
		return apperr.Wrap(apperr.ErrStorageUnavailable, "SetResumeAsset", userID, "更新简历资产失败", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.Wrap(apperr.ErrUserNotFound, "SetResumeAsset", userID, "", nil)
	}
	return nil
}

// ClearResumeAsset 在单条UPDATE中同时清空定位符与对象键
func (m *MySQL) ClearResumeAsset(ctx context.Context, userID string) error {
	result := m.db.WithContext(ctx).Model(&models.User{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"resume_locator":    nil,
			"resume_object_key": nil,
		})
	if result.Error != nil {
		return apperr.Wrap(apperr.ErrStorageUnavailable, "ClearResumeAsset", userID, "清空简历资产失败", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.Wrap(apperr.ErrUserNotFound, "ClearResumeAsset", userID, "", nil)
	}
	return nil
}

// SaveJobForUser 将岗位追加到用户的收藏列表。
// 已收藏时返回 ErrJobAlreadySaved。
func (m *MySQL) SaveJobForUser(ctx context.Context, userID, jobID string) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 岗位必须存在
		var count int64
		if err := tx.Model(&models.Job{}).Where("job_id = ?", jobID).Count(&count).Error; err != nil {
			return apperr.Wrap(apperr.ErrStorageUnavailable, "SaveJobForUser", userID, "查询岗位失败", err)
		}
		if count == 0 {
			return apperr.Wrap(apperr.ErrJobNotFound, "SaveJobForUser", userID, jobID, nil)
		}

		// 行锁保证并发收藏的幂等性检查
		var user models.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "user_id = ?", userID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Wrap(apperr.ErrUserNotFound, "SaveJobForUser", userID, "", nil)
			}
			return apperr.Wrap(apperr.ErrStorageUnavailable, "SaveJobForUser", userID, "锁定用户记录失败", err)
		}

		savedIDs, err := decodeSavedJobIDs(user.SavedJobIDs)
		if err != nil {
			return apperr.Wrap(apperr.ErrDataInconsistency, "SaveJobForUser", userID, "收藏列表JSON解析失败", err)
		}
		for _, id := range savedIDs {
			if id == jobID {
				return apperr.Wrap(apperr.ErrJobAlreadySaved, "SaveJobForUser", userID, jobID, nil)
			}
		}

		savedIDs = append(savedIDs, jobID)
		encoded, err := json.Marshal(savedIDs)
		if err != nil {
			return apperr.Wrap(apperr.ErrStorageUnavailable, "SaveJobForUser", userID, "收藏列表JSON编码失败", err)
		}

		if err := tx.Model(&models.User{}).Where("user_id = ?", userID).
			Update("saved_job_ids", datatypes.JSON(encoded)).Error; err != nil {
			return apperr.Wrap(apperr.ErrStorageUnavailable, "SaveJobForUser", userID, "更新收藏列表失败", err)
		}
		return nil
	})
}

// GetSavedJobs 返回用户收藏的岗位记录，保持收藏顺序
func (m *MySQL) GetSavedJobs(ctx context.Context, userID string) ([]models.Job, error) {
	user, err := m.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	savedIDs, err := decodeSavedJobIDs(user.SavedJobIDs)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrDataInconsistency, "GetSavedJobs", userID, "收藏列表JSON解析失败", err)
	}
	if len(savedIDs) == 0 {
		return []models.Job{}, nil
	}

	var jobs []models.Job
	if err := m.db.WithContext(ctx).Where("job_id IN ?", savedIDs).Find(&jobs).Error; err != nil {
		return nil, apperr.Wrap(apperr.ErrStorageUnavailable, "GetSavedJobs", userID, "查询收藏岗位失败", err)
	}

	// 按收藏顺序重排
	byID := make(map[string]models.Job, len(jobs))
	for _, j := range jobs {
		byID[j.JobID] = j
	}
	ordered := make([]models.Job, 0, len(savedIDs))
	for _, id := range savedIDs {
		if j, ok := byID[id]; ok {
			ordered = append(ordered, j)
		}
	}
	return ordered, nil
}

// GetJobByID 通过ID获取岗位记录
func (m *MySQL) GetJobByID(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	err := m.db.WithContext(ctx).First(&job, "job_id = ?", jobID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Wrap(apperr.ErrJobNotFound, "GetJobByID", "", jobID, nil)
		}
		return nil, apperr.Wrap(apperr.ErrStorageUnavailable, "GetJobByID", "", jobID, err)
	}
	return &job, nil
}

// GetResumeEmbeddings 读取用户的简历嵌入向量集（resume-analysis库）。
// 记录不存在或向量集为空时统一返回 ErrResumeEmbeddingsNotFound。
func (m *MySQL) GetResumeEmbeddings(ctx context.Context, userID string) ([][]float64, error) {
	var record models.ResumeEmbedding
	err := m.db.WithContext(ctx).First(&record, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Wrap(apperr.ErrResumeEmbeddingsNotFound, "GetResumeEmbeddings", userID, "", nil)
		}
		return nil, apperr.Wrap(apperr.ErrStorageUnavailable, "GetResumeEmbeddings", userID, "查询嵌入向量失败", err)
	}

	var embeddings [][]float64
	if len(record.Embeddings) > 0 {
		if err := json.Unmarshal(record.Embeddings, &embeddings); err != nil {
			return nil, apperr.Wrap(apperr.ErrDataInconsistency, "GetResumeEmbeddings", userID, "嵌入向量JSON解析失败", err)
		}
	}

	// 空向量集与记录不存在等价处理
	if len(embeddings) == 0 {
		return nil, apperr.Wrap(apperr.ErrResumeEmbeddingsNotFound, "GetResumeEmbeddings", userID, "向量集为空", nil)
	}
	return embeddings, nil
}

// decodeSavedJobIDs 解析收藏岗位ID的JSON数组，空值视为空列表
func decodeSavedJobIDs(raw datatypes.JSON) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
