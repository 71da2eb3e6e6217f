package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigFromFileOnly(t *testing.T) {
	path := writeTempConfig(t, `
server:
  address: ":9000"
minio:
  endpoint: "minio:9000"
  bucketName: "cv-bucket"
user_db:
  host: "db1"
  database: "hirebizz"
resume_db:
  host: "db2"
  database: "resume_analysis"
qdrant:
  endpoint: "http://qdrant:6333"
matching:
  limit: 20
  candidate_pool_size: 200
`)

	cfg, err := LoadConfigFromFileOnly(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, "cv-bucket", cfg.MinIO.BucketName)
	assert.Equal(t, "db1", cfg.UserDB.Host)
	assert.Equal(t, "db2", cfg.ResumeDB.Host)
	assert.Equal(t, 20, cfg.Matching.Limit)
	assert.Equal(t, 200, cfg.Matching.CandidatePoolSize)
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeTempConfig(t, `
minio:
  endpoint: "minio:9000"
user_db:
  host: "db1"
resume_db:
  host: "db2"
qdrant:
  endpoint: "http://qdrant:6333"
`)

	cfg, err := LoadConfigFromFileOnly(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "resumes", cfg.MinIO.BucketName)
	assert.Equal(t, 10, cfg.Matching.Limit)
	assert.Equal(t, 100, cfg.Matching.CandidatePoolSize)
	assert.Equal(t, 1024, cfg.Qdrant.Dimension)
	assert.Equal(t, "job_embeddings", cfg.Qdrant.Collection)
	assert.Equal(t, "resume.events", cfg.RabbitMQ.ResumeEventsExchange)
	assert.Equal(t, "blob.orphaned", cfg.RabbitMQ.OrphanedBlobKey)
	assert.Equal(t, 3306, cfg.UserDB.Port)
	assert.Equal(t, 50, cfg.UserDB.MaxOpenConns)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `
minio:
  endpoint: "minio:9000"
  secretAccessKey: "from-file"
user_db:
  host: "db1"
  password: "file-pass"
resume_db:
  host: "db2"
qdrant:
  endpoint: "http://qdrant:6333"
`)

	t.Setenv("HIREBIZZ_MINIO_SECRET_ACCESS_KEY", "from-env")
	t.Setenv("HIREBIZZ_USER_DB_PASSWORD", "env-pass")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.MinIO.SecretAccessKey)
	assert.Equal(t, "env-pass", cfg.UserDB.Password)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "minio.endpoint")
	assert.Contains(t, err.Error(), "qdrant.endpoint")

	cfg.MinIO.Endpoint = "minio:9000"
	cfg.UserDB.Host = "db1"
	cfg.ResumeDB.Host = "db2"
	cfg.Qdrant.Endpoint = "http://qdrant:6333"
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfigFromFileOnly(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
