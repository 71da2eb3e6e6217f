package resume

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"hirebizz-go/internal/apperr"
	"hirebizz-go/internal/logger"
	"hirebizz-go/internal/storage"
	"hirebizz-go/internal/types"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRecords 内存版的用户简历资产记录
type fakeRecords struct {
	assets   map[string]*types.ResumeAsset
	setErr   error
	clearErr error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{assets: make(map[string]*types.ResumeAsset)}
}

func (f *fakeRecords) GetResumeAsset(ctx context.Context, userID string) (*types.ResumeAsset, error) {
	return f.assets[userID], nil
}

func (f *fakeRecords) SetResumeAsset(ctx context.Context, userID string, asset types.ResumeAsset) error {
	if f.setErr != nil {
		return f.setErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	a := asset
	f.assets[userID] = &a
	return nil
}

func (f *fakeRecords) ClearResumeAsset(ctx context.Context, userID string) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	delete(f.assets, userID)
	return nil
}

// fakeBlobs 内存版对象存储，记录存活对象集合
type fakeBlobs struct {
	objects   map[string][]byte
	deleteErr error
	putErr    error
	puts      int
	deletes   int
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (f *fakeBlobs) PutResume(ctx context.Context, ownerID, originalName string, reader io.Reader, size int64) (string, string, error) {
	if f.putErr != nil {
		return "", "", f.putErr
	}
	f.puts++
	data, _ := io.ReadAll(reader)
	objectKey := ownerID + "/" + originalName
	f.objects[objectKey] = data
	locator := fmt.Sprintf("https://storage.example.com/resumes/%s?sig=test", objectKey)
	return locator, objectKey, nil
}

func (f *fakeBlobs) DeleteObject(ctx context.Context, objectKey string) error {
	f.deletes++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.objects[objectKey]; !ok {
		return apperr.Wrap(apperr.ErrObjectNotFound, "DeleteObject", "", objectKey, nil)
	}
	delete(f.objects, objectKey)
	return nil
}

func (f *fakeBlobs) PresignedLocator(ctx context.Context, objectKey string) (string, error) {
	return fmt.Sprintf("https://storage.example.com/resumes/%s?sig=test", objectKey), nil
}

// fakeEvents 记录发布的事件
type fakeEvents struct {
	replaced []storage.ResumeReplacedMessage
	deleted  []storage.ResumeDeletedMessage
	orphaned []storage.OrphanedBlobMessage
}

func (f *fakeEvents) PublishResumeReplaced(ctx context.Context, msg storage.ResumeReplacedMessage) error {
	f.replaced = append(f.replaced, msg)
	return nil
}

func (f *fakeEvents) PublishResumeDeleted(ctx context.Context, msg storage.ResumeDeletedMessage) error {
	f.deleted = append(f.deleted, msg)
	return nil
}

func (f *fakeEvents) PublishOrphanedBlob(ctx context.Context, msg storage.OrphanedBlobMessage) error {
	f.orphaned = append(f.orphaned, msg)
	return nil
}

// fakeCache 记录缓存失效调用
type fakeCache struct {
	invalidated []string
}

func (f *fakeCache) InvalidateMatchResults(ctx context.Context, userID string) error {
	f.invalidated = append(f.invalidated, userID)
	return nil
}

func newTestManager() (*Manager, *fakeRecords, *fakeBlobs, *fakeEvents, *fakeCache) {
	records := newFakeRecords()
	blobs := newFakeBlobs()
	events := &fakeEvents{}
	cache := &fakeCache{}
	return NewManager(records, blobs, events, cache), records, blobs, events, cache
}

func upload(name, content string) (string, io.Reader, int64) {
	return name, strings.NewReader(content), int64(len(content))
}

func TestReplaceFirstUpload(t *testing.T) {
	m, records, blobs, events, cache := newTestManager()

	name, r, size := upload("resume.pdf", "v1")
	asset, err := m.Replace(context.Background(), "user-1", name, r, size)
	require.NoError(t, err)

	assert.Equal(t, "user-1/resume.pdf", asset.ObjectKey)
	assert.NotEmpty(t, asset.Locator)
	assert.Equal(t, asset, records.assets["user-1"])
	assert.Len(t, blobs.objects, 1)
	assert.Len(t, events.replaced, 1)
	assert.Equal(t, []string{"user-1"}, cache.invalidated)
}

func TestReplaceKeepsSingleLiveObject(t *testing.T) {
	m, records, blobs, _, _ := newTestManager()

	name, r, size := upload("resume.pdf", "v1")
	_, err := m.Replace(context.Background(), "user-1", name, r, size)
	require.NoError(t, err)

	// 连续替换两次，任意时刻至多一个存活对象
	name, r, size = upload("resume_v2.pdf", "v2")
	_, err = m.Replace(context.Background(), "user-1", name, r, size)
	require.NoError(t, err)

	name, r, size = upload("resume_v3.pdf", "v3")
	asset, err := m.Replace(context.Background(), "user-1", name, r, size)
	require.NoError(t, err)

	assert.Len(t, blobs.objects, 1)
	_, ok := blobs.objects["user-1/resume_v3.pdf"]
	assert.True(t, ok)
	assert.Equal(t, "user-1/resume_v3.pdf", records.assets["user-1"].ObjectKey)
	assert.Equal(t, asset.ObjectKey, records.assets["user-1"].ObjectKey)
}

func TestReplaceAbortsWhenStaleDeleteFails(t *testing.T) {
	m, records, blobs, _, _ := newTestManager()

	name, r, size := upload("resume.pdf", "v1")
	original, err := m.Replace(context.Background(), "user-1", name, r, size)
	require.NoError(t, err)

	// 旧对象删除失败（非对象不存在）时整个替换中止
	blobs.deleteErr = apperr.Wrap(apperr.ErrStorageUnavailable, "DeleteObject", "", "", nil)
	puts := blobs.puts

	name, r, size = upload("resume_v2.pdf", "v2")
	_, err = m.Replace(context.Background(), "user-1", name, r, size)
	assert.ErrorIs(t, err, apperr.ErrStaleAssetConflict)

	// 记录保持原状，没有新对象被上传
	assert.Equal(t, original.ObjectKey, records.assets["user-1"].ObjectKey)
	assert.Equal(t, puts, blobs.puts)
}

func TestReplaceToleratesMissingStaleObject(t *testing.T) {
	m, records, blobs, _, _ := newTestManager()

	// 记录指向一个早已消失的对象
	records.assets["user-1"] = &types.ResumeAsset{
		Locator:   "https://storage.example.com/resumes/user-1/gone.pdf?sig=x",
		ObjectKey: "user-1/gone.pdf",
	}

	name, r, size := upload("resume.pdf", "v1")
	asset, err := m.Replace(context.Background(), "user-1", name, r, size)
	require.NoError(t, err)
	assert.Equal(t, "user-1/resume.pdf", asset.ObjectKey)
	assert.Len(t, blobs.objects, 1)
}

func TestReplaceLogsMissingStaleObject(t *testing.T) {
	var buf bytes.Buffer
	original := logger.Logger
	logger.Logger = zerolog.New(&buf)
	defer func() { logger.Logger = original }()

	m, records, _, _, _ := newTestManager()
	records.assets["user-1"] = &types.ResumeAsset{
		Locator:   "https://storage.example.com/resumes/user-1/gone.pdf?sig=x",
		ObjectKey: "user-1/gone.pdf",
	}

	name, r, size := upload("resume.pdf", "v1")
	_, err := m.Replace(context.Background(), "user-1", name, r, size)
	require.NoError(t, err)

	// 跳过删除的告警必须真正写出，带上用户与对象键
	assert.Contains(t, buf.String(), "旧简历对象已不存在")
	assert.Contains(t, buf.String(), "user-1/gone.pdf")
}

func TestReplaceReportsOrphanWhenPersistFails(t *testing.T) {
	m, records, blobs, events, _ := newTestManager()

	records.setErr = apperr.Wrap(apperr.ErrStorageUnavailable, "SetResumeAsset", "user-1", "", nil)

	name, r, size := upload("resume.pdf", "v1")
	_, err := m.Replace(context.Background(), "user-1", name, r, size)
	assert.ErrorIs(t, err, apperr.ErrDataInconsistency)

	// 新对象已上传但记录未更新，孤儿事件必须带上用户与对象键
	require.Len(t, events.orphaned, 1)
	assert.Equal(t, "user-1", events.orphaned[0].UserID)
	assert.Equal(t, "user-1/resume.pdf", events.orphaned[0].ObjectKey)
	assert.Len(t, blobs.objects, 1)
	assert.Nil(t, records.assets["user-1"])
}

func TestReplaceCanceledContextDoesNotPersist(t *testing.T) {
	m, records, _, events, _ := newTestManager()

	ctx, cancel := context.WithCancel(context.Background())

	name, _, size := upload("resume.pdf", "v1")
	reader := &cancelOnReadReader{cancel: cancel, data: "v1"}

	_, err := m.Replace(ctx, "user-1", name, reader, size)
	require.Error(t, err)

	// 记录没有半更新状态；已上传的对象作为孤儿上报
	assert.Nil(t, records.assets["user-1"])
	assert.Len(t, events.orphaned, 1)
}

// cancelOnReadReader 在读取内容时取消上下文，模拟上传完成后请求被取消
type cancelOnReadReader struct {
	cancel context.CancelFunc
	data   string
	done   bool
}

func (r *cancelOnReadReader) Read(p []byte) (int, error) {
	if r.done {
		r.cancel()
		return 0, io.EOF
	}
	r.done = true
	n := copy(p, r.data)
	return n, nil
}

func TestReplaceRejectsMissingUpload(t *testing.T) {
	m, _, _, _, _ := newTestManager()

	_, err := m.Replace(context.Background(), "user-1", "resume.pdf", nil, 0)
	assert.ErrorIs(t, err, apperr.ErrMissingUpload)
}

func TestDelete(t *testing.T) {
	m, records, blobs, events, cache := newTestManager()

	name, r, size := upload("resume.pdf", "v1")
	_, err := m.Replace(context.Background(), "user-1", name, r, size)
	require.NoError(t, err)

	require.NoError(t, m.Delete(context.Background(), "user-1"))

	assert.Empty(t, blobs.objects)
	assert.Nil(t, records.assets["user-1"])
	assert.Len(t, events.deleted, 1)
	assert.Equal(t, "user-1/resume.pdf", events.deleted[0].ObjectKey)
	assert.Contains(t, cache.invalidated, "user-1")
}

func TestDeleteNothingToDelete(t *testing.T) {
	m, _, _, _, _ := newTestManager()

	err := m.Delete(context.Background(), "user-1")
	assert.ErrorIs(t, err, apperr.ErrNothingToDelete)
}

func TestDeleteAbortsWhenBlobDeleteFails(t *testing.T) {
	m, records, blobs, _, _ := newTestManager()

	name, r, size := upload("resume.pdf", "v1")
	_, err := m.Replace(context.Background(), "user-1", name, r, size)
	require.NoError(t, err)

	blobs.deleteErr = apperr.Wrap(apperr.ErrStorageUnavailable, "DeleteObject", "", "", nil)

	err = m.Delete(context.Background(), "user-1")
	assert.ErrorIs(t, err, apperr.ErrStorageUnavailable)

	// 删除失败时记录保持原状
	assert.NotNil(t, records.assets["user-1"])
}

func TestDeleteToleratesMissingObject(t *testing.T) {
	m, records, _, events, _ := newTestManager()

	records.assets["user-1"] = &types.ResumeAsset{
		Locator:   "https://storage.example.com/resumes/user-1/gone.pdf?sig=x",
		ObjectKey: "user-1/gone.pdf",
	}

	require.NoError(t, m.Delete(context.Background(), "user-1"))
	assert.Nil(t, records.assets["user-1"])
	assert.Len(t, events.deleted, 1)
}
