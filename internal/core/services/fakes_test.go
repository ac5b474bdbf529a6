package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/supplyhub/backend/internal/core/ports"
	"github.com/supplyhub/backend/internal/domain"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n")

func pngFile(name string) domain.SourceFile {
	return domain.SourceFile{Name: name, Content: append(append([]byte{}, pngHeader...), make([]byte, 64)...)}
}

// fakeClient stores objects in memory. While hold is set, uploads block until
// the task is canceled or release is closed.
type fakeClient struct {
	mu      sync.Mutex
	objects map[string]int64
	removed []string
	failFor string

	hold    bool
	release chan struct{}

	active    int32
	maxActive int32
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: make(map[string]int64), release: make(chan struct{})}
}

func (c *fakeClient) Upload(ctx context.Context, file domain.SourceFile, progress ports.ProgressReporter) (*domain.StoredObject, error) {
	n := atomic.AddInt32(&c.active, 1)
	defer atomic.AddInt32(&c.active, -1)
	for {
		m := atomic.LoadInt32(&c.maxActive)
		if n <= m || atomic.CompareAndSwapInt32(&c.maxActive, m, n) {
			break
		}
	}

	c.mu.Lock()
	hold := c.hold
	c.mu.Unlock()
	if hold {
		select {
		case <-ctx.Done():
			return nil, domain.NewTransferError(domain.ErrorKindCanceled, "put", ctx.Err())
		case <-c.release:
		}
	} else {
		// Give concurrent workers a chance to overlap.
		time.Sleep(5 * time.Millisecond)
	}

	if file.Name == c.failFor {
		return nil, domain.NewServerError("put", "HTTP 500")
	}
	progress.Update(file.Size, file.Size)

	key := "assets/" + file.Name
	c.mu.Lock()
	c.objects[key] = file.Size
	c.mu.Unlock()
	return &domain.StoredObject{Key: key, URL: "https://cdn.test/" + key, Size: file.Size, ContentType: file.ContentType, ETag: "etag-" + file.Name}, nil
}

func (c *fakeClient) Remove(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.objects, key)
	c.removed = append(c.removed, key)
	return nil
}

type memPreviews struct {
	mu       sync.Mutex
	next     int
	live     map[string]bool
	released []string
}

func newMemPreviews() *memPreviews {
	return &memPreviews{live: make(map[string]bool)}
}

func (p *memPreviews) Allocate(ctx context.Context, file domain.SourceFile) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	h := fmt.Sprintf("preview-%d", p.next)
	p.live[h] = true
	return h, nil
}

func (p *memPreviews) Release(handle string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.live[handle] {
		return fmt.Errorf("unknown preview %s", handle)
	}
	delete(p.live, handle)
	p.released = append(p.released, handle)
	return nil
}

func (p *memPreviews) liveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

type memAssetRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*domain.StoredAsset
	failOn string
}

func newMemAssetRepo() *memAssetRepo {
	return &memAssetRepo{rows: make(map[uint]*domain.StoredAsset)}
}

func (r *memAssetRepo) Upsert(ctx context.Context, asset *domain.StoredAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if asset.Key == r.failOn {
		return fmt.Errorf("disk full")
	}
	for id, row := range r.rows {
		if row.Key == asset.Key {
			asset.ID = id
			cp := *asset
			r.rows[id] = &cp
			return nil
		}
	}
	r.nextID++
	asset.ID = r.nextID
	cp := *asset
	r.rows[asset.ID] = &cp
	return nil
}

func (r *memAssetRepo) GetByID(ctx context.Context, id uint) (*domain.StoredAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (r *memAssetRepo) GetByKey(ctx context.Context, key string) (*domain.StoredAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.Key == key {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memAssetRepo) GetAll(ctx context.Context) ([]domain.StoredAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.StoredAsset, 0, len(r.rows))
	for _, row := range r.rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r *memAssetRepo) Delete(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

type memRecordRepo struct {
	mu      sync.Mutex
	records []domain.BatchRecord
	cleaned []time.Duration
}

func (r *memRecordRepo) Create(ctx context.Context, record *domain.BatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *record)
	return nil
}

func (r *memRecordRepo) GetByBatchID(ctx context.Context, batchID string) (*domain.BatchRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.BatchID == batchID {
			cp := rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRecordRepo) GetAll(ctx context.Context, limit int) ([]domain.BatchRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]domain.BatchRecord{}, r.records...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRecordRepo) CleanupOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleaned = append(r.cleaned, olderThan)
	return 0, nil
}

type memSettingRepo struct {
	mu       sync.Mutex
	settings map[string]domain.SystemSetting
}

func newMemSettingRepo() *memSettingRepo {
	return &memSettingRepo{settings: make(map[string]domain.SystemSetting)}
}

func (r *memSettingRepo) Get(ctx context.Context, key string) (*domain.SystemSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[key]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *memSettingRepo) Set(ctx context.Context, setting *domain.SystemSetting) error {
	return r.SetMany(ctx, []domain.SystemSetting{*setting})
}

func (r *memSettingRepo) SetMany(ctx context.Context, settings []domain.SystemSetting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range settings {
		r.settings[s.Key] = s
	}
	return nil
}

func (r *memSettingRepo) GetByCategory(ctx context.Context, category string) ([]domain.SystemSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SystemSetting
	for _, s := range r.settings {
		if s.Category == category {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSettingRepo) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.settings, key)
	return nil
}
