package upload

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/supplyhub/backend/internal/core/ports"
	"github.com/supplyhub/backend/internal/domain"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n")

func pngFile(name string) domain.SourceFile {
	return domain.SourceFile{Name: name, Content: append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0x01}, 96)...)}
}

func pngFiles(names ...string) []domain.SourceFile {
	files := make([]domain.SourceFile, 0, len(names))
	for _, n := range names {
		files = append(files, pngFile(n))
	}
	return files
}

type outcome struct {
	obj *domain.StoredObject
	err error
}

func success(name string) outcome {
	return outcome{obj: &domain.StoredObject{Key: "assets/" + name, Size: 1}}
}

// gatedClient blocks every upload until the test releases it by name, or until
// the task context is canceled. With auto set, uploads succeed immediately.
type gatedClient struct {
	mu           sync.Mutex
	gates        map[string]chan outcome
	auto         bool
	ignoreCancel bool
	uploading    int
	maxUploading int
	startOrder   []string
	doneOrder    []string
	removed      []string
	// removeGate, when set, holds Remove until it is closed.
	removeGate chan struct{}
	uploadIDs  []string

	started chan string
}

func newGatedClient(names ...string) *gatedClient {
	c := &gatedClient{
		gates:   make(map[string]chan outcome),
		started: make(chan string, 64),
	}
	for _, n := range names {
		c.gates[n] = make(chan outcome, 1)
	}
	return c
}

func (c *gatedClient) Upload(ctx context.Context, file domain.SourceFile, progress ports.ProgressReporter) (*domain.StoredObject, error) {
	c.mu.Lock()
	c.uploading++
	if c.uploading > c.maxUploading {
		c.maxUploading = c.uploading
	}
	c.startOrder = append(c.startOrder, file.Name)
	c.uploadIDs = append(c.uploadIDs, file.UploadID)
	gate := c.gates[file.Name]
	auto := c.auto
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.uploading--
		c.doneOrder = append(c.doneOrder, file.Name)
		c.mu.Unlock()
	}()

	c.started <- file.Name
	progress.Update(file.Size/2, file.Size)

	if auto || gate == nil {
		s := success(file.Name)
		return s.obj, s.err
	}
	if c.ignoreCancel {
		o := <-gate
		return o.obj, o.err
	}
	select {
	case o := <-gate:
		return o.obj, o.err
	case <-ctx.Done():
		return nil, domain.NewTransferError(domain.ErrorKindCanceled, "put", ctx.Err())
	}
}

func (c *gatedClient) Remove(_ context.Context, key string) error {
	c.mu.Lock()
	gate := c.removeGate
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed = append(c.removed, key)
	return nil
}

func (c *gatedClient) release(name string, o outcome) {
	c.gates[name] <- o
}

func (c *gatedClient) snapshot() (maxUploading int, startOrder, doneOrder, removed []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxUploading,
		append([]string(nil), c.startOrder...),
		append([]string(nil), c.doneOrder...),
		append([]string(nil), c.removed...)
}

func (c *gatedClient) awaitStart(t *testing.T) string {
	t.Helper()
	select {
	case name := <-c.started:
		return name
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an upload to start")
		return ""
	}
}

// countingPreviews records allocations and releases per handle.
type countingPreviews struct {
	mu       sync.Mutex
	next     int
	live     map[string]bool
	releases map[string]int
	failFor  string
}

func newCountingPreviews() *countingPreviews {
	return &countingPreviews{live: make(map[string]bool), releases: make(map[string]int)}
}

func (p *countingPreviews) Allocate(_ context.Context, file domain.SourceFile) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if file.Name == p.failFor {
		return "", fmt.Errorf("disk full")
	}
	p.next++
	h := fmt.Sprintf("preview-%d", p.next)
	p.live[h] = true
	return h, nil
}

func (p *countingPreviews) Release(handle string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releases[handle]++
	delete(p.live, handle)
	return nil
}

func (p *countingPreviews) counts() (live int, releases map[string]int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]int, len(p.releases))
	for k, v := range p.releases {
		out[k] = v
	}
	return len(p.live), out
}

// recorder is an Observer keeping per-file status history.
type recorder struct {
	mu           sync.Mutex
	history      map[string][]domain.UploadStatus
	progress     map[string][]int
	uploading    map[string]bool
	maxUploading int
	settled      []*domain.BatchResult
}

func newRecorder() *recorder {
	return &recorder{
		history:   make(map[string][]domain.UploadStatus),
		progress:  make(map[string][]int),
		uploading: make(map[string]bool),
	}
}

func (r *recorder) TaskChanged(v domain.TaskView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.history[v.Name]
	if len(h) == 0 || h[len(h)-1] != v.Status {
		r.history[v.Name] = append(h, v.Status)
	}
	r.progress[v.Name] = append(r.progress[v.Name], v.ProgressPercent)
	if v.Status == domain.UploadStatusUploading {
		r.uploading[v.ID] = true
	} else {
		delete(r.uploading, v.ID)
	}
	if len(r.uploading) > r.maxUploading {
		r.maxUploading = len(r.uploading)
	}
}

func (r *recorder) BatchSettled(result *domain.BatchResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settled = append(r.settled, result)
}

func (r *recorder) statuses(name string) []domain.UploadStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.UploadStatus(nil), r.history[name]...)
}

func (r *recorder) uploadingNow() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.uploading)
}

func newTestEngine(t *testing.T, client *gatedClient, previews *countingPreviews, limit int, policy domain.PreviewPolicy) *Engine {
	t.Helper()
	cfg := Config{
		Client:           client,
		ConcurrencyLimit: limit,
		PreviewPolicy:    policy,
		Admission:        &Admission{AllowedTypes: []string{"image/*"}},
	}
	if previews != nil {
		cfg.Previews = previews
	}
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	return e
}

func waitSettled(t *testing.T, b *Batch) *domain.BatchResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := b.Wait(ctx)
	require.NoError(t, err)
	return res
}

func names(views []domain.TaskView) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.Name)
	}
	return out
}

// keyedClient stores every upload under a key derived from its upload id and
// holds all transfers until release is closed, ignoring cancellation.
type keyedClient struct {
	mu      sync.Mutex
	release chan struct{}
	started chan string
	removed []string
}

func newKeyedClient() *keyedClient {
	return &keyedClient{release: make(chan struct{}), started: make(chan string, 16)}
}

func (c *keyedClient) Upload(_ context.Context, file domain.SourceFile, _ ports.ProgressReporter) (*domain.StoredObject, error) {
	c.started <- file.UploadID
	<-c.release
	return &domain.StoredObject{Key: "assets/" + file.UploadID + "-" + file.Name, Size: file.Size}, nil
}

func (c *keyedClient) Remove(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed = append(c.removed, key)
	return nil
}

func (c *keyedClient) removedKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.removed...)
}
