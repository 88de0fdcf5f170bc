package knowledge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// 内存向量库可注入故障的操作名
const (
	OpHas      = "has"
	OpDescribe = "describe"
	OpLoad     = "load"
	OpRelease  = "release"
	OpCreate   = "create"
	OpInsert   = "insert"
	OpSearch   = "search"
)

type memoryCollection struct {
	dim    int
	loaded bool
	rows   []ChunkRecord
}

// MemoryVectorStore 进程内向量库，供本地开发和测试使用
type MemoryVectorStore struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
	failures    map[string]error
	once        map[string]bool
	calls       map[string]int
	closed      bool
}

// NewMemoryVectorStore 创建空的内存向量库
func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{
		collections: make(map[string]*memoryCollection),
		failures:    make(map[string]error),
		once:        make(map[string]bool),
		calls:       make(map[string]int),
	}
}

// MemoryDialer 每次拨号都返回同一个内存库
func MemoryDialer(store *MemoryVectorStore) Dialer {
	return func(ctx context.Context, uri, token string) (VectorStore, error) {
		return store, nil
	}
}

// FailOn 让指定集合上的某个操作返回 err，err 为 nil 时清除
func (m *MemoryVectorStore) FailOn(op, name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := op + ":" + name
	delete(m.once, key)
	if err == nil {
		delete(m.failures, key)
		return
	}
	m.failures[key] = err
}

// FailOnce 只让下一次该操作返回 err
func (m *MemoryVectorStore) FailOnce(op, name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := op + ":" + name
	m.failures[key] = err
	m.once[key] = true
}

// Calls 返回某操作被调用的次数
func (m *MemoryVectorStore) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// IsLoaded 集合当前是否在内存中
func (m *MemoryVectorStore) IsLoaded(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	return ok && c.loaded
}

// Closed 连接是否已关闭
func (m *MemoryVectorStore) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// begin 记录调用并返回注入的故障，调用方需持有锁
func (m *MemoryVectorStore) begin(op, name string) error {
	m.calls[op]++
	key := op + ":" + name
	if err, ok := m.failures[key]; ok {
		if m.once[key] {
			delete(m.failures, key)
			delete(m.once, key)
		}
		return err
	}
	return nil
}

func (m *MemoryVectorStore) HasCollection(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpHas, name); err != nil {
		return false, err
	}
	_, ok := m.collections[name]
	return ok, nil
}

func (m *MemoryVectorStore) DescribeCollection(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpDescribe, name); err != nil {
		return err
	}
	if _, ok := m.collections[name]; !ok {
		return fmt.Errorf("collection %s does not exist", name)
	}
	return nil
}

func (m *MemoryVectorStore) LoadCollection(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpLoad, name); err != nil {
		return err
	}
	c, ok := m.collections[name]
	if !ok {
		return fmt.Errorf("collection %s does not exist", name)
	}
	c.loaded = true
	return nil
}

func (m *MemoryVectorStore) ReleaseCollection(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpRelease, name); err != nil {
		return err
	}
	if c, ok := m.collections[name]; ok {
		c.loaded = false
	}
	return nil
}

func (m *MemoryVectorStore) CreateCollection(ctx context.Context, name string, dim int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpCreate, name); err != nil {
		return err
	}
	if _, ok := m.collections[name]; ok {
		return fmt.Errorf("collection %s already exists", name)
	}
	m.collections[name] = &memoryCollection{dim: dim}
	return nil
}

func (m *MemoryVectorStore) Insert(ctx context.Context, name string, rows []ChunkRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpInsert, name); err != nil {
		return err
	}
	c, ok := m.collections[name]
	if !ok {
		return fmt.Errorf("collection %s does not exist", name)
	}
	for _, row := range rows {
		if len(row.Embedding) != c.dim {
			return fmt.Errorf("row %s embedding has dim %d, expected %d", row.ID, len(row.Embedding), c.dim)
		}
	}
	c.rows = append(c.rows, rows...)
	return nil
}

func (m *MemoryVectorStore) Search(ctx context.Context, name string, vector []float32, topK int, outputFields []string) ([]SearchHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpSearch, name); err != nil {
		return nil, err
	}
	c, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %s does not exist", name)
	}
	if !c.loaded {
		return nil, errors.New("collection not loaded into memory")
	}

	hits := make([]SearchHit, 0, len(c.rows))
	for _, row := range c.rows {
		hits = append(hits, SearchHit{
			ID:     row.ID,
			Score:  cosine(vector, row.Embedding),
			Fields: row.fields(outputFields),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (m *MemoryVectorStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// fields 按Milvus的方式返回输出字段，PageNumber 为空时不返回该字段
func (r ChunkRecord) fields(outputFields []string) map[string]interface{} {
	all := map[string]interface{}{
		FieldS3Key:                 r.S3Key,
		FieldFileType:              r.FileType,
		FieldContentHash:           r.ContentHash,
		FieldChunkIndex:            r.ChunkIndex,
		FieldTextChunk:             r.TextChunk,
		FieldS3URL:                 r.S3URL,
		FieldMetadata:              r.Metadata,
		FieldPageImageURLs:         r.PageImageURLs,
		FieldPageImageDescriptions: r.PageImageDescriptions,
		FieldPageImageEmbeddings:   r.PageImageEmbeddings,
	}
	if r.PageNumber != nil {
		all[FieldPageNumber] = *r.PageNumber
	}

	out := make(map[string]interface{}, len(outputFields))
	for _, f := range outputFields {
		if v, ok := all[f]; ok {
			out[f] = v
		}
	}
	return out
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
