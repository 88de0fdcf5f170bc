package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const maxLoadWorkers = 8

// DataLoaderService 读取数据目录下的结构化记录，文件名即实体名
type DataLoaderService struct {
	dir    string
	logger *zap.Logger
}

func NewDataLoaderService(dir string, logger *zap.Logger) *DataLoaderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataLoaderService{dir: dir, logger: logger}
}

// Dir 数据目录
func (s *DataLoaderService) Dir() string {
	return s.dir
}

// LoadAll 并行解析所有 *.json 文件
// 单个文件失败时对应实体的值为 {"error": "..."}，目录不存在时返回空map
func (s *DataLoaderService) LoadAll(ctx context.Context) map[string]interface{} {
	result := make(map[string]interface{})

	files, err := s.listFiles()
	if err != nil {
		s.logger.Warn("data directory unavailable", zap.String("dir", s.dir), zap.Error(err))
		return result
	}
	if len(files) == 0 {
		return result
	}

	workers := len(files)
	if workers > maxLoadWorkers {
		workers = maxLoadWorkers
	}

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(workers)
	for _, file := range files {
		file := file
		p.Go(func() {
			name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
			value, err := readJSONFile(ctx, file)
			if err != nil {
				s.logger.Warn("failed to load data file", zap.String("file", file), zap.Error(err))
				value = map[string]interface{}{
					"error": fmt.Sprintf("Failed to read %s.json: %v", name, err),
				}
			}
			mu.Lock()
			result[name] = value
			mu.Unlock()
		})
	}
	p.Wait()

	s.logger.Debug("structured data loaded", zap.Int("entities", len(result)))
	return result
}

func (s *DataLoaderService) listFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		files = append(files, filepath.Join(s.dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func readJSONFile(ctx context.Context, path string) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var value interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	return value, nil
}
