package pride

import (
	"context"
	"sync"
)

// Cache memoizes successful file listings per project so that several
// commands of one invocation share a single request.
type Cache struct {
	Lister

	mu    sync.Mutex
	files map[string][]File
}

func NewCache(l Lister) *Cache {
	return &Cache{Lister: l, files: make(map[string][]File)}
}

func (c *Cache) ListFiles(ctx context.Context, project string) ([]File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if files, ok := c.files[project]; ok {
		return files, nil
	}
	files, err := c.Lister.ListFiles(ctx, project)
	if err != nil {
		return nil, err
	}
	c.files[project] = files
	return files, nil
}

// Forget drops every cached listing.
func (c *Cache) Forget() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = make(map[string][]File)
}
