package handlers

import (
	"container/list"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileCache keeps the contents of recently served files, evicting the least
// recently used. An entry is reloaded when the file's size or modification
// time changes.
type FileCache struct {
	mu       sync.Mutex
	cache    map[string]*cacheEntry
	lruList  *list.List
	maxFiles int
	maxSize  int64
}

type cacheEntry struct {
	data    []byte
	modTime time.Time
	element *list.Element
}

// NewFileCache creates a cache holding at most maxFiles files, each no
// larger than maxSize bytes. Larger files are read on every request.
func NewFileCache(maxFiles int, maxSize int64) *FileCache {
	return &FileCache{
		cache:    make(map[string]*cacheEntry),
		lruList:  list.New(),
		maxFiles: maxFiles,
		maxSize:  maxSize,
	}
}

// Get returns the contents of the regular file at path
func (fc *FileCache) Get(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &os.PathError{Op: "read", Path: path, Err: os.ErrInvalid}
	}

	fc.mu.Lock()
	if entry, ok := fc.cache[path]; ok && entry.modTime.Equal(info.ModTime()) && int64(len(entry.data)) == info.Size() {
		// Move to front (most recently used)
		fc.lruList.MoveToFront(entry.element)
		fc.mu.Unlock()
		return entry.data, nil
	}
	fc.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > fc.maxSize || fc.maxFiles <= 0 {
		return data, nil
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()

	if old, ok := fc.cache[path]; ok {
		fc.lruList.Remove(old.element)
	}
	fc.cache[path] = &cacheEntry{
		data:    data,
		modTime: info.ModTime(),
		element: fc.lruList.PushFront(path),
	}

	// Evict oldest if over limit
	if fc.lruList.Len() > fc.maxFiles {
		oldest := fc.lruList.Back()
		delete(fc.cache, oldest.Value.(string))
		fc.lruList.Remove(oldest)
	}

	return data, nil
}

// Len returns the number of cached files
func (fc *FileCache) Len() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.lruList.Len()
}

// ContentType returns MIME type based on file extension
func ContentType(filename string) string {
	switch filepath.Ext(filename) {
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "application/javascript; charset=utf-8"
	case ".json":
		return "application/json; charset=utf-8"
	case ".xml":
		return "application/xml; charset=utf-8"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".ico":
		return "image/x-icon"
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
