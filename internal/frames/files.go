package frames

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// FileSource plays back a single image or every image of a directory, looping forever.
// Decoded frames are cached, so each file is read from disk once.
type FileSource struct {
	paths []string

	mu    sync.Mutex
	next  int
	cache map[string]*image.RGBA
}

func NewFileSource(path string) (*FileSource, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrNoFrames)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open frames: %w", err)
	}

	var paths []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("read frames directory: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
				continue
			}
			paths = append(paths, filepath.Join(path, e.Name()))
		}
		sort.Strings(paths)
	} else {
		paths = []string{path}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFrames, path)
	}

	logger.With(zap.String("path", path), zap.Int("frames", len(paths))).Info("Playing back image frames")

	return &FileSource{
		paths: paths,
		cache: make(map[string]*image.RGBA),
	}, nil
}

func (s *FileSource) Len() int {
	return len(s.paths)
}

func (s *FileSource) Next(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.paths[s.next]
	s.next = (s.next + 1) % len(s.paths)

	if img, ok := s.cache[path]; ok {
		return img, nil
	}
	img, err := Load(path)
	if err != nil {
		return nil, err
	}
	s.cache[path] = img
	return img, nil
}

func (s *FileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*image.RGBA)
	return nil
}

// Load decodes an image file, applying its EXIF orientation, into RGBA.
func Load(path string) (*image.RGBA, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return toRGBA(img), nil
}
