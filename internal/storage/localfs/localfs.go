package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/forPelevin/topiccut/internal/ports"
)

// LocalFS stores objects under a root directory.
type LocalFS struct {
	root string
}

func New(root string) *LocalFS {
	return &LocalFS{root: root}
}

func (l *LocalFS) Provider() string { return "localfs" }

func (l *LocalFS) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if in.ObjectKey == "" {
		return ports.PutObjectOutput{}, fmt.Errorf("object_key is required")
	}
	dst, err := l.path(in.ObjectKey)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	if err := ctx.Err(); err != nil {
		return ports.PutObjectOutput{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return ports.PutObjectOutput{}, err
	}

	outF, err := os.Create(dst)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	n, err := io.Copy(outF, in.Reader)
	if cerr := outF.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	return ports.PutObjectOutput{ObjectKey: in.ObjectKey, Size: n}, nil
}

// path keeps keys inside root.
func (l *LocalFS) path(key string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("object_key %q escapes storage root", key)
	}
	return filepath.Join(l.root, rel), nil
}
