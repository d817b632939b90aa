package runio

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

// NowUTCISOSeconds returns the current UTC time as an ISO instant with
// second precision, the timestamp format used throughout run artifacts.
func NowUTCISOSeconds() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}

// SHA256Hex returns the hex sha256 digest of content.
func SHA256Hex(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// WriteJSON writes v as indented JSON, creating parent directories.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "runio: marshal %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "runio: mkdir for %s", path)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return eris.Wrapf(err, "runio: write %s", path)
	}
	return nil
}

// ReadJSON reads path and unmarshals it into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "runio: read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "runio: unmarshal %s", path)
	}
	return nil
}

// WriteJSONLines writes items as one JSON object per line, creating parent
// directories. An empty slice still produces the (empty) file so a capture
// event always has its delta batch on disk.
func WriteJSONLines[T any](path string, items []T) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range items {
		if err := enc.Encode(items[i]); err != nil {
			return eris.Wrapf(err, "runio: marshal line in %s", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "runio: mkdir for %s", path)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return eris.Wrapf(err, "runio: write %s", path)
	}
	return nil
}

// ReadJSONLines decodes every non-empty line of path into T.
func ReadJSONLines[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "runio: open %s", path)
	}
	defer f.Close()

	var items []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var item T
		if err := json.Unmarshal(text, &item); err != nil {
			return nil, eris.Wrapf(err, "runio: invalid JSONL at %s:%d", path, line)
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "runio: scan %s", path)
	}
	return items, nil
}

// CopyFile copies src to dst, creating dst's parent directories.
func CopyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return eris.Wrapf(err, "runio: read %s", src)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return eris.Wrapf(err, "runio: mkdir for %s", dst)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return eris.Wrapf(err, "runio: write %s", dst)
	}
	return nil
}

// PathExists reports whether path exists.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ListFilesRecursive walks root and returns every regular file accepted by
// match. A missing root yields an empty list, not an error.
func ListFilesRecursive(root string, match func(path string) bool) ([]string, error) {
	if !PathExists(root) {
		return nil, nil
	}
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && match(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "runio: walk %s", root)
	}
	return files, nil
}
