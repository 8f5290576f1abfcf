/*
MIT License

Copyright (c) 2025 Nicolas JUHEL

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

// Package logging provides the structured logging façade (console + rotating
// file sinks, hclog bridging) shared by every channel transport.
package logging

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// RotationConfig bounds a log file's size and the number of rotated
// generations kept on disk. A file is rotated to "{base}.{index}.log" once
// it reaches MaxFileSizeBytes; only the MaxFiles most recently written
// generations survive cleanup.
type RotationConfig struct {
	MaxFileSizeBytes int64
	MaxFiles         int
}

// DefaultRotationConfig matches the 10MB / 10-generation default used by the
// original file-rotation policy.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{MaxFileSizeBytes: 10 * 1024 * 1024, MaxFiles: 10}
}

type rotator struct {
	mu  sync.Mutex
	cfg RotationConfig
}

func newRotator(cfg RotationConfig) *rotator {
	return &rotator{cfg: cfg}
}

func (r *rotator) shouldRotate(path string) bool {
	if r.cfg.MaxFileSizeBytes <= 0 {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Size() >= r.cfg.MaxFileSizeBytes
}

// rotate renames path to its next indexed generation and prunes anything
// beyond MaxFiles. It always returns nil (a missing file or a failed rename
// is ignored); callers reopen path itself for the next write.
func (r *rotator) rotate(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(path); err != nil {
		return nil
	}

	next := r.nextFilePath(path)
	if err := os.Rename(path, next); err != nil {
		return nil
	}

	r.cleanupOldFiles(path)
	return nil
}

func (r *rotator) nextFilePath(base string) string {
	dir, name := baseParts(base)
	maxIndex := -1
	for _, f := range r.logFiles(base) {
		if idx := fileIndex(filepath.Base(f)); idx > maxIndex {
			maxIndex = idx
		}
	}
	return filepath.Join(dir, generateFilename(name, maxIndex+1))
}

func (r *rotator) cleanupOldFiles(base string) {
	if r.cfg.MaxFiles <= 0 {
		return
	}
	files := r.logFiles(base)
	sortByModTimeDesc(files)
	for _, f := range files[min(len(files), r.cfg.MaxFiles):] {
		_ = os.Remove(f)
	}
}

func (r *rotator) logFiles(base string) []string {
	dir, name := baseParts(base)
	pattern := regexp.MustCompile("^" + regexp.QuoteMeta(name) + `\.\d+\.log$`)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if pattern.MatchString(e.Name()) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out
}

func baseParts(path string) (dir, base string) {
	dir = filepath.Dir(path)
	if dir == "" {
		dir = "."
	}
	base = filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return dir, base
}

func fileIndex(filename string) int {
	re := regexp.MustCompile(`\.(\d+)\.log$`)
	m := re.FindStringSubmatch(filename)
	if m == nil {
		return -1
	}
	idx, err := strconv.Atoi(m[1])
	if err != nil {
		return -1
	}
	return idx
}

func generateFilename(base string, index int) string {
	return base + "." + strconv.Itoa(index) + ".log"
}

func sortByModTimeDesc(files []string) {
	sort.Slice(files, func(i, j int) bool {
		ti, erri := os.Stat(files[i])
		tj, errj := os.Stat(files[j])
		if erri != nil || errj != nil {
			return false
		}
		return ti.ModTime().After(tj.ModTime())
	})
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
