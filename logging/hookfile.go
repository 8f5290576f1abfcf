/*
MIT License

Copyright (c) 2021 Nicolas JUHEL

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

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// FileOptions configures a rotating file sink.
type FileOptions struct {
	FilePath string
	Create   bool
	FileMode os.FileMode
	PathMode os.FileMode
	Rotation RotationConfig
	Levels   []logrus.Level
}

// FileHook is a logrus.Hook that appends entries to a file, rotating it
// according to its RotationConfig once it crosses MaxFileSizeBytes.
type FileHook interface {
	logrus.Hook
	io.WriteCloser
	RegisterHook(log *logrus.Logger)
}

type fileHook struct {
	mu  sync.Mutex
	opt FileOptions
	rot *rotator
	fmt logrus.Formatter
	h   *os.File
}

// NewFileHook validates opt.FilePath, ensures its parent directory exists
// (when opt.Create is set) and returns a hook ready to register on a
// logrus.Logger.
func NewFileHook(opt FileOptions, formatter logrus.Formatter) (FileHook, error) {
	if len(opt.FilePath) == 0 {
		return nil, fmt.Errorf("logging.hookfile: empty file path")
	}
	if opt.FileMode == 0 {
		opt.FileMode = 0644
	}
	if opt.PathMode == 0 {
		opt.PathMode = 0755
	}
	if len(opt.Levels) == 0 {
		opt.Levels = logrus.AllLevels
	}
	if formatter == nil {
		formatter = &logrus.JSONFormatter{}
	}

	h := &fileHook{opt: opt, rot: newRotator(opt.Rotation), fmt: formatter}

	if opt.Create {
		if err := os.MkdirAll(filepath.Dir(opt.FilePath), opt.PathMode); err != nil {
			return nil, fmt.Errorf("logging.hookfile: cannot create directory for '%s': %w", opt.FilePath, err)
		}
	}

	return h, nil
}

func (h *fileHook) RegisterHook(log *logrus.Logger) {
	log.AddHook(h)
}

func (h *fileHook) Levels() []logrus.Level {
	return h.opt.Levels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	p, err := h.fmt.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.Write(p)
	return err
}

func (h *fileHook) openCreate() (*os.File, error) {
	flags := os.O_WRONLY | os.O_APPEND
	if h.opt.Create {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(h.opt.FilePath, flags, h.opt.FileMode)
	if err != nil {
		return nil, err
	}
	if _, err = f.Seek(0, io.SeekEnd); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func (h *fileHook) write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rot.shouldRotate(h.opt.FilePath) {
		if h.h != nil {
			_ = h.h.Close()
			h.h = nil
		}
		_ = h.rot.rotate(h.opt.FilePath)
	}

	var err error
	if h.h == nil {
		if h.h, err = h.openCreate(); err != nil {
			return 0, fmt.Errorf("logging.hookfile: cannot open '%s': %w", h.opt.FilePath, err)
		}
	}

	return h.h.Write(p)
}

func (h *fileHook) Write(p []byte) (int, error) {
	n, err := h.write(p)
	if err != nil {
		_ = h.Close()
		n, err = h.write(p)
	}
	return n, err
}

func (h *fileHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.h == nil {
		return nil
	}
	err := h.h.Close()
	h.h = nil
	return err
}
