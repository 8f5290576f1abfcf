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

package logging

import (
	"io"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/sirupsen/logrus"
)

// Logger is the structured logging façade every transport and channel
// adapter writes through. It wraps a logrus.Logger with console and
// rotating-file sinks plus an hclog bridge for third-party libraries that
// expect one.
type Logger interface {
	io.Writer

	SetLevel(l Level)
	GetLevel() Level

	SetFields(f Fields)
	GetFields() Fields

	Debug(message string, data interface{}, args ...interface{})
	Info(message string, data interface{}, args ...interface{})
	Warning(message string, data interface{}, args ...interface{})
	Error(message string, data interface{}, args ...interface{})
	Fatal(message string, data interface{}, args ...interface{})
	Panic(message string, data interface{}, args ...interface{})

	Clone() Logger
	HCLog() hclog.Logger
	Close() error
}

// Config describes the sinks a Logger writes to. A zero Config logs nothing.
type Config struct {
	Level   Level
	Console *ConsoleOptions
	File    *FileOptions
}

type logger struct {
	mu     sync.RWMutex
	fields Fields
	lg     *logrus.Logger
	file   FileHook
}

// New builds a Logger from cfg, wiring a console hook and/or a rotating
// file hook per cfg.Console / cfg.File.
func New(cfg Config) (Logger, error) {
	base := logrus.New()
	base.SetOutput(io.Discard)
	base.SetLevel(cfg.Level.Logrus())

	l := &logger{lg: base, fields: Fields{}}

	if cfg.Console != nil {
		base.AddHook(NewConsoleHook(*cfg.Console))
	}

	if cfg.File != nil {
		fh, err := NewFileHook(*cfg.File, &logrus.JSONFormatter{})
		if err != nil {
			return nil, err
		}
		fh.RegisterHook(base)
		l.file = fh
	}

	return l, nil
}

func (l *logger) Write(p []byte) (int, error) {
	l.Info(string(p), nil)
	return len(p), nil
}

func (l *logger) SetLevel(lvl Level) {
	l.lg.SetLevel(lvl.Logrus())
}

func (l *logger) GetLevel() Level {
	switch l.lg.GetLevel() {
	case logrus.DebugLevel, logrus.TraceLevel:
		return DebugLevel
	case logrus.InfoLevel:
		return InfoLevel
	case logrus.WarnLevel:
		return WarnLevel
	case logrus.ErrorLevel:
		return ErrorLevel
	case logrus.FatalLevel:
		return FatalLevel
	case logrus.PanicLevel:
		return PanicLevel
	}
	return NilLevel
}

func (l *logger) SetFields(f Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fields = f
}

func (l *logger) GetFields() Fields {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.fields
}

func (l *logger) entry(data interface{}, args []interface{}) *logrus.Entry {
	f := l.GetFields()
	if data != nil {
		f = f.Add("data", data)
	}
	if len(args) > 0 {
		f = f.Add("args", args)
	}
	return l.lg.WithFields(f.Logrus())
}

func (l *logger) Debug(message string, data interface{}, args ...interface{}) {
	l.entry(data, args).Debug(message)
}

func (l *logger) Info(message string, data interface{}, args ...interface{}) {
	l.entry(data, args).Info(message)
}

func (l *logger) Warning(message string, data interface{}, args ...interface{}) {
	l.entry(data, args).Warning(message)
}

func (l *logger) Error(message string, data interface{}, args ...interface{}) {
	l.entry(data, args).Error(message)
}

func (l *logger) Fatal(message string, data interface{}, args ...interface{}) {
	l.entry(data, args).Fatal(message)
}

func (l *logger) Panic(message string, data interface{}, args ...interface{}) {
	l.entry(data, args).Panic(message)
}

func (l *logger) Clone() Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return &logger{
		lg:     l.lg,
		fields: l.fields.clone(),
		file:   l.file,
	}
}

func (l *logger) HCLog() hclog.Logger {
	return &hclogAdapter{l: l}
}

func (l *logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
