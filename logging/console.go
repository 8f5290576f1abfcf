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
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
)

var levelColor = map[logrus.Level]*color.Color{
	logrus.DebugLevel: color.New(color.FgCyan),
	logrus.InfoLevel:  color.New(color.FgGreen),
	logrus.WarnLevel:  color.New(color.FgYellow),
	logrus.ErrorLevel: color.New(color.FgRed),
	logrus.FatalLevel: color.New(color.FgRed, color.Bold),
	logrus.PanicLevel: color.New(color.FgRed, color.Bold),
}

// ConsoleOptions configures the colorized stderr/stdout sink.
type ConsoleOptions struct {
	Color bool
	// Writer overrides the default (stderr for Warn and above, stdout otherwise).
	// Tests set this to capture output without touching the real console.
	Writer io.Writer
}

type consoleHook struct {
	opt ConsoleOptions
	out io.Writer
	err io.Writer
}

// NewConsoleHook wraps os.Stdout/os.Stderr with go-colorable so ANSI codes
// render correctly on every platform, including when output is redirected.
func NewConsoleHook(opt ConsoleOptions) logrus.Hook {
	h := &consoleHook{opt: opt}
	if opt.Writer != nil {
		h.out, h.err = opt.Writer, opt.Writer
		return h
	}
	h.out = colorable.NewColorableStdout()
	h.err = colorable.NewColorableStderr()
	return h
}

func (h *consoleHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *consoleHook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}

	w := h.out
	if entry.Level <= logrus.WarnLevel {
		w = h.err
	}

	if h.opt.Color {
		if c, ok := levelColor[entry.Level]; ok {
			line = c.Sprint(line)
		}
	}

	_, err = io.WriteString(w, line)
	return err
}

func init() {
	// Keep color output deterministic when stdout/stderr aren't TTYs (CI, pipes).
	color.NoColor = color.NoColor || os.Getenv("NO_COLOR") != ""
}
