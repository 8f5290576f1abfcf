/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package size gives the byte-count quantities scattered through transport
// configuration (backpressure thresholds, hard limits, buffer pool buckets)
// a single human-readable type instead of bare ints.
package size

import (
	"fmt"
	"strconv"
	"strings"
)

type Size int64

const (
	SizeNul  Size = 0
	SizeUnit Size = 1
	SizeKilo Size = SizeUnit << 10
	SizeMega Size = SizeKilo << 10
	SizeGiga Size = SizeMega << 10
	SizeTera Size = SizeGiga << 10
)

func (s Size) Int64() int64 { return int64(s) }

func (s Size) String() string {
	switch {
	case s >= SizeTera && s%SizeTera == 0:
		return fmt.Sprintf("%dTB", s/SizeTera)
	case s >= SizeGiga && s%SizeGiga == 0:
		return fmt.Sprintf("%dGB", s/SizeGiga)
	case s >= SizeMega && s%SizeMega == 0:
		return fmt.Sprintf("%dMB", s/SizeMega)
	case s >= SizeKilo && s%SizeKilo == 0:
		return fmt.Sprintf("%dKB", s/SizeKilo)
	default:
		return fmt.Sprintf("%dB", int64(s))
	}
}

// Parse accepts a bare integer (bytes) or a suffixed quantity such as "64KB",
// "1MB", "4Kb" (case-insensitive; "KiB"-style binary suffixes are accepted,
// a bare "Ki" is not).
func Parse(s string) (Size, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SizeNul, fmt.Errorf("size: empty value")
	}

	up := strings.ToUpper(s)
	mult := SizeUnit
	num := up

	suffixes := []struct {
		suffix string
		mult   Size
	}{
		{"TIB", SizeTera}, {"TB", SizeTera}, {"T", SizeTera},
		{"GIB", SizeGiga}, {"GB", SizeGiga}, {"G", SizeGiga},
		{"MIB", SizeMega}, {"MB", SizeMega}, {"M", SizeMega},
		{"KIB", SizeKilo}, {"KB", SizeKilo}, {"K", SizeKilo},
		{"B", SizeUnit},
	}

	for _, suf := range suffixes {
		if strings.HasSuffix(up, suf.suffix) {
			mult = suf.mult
			num = strings.TrimSuffix(up, suf.suffix)
			break
		}
	}

	num = strings.TrimSpace(num)
	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return SizeNul, fmt.Errorf("size: invalid value %q: %w", s, err)
	}

	return Size(n) * mult, nil
}

func (s Size) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(s.String())), nil
}

func (s *Size) UnmarshalJSON(b []byte) error {
	unquoted, err := strconv.Unquote(string(b))
	if err != nil {
		unquoted = string(b)
	}
	v, err := Parse(unquoted)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Clamp returns s bounded to [lo, hi].
func (s Size) Clamp(lo, hi Size) Size {
	if s < lo {
		return lo
	}
	if s > hi {
		return hi
	}
	return s
}
