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

// Package protocol names the network protocols the transport frontends bind
// and dial against, and round-trips them through JSON/YAML/text encodings so
// they can live in a config file.
package protocol

import (
	"strconv"
	"strings"
)

// NetworkProtocol identifies a network/address family recognized by net.Dial / net.Listen.
type NetworkProtocol uint8

const (
	NetworkEmpty NetworkProtocol = iota
	NetworkUnix
	NetworkUnixGram
	NetworkTCP
	NetworkTCP4
	NetworkTCP6
	NetworkUDP
	NetworkUDP4
	NetworkUDP6
	NetworkIP
	NetworkIP4
	NetworkIP6
)

var names = map[NetworkProtocol]string{
	NetworkUnix:     "unix",
	NetworkUnixGram: "unixgram",
	NetworkTCP:      "tcp",
	NetworkTCP4:     "tcp4",
	NetworkTCP6:     "tcp6",
	NetworkUDP:      "udp",
	NetworkUDP4:     "udp4",
	NetworkUDP6:     "udp6",
	NetworkIP:       "ip",
	NetworkIP4:      "ip4",
	NetworkIP6:      "ip6",
}

var byName = func() map[string]NetworkProtocol {
	m := make(map[string]NetworkProtocol, len(names))
	for k, v := range names {
		m[v] = k
	}
	return m
}()

// String returns the lowercase network name net.Dial/net.Listen expects, or
// "" for NetworkEmpty and any value outside the known range.
func (n NetworkProtocol) String() string {
	return names[n]
}

// Parse maps a protocol name to a NetworkProtocol, case-insensitively and
// tolerant of surrounding whitespace and a single layer of quoting ("tcp",
// `tcp`). Unknown input returns NetworkEmpty.
func Parse(s string) NetworkProtocol {
	return ParseBytes([]byte(s))
}

// ParseBytes is the []byte counterpart of Parse; it never panics regardless
// of input length or nil-ness.
func ParseBytes(b []byte) NetworkProtocol {
	s := strings.TrimSpace(string(b))
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '`' && s[len(s)-1] == '`') {
			s = s[1 : len(s)-1]
		}
	}
	if p, ok := byName[strings.ToLower(s)]; ok {
		return p
	}
	return NetworkEmpty
}

func (n NetworkProtocol) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(n.String())), nil
}

func (n *NetworkProtocol) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		*n = NetworkEmpty
		return nil
	}
	s, err := strconv.Unquote(string(b))
	if err != nil {
		s = string(b)
	}
	*n = Parse(s)
	return nil
}

func (n NetworkProtocol) MarshalYAML() (interface{}, error) {
	return n.String(), nil
}

func (n *NetworkProtocol) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	*n = Parse(s)
	return nil
}

func (n NetworkProtocol) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

func (n *NetworkProtocol) UnmarshalText(b []byte) error {
	*n = ParseBytes(b)
	return nil
}

// IsDatagram reports whether dial/listen on this protocol yields a
// packet-oriented connection (UDP, unixgram) rather than a byte stream.
func (n NetworkProtocol) IsDatagram() bool {
	switch n {
	case NetworkUDP, NetworkUDP4, NetworkUDP6, NetworkUnixGram:
		return true
	default:
		return false
	}
}
