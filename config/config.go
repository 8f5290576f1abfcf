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

// Package config is a typed, file-backed key/value store for the transport
// config structs (tcpclient.Config, tcpserver.Config, udp.Config,
// serial.Config). It round-trips through YAML via spf13/viper so a channel
// can be configured from a file as well as built programmatically.
package config

import (
	"fmt"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/jwsung91/unilink-go/network/protocol"
	"github.com/jwsung91/unilink-go/tlsconfig"
	"github.com/jwsung91/unilink-go/transport/serial"
	"github.com/jwsung91/unilink-go/transport/tcpclient"
	"github.com/jwsung91/unilink-go/transport/tcpserver"
	"github.com/jwsung91/unilink-go/transport/udp"
)

var validate = validator.New()

// Store wraps a viper instance scoped to a single config file.
type Store struct {
	v *viper.Viper
}

// New returns an empty Store with built-in defaults for every transport.
func New() *Store {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	return &Store{v: v}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tcp_client.network", protocol.NetworkTCP.String())
	v.SetDefault("tcp_client.connection_timeout", "5s")
	v.SetDefault("tcp_client.backpressure_threshold", int64(1<<20))

	v.SetDefault("tcp_server.backpressure_threshold", int64(1<<20))
	v.SetDefault("tcp_server.client_limit", 0)

	v.SetDefault("udp.backpressure_threshold", int64(1<<20))

	v.SetDefault("serial.baud_rate", 9600)
	v.SetDefault("serial.char_size", 8)
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.read_chunk", 4096)
	v.SetDefault("serial.backpressure_threshold", int64(1<<20))
}

// Load reads and parses the YAML file at path into the store, replacing any
// values previously set. Missing keys keep their defaults.
func Load(path string) (*Store, error) {
	s := New()
	s.v.SetConfigFile(path)
	if err := s.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	return s, nil
}

// Save writes the store's current values to path as YAML.
func (s *Store) Save(path string) error {
	if err := s.v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("config: write %q: %w", path, err)
	}
	return nil
}

// Set assigns a single key (viper's dotted-path notation, e.g. "tcp_client.host").
func (s *Store) Set(key string, value interface{}) {
	s.v.Set(key, value)
}

// validated mirrors the fields worth checking before a transport is started:
// a configured port must be a real port, a configured baud rate must be
// positive. Zero values are left alone (omitempty) since they mean "not set"
// for an optional section rather than "invalid".
type validated struct {
	TCPClientPort int `validate:"omitempty,min=1,max=65535"`
	TCPServerPort int `validate:"omitempty,min=1,max=65535"`
	UDPLocalPort  int `validate:"omitempty,min=1,max=65535"`
	SerialBaud    int `validate:"omitempty,min=1"`
	SerialChar    int `validate:"omitempty,min=5,max=8"`
	SerialStop    int `validate:"omitempty,min=1,max=2"`
}

// Validate reports whether the store's current values are internally
// consistent (port ranges and serial line parameters). The transport
// packages do not validate their own Config structs.
func (s *Store) Validate() error {
	v := validated{
		TCPClientPort: s.TCPClient().Port,
		TCPServerPort: s.TCPServer().Port,
		UDPLocalPort:  s.UDP().LocalPort,
		SerialBaud:    s.Serial().BaudRate,
		SerialChar:    int(s.Serial().CharSize),
		SerialStop:    s.Serial().StopBits,
	}

	if err := validate.Struct(v); err != nil {
		var fails []string
		for _, fe := range err.(validator.ValidationErrors) {
			fails = append(fails, fmt.Sprintf("%s=%v fails %q", fe.Field(), fe.Value(), fe.Tag()))
		}
		return fmt.Errorf("config: invalid: %s", strings.Join(fails, ", "))
	}

	return nil
}

// TCPClient populates a tcpclient.Config from the "tcp_client" section.
func (s *Store) TCPClient() tcpclient.Config {
	sub := s.v.Sub("tcp_client")
	if sub == nil {
		sub = viper.New()
	}
	return tcpclient.Config{
		Host:                  sub.GetString("host"),
		Port:                  sub.GetInt("port"),
		ConnectionTimeout:     sub.GetDuration("connection_timeout"),
		BackpressureThreshold: sub.GetInt64("backpressure_threshold"),
		TLS:                   tlsFromSub(sub),
	}
}

// TCPServer populates a tcpserver.Config from the "tcp_server" section.
func (s *Store) TCPServer() tcpserver.Config {
	sub := s.v.Sub("tcp_server")
	if sub == nil {
		sub = viper.New()
	}
	return tcpserver.Config{
		Port:                  sub.GetInt("port"),
		BackpressureThreshold: sub.GetInt64("backpressure_threshold"),
		EnablePortRetry:       sub.GetBool("enable_port_retry"),
		MaxPortRetries:        sub.GetInt("max_port_retries"),
		PortRetryInterval:     sub.GetDuration("port_retry_interval"),
		ClientLimit:           sub.GetInt("client_limit"),
		TLS:                   tlsFromSub(sub),
	}
}

// UDP populates a udp.Config from the "udp" section.
func (s *Store) UDP() udp.Config {
	sub := s.v.Sub("udp")
	if sub == nil {
		sub = viper.New()
	}
	return udp.Config{
		LocalAddress:          sub.GetString("local_address"),
		LocalPort:             sub.GetInt("local_port"),
		RemoteAddress:         sub.GetString("remote_address"),
		RemotePort:            sub.GetInt("remote_port"),
		BackpressureThreshold: sub.GetInt64("backpressure_threshold"),
	}
}

// Serial populates a serial.Config from the "serial" section.
func (s *Store) Serial() serial.Config {
	sub := s.v.Sub("serial")
	if sub == nil {
		sub = viper.New()
	}
	return serial.Config{
		Device:                sub.GetString("device"),
		BaudRate:              sub.GetInt("baud_rate"),
		CharSize:              byte(sub.GetInt("char_size")),
		StopBits:              sub.GetInt("stop_bits"),
		Parity:                parseParity(sub.GetString("parity")),
		Flow:                  parseFlow(sub.GetString("flow")),
		ReopenOnError:         sub.GetBool("reopen_on_error"),
		RetryInterval:         sub.GetDuration("retry_interval"),
		ReadChunk:             sub.GetInt("read_chunk"),
		BackpressureThreshold: sub.GetInt64("backpressure_threshold"),
	}
}

func tlsFromSub(sub *viper.Viper) *tlsconfig.Config {
	if !sub.GetBool("tls.enabled") {
		return nil
	}
	return &tlsconfig.Config{
		Enabled:    true,
		CAFile:     sub.GetString("tls.ca_file"),
		CertFile:   sub.GetString("tls.cert_file"),
		KeyFile:    sub.GetString("tls.key_file"),
		ServerName: sub.GetString("tls.server_name"),
	}
}

func parseParity(s string) serial.Parity {
	switch s {
	case "even":
		return serial.ParityEven
	case "odd":
		return serial.ParityOdd
	default:
		return serial.ParityNone
	}
}

func parseFlow(s string) serial.Flow {
	switch s {
	case "software":
		return serial.FlowSoftware
	case "hardware":
		return serial.FlowHardware
	default:
		return serial.FlowNone
	}
}
