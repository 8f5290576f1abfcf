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

// Command unilinkctl exercises every channel transport end-to-end: a manual
// smoke-test harness and living documentation of the external interface.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jwsung91/unilink-go/channel"
	"github.com/jwsung91/unilink-go/config"
	"github.com/jwsung91/unilink-go/errctx"
	"github.com/jwsung91/unilink-go/logging"
	"github.com/jwsung91/unilink-go/metrics"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cfgFile is the root --config flag's destination, read by every subcommand
// before it applies its own flag overrides on top.
var cfgFile string

// metricsAddr is the root --metrics-addr flag's destination. Empty disables
// the exposition endpoint.
var metricsAddr string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "unilinkctl",
		Short: "Smoke-test harness for the unilink channel transports",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file populating transport defaults (flags still override it)")
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9100)")
	root.AddCommand(newTCPEchoCmd(), newTCPServeCmd(), newUDPListenCmd(), newSerialProbeCmd())
	return root
}

// loadConfig returns a config.Store built from --config, or the built-in
// defaults if the flag wasn't given.
func loadConfig() (*config.Store, error) {
	if cfgFile == "" {
		return config.New(), nil
	}
	store, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := store.Validate(); err != nil {
		return nil, err
	}
	return store, nil
}

// startMetrics builds a Registry and, if --metrics-addr was given, serves it
// over /metrics in the background for the life of the process.
func startMetrics(lg logging.Logger) *metrics.Registry {
	reg := prometheus.NewRegistry()
	m := metrics.NewRegistered(reg)
	if metricsAddr == "" {
		return m
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Error("metrics server stopped", err.Error())
		}
	}()
	return m
}

func consoleLogger() logging.Logger {
	lg, _ := logging.New(logging.Config{
		Level:   logging.InfoLevel,
		Console: &logging.ConsoleOptions{Color: true},
	})
	return lg
}

// waitForInterrupt blocks until SIGINT/SIGTERM arrives or ctx is done,
// whichever comes first. It does not watch stdin.
func waitForInterrupt(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
	case <-ctx.Done():
	}
}

func newTCPEchoCmd() *cobra.Command {
	var host string
	var port int
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "tcp-echo",
		Short: "Connect to a TCP server and echo every line it sends back prefixed with 'echo: '",
		RunE: func(cmd *cobra.Command, args []string) error {
			lg := consoleLogger()
			defer lg.Close()

			store, err := loadConfig()
			if err != nil {
				return err
			}
			cfg := store.TCPClient()
			if cfgFile == "" || cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cfgFile == "" || cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cfgFile == "" || cmd.Flags().Changed("timeout") {
				cfg.ConnectionTimeout = timeout
			}
			if cfg.BackpressureThreshold == 0 {
				cfg.BackpressureThreshold = 1 << 20
			}
			cfg.Logger = lg

			ch, err := channel.NewTCPClient(cfg)
			if err != nil {
				return err
			}
			defer ch.Stop()

			m := startMetrics(lg)
			ch.OnConnect(func(channel.StateContext) {
				lg.Info("connected", nil)
				m.ActiveSessions.WithLabelValues("tcp_client").Inc()
			})
			ch.OnDisconnect(func(channel.StateContext) {
				lg.Info("disconnected", nil)
				m.ActiveSessions.WithLabelValues("tcp_client").Dec()
			})
			ch.OnError(func(ec errctx.ErrorContext) { lg.Error(ec.Error(), nil) })
			ch.OnData(func(s string) {
				lg.Debug("received line", s)
				_ = ch.SendLine("echo: " + s)
			})

			if err := ch.Start(cmd.Context()); err != nil {
				return err
			}

			waitForInterrupt(cmd.Context())
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "server host")
	cmd.Flags().IntVar(&port, "port", 9000, "server port")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "connection timeout")
	return cmd
}

func newTCPServeCmd() *cobra.Command {
	var port int
	var clientLimit int

	cmd := &cobra.Command{
		Use:   "tcp-serve",
		Short: "Run a multi-client TCP server that broadcasts every received line to all clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			lg := consoleLogger()
			defer lg.Close()

			store, err := loadConfig()
			if err != nil {
				return err
			}
			cfg := store.TCPServer()
			if cfgFile == "" || cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cfgFile == "" || cmd.Flags().Changed("client-limit") {
				cfg.ClientLimit = clientLimit
			}
			if cfg.BackpressureThreshold == 0 {
				cfg.BackpressureThreshold = 1 << 20
			}
			cfg.Logger = lg

			srv, err := channel.NewTCPServer(cfg)
			if err != nil {
				return err
			}
			defer srv.Stop()

			m := startMetrics(lg)
			srv.OnConnect(func(ctx channel.StateContext) {
				lg.Info("client connected", ctx.ClientID)
				m.ActiveSessions.WithLabelValues("tcp_server").Inc()
			})
			srv.OnDisconnect(func(ctx channel.StateContext) {
				lg.Info("client disconnected", ctx.ClientID)
				m.ActiveSessions.WithLabelValues("tcp_server").Dec()
			})
			srv.OnData(func(s string) {
				_ = srv.Broadcast(s)
			})

			if err := srv.Start(cmd.Context()); err != nil {
				return err
			}

			fmt.Printf("listening on :%d (client limit %d)\n", cfg.Port, cfg.ClientLimit)
			waitForInterrupt(cmd.Context())
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 9000, "listen port")
	cmd.Flags().IntVar(&clientLimit, "client-limit", 0, "max concurrent clients, 0 = unlimited")
	return cmd
}

func newUDPListenCmd() *cobra.Command {
	var localPort int

	cmd := &cobra.Command{
		Use:   "udp-listen",
		Short: "Bind a UDP socket and print every datagram received, learning the peer from the first one",
		RunE: func(cmd *cobra.Command, args []string) error {
			lg := consoleLogger()
			defer lg.Close()

			store, err := loadConfig()
			if err != nil {
				return err
			}
			cfg := store.UDP()
			if cfgFile == "" || cmd.Flags().Changed("port") {
				cfg.LocalPort = localPort
			}
			if cfg.BackpressureThreshold == 0 {
				cfg.BackpressureThreshold = 1 << 20
			}
			cfg.Logger = lg

			ch, err := channel.NewUDP(cfg)
			if err != nil {
				return err
			}
			defer ch.Stop()

			m := startMetrics(lg)
			ch.OnConnect(func(channel.StateContext) { m.ActiveSessions.WithLabelValues("udp").Inc() })
			ch.OnDisconnect(func(channel.StateContext) { m.ActiveSessions.WithLabelValues("udp").Dec() })
			ch.OnData(func(s string) {
				fmt.Printf("datagram: %q\n", s)
			})

			if err := ch.Start(cmd.Context()); err != nil {
				return err
			}

			fmt.Printf("listening on udp :%d\n", cfg.LocalPort)
			waitForInterrupt(cmd.Context())
			return nil
		},
	}

	cmd.Flags().IntVar(&localPort, "port", 9001, "local UDP port")
	return cmd
}

func newSerialProbeCmd() *cobra.Command {
	var device string
	var baud int
	var reopen bool

	cmd := &cobra.Command{
		Use:   "serial-probe",
		Short: "Open a serial device, print every line read from it, and send stdin lines to it",
		RunE: func(cmd *cobra.Command, args []string) error {
			lg := consoleLogger()
			defer lg.Close()

			store, err := loadConfig()
			if err != nil {
				return err
			}
			cfg := store.Serial()
			if cfgFile == "" || cmd.Flags().Changed("device") {
				cfg.Device = device
			}
			if cfgFile == "" || cmd.Flags().Changed("baud") {
				cfg.BaudRate = baud
			}
			if cfgFile == "" || cmd.Flags().Changed("reopen-on-error") {
				cfg.ReopenOnError = reopen
			}
			if cfg.CharSize == 0 {
				cfg.CharSize = 8
			}
			if cfg.StopBits == 0 {
				cfg.StopBits = 1
			}
			if cfg.RetryInterval == 0 {
				cfg.RetryInterval = time.Second
			}
			if cfg.BackpressureThreshold == 0 {
				cfg.BackpressureThreshold = 1 << 20
			}
			cfg.Logger = lg

			ch, err := channel.NewSerial(cfg)
			if err != nil {
				return err
			}
			defer ch.Stop()

			m := startMetrics(lg)
			ch.OnData(func(s string) { fmt.Print(s) })
			ch.OnConnect(func(channel.StateContext) {
				lg.Info("port opened", cfg.Device)
				m.ActiveSessions.WithLabelValues("serial").Inc()
			})
			ch.OnDisconnect(func(channel.StateContext) { m.ActiveSessions.WithLabelValues("serial").Dec() })

			if err := ch.Start(cmd.Context()); err != nil {
				return err
			}

			go func() {
				sc := bufio.NewScanner(os.Stdin)
				for sc.Scan() {
					_ = ch.SendLine(sc.Text())
				}
			}()

			waitForInterrupt(cmd.Context())
			return nil
		},
	}

	cmd.Flags().StringVar(&device, "device", "/dev/ttyUSB0", "serial device path")
	cmd.Flags().IntVar(&baud, "baud", 9600, "baud rate")
	cmd.Flags().BoolVar(&reopen, "reopen-on-error", true, "reopen the port automatically on I/O error")
	return cmd
}
