/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

// Package tlsconfig adapts the certificates package's TLSConfig builder into
// the thin, declarative shape TCP client and server transports accept.
// Transport-level security only — it never touches message payloads.
package tlsconfig

import (
	"crypto/tls"

	"github.com/jwsung91/unilink-go/certificates"
)

// Config declares the optional TLS wiring for a TCP transport. Enabled=false
// (the zero value) means plaintext; Build is never called in that case.
type Config struct {
	Enabled    bool
	CAFile     string
	CertFile   string
	KeyFile    string
	ServerName string
}

// Build constructs a *tls.Config from Config, loading the root CA (if any)
// and the certificate/key pair (if any) through the certificates package.
func Build(cfg Config) (*tls.Config, error) {
	tc := certificates.New()

	if cfg.CAFile != "" {
		if err := tc.AddRootCAFile(cfg.CAFile); err != nil {
			return nil, err
		}
	}
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		if err := tc.AddCertificatePairFile(cfg.KeyFile, cfg.CertFile); err != nil {
			return nil, err
		}
	}

	return tc.TlsConfig(cfg.ServerName), nil
}
