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
 *
 *
 */

// Package certificates builds a *tls.Config from root CAs and certificate/key
// pairs supplied as PEM strings or files. It backs the tlsconfig package,
// which is the only thing a TCP transport touches directly.
package certificates

import (
	"crypto/tls"
	"crypto/x509"
)

// TLSConfig accumulates root CAs, client CAs, and certificate pairs, then
// renders them into a *tls.Config. All methods are safe to call from a
// single goroutine at a time; callers needing concurrent mutation should
// serialize their own access.
type TLSConfig interface {
	// AddRootCAString appends a PEM-encoded root CA, returning false if the
	// PEM block could not be parsed.
	AddRootCAString(rootCA string) bool
	// AddRootCAFile reads pemFile and appends its root CA.
	AddRootCAFile(pemFile string) error

	// AddClientCAString appends a PEM-encoded client CA, returning false if
	// the PEM block could not be parsed.
	AddClientCAString(ca string) bool
	// AddClientCAFile reads pemFile and appends its client CA.
	AddClientCAFile(pemFile string) error

	// AddCertificatePairString parses a PEM key/certificate pair from
	// strings and appends it to the certificate list.
	AddCertificatePairString(key, crt string) error
	// AddCertificatePairFile loads a PEM key/certificate pair from files and
	// appends it to the certificate list.
	AddCertificatePairFile(keyFile, crtFile string) error

	// SetVersionMin sets the minimum negotiated TLS version (0 = library default).
	SetVersionMin(vers uint16)
	// SetVersionMax sets the maximum negotiated TLS version (0 = library default).
	SetVersionMax(vers uint16)
	// SetClientAuth sets the client certificate verification policy.
	SetClientAuth(auth tls.ClientAuthType)
	// SetCipherList restricts the negotiated cipher suites; empty means the
	// library default list.
	SetCipherList(cipher []uint16)
	// SetDynamicSizingDisabled disables TLS record size auto-tuning.
	SetDynamicSizingDisabled(flag bool)
	// SetSessionTicketDisabled disables session ticket resumption.
	SetSessionTicketDisabled(flag bool)

	// GetRootCA returns the accumulated root CA pool, or nil if no
	// AddRootCA* call has reached it. The first such call seeds the pool with
	// the system roots before appending, even when the appended PEM does not
	// parse, so a non-nil pool also holds the system roots.
	GetRootCA() *x509.CertPool
	// GetClientCA returns the accumulated client CA pool, or nil if none was added.
	GetClientCA() *x509.CertPool
	// LenCertificatePair returns the number of certificate pairs added so far.
	LenCertificatePair() int
	// CleanCertificatePair discards every certificate pair added so far.
	CleanCertificatePair()
	// GetCertificatePair returns the accumulated certificate pairs.
	GetCertificatePair() []tls.Certificate

	// Clone returns an independent copy of this TLSConfig.
	Clone() TLSConfig
	// TlsConfig renders the accumulated settings into a *tls.Config for
	// serverName (empty leaves tls.Config.ServerName unset).
	TlsConfig(serverName string) *tls.Config
}

// New returns an empty TLSConfig.
func New() TLSConfig {
	return &config{}
}

// SystemRootCA returns a copy of the OS trust store, or an empty pool if it
// could not be loaded.
func SystemRootCA() *x509.CertPool {
	if pool, err := x509.SystemCertPool(); err == nil && pool != nil {
		return pool
	}
	return x509.NewCertPool()
}
