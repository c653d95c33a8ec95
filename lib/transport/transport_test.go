// Copyright 2026 The Updraft Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTestCA generates a self-signed CA certificate and writes it as
// PEM to a temp file, returning the path.
func writeTestCA(t *testing.T) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "updraft test CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}

	path := filepath.Join(t.TempDir(), "ca.crt")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(path, pemBytes, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestNewTLSConfig(t *testing.T) {
	caPath := writeTestCA(t)

	config, err := newTLSConfig(caPath)
	if err != nil {
		t.Fatalf("newTLSConfig: %v", err)
	}
	if config.RootCAs == nil {
		t.Error("RootCAs not populated")
	}
	if config.MinVersion < tls.VersionTLS12 {
		t.Errorf("MinVersion = %x, want at least TLS 1.2", config.MinVersion)
	}
}

func TestNewTLSConfigMissingFile(t *testing.T) {
	_, err := newTLSConfig(filepath.Join(t.TempDir(), "absent.crt"))
	if err == nil {
		t.Error("newTLSConfig should fail for a missing CA file")
	}
}

func TestNewTLSConfigGarbagePEM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.crt")
	if err := os.WriteFile(path, []byte("not a certificate"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := newTLSConfig(path)
	if err == nil {
		t.Error("newTLSConfig should fail for garbage PEM")
	}
}

func TestBrokerURL(t *testing.T) {
	got := brokerURL("mosquitto", 8883)
	want := "ssl://mosquitto:8883"
	if got != want {
		t.Errorf("brokerURL = %q, want %q", got, want)
	}
}
