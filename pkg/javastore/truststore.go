package javastore

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dvob/pcert"
	"github.com/pavel-v-chernykh/keystore-go/v4"
	"github.com/rs/zerolog/log"
)

// CA is one authority certificate to seed the truststore with, identified by
// its import alias.
type CA struct {
	Alias string
	URL   string
}

// DefaultCAs are the Let's Encrypt root and intermediate the reverse proxy
// issues from.
var DefaultCAs = []CA{
	{Alias: "root", URL: "https://letsencrypt.org/certs/isrgrootx1.pem"},
	{Alias: "intermediate", URL: "https://letsencrypt.org/certs/lets-encrypt-r3.pem"},
}

// TrustStoreBuilder downloads CA certificates and assembles a JKS truststore.
// Fetch is injectable for tests; the zero value downloads over HTTP with a
// 30 second timeout.
type TrustStoreBuilder struct {
	Fetch func(url string) ([]byte, error)
}

// Build writes a JKS truststore at dest containing each CA as a trusted
// certificate entry, protected by passphrase. When dest already exists the
// build is skipped entirely: the truststore is idempotent by presence, not by
// content, so upstream CA rotation requires removing the file first.
func (b *TrustStoreBuilder) Build(cas []CA, dest, passphrase string) error {
	if _, err := os.Stat(dest); err == nil {
		log.Debug().Str("file", dest).Msg("truststore already present, skipping build")
		return nil
	}

	fetch := b.Fetch
	if fetch == nil {
		fetch = fetchHTTP
	}

	ks := keystore.New()
	for _, ca := range cas {
		pemBytes, err := fetch(ca.URL)
		if err != nil {
			return fmt.Errorf("download %s CA from %s: %w", ca.Alias, ca.URL, err)
		}
		cert, err := pcert.Parse(pemBytes)
		if err != nil {
			return fmt.Errorf("parse %s CA from %s: %w", ca.Alias, ca.URL, err)
		}
		entry := keystore.TrustedCertificateEntry{
			CreationTime: time.Now(),
			Certificate: keystore.Certificate{
				Type:    "X509",
				Content: cert.Raw,
			},
		}
		if err := ks.SetTrustedCertificateEntry(ca.Alias, entry); err != nil {
			return fmt.Errorf("add %s entry to truststore: %w", ca.Alias, err)
		}
		log.Info().Str("alias", ca.Alias).Str("url", ca.URL).Msg("imported CA certificate")
	}

	if err := storeAtomically(ks, dest, passphrase, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

func fetchHTTP(url string) ([]byte, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
