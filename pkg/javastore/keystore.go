// Package javastore derives Java keystore/truststore artifacts from
// provisioned PEM material. Kafka, Keycloak and NiFi consume JKS stores, and
// the intermediate PKCS12 bundle is kept on disk for services that can load
// it directly.
package javastore

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dvob/pcert"
	"github.com/pavel-v-chernykh/keystore-go/v4"
	"software.sslmate.com/src/go-pkcs12"

	"github.com/MODERATE-Project/moderate-diva-deployment/pkg/certstore"
)

// KeyAlias is the entry name the server identity is stored under.
const KeyAlias = "server"

// WriteKeyStore exports pair as a PKCS12 bundle at p12Path and a JKS keystore
// at jksPath, both protected by passphrase. The stores are always fully
// regenerated from the PEM sources; there is no incremental update.
func WriteKeyStore(pair certstore.Pair, p12Path, jksPath, passphrase string) error {
	for _, p := range []string{pair.CertPath, pair.KeyPath} {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("keystore source %s is not readable (provision the certificate first): %w", p, err)
		}
	}

	certPEM, err := os.ReadFile(pair.CertPath)
	if err != nil {
		return fmt.Errorf("read certificate: %w", err)
	}
	keyPEM, err := os.ReadFile(pair.KeyPath)
	if err != nil {
		return fmt.Errorf("read private key: %w", err)
	}

	cert, err := pcert.Parse(certPEM)
	if err != nil {
		return fmt.Errorf("parse certificate %s: %w", pair.CertPath, err)
	}
	key, err := parsePrivateKey(keyPEM)
	if err != nil {
		return fmt.Errorf("parse private key %s: %w", pair.KeyPath, err)
	}

	pfx, err := pkcs12.Modern.Encode(key, cert, nil, passphrase)
	if err != nil {
		return fmt.Errorf("encode PKCS12 bundle: %w", err)
	}
	if err := writeFileAtomically(p12Path, pfx, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", p12Path, err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return fmt.Errorf("encode private key for JKS: %w", err)
	}
	ks := keystore.New()
	entry := keystore.PrivateKeyEntry{
		CreationTime: time.Now(),
		PrivateKey:   keyDER,
		CertificateChain: []keystore.Certificate{{
			Type:    "X509",
			Content: cert.Raw,
		}},
	}
	if err := ks.SetPrivateKeyEntry(KeyAlias, entry, []byte(passphrase)); err != nil {
		return fmt.Errorf("add %s entry to JKS keystore: %w", KeyAlias, err)
	}
	if err := storeAtomically(ks, jksPath, passphrase, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", jksPath, err)
	}
	return nil
}

// parsePrivateKey decodes the first private key block, accepting the PKCS8,
// PKCS1 and SEC1 encodings that turn up in terminator output.
func parsePrivateKey(pemBytes []byte) (crypto.PrivateKey, error) {
	remain := pemBytes
	for {
		var block *pem.Block
		block, remain = pem.Decode(remain)
		if block == nil {
			break
		}
		switch block.Type {
		case "PRIVATE KEY":
			return x509.ParsePKCS8PrivateKey(block.Bytes)
		case "RSA PRIVATE KEY":
			return x509.ParsePKCS1PrivateKey(block.Bytes)
		case "EC PRIVATE KEY":
			return x509.ParseECPrivateKey(block.Bytes)
		}
	}
	return nil, errors.New("no private key block found")
}

func storeAtomically(ks keystore.KeyStore, path, passphrase string, mode os.FileMode) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	storeErr := ks.Store(f, []byte(passphrase))
	closeErr := f.Close()
	if storeErr != nil {
		_ = os.Remove(tmp)
		return storeErr
	}
	if closeErr != nil {
		_ = os.Remove(tmp)
		return closeErr
	}
	return os.Rename(tmp, path)
}

func writeFileAtomically(path string, data []byte, mode os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
