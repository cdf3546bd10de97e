// Package provision installs a discovered certificate/key pair at the fixed
// destination filenames consumed by the deployed services.
package provision

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/MODERATE-Project/moderate-diva-deployment/pkg/certstore"
)

// Fixed destination filenames. Downstream service configuration references
// these names, so they are not caller-configurable.
const (
	CertFileName = "server.crt"
	KeyFileName  = "server.key"
)

// Provisioned points at the installed pair.
type Provisioned struct {
	CertPath string
	KeyPath  string
}

// Provision copies pair into destDir as server.crt/server.key, creating the
// directory if needed. Both files are staged as temporary siblings and only
// renamed into place once both writes succeeded, so an existing pair is never
// left half-replaced and readers never observe an absent or partial file.
// Re-running with an unchanged source is a no-op in effect.
func Provision(pair certstore.Pair, destDir string) (Provisioned, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Provisioned{}, fmt.Errorf("create destination directory %s: %w", destDir, err)
	}

	certDst := filepath.Join(destDir, CertFileName)
	keyDst := filepath.Join(destDir, KeyFileName)
	certTmp := certDst + ".tmp"
	keyTmp := keyDst + ".tmp"

	if err := copyFile(pair.CertPath, certTmp, 0o644); err != nil {
		return Provisioned{}, fmt.Errorf("stage certificate: %w", err)
	}
	if err := copyFile(pair.KeyPath, keyTmp, 0o600); err != nil {
		_ = os.Remove(certTmp)
		return Provisioned{}, fmt.Errorf("stage private key: %w", err)
	}

	if err := os.Rename(certTmp, certDst); err != nil {
		_ = os.Remove(certTmp)
		_ = os.Remove(keyTmp)
		return Provisioned{}, fmt.Errorf("install certificate: %w", err)
	}
	if err := os.Rename(keyTmp, keyDst); err != nil {
		_ = os.Remove(keyTmp)
		return Provisioned{}, fmt.Errorf("install private key: %w", err)
	}

	return Provisioned{CertPath: certDst, KeyPath: keyDst}, nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if copyErr != nil {
		_ = os.Remove(dst)
		return copyErr
	}
	if closeErr != nil {
		_ = os.Remove(dst)
		return closeErr
	}
	return nil
}
