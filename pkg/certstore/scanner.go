// Package certstore locates certificate/key pairs written by an external
// TLS terminator under an opaque directory layout.
//
// The terminator nests obtained certificates under arbitrarily deep subpaths,
// so discovery runs three passes of decreasing specificity:
//   - segment:   the hostname appears as a whole path segment
//   - substring: the hostname appears anywhere in the path
//   - any:       any *.crt / *.key file in the tree
//
// The first pass that yields a non-empty certificate AND a non-empty key wins.
// Within a pass the shortest path is preferred (least nested), ties broken
// lexicographically. Scanning is strictly read-only.
package certstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoCertificates indicates that no valid certificate/key pair was found
// by any search pass.
var ErrNoCertificates = errors.New("no certificate/key pair found")

// Pair references a PEM certificate and its private key on disk.
// A pair is valid only when both files exist and are non-empty.
type Pair struct {
	CertPath string
	KeyPath  string
}

// PassResult records what a single search pass matched, for diagnostics.
type PassResult struct {
	Name  string
	Certs int
	Keys  int
}

// Report describes the outcome of every pass of a scan. The waiter includes
// the last report in its timeout error so operators can see how close the
// search got.
type Report struct {
	Passes []PassResult
}

// Summary renders the report as a single human-readable line.
func (r *Report) Summary() string {
	if r == nil || len(r.Passes) == 0 {
		return "no search passes ran"
	}
	parts := make([]string, 0, len(r.Passes))
	for _, p := range r.Passes {
		parts = append(parts, fmt.Sprintf("%s: %d cert(s), %d key(s)", p.Name, p.Certs, p.Keys))
	}
	return strings.Join(parts, "; ")
}

// matcher is one specificity tier of the search. Tiers are evaluated in
// order; the first tier producing a valid pair short-circuits the rest.
type matcher struct {
	name  string
	match func(path, hostname string) bool
}

var passes = []matcher{
	{"segment", hasSegment},
	{"substring", func(path, hostname string) bool { return strings.Contains(path, hostname) }},
	{"any", func(_, _ string) bool { return true }},
}

func hasSegment(path, hostname string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == hostname {
			return true
		}
	}
	return false
}

// Scan searches root for a certificate/key pair belonging to hostname.
// It returns ErrNoCertificates when nothing matched; the Report is populated
// either way. A root that does not exist yet is treated as an empty tree,
// since the terminator may not have created it at poll time.
func Scan(root, hostname string) (Pair, *Report, error) {
	certs, keys, err := collect(root)
	if err != nil {
		return Pair{}, nil, err
	}

	report := &Report{}
	for _, pass := range passes {
		var passCerts, passKeys []string
		for _, c := range certs {
			if pass.match(c, hostname) {
				passCerts = append(passCerts, c)
			}
		}
		for _, k := range keys {
			if pass.match(k, hostname) {
				passKeys = append(passKeys, k)
			}
		}
		report.Passes = append(report.Passes, PassResult{
			Name:  pass.name,
			Certs: len(passCerts),
			Keys:  len(passKeys),
		})
		if len(passCerts) > 0 && len(passKeys) > 0 {
			return Pair{CertPath: best(passCerts), KeyPath: best(passKeys)}, report, nil
		}
	}
	return Pair{}, report, ErrNoCertificates
}

// collect walks root and gathers all non-empty *.crt and *.key regular files.
// Unreadable entries are skipped rather than failing the scan: the terminator
// may be writing concurrently.
func collect(root string) (certs, keys []string, err error) {
	if _, statErr := os.Stat(root); statErr != nil {
		if os.IsNotExist(statErr) {
			return nil, nil, nil
		}
		return nil, nil, statErr
	}
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".crt" && ext != ".key" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
			return nil
		}
		if ext == ".crt" {
			certs = append(certs, path)
		} else {
			keys = append(keys, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, nil, walkErr
	}
	return certs, keys, nil
}

// best prefers the shortest path (least nested), ties broken lexicographically.
func best(paths []string) string {
	chosen := paths[0]
	for _, p := range paths[1:] {
		if len(p) < len(chosen) || (len(p) == len(chosen) && p < chosen) {
			chosen = p
		}
	}
	return chosen
}
