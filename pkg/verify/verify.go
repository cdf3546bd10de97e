// Package verify performs a read-only inspection of the provisioned
// certificate state: the PEM certificate, the JKS keystore and the JKS
// truststore. It consumes openssl and keytool as black boxes and prints
// their output for human inspection.
package verify

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/fatih/color"
)

// Inputs are the required parameters for a verification run.
type Inputs struct {
	CertPath       string
	KeystorePath   string
	TruststorePath string
	Password       string
}

// PreconditionError reports missing inputs, tools or files detected before
// any external tool runs.
type PreconditionError struct {
	Missing []string
	Hint    string
}

func (e *PreconditionError) Error() string {
	msg := "missing " + strings.Join(e.Missing, ", ")
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

// Tool names resolved on PATH.
const (
	opensslTool = "openssl"
	keytoolTool = "keytool"
)

// Verifier checks preconditions and prints certificate, keystore and
// truststore details to Out. LookPath and Run are injectable for tests; the
// zero value resolves and executes real tools and writes to stdout.
type Verifier struct {
	Out      io.Writer
	LookPath func(name string) (string, error)
	Run      func(name string, args ...string) ([]byte, error)
}

var header = color.New(color.FgCyan, color.Bold)

// Verify validates the inputs and prints the three inspection reports.
// Precondition failures surface as *PreconditionError in a fixed order:
// missing inputs, then unresolvable tools, then missing files. No tool is
// invoked before all preconditions pass.
func (v *Verifier) Verify(in Inputs) error {
	out := v.Out
	if out == nil {
		out = os.Stdout
	}
	lookPath := v.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	run := v.Run
	if run == nil {
		run = func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).Output()
		}
	}

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"certificate path", in.CertPath},
		{"keystore path", in.KeystorePath},
		{"truststore path", in.TruststorePath},
		{"password", in.Password},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &PreconditionError{Missing: missing, Hint: "set the corresponding flags or environment variables"}
	}

	var missingTools []string
	for _, tool := range []string{opensslTool, keytoolTool} {
		if _, err := lookPath(tool); err != nil {
			missingTools = append(missingTools, tool)
		}
	}
	if len(missingTools) > 0 {
		return &PreconditionError{Missing: missingTools, Hint: "install openssl and a JDK providing keytool"}
	}

	var missingFiles []string
	for _, p := range []string{in.CertPath, in.KeystorePath, in.TruststorePath} {
		if _, err := os.Stat(p); err != nil {
			missingFiles = append(missingFiles, p)
		}
	}
	if len(missingFiles) > 0 {
		return &PreconditionError{Missing: missingFiles, Hint: "run cert-provisioner to generate them"}
	}

	_, _ = header.Fprintln(out, "== Certificate details ==")
	details, err := run(opensslTool, "x509", "-in", in.CertPath, "-noout", "-text")
	if err != nil {
		return fmt.Errorf("decode certificate %s: %w", in.CertPath, err)
	}
	_, _ = out.Write(details)

	// Listing failures include the attempted password: the operator needs to
	// see which secret was rejected when several environments share a box.
	_, _ = header.Fprintln(out, "== Keystore entries ==")
	listing, err := run(keytoolTool, "-list", "-v", "-keystore", in.KeystorePath, "-storepass", in.Password)
	if err != nil {
		return fmt.Errorf("list keystore %s (storepass %q): %w", in.KeystorePath, in.Password, err)
	}
	_, _ = out.Write(listing)

	_, _ = header.Fprintln(out, "== Truststore entries ==")
	listing, err = run(keytoolTool, "-list", "-v", "-keystore", in.TruststorePath, "-storepass", in.Password)
	if err != nil {
		return fmt.Errorf("list truststore %s (storepass %q): %w", in.TruststorePath, in.Password, err)
	}
	_, _ = out.Write(listing)

	return nil
}
