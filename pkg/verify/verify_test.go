package verify

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type call struct {
	name string
	args []string
}

// fakeTools records invocations and serves canned output.
type fakeTools struct {
	calls   []call
	fail    map[string]error // keyed by tool name
	missing map[string]bool  // tools unresolvable on PATH
}

func (f *fakeTools) lookPath(name string) (string, error) {
	if f.missing[name] {
		return "", fmt.Errorf("%s: executable file not found in $PATH", name)
	}
	return "/usr/bin/" + name, nil
}

func (f *fakeTools) run(name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	if err := f.fail[name]; err != nil {
		return nil, err
	}
	return []byte("output of " + name + "\n"), nil
}

func existingFiles(t *testing.T) Inputs {
	t.Helper()
	dir := t.TempDir()
	in := Inputs{
		CertPath:       filepath.Join(dir, "server.crt"),
		KeystorePath:   filepath.Join(dir, "keystore.jks"),
		TruststorePath: filepath.Join(dir, "truststore.jks"),
		Password:       "changeit",
	}
	for _, p := range []string{in.CertPath, in.KeystorePath, in.TruststorePath} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	return in
}

// TestVerifyMissingInputs: empty inputs fail first, naming every missing
// field, before any lookup or tool run.
func TestVerifyMissingInputs(t *testing.T) {
	tools := &fakeTools{}
	v := &Verifier{Out: &bytes.Buffer{}, LookPath: tools.lookPath, Run: tools.run}

	err := v.Verify(Inputs{Password: "pw"})
	var pe *PreconditionError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PreconditionError, got %v", err)
	}
	for _, want := range []string{"certificate path", "keystore path", "truststore path"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not name %q", err.Error(), want)
		}
	}
	if len(tools.calls) != 0 {
		t.Fatalf("no tool may run before preconditions pass, got %v", tools.calls)
	}
}

// TestVerifyMissingTool: unresolvable keytool fails before any invocation.
func TestVerifyMissingTool(t *testing.T) {
	tools := &fakeTools{missing: map[string]bool{"keytool": true}}
	v := &Verifier{Out: &bytes.Buffer{}, LookPath: tools.lookPath, Run: tools.run}

	err := v.Verify(existingFiles(t))
	var pe *PreconditionError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PreconditionError, got %v", err)
	}
	if !strings.Contains(err.Error(), "keytool") {
		t.Fatalf("error does not name the missing tool: %v", err)
	}
	if len(tools.calls) != 0 {
		t.Fatalf("no tool may run, got %v", tools.calls)
	}
}

// TestVerifyMissingFile: a nonexistent certificate fails naming the path,
// with zero tool invocations.
func TestVerifyMissingFile(t *testing.T) {
	tools := &fakeTools{}
	v := &Verifier{Out: &bytes.Buffer{}, LookPath: tools.lookPath, Run: tools.run}

	in := existingFiles(t)
	in.CertPath = filepath.Join(t.TempDir(), "nonexistent.crt")

	err := v.Verify(in)
	var pe *PreconditionError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PreconditionError, got %v", err)
	}
	if !strings.Contains(err.Error(), in.CertPath) {
		t.Fatalf("error does not name the missing file: %v", err)
	}
	if len(tools.calls) != 0 {
		t.Fatalf("no tool may run before files exist, got %v", tools.calls)
	}
}

// TestVerifyHappyPath: all preconditions pass; openssl runs once and keytool
// twice, and their output lands in the report.
func TestVerifyHappyPath(t *testing.T) {
	tools := &fakeTools{}
	var out bytes.Buffer
	v := &Verifier{Out: &out, LookPath: tools.lookPath, Run: tools.run}

	in := existingFiles(t)
	if err := v.Verify(in); err != nil {
		t.Fatalf("Verify error: %v", err)
	}

	if len(tools.calls) != 3 {
		t.Fatalf("expected 3 tool invocations, got %d: %v", len(tools.calls), tools.calls)
	}
	if tools.calls[0].name != "openssl" || tools.calls[1].name != "keytool" || tools.calls[2].name != "keytool" {
		t.Fatalf("unexpected invocation order: %v", tools.calls)
	}
	for _, want := range []string{"Certificate details", "Keystore entries", "Truststore entries", "output of openssl", "output of keytool"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("report missing %q:\n%s", want, out.String())
		}
	}
	// keytool invocations carry the store password.
	for _, c := range tools.calls[1:] {
		if !containsArg(c.args, in.Password) {
			t.Fatalf("keytool call missing storepass: %v", c.args)
		}
	}
}

// TestVerifyListFailureSurfacesPassword: a rejected store password is fatal
// and the attempted password appears in the error for operator debugging.
func TestVerifyListFailureSurfacesPassword(t *testing.T) {
	tools := &fakeTools{fail: map[string]error{"keytool": fmt.Errorf("keystore password was incorrect")}}
	v := &Verifier{Out: &bytes.Buffer{}, LookPath: tools.lookPath, Run: tools.run}

	in := existingFiles(t)
	err := v.Verify(in)
	if err == nil {
		t.Fatal("expected listing failure")
	}
	if !strings.Contains(err.Error(), in.Password) {
		t.Fatalf("error should surface the attempted password: %v", err)
	}
}

func containsArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}
