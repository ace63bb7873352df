package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func sketchDir(t *testing.T) string {
	t.Helper()
	return filepath.Join("..", "..", "testdata", "sketches")
}

func readSketch(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(sketchDir(t), name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

// isolate keeps a user config from leaking into the run
func isolate(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("RXY_TIMING", "")
	t.Setenv("RXY_TIMING_JSONL", "")
}

func run(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := runFormat(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestFormatStdin(t *testing.T) {
	isolate(t)
	code, out, errOut := run(t, readSketch(t, "basic.ino"))
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "struct\n{\n\t// Inputs\n") || !strings.Contains(out, "uint8_t RemoteXY_CONF[] =\n{\n") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	// Output of one run is the fixed point of the next
	code, again, _ := run(t, out)
	if code != 0 || again != out {
		t.Fatalf("second run changed the text")
	}
}

func TestNothingToFormatPassesThrough(t *testing.T) {
	isolate(t)
	for _, name := range []string{"mismatch.ino", "plain.ino"} {
		t.Run(name, func(t *testing.T) {
			in := readSketch(t, name)
			code, out, errOut := run(t, in)
			if code != 0 {
				t.Fatalf("exit %d: %s", code, errOut)
			}
			if out != in {
				t.Fatalf("text must pass through unchanged")
			}
			if !strings.Contains(errOut, "[warn:") {
				t.Fatalf("expected a warning on stderr, got %q", errOut)
			}
		})
	}
}

func copyDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	entries, err := os.ReadDir(sketchDir(t))
	if err != nil {
		t.Fatalf("read sketches: %v", err)
	}
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(sketchDir(t), e.Name()))
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		if err := os.WriteFile(filepath.Join(dir, e.Name()), data, 0644); err != nil {
			t.Fatalf("write %s: %v", e.Name(), err)
		}
	}
	return dir
}

func TestListAndWrite(t *testing.T) {
	isolate(t)
	dir := copyDir(t)

	code, out, errOut := run(t, "", "-l", dir)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	listed := strings.Fields(out)
	want := []string{filepath.Join(dir, "basic.ino"), filepath.Join(dir, "paged.ino")}
	if strings.Join(listed, ",") != strings.Join(want, ",") {
		t.Fatalf("listed %v, want %v", listed, want)
	}

	plainBefore, _ := os.ReadFile(filepath.Join(dir, "plain.ino"))
	if code, _, errOut := run(t, "", "-w", dir); code != 0 {
		t.Fatalf("-w exit %d: %s", code, errOut)
	}
	plainAfter, _ := os.ReadFile(filepath.Join(dir, "plain.ino"))
	if !bytes.Equal(plainBefore, plainAfter) {
		t.Fatalf("a file with nothing to format was rewritten")
	}

	code, out, _ = run(t, "", "-l", dir)
	if code != 0 || strings.TrimSpace(out) != "" {
		t.Fatalf("after -w nothing should differ, got %q", out)
	}
}

func TestUnloadableFileDoesNotStopTheRun(t *testing.T) {
	isolate(t)
	dir := copyDir(t)
	if err := os.WriteFile(filepath.Join(dir, "page.ino"), []byte("<html>saved page</html>"), 0644); err != nil {
		t.Fatalf("write page.ino: %v", err)
	}

	code, out, errOut := run(t, "", "-l", dir)
	if code != 1 {
		t.Fatalf("a file that cannot be loaded should exit 1, got %d", code)
	}
	want := []string{filepath.Join(dir, "basic.ino"), filepath.Join(dir, "paged.ino")}
	if got := strings.Fields(out); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("listed %v, want %v", got, want)
	}
	if !strings.Contains(errOut, "[error:io] "+filepath.Join(dir, "page.ino")) {
		t.Fatalf("the skipped file should be reported: %q", errOut)
	}
}

func TestDiff(t *testing.T) {
	isolate(t)
	dir := copyDir(t)
	code, out, errOut := run(t, "", "-d", filepath.Join(dir, "paged.ino"))
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "--- "+filepath.Join(dir, "paged.ino")+".orig") || !strings.Contains(out, "+\t// Outputs") {
		t.Fatalf("unexpected diff:\n%s", out)
	}
}

func TestDumpFormats(t *testing.T) {
	isolate(t)
	in := readSketch(t, "basic.ino")

	code, out, errOut := run(t, in, "-dump", "json", "-title", "basic")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	var d struct {
		Title string           `json:"title"`
		Pairs []map[string]any `json:"pairs"`
	}
	if err := json.Unmarshal([]byte(out), &d); err != nil {
		t.Fatalf("dump is not JSON: %v", err)
	}
	if d.Title != "basic" || len(d.Pairs) != 1 {
		t.Fatalf("unexpected dump: %+v", d)
	}

	code, out, errOut = run(t, in, "-dump", "yaml")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	var y map[string]any
	if err := yaml.Unmarshal([]byte(out), &y); err != nil {
		t.Fatalf("dump is not YAML: %v", err)
	}
	if y["title"] != "Dropped text" {
		t.Fatalf("title = %v", y["title"])
	}

	if code, _, _ := run(t, in, "-dump", "xml"); code != 2 {
		t.Fatalf("unknown dump format should exit 2, got %d", code)
	}
}

func TestConfigFlag(t *testing.T) {
	isolate(t)
	cfgPath := filepath.Join(t.TempDir(), "rxyfmt.yaml")
	if err := os.WriteFile(cfgPath, []byte("braces: same-line\nindent:\n  char: space\n  size: 2\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	code, out, errOut := run(t, readSketch(t, "basic.ino"), "-c", cfgPath)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "struct {\n  // Inputs\n") {
		t.Fatalf("config was not applied:\n%s", out)
	}

	if err := os.WriteFile(cfgPath, []byte("braces: sideways\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if code, _, errOut := run(t, "", "-c", cfgPath); code != 1 || !strings.Contains(errOut, "invalid config") {
		t.Fatalf("a bad config should exit 1, got %d: %s", code, errOut)
	}
}

func TestWriteStdinFails(t *testing.T) {
	isolate(t)
	if code, _, _ := run(t, readSketch(t, "basic.ino"), "-w"); code != 1 {
		t.Fatalf("writing back piped text should fail, got exit %d", code)
	}
}

func TestTimingFlag(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "t.jsonl")
	if code, _, errOut := run(t, readSketch(t, "basic.ino"), "-timing-file", path); code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read timing: %v", err)
	}
	if !bytes.Contains(data, []byte(`"stage":"total"`)) {
		t.Fatalf("missing total stage:\n%s", data)
	}
}

func TestIsConfigFile(t *testing.T) {
	if !isConfigFile("/x/.rxyfmt.toml") || isConfigFile("/x/sketch.ino") {
		t.Fatalf("isConfigFile misclassified")
	}
}

func TestCacheSkipsFormattedFiles(t *testing.T) {
	isolate(t)
	dir := copyDir(t)
	cacheDir := filepath.Join(t.TempDir(), "cache")
	cfgPath := filepath.Join(t.TempDir(), "rxyfmt.json")
	cfg := `{"cache": {"enabled": true, "dir": "` + filepath.ToSlash(cacheDir) + `"}}`
	if err := os.WriteFile(cfgPath, []byte(cfg), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if code, _, errOut := run(t, "", "-c", cfgPath, "-w", dir); code != 0 {
		t.Fatalf("first run exit %d: %s", code, errOut)
	}
	if _, err := os.Stat(filepath.Join(cacheDir, "index.json")); err != nil {
		t.Fatalf("cache index not written: %v", err)
	}

	code, _, errOut := run(t, "", "-c", cfgPath, "-v", "-l", dir)
	if code != 0 {
		t.Fatalf("second run exit %d: %s", code, errOut)
	}
	if !strings.Contains(errOut, "4 of 4 unit(s) already formatted") {
		t.Fatalf("expected every unit to hit the cache:\n%s", errOut)
	}
}
