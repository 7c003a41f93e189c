package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"weighstation/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "conf", "weighstation.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", nil)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected sample config: %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", nil); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, "", nil); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, target, nil)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "/dev/ttyUSB0")
}

func TestConfigValidateRejectsBadConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[serial]\nbaud_rate = 1234\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := runCLI(t, []string{"config", "validate"}, path, nil)
	if err == nil || !strings.Contains(err.Error(), "baud_rate") {
		t.Fatalf("expected baud validation error, got %v", err)
	}
}

func TestListDeleteAndMachines(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"list"}, env.configPath, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "No measurements")

	testsupport.WriteSnapshot(t, env.cfg.Paths.SnapshotDir, "first.jpg")
	first := testsupport.InsertMeasurement(t, env.store, 520, "first.jpg")
	testsupport.InsertMeasurement(t, env.store, 1240, "")

	out, _, err = runCLI(t, []string{"list"}, env.configPath, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "1240")
	requireContains(t, out, "first.jpg")
	requireContains(t, out, "page 1 of 1, 2 total")
	if strings.Index(out, "1240") > strings.Index(out, "520") {
		t.Fatalf("expected newest first:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"list", "--per-page", "1", "--page", "2", "--json"}, env.configPath, nil)
	if err != nil {
		t.Fatalf("list json: %v", err)
	}
	var page struct {
		Items []struct {
			ID     int64 `json:"id"`
			Weight int   `json:"weight"`
		} `json:"items"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal([]byte(out), &page); err != nil {
		t.Fatalf("decode list json: %v\n%s", err, out)
	}
	if page.Total != 2 || len(page.Items) != 1 || page.Items[0].ID != first {
		t.Fatalf("unexpected page: %+v", page)
	}

	out, _, err = runCLI(t, []string{"delete", "1"}, env.configPath, nil)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	requireContains(t, out, "Deleted measurement 1 (520 kg)")
	requireContains(t, out, "Removed snapshot first.jpg")
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.SnapshotDir, "first.jpg")); !os.IsNotExist(err) {
		t.Fatalf("expected snapshot removed, stat err=%v", err)
	}

	if _, _, err := runCLI(t, []string{"delete", "1"}, env.configPath, nil); err == nil {
		t.Fatal("expected error deleting a missing measurement")
	}
	if _, _, err := runCLI(t, []string{"delete", "nope"}, env.configPath, nil); err == nil {
		t.Fatal("expected error for non-numeric id")
	}

	out, _, err = runCLI(t, []string{"machines"}, env.configPath, nil)
	if err != nil {
		t.Fatalf("machines: %v", err)
	}
	requireContains(t, out, "DF 6160")
	requireContains(t, out, "DF 7250")
}

func TestDecodeSingleRecord(t *testing.T) {
	cases := []struct {
		name string
		arg  string
		want string
	}{
		{"escaped text", `ST,GS,   0000520kg  \r\n`, "stable 520"},
		{"text without delimiter", "US,GS,   0001234kg  ", "unstable 1234"},
		{"hex", "53542c47532c202020303030303035326b6720200d0a", "stable 52"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, _, err := runCLI(t, []string{"decode", tc.arg}, "", nil)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if strings.TrimSpace(out) != tc.want {
				t.Fatalf("got %q, want %q", out, tc.want)
			}
		})
	}

	if _, _, err := runCLI(t, []string{"decode", "ST,GS"}, "", nil); err == nil {
		t.Fatal("expected short record to fail")
	}
}

func TestSimulateFeedsDecodeStream(t *testing.T) {
	stream, _, err := runCLI(t, []string{"simulate", "0", "52", "52", "1"}, "", nil)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if len(stream) != 8*22 {
		t.Fatalf("expected 8 records, got %d bytes", len(stream))
	}

	out, _, err := runCLI(t, []string{"decode"}, "", strings.NewReader(stream+"ST,GS"))
	if err != nil {
		t.Fatalf("decode stream: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	want := []string{
		"unstable 0 ignored",
		"stable 0 accepted",
		"unstable 52 ignored",
		"stable 52 accepted",
		"unstable 52 ignored",
		"stable 52 ignored",
		"unstable 1 ignored",
		"stable 1 accepted",
		"partial record: 5 bytes without delimiter",
	}
	if len(lines) != len(want) {
		t.Fatalf("unexpected output:\n%s", out)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestStatusWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status", "--json"}, env.configPath, nil)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var report statusReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if report.Daemon.Running {
		t.Fatal("expected daemon not running")
	}
	var sawDevice bool
	for _, check := range report.Checks {
		if check.Name == "Scale device" {
			sawDevice = true
			if check.Passed {
				t.Fatal("expected missing test device to fail")
			}
		}
	}
	if !sawDevice {
		t.Fatalf("expected scale device check: %+v", report.Checks)
	}

	out, _, err = runCLI(t, []string{"status"}, env.configPath, nil)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Checks ==")
	requireContains(t, out, "not running")
	if strings.Contains(out, "\x1b[") {
		t.Fatal("expected no colors when writing to a buffer")
	}
}

func TestAPIBaseURL(t *testing.T) {
	cases := map[string]string{
		"0.0.0.0:5000":   "http://127.0.0.1:5000",
		"127.0.0.1:8080": "http://127.0.0.1:8080",
		":5000":          "http://127.0.0.1:5000",
		"[::]:5000":      "http://127.0.0.1:5000",
		"":               "",
		"nonsense":       "",
	}
	for bind, want := range cases {
		if got := apiBaseURL(bind); got != want {
			t.Errorf("apiBaseURL(%q) = %q, want %q", bind, got, want)
		}
	}
}

func TestLogsPrintsTail(t *testing.T) {
	env := setupCLITestEnv(t)
	logPath := filepath.Join(env.cfg.Paths.LogDir, "weighstation.log")
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(logPath, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"logs", "-n", "2"}, env.configPath, nil)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "two\nthree\n" {
		t.Fatalf("unexpected logs output %q", out)
	}
}
