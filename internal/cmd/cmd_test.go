package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sk2233/spineview/internal/config"
	"github.com/spf13/cobra"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "spineview" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "spineview")
	}
	cmds := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmds[cmd.Name()] = true
	}
	for _, name := range []string{"run", "init"} {
		if !cmds[name] {
			t.Errorf("missing subcommand %q", name)
		}
	}
	for _, flag := range []string{"config", "log-level", "log-file"} {
		if rootCmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing persistent flag --%s", flag)
		}
	}
}

func TestInitWritesExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "spineview.yaml")
	t.Cleanup(func() { configFile, initForce = "", false })

	out, err := executeCommand(rootCmd, "init", "--config", path)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Errorf("output = %q", out)
	}

	v, err := config.NewViper(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(v)
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if len(cfg.Characters) != len(config.Example().Characters) {
		t.Errorf("characters = %d", len(cfg.Characters))
	}

	if _, err := executeCommand(rootCmd, "init", "--config", path); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("second init = %v, want an already exists error", err)
	}
	if err := os.WriteFile(path, []byte("playing: false\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := executeCommand(rootCmd, "init", "--config", path, "--force"); err != nil {
		t.Fatalf("init --force: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hero") {
		t.Error("--force did not overwrite the file")
	}
}
