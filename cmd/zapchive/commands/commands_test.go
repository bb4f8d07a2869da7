package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jpereira/zapchive/pkg/zapchive/archive"
)

func writeTestConfig(t *testing.T, dbPath string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "timezone: UTC\ndatabase:\n  path: " + dbPath + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd("test")

	want := []string{"setup", "serve", "groups", "summary", "search"}
	for _, name := range want {
		found := false
		for _, c := range root.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}

	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("missing persistent --config flag")
	}
}

func TestGroupsCmd(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "arc.db")
	configPath := writeTestConfig(t, dbPath)

	t.Run("empty archive", func(t *testing.T) {
		root := NewRootCmd("test")
		root.SetArgs([]string{"groups", "--config", configPath})
		if err := root.Execute(); err != nil {
			t.Fatalf("groups failed: %v", err)
		}
	})

	t.Run("with archived messages", func(t *testing.T) {
		store, err := archive.NewStore(dbPath, 0, nil)
		if err != nil {
			t.Fatalf("NewStore failed: %v", err)
		}
		if _, err := store.InsertMessage(archive.Message{
			GroupJID:  "123@g.us",
			SenderID:  "user@s.whatsapp.net",
			Content:   "oi",
			Timestamp: 1718450000000,
		}); err != nil {
			t.Fatalf("InsertMessage failed: %v", err)
		}
		if err := store.SetGroupName("123@g.us", "Time"); err != nil {
			t.Fatalf("SetGroupName failed: %v", err)
		}
		store.Close()

		root := NewRootCmd("test")
		root.SetArgs([]string{"groups", "--config", configPath})
		if err := root.Execute(); err != nil {
			t.Fatalf("groups failed: %v", err)
		}
	})
}

func TestSummaryCmd_InvalidDate(t *testing.T) {
	configPath := writeTestConfig(t, filepath.Join(t.TempDir(), "arc.db"))

	root := NewRootCmd("test")
	root.SetArgs([]string{"summary", "123@g.us", "29/08/2026", "--config", configPath})
	root.SilenceErrors = true
	root.SilenceUsage = true
	if err := root.Execute(); err == nil {
		t.Error("expected error for malformed date")
	}
}
