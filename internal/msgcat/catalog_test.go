package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedDefaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("end.give_up", map[string]string{"Winner": "Bob", "Loser": "Alice"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Alice gave up. Bob wins." {
		t.Fatalf("Render = %q", got)
	}
	if _, err := c.Render("end.give_up", map[string]string{"Winner": "Bob"}); err == nil {
		t.Fatalf("missing field should fail")
	}
	if got := c.Text("errors.nope", nil, "fallback"); got != "fallback" {
		t.Fatalf("Text = %q", got)
	}
	var nilCat *Catalog
	if got := nilCat.Text("errors.not_your_turn", nil, "fb"); got != "fb" {
		t.Fatalf("nil Text = %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("errors:\n  not_your_turn: \"Wait.\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Text("errors.not_your_turn", nil, ""); got != "Wait." {
		t.Fatalf("override = %q", got)
	}
	if got := c.Text("errors.player_used", nil, ""); got == "" {
		t.Fatalf("default lost after override")
	}

	if err := os.WriteFile(filepath.Join(dir, "b.yml"), []byte("errors:\n  not_your_turn: \"Again.\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "duplicate override key") {
		t.Fatalf("duplicate keys: %v", err)
	}
}
