package config

import (
	"path/filepath"
	"testing"

	"shakedb/internal/buildtrace"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shakedb.toml")

	want := Config{
		DatabasePath: "build/shakedb",
		UserVersion:  3,
		Jobs:         4,
		TraceLevel:   "detail",
		Target: []Target{
			{Name: "app", Depends: []string{"lib"}},
			{Name: "lib"},
		},
	}
	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.DatabasePath != want.DatabasePath || got.UserVersion != want.UserVersion ||
		got.Jobs != want.Jobs || got.TraceLevel != want.TraceLevel {
		t.Fatalf("Load() = %+v, want %+v", got, want)
	}
	if len(got.Target) != 2 || got.Target[0].Name != "app" || len(got.Target[0].Depends) != 1 {
		t.Fatalf("Target round trip = %+v", got.Target)
	}
	if got.Level != buildtrace.LevelDetail {
		t.Fatalf("Level = %v, want %v (parsed from TraceLevel %q)", got.Level, buildtrace.LevelDetail, got.TraceLevel)
	}
}

func TestLoadRejectsBadTraceLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shakedb.toml")
	if err := Save(path, Config{DatabasePath: "x", TraceLevel: "extremely-verbose"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid trace_level")
	}
}

func TestLoadRejectsEmptyDatabasePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shakedb.toml")
	if err := Save(path, Config{DatabasePath: "", TraceLevel: "off"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty database_path")
	}
}
