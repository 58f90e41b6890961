package store

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	migrationsDir := filepath.Join("..", "..", "db", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)
	byVersion := map[string]map[string]bool{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		match := pattern.FindStringSubmatch(name)
		if match == nil {
			continue
		}
		version := match[1]
		direction := match[2]
		if byVersion[version] == nil {
			byVersion[version] = map[string]bool{}
		}
		if byVersion[version][direction] {
			t.Fatalf("duplicate %s migration file for version %s", direction, version)
		}
		byVersion[version][direction] = true
	}

	if len(byVersion) == 0 {
		t.Fatal("no migrations discovered")
	}

	for version, dirs := range byVersion {
		if !dirs["up"] || !dirs["down"] {
			t.Fatalf("version %s must include both up and down files", version)
		}
	}
}

func TestInitMigrationCoversCoreTables(t *testing.T) {
	contents, err := os.ReadFile(filepath.Join("..", "..", "db", "migrations", "0001_init.up.sql"))
	if err != nil {
		t.Fatalf("read init migration: %v", err)
	}
	schema := string(contents)

	tables := []string{
		"users", "series", "series_members", "boards", "scenes", "scene_flags",
		"columns", "scene_columns", "cards", "votes", "comments", "agreements",
		"health_questions", "health_responses",
	}
	for _, table := range tables {
		if !strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("init migration missing table %s", table)
		}
	}

	if !strings.Contains(schema, "UNIQUE (question_id, user_id)") {
		t.Error("health_responses must keep one response per question and user")
	}
}
