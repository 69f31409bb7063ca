package inventory

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScanDirectoryFindsAssets(t *testing.T) {
	root := t.TempDir()

	// A git repo with an env file and a database next to it.
	repo := filepath.Join(root, "myproject")
	if err := os.MkdirAll(filepath.Join(repo, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(repo, ".env.local"), []byte("SECRET=x"), 0644)
	os.WriteFile(filepath.Join(repo, "app.sqlite3"), []byte("data"), 0644)

	// Noise that must be skipped.
	os.MkdirAll(filepath.Join(repo, "node_modules", "dep"), 0755)
	os.WriteFile(filepath.Join(repo, "node_modules", "dep", "x.db"), []byte("no"), 0644)

	assets := scanDirectory(root, 3)

	byType := map[string][]string{}
	for _, a := range assets {
		byType[a.Type] = append(byType[a.Type], a.Path)
	}

	if len(byType["repo"]) != 1 || byType["repo"][0] != repo {
		t.Errorf("repos = %v, want [%s]", byType["repo"], repo)
	}
	if len(byType["config"]) != 1 {
		t.Errorf("configs = %v", byType["config"])
	}
	if len(byType["database"]) != 1 {
		t.Errorf("databases = %v, node_modules must be skipped", byType["database"])
	}
}

func TestScanDirectoryRespectsDepth(t *testing.T) {
	root := t.TempDir()
	deep := filepath.Join(root, "a", "b", "c", "d", "e")
	if err := os.MkdirAll(filepath.Join(deep, ".git"), 0755); err != nil {
		t.Fatal(err)
	}

	if assets := scanDirectory(root, 3); len(assets) != 0 {
		t.Errorf("assets = %d, depth limit should prune the walk", len(assets))
	}
	if assets := scanDirectory(root, 10); len(assets) != 1 {
		t.Errorf("assets = %d, want the deep repo with a generous limit", len(assets))
	}
}

func TestScanDirectoryMissingRoot(t *testing.T) {
	if assets := scanDirectory("/does/not/exist", 3); len(assets) != 0 {
		t.Errorf("assets = %v, want none for a missing root", assets)
	}
}
