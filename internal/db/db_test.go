package db

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestCreateAndListProjects(t *testing.T) {
	database := openTestDB(t)

	p := &Project{Name: "jarvis", Path: "/opt/jarvis", Remote: "git@example.com:jarvis.git"}
	if err := database.CreateProject(p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if p.ID == 0 {
		t.Error("expected assigned ID")
	}

	projects, err := database.ListProjects()
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("len = %d, want 1", len(projects))
	}
	if projects[0].Name != "jarvis" || projects[0].Remote != "git@example.com:jarvis.git" {
		t.Errorf("unexpected project: %+v", projects[0])
	}
}

func TestCreateProjectDuplicatePath(t *testing.T) {
	database := openTestDB(t)

	if err := database.CreateProject(&Project{Name: "a", Path: "/opt/x"}); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	err := database.CreateProject(&Project{Name: "b", Path: "/opt/x"})
	if err != ErrProjectExists {
		t.Errorf("err = %v, want ErrProjectExists", err)
	}
}

func TestGetProjectMissing(t *testing.T) {
	database := openTestDB(t)

	p, err := database.GetProject(999)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil for missing project, got %+v", p)
	}
}

func TestUpsertAsset(t *testing.T) {
	database := openTestDB(t)

	a := &Asset{
		Path:   "/opt/jarvis",
		Type:   AssetRepo,
		Source: "scan",
		Meta:   json.RawMessage(`{"remote":"origin"}`),
	}
	if err := database.UpsertAsset(a); err != nil {
		t.Fatalf("UpsertAsset: %v", err)
	}

	// Second upsert on the same path updates instead of duplicating.
	a.Type = AssetDatabase
	if err := database.UpsertAsset(a); err != nil {
		t.Fatalf("UpsertAsset (update): %v", err)
	}

	assets, err := database.ListAssets("")
	if err != nil {
		t.Fatalf("ListAssets: %v", err)
	}
	if len(assets) != 1 {
		t.Fatalf("len = %d, want 1", len(assets))
	}
	if assets[0].Type != AssetDatabase {
		t.Errorf("Type = %q, want %q after update", assets[0].Type, AssetDatabase)
	}
}

func TestListAssetsByType(t *testing.T) {
	database := openTestDB(t)

	for _, a := range []*Asset{
		{Path: "/a", Type: AssetRepo, Source: "scan"},
		{Path: "/b", Type: AssetService, Source: "scan"},
		{Path: "/c", Type: AssetRepo, Source: "register"},
	} {
		if err := database.UpsertAsset(a); err != nil {
			t.Fatalf("UpsertAsset(%s): %v", a.Path, err)
		}
	}

	repos, err := database.ListAssets(AssetRepo)
	if err != nil {
		t.Fatalf("ListAssets: %v", err)
	}
	if len(repos) != 2 {
		t.Errorf("len = %d, want 2", len(repos))
	}
	for _, a := range repos {
		if a.Type != AssetRepo {
			t.Errorf("unexpected type %q", a.Type)
		}
	}
}
