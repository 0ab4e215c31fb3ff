package profile

import (
	"testing"
)

func setupTestConfig(t *testing.T) func() {
	t.Helper()
	tmpDir := t.TempDir()
	origFunc := configDirFunc
	configDirFunc = func() (string, error) {
		return tmpDir, nil
	}
	return func() {
		configDirFunc = origFunc
	}
}

func TestAdd_NewProfile(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	err := Add(Profile{Name: "prod", ConnStr: "postgres://localhost/prod", AdvisoryURL: "http://advisor:8080/suggest"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	profiles, err := List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(profiles))
	}
	if profiles[0].Name != "prod" {
		t.Errorf("Name = %q, want prod", profiles[0].Name)
	}
	if profiles[0].ConnStr != "postgres://localhost/prod" {
		t.Errorf("ConnStr = %q", profiles[0].ConnStr)
	}
	if profiles[0].AdvisoryURL != "http://advisor:8080/suggest" {
		t.Errorf("AdvisoryURL = %q", profiles[0].AdvisoryURL)
	}
}

func TestAdd_UpdateExisting(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	if err := Add(Profile{Name: "prod", ConnStr: "postgres://localhost/prod_v1"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := Add(Profile{Name: "prod", ConnStr: "postgres://localhost/prod_v2"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	profiles, err := List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("expected 1 profile after update, got %d", len(profiles))
	}
	if profiles[0].ConnStr != "postgres://localhost/prod_v2" {
		t.Errorf("ConnStr = %q, want updated value", profiles[0].ConnStr)
	}
}

func TestResolve(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	if err := Add(Profile{Name: "staging", ConnStr: "postgres://localhost/staging"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	p, err := Resolve("staging")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if p.ConnStr != "postgres://localhost/staging" {
		t.Errorf("ConnStr = %q", p.ConnStr)
	}

	if _, err := Resolve("missing"); err == nil {
		t.Error("expected an error for an unknown profile")
	}
}

func TestResolve_NoConfigFile(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	if _, err := Resolve("prod"); err == nil {
		t.Error("expected an error when no profiles are configured")
	}
}

func TestRemove(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	if err := Add(Profile{Name: "prod", ConnStr: "a"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := Add(Profile{Name: "staging", ConnStr: "b"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := SetDefault("prod"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}

	if err := Remove("prod"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	profiles, err := List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(profiles) != 1 || profiles[0].Name != "staging" {
		t.Errorf("profiles after remove = %+v", profiles)
	}

	// Removing the default clears it.
	p, err := ResolveTarget("", "")
	if err != nil {
		t.Fatalf("ResolveTarget failed: %v", err)
	}
	if p.ConnStr != "" {
		t.Errorf("default still resolves after removal: %+v", p)
	}
}

func TestRemove_NotFound(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	if err := Add(Profile{Name: "prod", ConnStr: "a"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := Remove("missing"); err == nil {
		t.Error("expected an error removing an unknown profile")
	}
}

func TestSetDefault_UnknownProfile(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	if err := SetDefault("missing"); err == nil {
		t.Error("expected an error for an unknown profile")
	}
}

func TestResolveTarget_Precedence(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	if err := Add(Profile{Name: "prod", ConnStr: "postgres://localhost/prod"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := Add(Profile{Name: "staging", ConnStr: "postgres://localhost/staging"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := SetDefault("prod"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}

	// Explicit connection string wins over everything.
	p, err := ResolveTarget("postgres://explicit/db", "staging")
	if err != nil {
		t.Fatalf("ResolveTarget failed: %v", err)
	}
	if p.ConnStr != "postgres://explicit/db" {
		t.Errorf("ConnStr = %q, want the explicit string", p.ConnStr)
	}

	// Named profile wins over the default.
	p, err = ResolveTarget("", "staging")
	if err != nil {
		t.Fatalf("ResolveTarget failed: %v", err)
	}
	if p.ConnStr != "postgres://localhost/staging" {
		t.Errorf("ConnStr = %q, want staging", p.ConnStr)
	}

	// Otherwise the default profile applies.
	p, err = ResolveTarget("", "")
	if err != nil {
		t.Fatalf("ResolveTarget failed: %v", err)
	}
	if p.ConnStr != "postgres://localhost/prod" {
		t.Errorf("ConnStr = %q, want the default profile", p.ConnStr)
	}
}

func TestResolveTarget_NothingConfigured(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	p, err := ResolveTarget("", "")
	if err != nil {
		t.Fatalf("ResolveTarget failed: %v", err)
	}
	if p.ConnStr != "" {
		t.Errorf("expected an empty profile, got %+v", p)
	}
}
