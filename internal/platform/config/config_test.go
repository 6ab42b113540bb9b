package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "orders-dev",
	}

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Storage.Driver != StorageDriverFirestore {
		t.Errorf("expected default storage driver firestore, got %s", cfg.Storage.Driver)
	}
	if cfg.Events.Enabled {
		t.Error("expected events disabled by default")
	}
	if cfg.Events.ProjectID != "orders-dev" {
		t.Errorf("expected events project to default to firestore project, got %s", cfg.Events.ProjectID)
	}
	if !cfg.Scheduler.Enabled {
		t.Error("expected scheduler enabled by default")
	}
	if cfg.Scheduler.PromotionInterval != 5*time.Minute {
		t.Errorf("unexpected default promotion interval: %s", cfg.Scheduler.PromotionInterval)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                  "9090",
		"API_SERVER_READ_TIMEOUT":          "20s",
		"API_SERVER_WRITE_TIMEOUT":         "25s",
		"API_SERVER_IDLE_TIMEOUT":          "2m",
		"API_STORAGE_DRIVER":               "memory",
		"API_EVENTS_ENABLED":               "true",
		"API_EVENTS_PROJECT_ID":            "orders-events",
		"API_EVENTS_ORDER_TOPIC":           "orders-out",
		"API_EVENTS_INVENTORY_TOPIC":       "inventory-out",
		"API_SCHEDULER_ENABLED":            "false",
		"API_SCHEDULER_PROMOTION_INTERVAL": "90s",
	}

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Storage.Driver != StorageDriverMemory {
		t.Errorf("expected memory driver, got %s", cfg.Storage.Driver)
	}
	if !cfg.Events.Enabled {
		t.Error("expected events enabled")
	}
	if cfg.Events.ProjectID != "orders-events" {
		t.Errorf("unexpected events project %s", cfg.Events.ProjectID)
	}
	if cfg.Events.OrderTopic != "orders-out" || cfg.Events.InventoryTopic != "inventory-out" {
		t.Errorf("unexpected topics %s / %s", cfg.Events.OrderTopic, cfg.Events.InventoryTopic)
	}
	if cfg.Scheduler.Enabled {
		t.Error("expected scheduler disabled")
	}
	if cfg.Scheduler.PromotionInterval != 90*time.Second {
		t.Errorf("unexpected promotion interval %s", cfg.Scheduler.PromotionInterval)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_SERVER_PORT=7070\nAPI_STORAGE_DRIVER=memory\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Storage.Driver != StorageDriverMemory {
		t.Errorf("expected driver from dotenv, got %s", cfg.Storage.Driver)
	}
}

func TestLoadMissingFirestoreProject(t *testing.T) {
	_, err := Load(WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if fields := verr.Fields(); len(fields) != 1 || fields[0] != "Firestore.ProjectID" {
		t.Fatalf("unexpected missing fields %v", fields)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	env := map[string]string{
		"API_STORAGE_DRIVER": "postgres",
	}
	_, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestLoadEventsRequireTopics(t *testing.T) {
	env := map[string]string{
		"API_STORAGE_DRIVER":         "memory",
		"API_EVENTS_ENABLED":         "true",
		"API_EVENTS_ORDER_TOPIC":     "",
		"API_EVENTS_INVENTORY_TOPIC": "",
	}
	_, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error for events without project, got nil")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}
