package db

import (
	"context"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/diewo77/go-billing/internal/config"
	"github.com/diewo77/go-billing/internal/models"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Load()
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSNOverride = ""
	cfg.Database.Path = filepath.Join(t.TempDir(), "billing.db")
	cfg.Database.Retries = 1
	cfg.App.Migrations = false
	cfg.App.AdminEmail = "admin@example.com"
	cfg.App.AdminPassword = "s3cret-pass"
	return cfg
}

func TestOpenMigrateSeedIdempotent(t *testing.T) {
	cfg := testConfig(t)
	conn, err := Open(context.Background(), cfg.Database)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := Migrate(conn, cfg); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := Seed(conn, cfg); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Simulate usage, then seed again: counters must survive.
	if err := conn.Model(&models.NumberSequence{}).Where("kind = ?", "invoice").Update("counter", 42).Error; err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := Seed(conn, cfg); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	var seqCount, userCount int64
	conn.Model(&models.NumberSequence{}).Count(&seqCount)
	conn.Model(&models.User{}).Count(&userCount)
	if seqCount != 3 || userCount != 1 {
		t.Fatalf("expected 3 sequences and 1 user, got %d and %d", seqCount, userCount)
	}
	var inv models.NumberSequence
	conn.Where("kind = ?", "invoice").First(&inv)
	if inv.Counter != 42 || inv.Prefix != "INV" || !inv.YearResetEnabled {
		t.Fatalf("invoice sequence altered: %+v", inv)
	}
	var cus models.NumberSequence
	conn.Where("kind = ?", "customer").First(&cus)
	if cus.Padding != 6 || cus.YearResetEnabled {
		t.Fatalf("unexpected customer sequence: %+v", cus)
	}

	var admin models.User
	conn.First(&admin)
	if bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte("s3cret-pass")) != nil {
		t.Fatal("admin password not hashed with bcrypt")
	}
}

func TestSeedSkipsAdminWithoutPassword(t *testing.T) {
	cfg := testConfig(t)
	cfg.App.AdminPassword = ""
	conn, err := Open(context.Background(), cfg.Database)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := Migrate(conn, cfg); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := Seed(conn, cfg); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var n int64
	conn.Model(&models.User{}).Count(&n)
	if n != 0 {
		t.Fatalf("expected no users, got %d", n)
	}
}

func TestMaskDSN(t *testing.T) {
	cases := map[string]string{
		"host=db user=u password=secret dbname=b": "host=db user=u password=*** dbname=b",
		"postgres://u:secret@db:5432/b":           "postgres://u:***@db:5432/b",
	}
	for in, want := range cases {
		if got := MaskDSN(in); got != want {
			t.Fatalf("MaskDSN(%q) = %q, want %q", in, got, want)
		}
	}
}
