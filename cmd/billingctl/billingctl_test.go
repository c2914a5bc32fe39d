package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "billing.db"))
	t.Setenv("DB_RETRIES", "1")
	t.Setenv("LOG_OUTPUT", "stderr")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestNumberNextPeek(t *testing.T) {
	out, err := runCLI(t, "number", "next", "invoice", "--peek")
	if err != nil {
		t.Fatalf("number next: %v", err)
	}
	var res struct {
		Success bool   `json:"success"`
		Data    string `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if !res.Success || !strings.HasPrefix(res.Data, "INV-") || !strings.HasSuffix(res.Data, "-0001") {
		t.Fatalf("unexpected output %+v", res)
	}
}

func TestRecurringRunOnEmptyDatabase(t *testing.T) {
	out, err := runCLI(t, "recurring", "run", "--at", "2025-03-31")
	if err != nil {
		t.Fatalf("recurring run: %v", err)
	}
	if !strings.Contains(out, `"overdue": 0`) {
		t.Fatalf("unexpected output %s", out)
	}
}

func TestRecurringGenerateRejectsBadID(t *testing.T) {
	if _, err := runCLI(t, "recurring", "generate", "abc"); err == nil {
		t.Fatalf("expected error for non numeric id")
	}
}
