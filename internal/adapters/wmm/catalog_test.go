package wmm

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/samirrijal/magvar/internal/core/domain"
)

func TestCatalog_ResolveSharesOneModel(t *testing.T) {
	c := NewCatalog("")

	a, err := c.Resolve(2010)
	if err != nil {
		t.Fatalf("resolve 2010: %v", err)
	}
	b, err := c.Resolve(2013)
	if err != nil {
		t.Fatalf("resolve 2013: %v", err)
	}
	if a != b {
		t.Error("2013 should reuse the cached 2010-epoch model")
	}
}

func TestCatalog_UnknownEpoch(t *testing.T) {
	c := NewCatalog("")

	_, err := c.Resolve(1995)
	if !errors.Is(err, domain.ErrModelNotFound) {
		t.Fatalf("want ErrModelNotFound, got %v", err)
	}
}

func TestCatalog_LoadMissingResource(t *testing.T) {
	c := NewCatalog("")

	_, err := c.Load(2015)
	if !errors.Is(err, domain.ErrResourceNotFound) {
		t.Fatalf("want ErrResourceNotFound, got %v", err)
	}
}

func TestCatalog_DirectoryOverridesEmbedded(t *testing.T) {
	dir := t.TempDir()
	cof := "2015.0 WMM-2015 12/15/2014\n" +
		"1 0 -29438.5 0.0 10.7 0.0\n" +
		"1 1 -1501.1 4796.2 17.9 -26.8\n" +
		"999999999999999999999999999999999999999999999999\n"
	if err := os.WriteFile(filepath.Join(dir, "WMM2015.COF"), []byte(cof), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewCatalog(dir)

	m, err := c.Resolve(2016)
	if err != nil {
		t.Fatalf("resolve 2016 from directory: %v", err)
	}
	if m.Name() != "WMM-2015" {
		t.Errorf("Name = %q, want WMM-2015", m.Name())
	}
	if m.Epoch() != 2015.0 {
		t.Errorf("Epoch = %f", m.Epoch())
	}

	// embedded epochs keep working alongside the directory
	if _, err := c.Resolve(2012); err != nil {
		t.Errorf("embedded 2010 epoch broken by directory catalog: %v", err)
	}
}
