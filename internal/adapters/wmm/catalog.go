package wmm

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/samirrijal/magvar/internal/core/domain"
	"github.com/samirrijal/magvar/internal/core/ports"
)

//go:embed WMM2010.COF
var embedded embed.FS

// Catalog implements ports.ModelCatalog. Models are cached per epoch, so
// repeated batches share one instance; resolution is idempotent and safe to
// call from concurrent workers.
type Catalog struct {
	dir string

	mu     sync.RWMutex
	models map[int]*Model
}

// NewCatalog creates a catalog. dir may point at a directory of COF files
// for epochs beyond the embedded set; empty means embedded only.
func NewCatalog(dir string) *Catalog {
	return &Catalog{dir: dir, models: make(map[int]*Model)}
}

// Resolve returns the model whose five-year window contains year, building
// and caching it on first use. Years with no backing coefficient resource
// fail with domain.ErrModelNotFound.
func (c *Catalog) Resolve(year int) (ports.GeomagneticModel, error) {
	epoch := year - year%5

	c.mu.RLock()
	m := c.models[epoch]
	c.mu.RUnlock()
	if m != nil {
		return m, nil
	}

	m, err := c.Load(epoch)
	if err != nil {
		if errors.Is(err, domain.ErrResourceNotFound) {
			return nil, fmt.Errorf("year %d: %w", year, domain.ErrModelNotFound)
		}
		return nil, err
	}

	c.mu.Lock()
	if cached, ok := c.models[epoch]; ok {
		m = cached
	} else {
		c.models[epoch] = m
	}
	c.mu.Unlock()
	return m, nil
}

// Load builds the model for an exact epoch year, bypassing the cache. The
// coefficient directory wins over the embedded copy, letting operators ship
// updated epochs without a rebuild.
func (c *Catalog) Load(epoch int) (*Model, error) {
	name := fmt.Sprintf("WMM%d.COF", epoch)

	data, err := c.read(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, domain.ErrResourceNotFound)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	coef, err := parseCOF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return newModel(coef), nil
}

func (c *Catalog) read(name string) ([]byte, error) {
	if c.dir != "" {
		data, err := os.ReadFile(filepath.Join(c.dir, name))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return embedded.ReadFile(name)
}
