// Package assets loads building asset definitions from asset.json files
// under an assets root and resolves zone categories to concrete assets.
package assets

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
)

// AssetID is the stable 32-bit identity of an asset, derived from its
// string id with FNV-1a. 0 means "no asset".
type AssetID uint32

// FallbackIDStr names the built-in cube used when a category has no
// registered default or the default's files are missing.
const FallbackIDStr = "builtin.cube_house"

// Def describes one placeable asset.
type Def struct {
	IDStr        string
	ID           AssetID
	Type         string
	Category     string
	MeshRelPath  string
	DefaultScale [3]float64
	FootprintM   [2]float64
	PivotM       [3]float64
	Tags         []string
}

// assetFile mirrors the on-disk asset.json schema.
type assetFile struct {
	Version      *int      `json:"version"`
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Category     string    `json:"category"`
	Mesh         *string   `json:"mesh"`
	DefaultScale []float64 `json:"defaultScale"`
	FootprintM   []float64 `json:"footprintM"`
	PivotM       []float64 `json:"pivotM"`
	Tags         []string  `json:"tags"`
}

// Catalog holds every registered asset plus per-category defaults.
type Catalog struct {
	byID       map[AssetID]*Def
	byStr      map[string]AssetID
	byCategory map[string]string
	fallbackID AssetID
	root       string
}

// HashID computes the FNV-1a 32-bit hash of an asset id string.
func HashID(idStr string) AssetID {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(idStr); i++ {
		h ^= uint32(idStr[i])
		h *= fnvPrime
	}
	return AssetID(h)
}

// NewCatalog returns a catalog seeded with only the builtin defaults.
func NewCatalog() *Catalog {
	c := &Catalog{
		byID:       make(map[AssetID]*Def),
		byStr:      make(map[string]AssetID),
		byCategory: make(map[string]string),
	}
	c.registerBuiltins()
	return c
}

// Register adds a definition, rejecting empty ids and hash collisions.
func (c *Catalog) Register(def Def) error {
	if def.IDStr == "" {
		return fmt.Errorf("asset id must not be empty")
	}
	if def.ID == 0 {
		def.ID = HashID(def.IDStr)
	}
	if _, exists := c.byID[def.ID]; exists {
		return fmt.Errorf("duplicate asset id %q", def.IDStr)
	}
	stored := def
	c.byID[def.ID] = &stored
	c.byStr[def.IDStr] = def.ID
	return nil
}

func (c *Catalog) registerBuiltins() {
	c.byCategory["low_density"] = "buildings.house_low_01"

	fallback := Def{
		IDStr:        FallbackIDStr,
		Type:         "building",
		Category:     "fallback",
		DefaultScale: [3]float64{1, 1, 1},
		FootprintM:   [2]float64{1, 1},
		Tags:         []string{"fallback"},
	}
	// Cannot collide: the map is empty when builtins register.
	_ = c.Register(fallback)
	c.fallbackID = HashID(FallbackIDStr)
}

// SetCategoryDefault maps a zone category to an asset id string.
func (c *Catalog) SetCategoryDefault(category, idStr string) {
	c.byCategory[category] = idStr
}

// LoadAll resets the catalog and scans assetsRoot recursively for
// asset.json files. Malformed files are logged and skipped. Returns an
// error only when the root itself is unusable; a catalog that loaded
// nothing still serves the builtin fallback.
func (c *Catalog) LoadAll(assetsRoot string) error {
	c.byID = make(map[AssetID]*Def)
	c.byStr = make(map[string]AssetID)
	c.byCategory = make(map[string]string)
	c.fallbackID = 0
	c.root = assetsRoot
	c.registerBuiltins()

	if _, err := os.Stat(assetsRoot); err != nil {
		return fmt.Errorf("assets root %s: %w", assetsRoot, err)
	}

	loaded := 0
	err := filepath.WalkDir(assetsRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Printf("[Assets] Scan error at %s: %v", path, err)
			return nil
		}
		if d.IsDir() || d.Name() != "asset.json" {
			return nil
		}
		def, perr := parseAssetFile(path)
		if perr != nil {
			log.Printf("[Assets] Skipping %s: %v", path, perr)
			return nil
		}
		if rerr := c.Register(def); rerr != nil {
			log.Printf("[Assets] Skipping %s: %v", path, rerr)
			return nil
		}
		loaded++
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning assets root: %w", err)
	}
	log.Printf("[Assets] Loaded %d asset definition(s) from %s", loaded, assetsRoot)
	return nil
}

func parseAssetFile(path string) (Def, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Def{}, fmt.Errorf("reading file: %w", err)
	}
	var raw assetFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return Def{}, fmt.Errorf("parsing json: %w", err)
	}
	if raw.Version == nil || raw.ID == "" || raw.Type == "" || raw.Mesh == nil {
		return Def{}, fmt.Errorf("missing required fields (version, id, type, mesh)")
	}
	def := Def{
		IDStr:        raw.ID,
		ID:           HashID(raw.ID),
		Type:         raw.Type,
		Category:     raw.Category,
		MeshRelPath:  *raw.Mesh,
		DefaultScale: [3]float64{1, 1, 1},
		FootprintM:   [2]float64{1, 1},
		Tags:         raw.Tags,
	}
	if len(raw.DefaultScale) == 3 {
		copy(def.DefaultScale[:], raw.DefaultScale)
	}
	if len(raw.FootprintM) == 2 {
		copy(def.FootprintM[:], raw.FootprintM)
	}
	if len(raw.PivotM) == 3 {
		copy(def.PivotM[:], raw.PivotM)
	}
	return def, nil
}

// Find returns the definition for an id, or nil.
func (c *Catalog) Find(id AssetID) *Def {
	return c.byID[id]
}

// FindIDByString resolves a string id to its numeric id, 0 if unknown.
func (c *Catalog) FindIDByString(idStr string) AssetID {
	return c.byStr[idStr]
}

// FallbackID returns the builtin cube's id.
func (c *Catalog) FallbackID() AssetID { return c.fallbackID }

// ResolveCategoryAsset maps a zone category to its default asset,
// falling back to the builtin cube when the default is unregistered.
func (c *Catalog) ResolveCategoryAsset(category string) AssetID {
	if idStr, ok := c.byCategory[category]; ok {
		id := HashID(idStr)
		if _, exists := c.byID[id]; exists {
			return id
		}
	}
	return c.fallbackID
}
