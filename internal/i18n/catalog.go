// Package i18n loads translation catalogs, tracks the active locale and
// derives its text direction.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
)

//go:embed locales/*.json
var embedded embed.FS

// Catalog holds the translated strings of one locale.
type Catalog map[string]string

// Loader fetches the catalog of a locale.
type Loader interface {
	LoadCatalog(ctx context.Context, code string) (Catalog, error)
}

// FSLoader reads <code>.json files from a file system.
type FSLoader struct {
	FS fs.FS
}

// EmbeddedLoader returns a loader over the catalogs compiled into the binary.
func EmbeddedLoader() FSLoader {
	sub, err := fs.Sub(embedded, "locales")
	if err != nil {
		panic(err)
	}
	return FSLoader{FS: sub}
}

// LoadCatalog implements Loader.
func (l FSLoader) LoadCatalog(ctx context.Context, code string) (Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if code == "" || strings.ContainsAny(code, `/\`) || strings.Contains(code, "..") {
		return nil, fmt.Errorf("invalid locale code %q", code)
	}
	data, err := fs.ReadFile(l.FS, code+".json")
	if err != nil {
		return nil, err
	}
	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse %s.json: %w", code, err)
	}
	return cat, nil
}
