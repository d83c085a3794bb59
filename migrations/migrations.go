// Package migrations carries the embedded SQL shipped with the binary:
// the public registry bootstrap and the versioned per-tenant migration
// files. Tenant files contain the {{SCHEMA_NAME}} token that the migration
// runner substitutes with the target schema before execution.
package migrations

import (
	"embed"
	"io/fs"
	"sort"
)

//go:embed public/*.sql tenant/*.sql
var files embed.FS

// File is one embedded SQL file.
type File struct {
	Filename string
	SQL      string
}

// Public returns the public-schema bootstrap files in filename order.
func Public() ([]File, error) {
	return read("public")
}

// Tenant returns the versioned per-tenant migration files in filename
// order. Filename order is apply order: names carry a zero-padded numeric
// prefix.
func Tenant() ([]File, error) {
	return read("tenant")
}

func read(dir string) ([]File, error) {
	entries, err := fs.ReadDir(files, dir)
	if err != nil {
		return nil, err
	}

	out := make([]File, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		body, err := files.ReadFile(dir + "/" + e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, File{Filename: e.Name(), SQL: string(body)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}
