package services

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// fileStem returns the base name of path without its extension. Output
// artifacts are named after it.
func fileStem(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// stemClashes maps every path whose stem was already claimed by an earlier
// path in the list to that earlier file's name. Stems compare ignoring case
// so the result does not depend on the filesystem.
func stemClashes(paths []string) map[string]string {
	owners := make(map[string]string, len(paths))
	clashes := make(map[string]string)
	for _, p := range paths {
		key := strings.ToLower(fileStem(p))
		if owner, ok := owners[key]; ok {
			clashes[p] = owner
			continue
		}
		owners[key] = filepath.Base(p)
	}
	return clashes
}

func errStemTaken(name, owner string) error {
	return fmt.Errorf("%w: %s has the same output name as %s", domain.ErrAlreadyExists, name, owner)
}
