// Package loader implements the package loader contract (spec.md §6):
// given a root path and a content provider, recursively resolve
// dependencies into a set of ast.Files keyed by sanitized path.
//
// Grounded on the teacher's main.go file-loading style (os.ReadFile,
// immediate wrapped-error-and-exit on a bad read) generalized from "read
// one file named on the command line" to "recursively read a dependency
// graph, deduping by path and failing loudly on the first bad node" — the
// parser itself is out of scope (spec.md never describes source syntax),
// so Loader takes a Parse function rather than embedding one.
package loader

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/ankha-lang/ankhavm/pkg/ankhaerr"
	"github.com/ankha-lang/ankhavm/pkg/ast"
)

// ContentProvider reads the raw source bytes at a sanitized path. A host
// backs this with a filesystem, an embedded FS, or a network fetcher —
// the loader itself never touches os directly.
type ContentProvider interface {
	ReadFile(sanitizedPath string) ([]byte, error)
}

// Parse turns one file's raw bytes into an ast.File. The caller supplies
// this (the parser is out of scope for this package); sanitizedPath is
// passed through so Parse can stamp ast.File.Path and report source
// locations in its own errors.
type Parse func(sanitizedPath string, data []byte) (ast.File, error)

// Loader recursively resolves a dependency graph into a flat, deduplicated
// set of Files.
type Loader struct {
	provider ContentProvider
	parse    Parse
}

// New creates a Loader backed by provider, using parse to turn bytes into
// an ast.File.
func New(provider ContentProvider, parse Parse) *Loader {
	return &Loader{provider: provider, parse: parse}
}

// sanitize normalizes a dependency path to the form used as the dedup key:
// slash-separated, `.`/`..` segments resolved as far as path.Clean can. An
// absolute path stays absolute and a leading `..` is kept (spec.md
// requires sanitizing "to avoid duplicate loads", not a sandbox guarantee,
// so this only canonicalizes, it does not reject `..`).
func sanitize(p string) string {
	return path.Clean(filepath.ToSlash(p))
}

// resolve turns a dependency string named inside parentPath into a
// sanitized path relative to parentPath's directory (spec.md: "resolve
// relative dependencies against the parent file's path"). parentPath ==
// "" means dep is the root path and is used as-is.
func resolve(parentPath, dep string) string {
	if parentPath == "" {
		return sanitize(dep)
	}
	if path.IsAbs(filepath.ToSlash(dep)) {
		return sanitize(dep)
	}
	return sanitize(path.Join(path.Dir(filepath.ToSlash(parentPath)), dep))
}

// Load resolves rootPath and everything it transitively depends on into a
// map keyed by sanitized path. A file is read and parsed at most once no
// matter how many dependents name it (spec.md: "deduplicate by sanitized
// path"); an unreadable file or parse failure aborts the whole load
// immediately (spec.md: "fail loudly on unreadable files or parse
// errors").
func (l *Loader) Load(rootPath string) (map[string]ast.File, error) {
	files := make(map[string]ast.File)
	if err := l.loadOne("", rootPath, files); err != nil {
		return nil, err
	}
	return files, nil
}

func (l *Loader) loadOne(parentPath, dep string, files map[string]ast.File) error {
	key := resolve(parentPath, dep)
	if _, seen := files[key]; seen {
		return nil
	}

	data, err := l.provider.ReadFile(key)
	if err != nil {
		return ankhaerr.Wrap(ankhaerr.Internal, "load_package", fmt.Errorf("reading %q: %w", key, err))
	}
	f, err := l.parse(key, data)
	if err != nil {
		return ankhaerr.Wrap(ankhaerr.Internal, "load_package", fmt.Errorf("parsing %q: %w", key, err))
	}
	f.Path = key
	// Placeholder entry guards against an infinite recursion on a
	// dependency cycle: a cyclic peer sees itself as "seen" before its
	// own dependency walk begins.
	files[key] = f

	for _, d := range f.Dependencies {
		if err := l.loadOne(key, d, files); err != nil {
			return err
		}
	}
	return nil
}
