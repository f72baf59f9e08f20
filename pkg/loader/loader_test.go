package loader

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ankha-lang/ankhavm/pkg/ast"
)

// mapProvider is an in-memory ContentProvider over a fixed fileset, the
// simplest backing a test (or an embed.FS-based host) can use.
type mapProvider map[string][]byte

func (m mapProvider) ReadFile(p string) ([]byte, error) {
	data, ok := m[p]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", p)
	}
	return data, nil
}

// stubParse uses a file's whole content as its single module's name and
// takes its dependency list from deps, keyed by the file's path, so tests
// can exercise dependency resolution without a real parser.
func stubParse(deps map[string][]string) Parse {
	return func(p string, data []byte) (ast.File, error) {
		return ast.File{
			Modules:      []ast.Module{{Name: string(data)}},
			Dependencies: deps[p],
		}, nil
	}
}

func TestLoadResolvesRelativeDependencies(t *testing.T) {
	provider := mapProvider{
		"root.ankha":        []byte("root"),
		"lib/helpers.ankha": []byte("helpers"),
	}
	deps := map[string][]string{
		"root.ankha": {"lib/helpers.ankha"},
	}

	l := New(provider, stubParse(deps))
	files, err := l.Load("root.ankha")
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Contains(t, files, "root.ankha")
	require.Contains(t, files, "lib/helpers.ankha")
}

func TestLoadDedupesDiamondDependency(t *testing.T) {
	provider := mapProvider{
		"root.ankha": []byte("root"),
		"a.ankha":    []byte("a"),
		"b.ankha":    []byte("b"),
		"shared.ankha": []byte("shared"),
	}
	loadCount := 0
	deps := map[string][]string{
		"root.ankha": {"a.ankha", "b.ankha"},
		"a.ankha":    {"shared.ankha"},
		"b.ankha":    {"shared.ankha"},
	}
	parse := func(p string, data []byte) (ast.File, error) {
		if p == "shared.ankha" {
			loadCount++
		}
		return ast.File{Modules: []ast.Module{{Name: string(data)}}, Dependencies: deps[p]}, nil
	}

	l := New(provider, parse)
	files, err := l.Load("root.ankha")
	require.NoError(t, err)
	require.Len(t, files, 4)
	require.Equal(t, 1, loadCount, "shared.ankha must be read/parsed exactly once despite two dependents")
}

func TestLoadResolvesNestedRelativePath(t *testing.T) {
	provider := mapProvider{
		"pkg/root.ankha":      []byte("root"),
		"pkg/sub/leaf.ankha":  []byte("leaf"),
	}
	deps := map[string][]string{
		"pkg/root.ankha": {"sub/leaf.ankha"},
	}

	l := New(provider, stubParse(deps))
	files, err := l.Load("pkg/root.ankha")
	require.NoError(t, err)
	require.Contains(t, files, "pkg/sub/leaf.ankha")
}

func TestLoadFailsLoudlyOnUnreadableDependency(t *testing.T) {
	provider := mapProvider{"root.ankha": []byte("root")}
	deps := map[string][]string{"root.ankha": {"missing.ankha"}}

	l := New(provider, stubParse(deps))
	_, err := l.Load("root.ankha")
	require.Error(t, err)
}

func TestLoadToleratesDependencyCycle(t *testing.T) {
	provider := mapProvider{
		"a.ankha": []byte("a"),
		"b.ankha": []byte("b"),
	}
	deps := map[string][]string{
		"a.ankha": {"b.ankha"},
		"b.ankha": {"a.ankha"},
	}

	l := New(provider, stubParse(deps))
	files, err := l.Load("a.ankha")
	require.NoError(t, err)
	require.Len(t, files, 2)
}
