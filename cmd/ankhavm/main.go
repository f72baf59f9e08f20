// Command ankhavm is a minimal host for the ankhavm scripting runtime: it
// loads a package from disk, installs the core types and standard library,
// compiles every file into a live registry, invokes one named function with
// CLI-supplied arguments, and prints the result — or the fatal abort.
//
// Grounded on the teacher's main.go (flag.Parse, read file or report error
// to stderr, os.Exit(1) on failure) narrowed from purple_go's
// compile/interpret/REPL modes down to this runtime's single
// install -> compile -> invoke -> print pipeline.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ankha-lang/ankhavm/pkg/ankhaconfig"
	"github.com/ankha-lang/ankhavm/pkg/ankhalog"
	"github.com/ankha-lang/ankhavm/pkg/ast"
	"github.com/ankha-lang/ankhavm/pkg/compiler"
	"github.com/ankha-lang/ankhavm/pkg/loader"
	"github.com/ankha-lang/ankhavm/pkg/registry"
	"github.com/ankha-lang/ankhavm/pkg/stdlib"
	"github.com/ankha-lang/ankhavm/pkg/value"
	"github.com/ankha-lang/ankhavm/pkg/vm"
	"github.com/ankha-lang/ankhavm/pkg/vmcontext"
)

type argList []string

func (a *argList) String() string { return strings.Join(*a, ",") }
func (a *argList) Set(v string) error {
	*a = append(*a, v)
	return nil
}

func main() {
	var (
		pkgPath  = flag.String("pkg", "", "path to the package's root file (JSON AST)")
		fnName   = flag.String("fn", "", "qualified function to invoke, e.g. math::add")
		verbose  = flag.Bool("v", false, "enable debug logging")
		stackCap = flag.Int("stack-capacity", 0, "initial data stack capacity (0 = default)")
		regCap   = flag.Int("register-capacity", 0, "initial register capacity (0 = default)")
	)
	var args argList
	flag.Var(&args, "arg", "an argument to the invoked function, as Type:value (repeatable)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "ankhavm - embeddable stack VM host\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s -pkg file.json -fn module::function [-arg Type:value ...]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *pkgPath == "" || *fnName == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*pkgPath, *fnName, args, *verbose, *stackCap, *regCap); err != nil {
		fmt.Fprintf(os.Stderr, "ankhavm: %v\n", err)
		os.Exit(1)
	}
}

func run(pkgPath, fnName string, rawArgs argList, verbose bool, stackCap, regCap int) error {
	reg := registry.New()
	if _, err := value.InstallCoreTypes(reg.Types); err != nil {
		return fmt.Errorf("installing core types: %w", err)
	}
	vm.Install(reg)
	if err := stdlib.Install(reg); err != nil {
		return fmt.Errorf("installing standard library: %w", err)
	}

	files, err := loadPackage(pkgPath)
	if err != nil {
		return fmt.Errorf("loading package: %w", err)
	}
	if err := compiler.New(reg).CompilePackage(files); err != nil {
		return fmt.Errorf("compiling package: %w", err)
	}

	callArgs, err := parseArgs(reg, rawArgs)
	if err != nil {
		return fmt.Errorf("parsing arguments: %w", err)
	}

	level := logrus.InfoLevel
	if verbose {
		level = logrus.DebugLevel
	}
	log := ankhalog.New(level)

	opts := []ankhaconfig.Option{}
	if stackCap > 0 {
		opts = append(opts, ankhaconfig.WithStackCapacity(stackCap))
	}
	if regCap > 0 {
		opts = append(opts, ankhaconfig.WithRegisterCapacity(regCap))
	}
	ctx := vmcontext.New(reg, log, ankhaconfig.Default(opts...))

	outputs, err := vm.Invoke(ctx, reg, fnName, callArgs)
	if err != nil {
		return fmt.Errorf("invoking %s: %w", fnName, err)
	}

	for i, out := range outputs {
		fmt.Printf("[%d] %s\n", i, formatValue(out))
	}
	return nil
}

// loadPackage reads pkgPath and every file it transitively depends on,
// following the package-loader contract (pkg/loader): sanitize, resolve
// relative to the dependant, dedupe by path, fail loudly.
func loadPackage(pkgPath string) ([]ast.File, error) {
	l := loader.New(osProvider{}, ast.DecodeFile)
	byPath, err := l.Load(pkgPath)
	if err != nil {
		return nil, err
	}
	files := make([]ast.File, 0, len(byPath))
	for _, f := range byPath {
		files = append(files, f)
	}
	return files, nil
}

type osProvider struct{}

func (osProvider) ReadFile(sanitizedPath string) ([]byte, error) {
	return os.ReadFile(filepath.FromSlash(sanitizedPath))
}

// parseArgs turns a list of "Type:value" flag strings into managed values
// matching buildLiteral's primitive -> payload conversion (pkg/vm/literal.go),
// re-expressed here so the host doesn't need an unexported vm helper.
func parseArgs(reg *registry.Registry, raw argList) ([]value.Value, error) {
	out := make([]value.Value, 0, len(raw))
	for _, a := range raw {
		parts := strings.SplitN(a, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("argument %q must be Type:value", a)
		}
		typeName, text := parts[0], parts[1]
		h, ok := reg.Types.ByQualifiedName(typeName)
		if !ok {
			return nil, fmt.Errorf("argument %q: unknown primitive type %q", a, typeName)
		}
		payload, err := parseLiteral(value.PrimitiveName(typeName), text)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", a, err)
		}
		out = append(out, value.NewOwned(h, payload))
	}
	return out, nil
}

func parseLiteral(prim value.PrimitiveName, text string) (any, error) {
	switch prim {
	case value.Unit:
		return struct{}{}, nil
	case value.Bool:
		return strconv.ParseBool(text)
	case value.I8, value.I16, value.I32, value.I64, value.Isize:
		return strconv.ParseInt(text, 10, 64)
	case value.U8, value.U16, value.U32, value.U64, value.Usize:
		return strconv.ParseUint(text, 10, 64)
	case value.F32:
		f, err := strconv.ParseFloat(text, 32)
		return float32(f), err
	case value.F64:
		return strconv.ParseFloat(text, 64)
	case value.Char:
		r := []rune(text)
		if len(r) != 1 {
			return nil, fmt.Errorf("expected exactly one rune, got %q", text)
		}
		return r[0], nil
	case value.String:
		return text, nil
	default:
		return nil, fmt.Errorf("unsupported primitive %q for a CLI argument", prim)
	}
}

// formatValue renders a result value for the host's stdout — informational
// only, same spirit as the teacher's printing of computed results.
func formatValue(v value.Value) string {
	h := v.TypeHandle()
	name := "?"
	if h != nil {
		name = h.Name
	}
	var payload any
	switch t := v.(type) {
	case *value.Owned:
		payload = t.Slot.Data
	case *value.Ref:
		payload = t.Slot.Data
	case *value.RefMut:
		payload = t.Slot.Data
	case *value.Lazy:
		payload = t.Slot.Data
	default:
		payload = nil
	}
	return fmt.Sprintf("%s(%s) = %v", name, v.Kind(), payload)
}
