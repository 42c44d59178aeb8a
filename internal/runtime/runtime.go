package runtime

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/phpindex/internal/logging"
	"github.com/jward/phpindex/internal/store"
)

// Runtime embeds a Risor VM and exposes tree-sitter, lexer and index host
// functions to user scripts.
type Runtime struct {
	storage    store.Storage
	scriptsDir string
	fsys       fs.FS
	syntax     *syntaxTrees
	logger     *slog.Logger
	out        io.Writer
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithLogger sets the logger behind the scripts' log global.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// WithOutput sets where the scripts' emit global writes. Defaults to
// standard output.
func WithOutput(w io.Writer) RuntimeOption {
	return func(r *Runtime) {
		r.out = w
	}
}

// NewRuntime creates a Runtime over the given index and scripts directory.
// s may be nil, in which case only the parsing globals are available.
func NewRuntime(s store.Storage, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		storage:    s,
		scriptsDir: scriptsDir,
		syntax:     newSyntaxTrees(),
		out:        os.Stdout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.Default("script")
	}
	return r
}

// RunScript loads and executes a Risor script with all standard globals
// plus any extra globals provided by the caller.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) error {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source code directly with all standard globals
// plus any extra globals.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) error {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) error {
	globals := r.buildGlobals(extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	_, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on that filesystem.
// Otherwise, uses os.ReadFile with scriptsDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"parse":        r.syntax.makeParseFn(),
		"parse_src":    r.syntax.makeParseSrcFn(),
		"node_text":    r.syntax.makeNodeTextFn(),
		"node_child":   makeNodeChildFn(),
		"node_pos":     makeNodePosFn(),
		"query":        r.syntax.makeQueryFn(),
		"tokenize":     makeTokenizeFn(),
		"declarations": makeDeclarationsFn(),
		"emit":         makeEmitFn(r.out),
		"log":          mustProxy(&logObject{logger: r.logger}),
		"builtin_path": store.BuiltinPath,
	}

	// Index lookups. Risor cannot hold the Go records usefully, so each
	// function hands back maps of primitive values.
	if r.storage != nil {
		globals["files"] = makeFilesFn(r.storage)
		globals["class"] = makeClassFn(r.storage)
		globals["class_parent"] = makeClassParentFn(r.storage)
		globals["class_children"] = makeClassChildrenFn(r.storage)
		globals["class_interfaces"] = makeClassNamesFn("class_interfaces", r.storage.ClassInterfaces)
		globals["class_traits"] = makeClassNamesFn("class_traits", r.storage.ClassTraits)
		globals["class_methods"] = makeClassMethodsFn(r.storage)
		globals["class_members"] = makeClassMembersFn(r.storage)
		globals["class_constants"] = makeClassConstantsFn(r.storage)
		globals["classes"] = makeClassesFn(r.storage)
		globals["functions"] = makeFunctionsFn(r.storage)
		globals["constants"] = makeConstantsFn(r.storage)
		globals["uses_of"] = makeUsesOfFn(r.storage)
		globals["uses_by_file"] = makeUsesByFileFn(r.storage)
		globals["search"] = makeSearchFn(r.storage)
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
