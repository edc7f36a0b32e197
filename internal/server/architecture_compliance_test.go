package server

import (
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"testing"
)

type route struct {
	method  string
	path    string
	handler string
}

// fieldCalls maps a Server field name to the methods a handler calls on it,
// e.g. "service" -> ["Detach"] for s.service.Detach(...).
type fieldCalls map[string][]string

// layerRule pins which Server fields a class of handlers may reach.
type layerRule struct {
	name    string
	applies func(route) bool
	require string
	forbid  []string
}

var layerRules = []layerRule{
	{
		name: "record mutations go through the record service",
		applies: func(r route) bool {
			return r.method != "GET" && (strings.HasPrefix(r.path, "/vehicles") || strings.HasPrefix(r.path, "/assets"))
		},
		require: "service",
		forbid:  []string{"store", "pipeline"},
	},
	{
		name: "picture reads go through the retrieval gateway",
		applies: func(r route) bool {
			return r.method == "GET" && strings.HasSuffix(r.path, "/{id}") &&
				(strings.HasPrefix(r.path, "/objects/") || strings.Contains(r.path, "/pics/"))
		},
		require: "gateway",
		forbid:  []string{"store", "service"},
	},
	{
		name:    "reconciliation goes through the sweeper",
		applies: func(r route) bool { return strings.HasPrefix(r.path, "/admin/reconcile") },
		require: "sweeper",
		forbid:  []string{"store", "service"},
	},
}

func TestHandlersRespectLayerRules(t *testing.T) {
	routes := registeredRoutes(t)
	handlers := serverHandlers(t)

	for _, rule := range layerRules {
		matched := 0
		for _, rt := range routes {
			if !rule.applies(rt) {
				continue
			}
			matched++

			fn, ok := handlers[rt.handler]
			if !ok {
				t.Fatalf("%s: handler %q for %s %s not found", rule.name, rt.handler, rt.method, rt.path)
			}
			calls := serverFieldCalls(fn)
			for _, field := range rule.forbid {
				if len(calls[field]) > 0 {
					t.Errorf("%s: %s (%s %s) calls s.%s directly: %v", rule.name, rt.handler, rt.method, rt.path, field, calls[field])
				}
			}
			if len(calls[rule.require]) == 0 {
				t.Errorf("%s: %s (%s %s) never calls s.%s", rule.name, rt.handler, rt.method, rt.path, rule.require)
			}
		}
		if matched == 0 {
			t.Errorf("%s: no routes matched", rule.name)
		}
	}
}

func TestRegisteredRoutesHaveHandlers(t *testing.T) {
	routes := registeredRoutes(t)
	handlers := serverHandlers(t)

	seen := map[string]bool{}
	for _, rt := range routes {
		key := rt.method + " " + rt.path
		if seen[key] {
			t.Fatalf("route %s registered twice", key)
		}
		seen[key] = true
		if _, ok := handlers[rt.handler]; !ok {
			t.Fatalf("handler %q for %s not found in handlers*.go", rt.handler, key)
		}
	}
}

// registeredRoutes reads every mux.HandleFunc("METHOD /path", s.handler)
// call in routes.go.
func registeredRoutes(t *testing.T) []route {
	t.Helper()

	file := parseFile(t, filepath.Join(packageDir(t), "routes.go"))
	var routes []route
	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok || len(call.Args) != 2 {
			return true
		}
		if sel, ok := call.Fun.(*ast.SelectorExpr); !ok || sel.Sel.Name != "HandleFunc" {
			return true
		}
		lit, ok := call.Args[0].(*ast.BasicLit)
		if !ok || lit.Kind != token.STRING {
			return true
		}
		pattern, err := strconv.Unquote(lit.Value)
		if err != nil {
			t.Fatalf("unquote %s: %v", lit.Value, err)
		}
		method, path, ok := strings.Cut(pattern, " ")
		if !ok {
			t.Fatalf("route %q has no method", pattern)
		}
		recv, name, ok := receiverCall(call.Args[1])
		if !ok || recv != "s" {
			return true
		}
		routes = append(routes, route{method: method, path: strings.TrimSpace(path), handler: name})
		return true
	})

	if len(routes) == 0 {
		t.Fatal("no routes found in routes.go")
	}
	return routes
}

func serverHandlers(t *testing.T) map[string]*ast.FuncDecl {
	t.Helper()

	paths, err := filepath.Glob(filepath.Join(packageDir(t), "handlers*.go"))
	if err != nil || len(paths) == 0 {
		t.Fatalf("no handler files found: %v", err)
	}

	out := map[string]*ast.FuncDecl{}
	for _, path := range paths {
		if strings.HasSuffix(path, "_test.go") {
			continue
		}
		for _, decl := range parseFile(t, path).Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if ok && strings.HasPrefix(fn.Name.Name, "handle") && receiverType(fn) == "Server" {
				out[fn.Name.Name] = fn
			}
		}
	}
	return out
}

// serverFieldCalls collects s.<field>.<method>(...) calls in fn, closures
// included.
func serverFieldCalls(fn *ast.FuncDecl) fieldCalls {
	calls := fieldCalls{}
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		method, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if recv, field, ok := receiverCall(method.X); ok && recv == "s" {
			if !slices.Contains(calls[field], method.Sel.Name) {
				calls[field] = append(calls[field], method.Sel.Name)
			}
		}
		return true
	})
	return calls
}

// receiverCall splits an expression of the form ident.name.
func receiverCall(expr ast.Expr) (string, string, bool) {
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok {
		return "", "", false
	}
	ident, ok := sel.X.(*ast.Ident)
	if !ok {
		return "", "", false
	}
	return ident.Name, sel.Sel.Name, true
}

func receiverType(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) != 1 {
		return ""
	}
	star, ok := fn.Recv.List[0].Type.(*ast.StarExpr)
	if !ok {
		return ""
	}
	ident, ok := star.X.(*ast.Ident)
	if !ok {
		return ""
	}
	return ident.Name
}

func parseFile(t *testing.T, path string) *ast.File {
	t.Helper()
	file, err := parser.ParseFile(token.NewFileSet(), path, nil, 0)
	if err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return file
}

func packageDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Dir(file)
}
