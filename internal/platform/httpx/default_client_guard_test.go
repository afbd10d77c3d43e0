// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpx

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// implicitDefaultClient lists net/http helpers that go through http.DefaultClient.
var implicitDefaultClient = map[string]bool{
	"DefaultClient": true,
	"Get":           true,
	"Head":          true,
	"Post":          true,
	"PostForm":      true,
}

func repoRoot() string {
	return filepath.Clean(filepath.Join("..", "..", ".."))
}

func parseGoFiles(t *testing.T, root string, visit func(path string, file *ast.File, fset *token.FileSet)) {
	t.Helper()
	fset := token.NewFileSet()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); name == "vendor" || name == ".git" || strings.HasPrefix(name, "_") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		file, parseErr := parser.ParseFile(fset, path, nil, 0)
		if parseErr != nil {
			return parseErr
		}
		visit(path, file, fset)
		return nil
	})
	if err != nil {
		t.Fatalf("scan %s: %v", root, err)
	}
}

// Upstream probes and playlist fetches must use clients with explicit timeouts,
// never the zero-timeout default client.
func TestNoDefaultClientUsage(t *testing.T) {
	var violations []string
	for _, root := range []string{"internal", "cmd"} {
		parseGoFiles(t, filepath.Join(repoRoot(), root), func(_ string, file *ast.File, fset *token.FileSet) {
			ast.Inspect(file, func(n ast.Node) bool {
				sel, ok := n.(*ast.SelectorExpr)
				if !ok {
					return true
				}
				if ident, ok := sel.X.(*ast.Ident); ok && ident.Name == "http" && implicitDefaultClient[sel.Sel.Name] {
					violations = append(violations, fset.Position(sel.Pos()).String()+" http."+sel.Sel.Name)
				}
				return true
			})
		})
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		t.Fatalf("disallowed default client usage found:\n%s", strings.Join(violations, "\n"))
	}
}

// The gateway's outbound clients (resolver probes, channel playlist fetches)
// are built here so they share redirect, timeout and tracing policy.
func TestOutboundClientsBuiltByHTTPX(t *testing.T) {
	var violations []string
	parseGoFiles(t, filepath.Join(repoRoot(), "internal"), func(path string, file *ast.File, fset *token.FileSet) {
		if filepath.Base(filepath.Dir(path)) == "httpx" {
			return
		}
		ast.Inspect(file, func(n ast.Node) bool {
			lit, ok := n.(*ast.CompositeLit)
			if !ok {
				return true
			}
			sel, ok := lit.Type.(*ast.SelectorExpr)
			if !ok {
				return true
			}
			if ident, ok := sel.X.(*ast.Ident); ok && ident.Name == "http" &&
				(sel.Sel.Name == "Client" || sel.Sel.Name == "Transport") {
				violations = append(violations, fset.Position(lit.Pos()).String()+" http."+sel.Sel.Name+"{}")
			}
			return true
		})
	})

	if len(violations) > 0 {
		sort.Strings(violations)
		t.Fatalf("outbound clients must come from httpx.NewClient:\n%s", strings.Join(violations, "\n"))
	}
}
