// SPDX-License-Identifier: MIT

package log

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

// loggerConstructors return a zerolog.Logger by value.
var loggerConstructors = map[string]bool{
	"WithContext":              true,
	"WithComponent":            true,
	"WithComponentFromContext": true,
	"WithTraceContext":         true,
	"Base":                     true,
	"Derive":                   true,
}

// levelMethods have pointer receivers on zerolog.Logger.
var levelMethods = map[string]bool{
	"Trace": true, "Debug": true, "Info": true, "Warn": true, "Error": true,
	"Err": true, "Fatal": true, "Panic": true, "WithLevel": true, "Log": true,
}

// TestNoLevelCallsOnReturnedLogger rejects log.WithContext(...).Info() and
// friends: a returned Logger is not addressable, so the call does not
// compile. Bind the logger to a variable first.
func TestNoLevelCallsOnReturnedLogger(t *testing.T) {
	repoRoot := filepath.Clean(filepath.Join("..", ".."))
	fset := token.NewFileSet()
	var violations []string

	for _, root := range []string{filepath.Join(repoRoot, "internal"), filepath.Join(repoRoot, "cmd")} {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if d.Name() == "_examples" || d.Name() == "vendor" {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(path, ".go") {
				return nil
			}
			file, parseErr := parser.ParseFile(fset, path, nil, 0)
			if parseErr != nil {
				return parseErr
			}
			ast.Inspect(file, func(n ast.Node) bool {
				sel, ok := n.(*ast.SelectorExpr)
				if !ok || !levelMethods[sel.Sel.Name] {
					return true
				}
				call, ok := sel.X.(*ast.CallExpr)
				if !ok {
					return true
				}
				var name string
				switch fn := call.Fun.(type) {
				case *ast.Ident:
					name = fn.Name
				case *ast.SelectorExpr:
					name = fn.Sel.Name
				}
				if loggerConstructors[name] {
					violations = append(violations, fset.Position(sel.Pos()).String())
				}
				return true
			})
			return nil
		})
		if err != nil {
			t.Fatalf("scan %s: %v", root, err)
		}
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		t.Fatalf("level method called on a returned logger:\n%s", strings.Join(violations, "\n"))
	}
}
