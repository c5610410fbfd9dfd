// Package osexitmain reports direct os.Exit calls inside main.main.
// Exiting from the middle of main skips deferred cleanup; binaries should
// funnel their exit code through a run function instead.
package osexitmain

import (
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer flags os.Exit calls made directly from the main function of
// package main. Calls inside function literals are not reported.
var Analyzer = &analysis.Analyzer{
	Name:     "osexitmain",
	Doc:      "reports direct os.Exit calls in main.main",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (any, error) {
	if pass.Pkg == nil || pass.Pkg.Name() != "main" {
		return nil, nil
	}

	insp, ok := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	if !ok {
		return nil, nil
	}

	filter := []ast.Node{(*ast.CallExpr)(nil)}
	insp.WithStack(filter, func(n ast.Node, push bool, stack []ast.Node) bool {
		if !push {
			return true
		}
		call, ok := n.(*ast.CallExpr)
		if !ok || !isOSExit(pass.TypesInfo, call) {
			return true
		}
		if enclosedByMain(stack) {
			pass.Reportf(call.Pos(), "os.Exit called directly in main; return an exit code from a run function instead")
		}
		return true
	})

	return nil, nil
}

// enclosedByMain reports whether the innermost enclosing function on the
// stack is the top-level main function.
func enclosedByMain(stack []ast.Node) bool {
	for i := len(stack) - 1; i >= 0; i-- {
		switch fn := stack[i].(type) {
		case *ast.FuncLit:
			return false
		case *ast.FuncDecl:
			return fn.Recv == nil && fn.Name != nil && fn.Name.Name == "main"
		}
	}
	return false
}

func isOSExit(info *types.Info, call *ast.CallExpr) bool {
	if info == nil {
		return false
	}
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel == nil {
		return false
	}
	fn, ok := info.Uses[sel.Sel].(*types.Func)
	if !ok || fn.Pkg() == nil {
		return false
	}
	return fn.Pkg().Path() == "os" && fn.Name() == "Exit"
}
