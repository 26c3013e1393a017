// Package refactor computes the source edits that rename a step and reshape
// its parameters. It never writes files; applying the edits is left to the
// orchestrator.
package refactor

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/ormasoftchile/steprunner/pkg/schema"
)

// Compute reads the files impl was registered and declared in and returns
// the edits for req.
func Compute(impl *schema.StepImplementation, req *schema.RefactorRequest) ([]schema.Edit, error) {
	if impl == nil || impl.Source == "" {
		return nil, fmt.Errorf("implementation has no source location")
	}
	files := make(map[string][]byte)
	for _, path := range []string{impl.Source, impl.FuncSource} {
		if path == "" {
			continue
		}
		if _, ok := files[path]; ok {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		files[path] = data
	}
	return ComputeSource(files, impl, req)
}

type param struct {
	name string
	typ  string
}

// ComputeSource computes the edits against in-memory sources keyed by path.
func ComputeSource(files map[string][]byte, impl *schema.StepImplementation, req *schema.RefactorRequest) ([]schema.Edit, error) {
	if req == nil || strings.TrimSpace(req.NewStepText) == "" {
		return nil, fmt.Errorf("new step text is required")
	}
	oldText := req.OldStepText
	if oldText == "" && len(impl.Aliases) > 0 {
		oldText = impl.Aliases[0]
	}
	if oldText == "" {
		return nil, fmt.Errorf("old step text is required")
	}

	fset := token.NewFileSet()
	regFile, err := parseFile(fset, files, impl.Source)
	if err != nil {
		return nil, err
	}
	call, lit := findRegistration(fset, regFile, oldText, impl.Line)
	if lit == nil {
		return nil, fmt.Errorf("step text %q not found in %s", oldText, impl.Source)
	}
	edits := []schema.Edit{replace(fset, lit.Pos(), lit.End(), quote(lit.Value, req.NewStepText))}

	if len(req.ParameterPositions) == 0 {
		return edits, nil
	}

	fields, skip, err := locateParams(fset, files, call, impl)
	if err != nil {
		return nil, err
	}
	params := flatten(fields)
	if len(params) < skip {
		return nil, fmt.Errorf("%s declares no receiver parameter", impl.FuncName)
	}
	kept, stepParams := params[:skip], params[skip:]

	reshaped, err := reshape(stepParams, req)
	if err != nil {
		return nil, err
	}
	rendered := make([]string, 0, len(kept)+len(reshaped))
	for _, group := range [][]param{kept, reshaped} {
		for _, p := range group {
			rendered = append(rendered, p.name+" "+p.typ)
		}
	}
	edits = append(edits, replace(fset, fields.Opening, fields.Closing+1, "("+strings.Join(rendered, ", ")+")"))
	return edits, nil
}

func parseFile(fset *token.FileSet, files map[string][]byte, path string) (*ast.File, error) {
	src, ok := files[path]
	if !ok {
		return nil, fmt.Errorf("no source for %s", path)
	}
	f, err := parser.ParseFile(fset, path, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

// findRegistration finds the string literal equal to text used as a call
// argument, preferring the call on line.
func findRegistration(fset *token.FileSet, f *ast.File, text string, line int) (*ast.CallExpr, *ast.BasicLit) {
	var bestCall *ast.CallExpr
	var bestLit *ast.BasicLit
	ast.Inspect(f, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		for _, arg := range call.Args {
			lit, ok := arg.(*ast.BasicLit)
			if !ok || lit.Kind != token.STRING {
				continue
			}
			value, err := strconv.Unquote(lit.Value)
			if err != nil || value != text {
				continue
			}
			start, end := fset.Position(call.Pos()).Line, fset.Position(call.End()).Line
			if bestLit == nil || (line >= start && line <= end) {
				bestCall, bestLit = call, lit
			}
		}
		return true
	})
	return bestCall, bestLit
}

// locateParams returns the parameter list of the step function and the
// number of leading parameters that are not step arguments.
func locateParams(fset *token.FileSet, files map[string][]byte, call *ast.CallExpr, impl *schema.StepImplementation) (*ast.FieldList, int, error) {
	skip := 0
	if impl.Scope != "" {
		skip = 1
	}
	for _, arg := range call.Args {
		if fn, ok := arg.(*ast.FuncLit); ok {
			return fn.Type.Params, skip, nil
		}
	}

	path := impl.FuncSource
	if path == "" {
		path = impl.Source
	}
	f, err := parseFile(fset, files, path)
	if err != nil {
		return nil, 0, err
	}
	var found *ast.FuncDecl
	for _, decl := range f.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Name.Name != impl.FuncName {
			continue
		}
		if found == nil || fset.Position(fd.Pos()).Line == impl.FuncLine {
			found = fd
		}
	}
	if found == nil {
		return nil, 0, fmt.Errorf("function %s not found in %s", impl.FuncName, path)
	}
	if found.Recv != nil {
		skip = 0
	}
	return found.Type.Params, skip, nil
}

func flatten(fields *ast.FieldList) []param {
	var out []param
	for i, field := range fields.List {
		typ := types.ExprString(field.Type)
		if len(field.Names) == 0 {
			out = append(out, param{name: fmt.Sprintf("arg%d", i), typ: typ})
			continue
		}
		for _, name := range field.Names {
			out = append(out, param{name: name.Name, typ: typ})
		}
	}
	return out
}

// reshape orders params by the requested positions. New parameters are
// typed string and named after their step text.
func reshape(params []param, req *schema.RefactorRequest) ([]param, error) {
	positions := append([]schema.ParameterPosition(nil), req.ParameterPositions...)
	sort.SliceStable(positions, func(i, j int) bool { return positions[i].NewIndex < positions[j].NewIndex })

	names := req.NewParameterTexts
	if len(names) == 0 {
		_, names = schema.ParseStepText(req.NewStepText)
	}

	used := make(map[string]bool)
	for _, pos := range positions {
		if pos.OldIndex >= 0 && pos.OldIndex < len(params) {
			used[params[pos.OldIndex].name] = true
		}
	}

	out := make([]param, 0, len(positions))
	for i, pos := range positions {
		if pos.NewIndex != i {
			return nil, fmt.Errorf("parameter positions are not contiguous at new index %d", pos.NewIndex)
		}
		if pos.OldIndex >= len(params) {
			return nil, fmt.Errorf("old parameter index %d out of range (%d parameters)", pos.OldIndex, len(params))
		}
		if pos.OldIndex >= 0 {
			out = append(out, params[pos.OldIndex])
			continue
		}
		text := ""
		if pos.NewIndex < len(names) {
			text = names[pos.NewIndex]
		}
		name := identifier(text)
		if name == "" || used[name] {
			name = fmt.Sprintf("arg%d", pos.NewIndex)
		}
		used[name] = true
		out = append(out, param{name: name, typ: "string"})
	}
	return out, nil
}

// identifier turns free text such as "user name" into userName.
func identifier(text string) string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for i, w := range words {
		r := []rune(w)
		if i == 0 {
			r[0] = unicode.ToLower(r[0])
		} else {
			r[0] = unicode.ToUpper(r[0])
		}
		b.WriteString(string(r))
	}
	name := b.String()
	if name == "" || unicode.IsDigit([]rune(name)[0]) || token.IsKeyword(name) {
		return ""
	}
	return name
}

func quote(original, text string) string {
	if strings.HasPrefix(original, "`") && !strings.Contains(text, "`") {
		return "`" + text + "`"
	}
	return strconv.Quote(text)
}

func replace(fset *token.FileSet, from, to token.Pos, text string) schema.Edit {
	start, end := fset.Position(from), fset.Position(to)
	return schema.Edit{
		File:        start.Filename,
		StartLine:   start.Line,
		StartColumn: start.Column,
		EndLine:     end.Line,
		EndColumn:   end.Column,
		NewText:     text,
	}
}
