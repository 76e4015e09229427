package analyzer

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
)

// Decorator is a `@Name[T](args)` annotation written in a comment.
type Decorator struct {
	Name     string
	TypeArgs []ast.Expr
	Args     []ast.Expr
	// Comment and Group locate the annotation so it can be removed.
	Comment *ast.Comment
	Group   *ast.CommentGroup
}

// Arg returns the i-th argument, or nil when absent.
func (d *Decorator) Arg(i int) ast.Expr {
	if i < len(d.Args) {
		return d.Args[i]
	}
	return nil
}

// TypeArg returns the i-th type argument, or nil when absent.
func (d *Decorator) TypeArg(i int) ast.Expr {
	if i < len(d.TypeArgs) {
		return d.TypeArgs[i]
	}
	return nil
}

// ParseDecorators extracts every decorator from a comment group, in
// declaration order. Lines that are not decorators are ignored.
func ParseDecorators(group *ast.CommentGroup) []*Decorator {
	if group == nil {
		return nil
	}
	var out []*Decorator
	for _, c := range group.List {
		if d := parseDecorator(c); d != nil {
			d.Group = group
			out = append(out, d)
		}
	}
	return out
}

// FindDecorator returns the first decorator with the given name.
func FindDecorator(decorators []*Decorator, name string) *Decorator {
	for _, d := range decorators {
		if d.Name == name {
			return d
		}
	}
	return nil
}

func commentText(c *ast.Comment) string {
	text := c.Text
	if strings.HasPrefix(text, "//") {
		return strings.TrimSpace(text[2:])
	}
	text = strings.TrimSuffix(strings.TrimPrefix(text, "/*"), "*/")
	return strings.TrimSpace(text)
}

func parseDecorator(c *ast.Comment) *Decorator {
	line := commentText(c)
	if !strings.HasPrefix(line, "@") {
		return nil
	}
	expr, err := parser.ParseExpr(line[1:])
	if err != nil {
		return nil
	}

	d := &Decorator{Comment: c}
	if call, ok := expr.(*ast.CallExpr); ok {
		d.Args = call.Args
		expr = call.Fun
	}
	switch e := expr.(type) {
	case *ast.Ident:
		d.Name = e.Name
	case *ast.IndexExpr:
		id, ok := e.X.(*ast.Ident)
		if !ok {
			return nil
		}
		d.Name = id.Name
		d.TypeArgs = []ast.Expr{e.Index}
	case *ast.IndexListExpr:
		id, ok := e.X.(*ast.Ident)
		if !ok {
			return nil
		}
		d.Name = id.Name
		d.TypeArgs = e.Indices
	default:
		return nil
	}
	return d
}

// ParamDecorators returns the decorators written in comments between the
// previous parameter (or the opening parenthesis) and the field.
func ParamDecorators(file *ast.File, params *ast.FieldList, field *ast.Field) []*Decorator {
	start := params.Opening
	for _, f := range params.List {
		if f == field {
			break
		}
		start = f.End()
	}
	var out []*Decorator
	for _, group := range file.Comments {
		if group.Pos() < start || group.End() > field.Pos() {
			continue
		}
		out = append(out, ParseDecorators(group)...)
	}
	return out
}

// RemoveDecorator deletes the decorator's comment from its group, and the
// group from the file once it is empty. It reports whether the group
// became empty so callers can clear Doc pointers.
func RemoveDecorator(file *ast.File, d *Decorator) bool {
	return RemoveComment(file, d.Group, d.Comment)
}

// RemoveComment deletes c from group and drops empty groups from the file.
func RemoveComment(file *ast.File, group *ast.CommentGroup, c *ast.Comment) bool {
	for i, cur := range group.List {
		if cur == c {
			group.List = append(group.List[:i], group.List[i+1:]...)
			break
		}
	}
	if len(group.List) > 0 {
		return false
	}
	for i, g := range file.Comments {
		if g == group {
			file.Comments = append(file.Comments[:i], file.Comments[i+1:]...)
			break
		}
	}
	return true
}

// RemoveCommentsIn drops every comment group located inside [from, to].
func RemoveCommentsIn(file *ast.File, from, to token.Pos) {
	kept := file.Comments[:0]
	for _, g := range file.Comments {
		if g.Pos() >= from && g.End() <= to {
			continue
		}
		kept = append(kept, g)
	}
	file.Comments = kept
}

// ParsedComment holds the prose part of a doc comment.
type ParsedComment struct {
	Summary     string
	Description string
}

// ParseDocComment splits a doc comment into a summary (its first line) and
// a description (the remaining lines). Decorator and directive lines are
// skipped.
func ParseDocComment(doc *ast.CommentGroup) ParsedComment {
	if doc == nil {
		return ParsedComment{}
	}

	var lines []string
	for _, comment := range doc.List {
		if strings.HasPrefix(comment.Text, "//go:") || strings.HasPrefix(comment.Text, "//nolint") {
			continue
		}
		for _, line := range strings.Split(commentText(comment), "\n") {
			line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
			if strings.HasPrefix(line, "@") {
				continue
			}
			lines = append(lines, line)
		}
	}

	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	if len(lines) == 0 {
		return ParsedComment{}
	}
	return ParsedComment{
		Summary:     lines[0],
		Description: strings.TrimSpace(strings.Join(lines[1:], "\n")),
	}
}
