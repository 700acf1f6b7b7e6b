package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"

	"github.com/ludo-technologies/jsinspect/internal/constants"
)

// Language identifies a grammar
type Language string

const (
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
)

// Grammar returns the tree-sitter language of the grammar
func (l Language) Grammar() *sitter.Language {
	if l == LanguageTypeScript {
		return tsx.GetLanguage()
	}
	return javascript.GetLanguage()
}

// Parser wraps tree-sitter parser for JavaScript/TypeScript. A Parser is not
// safe for concurrent use.
type Parser struct {
	parser   *sitter.Parser
	language Language
}

// NewParser creates a new JavaScript parser
func NewParser() *Parser {
	return newParser(LanguageJavaScript)
}

// NewTypeScriptParser creates a new TypeScript parser. The TSX grammar
// accepts plain TypeScript as well.
func NewTypeScriptParser() *Parser {
	return newParser(LanguageTypeScript)
}

func newParser(lang Language) *Parser {
	parser := sitter.NewParser()
	parser.SetLanguage(lang.Grammar())
	return &Parser{parser: parser, language: lang}
}

// ForFile returns a parser for the language of filename
func ForFile(filename string) *Parser {
	return newParser(LanguageOf(filename))
}

// LanguageOf selects the grammar from the file extension
func LanguageOf(filename string) Language {
	ext := strings.ToLower(filepath.Ext(filename))
	if slices.Contains(constants.TypeScriptExtensions, ext) {
		return LanguageTypeScript
	}
	return LanguageJavaScript
}

// IsSupported reports whether filename has a JavaScript or TypeScript extension
func IsSupported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return slices.Contains(constants.JavaScriptExtensions, ext) ||
		slices.Contains(constants.TypeScriptExtensions, ext)
}

// Parse parses source into a concrete syntax tree. The caller must Close the tree.
func (p *Parser) Parse(ctx context.Context, filename string, source []byte) (*sitter.Tree, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse file %s: %v", filename, err)
	}
	if tree.RootNode() == nil {
		tree.Close()
		return nil, fmt.Errorf("no root node in parse tree for %s", filename)
	}
	return tree, nil
}

// Language returns the grammar of this parser
func (p *Parser) Language() Language {
	return p.language
}

// IsTypeScript returns true if this parser is configured for TypeScript
func (p *Parser) IsTypeScript() bool {
	return p.language == LanguageTypeScript
}

// Close closes the parser and frees resources
func (p *Parser) Close() {
	if p.parser != nil {
		p.parser.Close()
	}
}

// FirstSyntaxError returns the 1-based line of the first ERROR or MISSING node
func FirstSyntaxError(root *sitter.Node) (int, bool) {
	if root == nil || !root.HasError() {
		return 0, false
	}
	if root.IsError() || root.IsMissing() {
		return int(root.StartPoint().Row) + 1, true
	}
	for i := 0; i < int(root.ChildCount()); i++ {
		if line, ok := FirstSyntaxError(root.Child(i)); ok {
			return line, true
		}
	}
	return int(root.StartPoint().Row) + 1, true
}
