package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const includeTag = "!include"

// includer replaces `!include path` scalars with the root node of the named
// document. Paths are relative to the including file and must not leave root.
type includer struct {
	root  string
	file  string
	stack []string
}

func (in *includer) resolve(n *yaml.Node, dir string) error {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == includeTag {
			return in.load(n, dir)
		}
	case yaml.DocumentNode, yaml.SequenceNode, yaml.MappingNode:
		for _, c := range n.Content {
			if err := in.resolve(c, dir); err != nil {
				return err
			}
		}
	}
	return nil
}

func (in *includer) load(n *yaml.Node, dir string) error {
	target := strings.TrimSpace(n.Value)
	if target == "" {
		return in.errorf(n, ErrSchema, "!include needs a file path")
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, target)
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return in.errorf(n, ErrSchema, "include %s: %v", n.Value, err)
	}
	if err := withinRoot(abs, in.root); err != nil {
		return in.errorf(n, ErrSchema, "include %s: %v", n.Value, err)
	}
	for _, open := range in.stack {
		if open == abs {
			return in.errorf(n, ErrSchema, "include cycle through %s", n.Value)
		}
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return in.errorf(n, ErrParse, "include %s: %v", n.Value, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return &ParseError{File: abs, Kind: ErrParse, Err: err}
	}

	content := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Line: n.Line, Column: n.Column}
	if len(doc.Content) > 0 {
		content = doc.Content[0]
	}

	in.stack = append(in.stack, abs)
	err = in.resolve(content, filepath.Dir(abs))
	in.stack = in.stack[:len(in.stack)-1]
	if err != nil {
		return err
	}

	*n = *content
	return nil
}

func (in *includer) errorf(n *yaml.Node, kind error, format string, args ...any) error {
	return &ParseError{
		File:    in.file,
		Line:    n.Line,
		Column:  n.Column,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

func withinRoot(path, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(absRoot, path)
	if err != nil {
		return err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path escapes %s", absRoot)
	}
	return nil
}
