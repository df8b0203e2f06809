package visit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/utafrali/fieldsales/internal/domain"
)

// LoadAnswers reads survey answers from a JSON or YAML file. Document
// order becomes answer order.
func LoadAnswers(path string) (domain.Answers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseAnswersJSON(data)
	default:
		return ParseAnswersYAML(data)
	}
}

// ParseAnswersJSON parses a JSON object.
func ParseAnswersJSON(data []byte) (domain.Answers, error) {
	var a domain.Answers
	if err := json.Unmarshal(bytes.TrimSpace(data), &a); err != nil {
		return nil, fmt.Errorf("parse answers: %w", err)
	}
	return a, nil
}

// ParseAnswersYAML parses a YAML mapping. An empty document yields no
// answers.
func ParseAnswersYAML(data []byte) (domain.Answers, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse answers: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return domain.Answers{}, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse answers: line %d: top level must be a mapping", root.Line)
	}
	w := &answerWalker{expanding: map[*yaml.Node]bool{}}
	return w.mapping(root)
}

// maxAnswerNodes bounds the values produced from one document, counting
// every alias expansion again.
const maxAnswerNodes = 10000

type answerWalker struct {
	expanding map[*yaml.Node]bool
	visited   int
}

func (w *answerWalker) mapping(n *yaml.Node) (domain.Answers, error) {
	out := domain.Answers{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("parse answers: line %d: keys must be scalars", k.Line)
		}
		val, err := w.value(v)
		if err != nil {
			return nil, err
		}
		out.Set(k.Value, val)
	}
	return out, nil
}

func (w *answerWalker) value(n *yaml.Node) (any, error) {
	w.visited++
	if w.visited > maxAnswerNodes {
		return nil, fmt.Errorf("parse answers: line %d: more than %d values after alias expansion", n.Line, maxAnswerNodes)
	}

	switch n.Kind {
	case yaml.MappingNode:
		return w.mapping(n)
	case yaml.SequenceNode:
		list := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := w.value(c)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	case yaml.AliasNode:
		if n.Alias == nil {
			return nil, fmt.Errorf("parse answers: line %d: unknown alias %q", n.Line, n.Value)
		}
		if w.expanding[n.Alias] {
			return nil, fmt.Errorf("parse answers: line %d: alias *%s refers to itself", n.Line, n.Value)
		}
		w.expanding[n.Alias] = true
		defer delete(w.expanding, n.Alias)
		return w.value(n.Alias)
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("parse answers: line %d: %w", n.Line, err)
		}
		return v, nil
	}
}
