package pipeline

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/csvglance/internal/utils"
	"gopkg.in/yaml.v3"
)

// DumpFormat selects the textual rendering of summary and preview.
type DumpFormat string

const (
	DumpJSON DumpFormat = "json"
	DumpYAML DumpFormat = "yaml"
)

// ParseDumpFormat accepts "json", "yaml" or "yml" (case-insensitive).
func ParseDumpFormat(s string) (DumpFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return DumpJSON, nil
	case "yaml", "yml":
		return DumpYAML, nil
	}
	return "", fmt.Errorf("unsupported dump format: %s (use json|yaml)", s)
}

// Dump renders v verbatim as indented JSON or YAML for inspection.
func Dump(v any, format DumpFormat) (string, error) {
	b, err := utils.PrettyJSON(v)
	if err != nil {
		return "", err
	}
	if format != DumpYAML {
		return string(b), nil
	}
	// JSON is valid YAML; round-trip through a generic node to restyle it.
	var node yaml.Node
	if err := yaml.Unmarshal(b, &node); err != nil {
		return "", fmt.Errorf("yaml decode: %w", err)
	}
	clearStyle(&node)
	out, err := yaml.Marshal(&node)
	if err != nil {
		return "", fmt.Errorf("marshal yaml: %w", err)
	}
	return strings.TrimRight(string(out), "\n"), nil
}

func clearStyle(n *yaml.Node) {
	n.Style &^= yaml.FlowStyle
	if n.Kind == yaml.ScalarNode && n.Tag == "!!str" {
		n.Style &^= yaml.DoubleQuotedStyle
	}
	for _, c := range n.Content {
		clearStyle(c)
	}
}

// DumpResponse renders summary and preview separately.
func DumpResponse(resp *AnalysisResponse, format DumpFormat) (summary, preview string, err error) {
	if resp == nil {
		resp = &AnalysisResponse{}
	}
	if summary, err = Dump(resp.Summary, format); err != nil {
		return "", "", fmt.Errorf("dump summary: %w", err)
	}
	if preview, err = Dump(resp.Preview, format); err != nil {
		return "", "", fmt.Errorf("dump preview: %w", err)
	}
	return summary, preview, nil
}
