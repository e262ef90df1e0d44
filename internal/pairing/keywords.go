// internal/pairing/keywords.go
package pairing

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadKeywords reads a keyword file. .yaml and .yml files hold a list of
// strings (or a map with a "keywords" list); anything else is one keyword per
// line. Blank lines and lines starting with # are skipped.
func LoadKeywords(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keywords: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAMLKeywords(data)
	default:
		return ParseKeywords(data), nil
	}
}

// ParseKeywords parses the line-per-keyword format
func ParseKeywords(data []byte) []string {
	var keywords []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keywords = append(keywords, line)
	}
	return keywords
}

func parseYAMLKeywords(data []byte) ([]string, error) {
	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil {
		return clean(list), nil
	}

	var doc struct {
		Keywords []string `yaml:"keywords"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse keywords: %w", err)
	}
	return clean(doc.Keywords), nil
}

func clean(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// MatchKeyword returns the first keyword contained in name, ignoring case.
// Empty keywords never match.
func MatchKeyword(name string, keywords []string) (string, bool) {
	lower := strings.ToLower(name)
	for _, k := range keywords {
		if k == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(k)) {
			return k, true
		}
	}
	return "", false
}
