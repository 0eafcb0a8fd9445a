package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL attempts to load configuration overrides from
// "<projectRoot>/.goclangd.kdl". Returns (nil, nil) when no file exists.
func LoadKDL(projectRoot string) (*Config, error) {
	kdlPath := filepath.Join(projectRoot, ConfigFileName)
	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ConfigFileName, err)
	}

	return parseKDL(string(content))
}

func parseKDL(content string) (*Config, error) {
	cfg := &Config{}

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
			}
		case "index":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "manifest":
					if s, ok := firstStringArg(cn); ok {
						cfg.Index.ManifestName = s
					}
				case "db_name":
					if s, ok := firstStringArg(cn); ok {
						cfg.Index.DBName = s
					}
				case "watch_mode":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.WatchMode = b
					}
				case "watch_debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.WatchDebounceMs = v
					}
				}
			}
		case "performance":
			for _, cn := range n.Children {
				if nodeName(cn) == "jobs" {
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.Jobs = v
					}
				}
			}
		case "exclude":
			cfg.Exclude = collectStringArgs(n)
		}
	}

	return cfg, nil
}

// mergeKDL layers a parsed KDL override onto base, leaving any zero-value
// field in the override unchanged so Default()'s values survive.
func mergeKDL(base, override *Config) *Config {
	merged := *base
	if override.Project.Root != "" {
		merged.Project.Root = override.Project.Root
	}
	if override.Index.ManifestName != "" {
		merged.Index.ManifestName = override.Index.ManifestName
	}
	if override.Index.DBName != "" {
		merged.Index.DBName = override.Index.DBName
	}
	if override.Index.WatchDebounceMs != 0 {
		merged.Index.WatchDebounceMs = override.Index.WatchDebounceMs
	}
	merged.Index.WatchMode = override.Index.WatchMode || base.Index.WatchMode
	if override.Performance.Jobs != 0 {
		merged.Performance.Jobs = override.Performance.Jobs
	}
	if len(override.Exclude) > 0 {
		merged.Exclude = append(append([]string{}, base.Exclude...), override.Exclude...)
	}
	return &merged
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}
