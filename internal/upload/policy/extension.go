package policy

import (
	"fmt"
	"path/filepath"
	"strings"
)

type ExtensionMode string

const (
	ModeAllowAll  ExtensionMode = "allow_all"
	ModeWhitelist ExtensionMode = "whitelist"
	ModeBlacklist ExtensionMode = "blacklist"
)

// ExtensionPolicy evaluates filenames against a configured extension list.
// Extensions are compared case-insensitively and without the leading dot.
type ExtensionPolicy struct {
	mode       ExtensionMode
	extensions map[string]struct{}
}

func NewExtensionPolicy(mode string, extensions []string) (*ExtensionPolicy, error) {
	m := ExtensionMode(strings.ToLower(strings.TrimSpace(mode)))
	switch m {
	case "":
		m = ModeAllowAll
	case ModeAllowAll, ModeWhitelist, ModeBlacklist:
	default:
		return nil, fmt.Errorf("unknown extension mode %q", mode)
	}

	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = normalizeExt(ext)
		if ext != "" {
			set[ext] = struct{}{}
		}
	}
	return &ExtensionPolicy{mode: m, extensions: set}, nil
}

// Allowed reports whether filename may be stored. A file without an extension
// is treated as having the empty extension: rejected by a whitelist, allowed otherwise.
func (p *ExtensionPolicy) Allowed(filename string) bool {
	ext := normalizeExt(filepath.Ext(filename))
	_, listed := p.extensions[ext]

	switch p.mode {
	case ModeWhitelist:
		return ext != "" && listed
	case ModeBlacklist:
		return !listed
	default:
		return true
	}
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
