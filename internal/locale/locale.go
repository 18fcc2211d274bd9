// Package locale resolves user-facing strings from embedded YAML tables.
package locale

import (
	"embed"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

//go:embed lang/*.yaml
var files embed.FS

// Bundle holds one flat key table per language and the per-user language
// choice.
type Bundle struct {
	fallback string
	tables   map[string]map[string]string
	users    sync.Map // int64 -> string
}

// Load parses every embedded table. fallback names the language used when a
// user has no choice or a key is missing from their language.
func Load(fallback string) (*Bundle, error) {
	entries, err := files.ReadDir("lang")
	if err != nil {
		return nil, err
	}

	b := &Bundle{fallback: fallback, tables: map[string]map[string]string{}}
	for _, e := range entries {
		raw, err := files.ReadFile(path.Join("lang", e.Name()))
		if err != nil {
			return nil, err
		}
		table, err := parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		b.tables[strings.TrimSuffix(e.Name(), ".yaml")] = table
	}

	if _, ok := b.tables[fallback]; !ok {
		return nil, fmt.Errorf("unknown fallback language %q", fallback)
	}
	return b, nil
}

// parse flattens nested YAML maps into dotted keys.
func parse(raw []byte) (map[string]string, error) {
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	out := map[string]string{}
	flatten("", tree, out)
	return out, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := v.(type) {
		case map[string]any:
			flatten(key, v, out)
		case string:
			out[key] = v
		default:
			out[key] = fmt.Sprint(v)
		}
	}
}

// SetLanguage records a user's language. Unknown languages are refused.
func (b *Bundle) SetLanguage(userID int64, lang string) error {
	if _, ok := b.tables[lang]; !ok {
		return fmt.Errorf("unknown language %q", lang)
	}
	b.users.Store(userID, lang)
	return nil
}

// UseLocale picks the user's language from a client locale tag such as
// "zh-TW" or "en-US": an exact table first, then the base language. A tag with
// no table clears the user's choice. Reports whether a table matched.
func (b *Bundle) UseLocale(userID int64, tag string) bool {
	lang, ok := b.match(tag)
	if !ok {
		b.users.Delete(userID)
		return false
	}
	b.users.Store(userID, lang)
	return true
}

func (b *Bundle) match(tag string) (string, bool) {
	if tag == "" {
		return "", false
	}
	if _, ok := b.tables[tag]; ok {
		return tag, true
	}
	base, _, _ := strings.Cut(tag, "-")
	if _, ok := b.tables[base]; ok {
		return base, true
	}
	return "", false
}

func (b *Bundle) language(userID int64) string {
	if v, ok := b.users.Load(userID); ok {
		return v.(string)
	}
	return b.fallback
}

// Lookup returns the user's string for key formatted with args. A key missing
// everywhere comes back as the key itself.
func (b *Bundle) Lookup(userID int64, key string, args ...any) string {
	lang := b.language(userID)
	s, ok := b.tables[lang][key]
	if !ok {
		s, ok = b.tables[b.fallback][key]
	}
	if !ok {
		log.Warn().Str("key", key).Str("lang", lang).Msg("missing locale key")
		return key
	}
	if len(args) == 0 {
		return s
	}
	return fmt.Sprintf(s, args...)
}
