package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

type Lang string

const (
	RU Lang = "ru"
	EN Lang = "en"
)

// DefaultLang is the fallback when a key or language is missing.
const DefaultLang = "en"

func FromLanguageCode(code string) Lang {
	code = strings.ToLower(strings.TrimSpace(code))
	if strings.HasPrefix(code, "ru") {
		return RU
	}
	return EN
}

//go:embed locales/*.json
var localeFS embed.FS

// Catalog maps language codes to nested translation trees loaded from
// JSON locale files. Keys are dotted paths ("subscription.plans.1month").
type Catalog struct {
	langs map[string]map[string]interface{}
}

// Load returns the catalog of locales shared by the whole fleet.
func Load() *Catalog {
	c := &Catalog{langs: make(map[string]map[string]interface{})}
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		log.Error().Err(err).Msg("failed to read embedded locales")
		return c
	}
	for _, e := range entries {
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			continue
		}
		lang := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		tree := make(map[string]interface{})
		if err := json.Unmarshal(data, &tree); err != nil {
			log.Error().Err(err).Str("locale", e.Name()).Msg("invalid locale file")
			continue
		}
		c.langs[lang] = tree
	}
	return c
}

// MergeDir overlays bot-specific locale files on top of the common
// catalog. Missing directories are fine; a bot without its own locales
// just uses the shared keys.
func (c *Catalog) MergeDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return err
		}
		lang := strings.TrimSuffix(e.Name(), ".json")
		tree := make(map[string]interface{})
		if err := json.Unmarshal(data, &tree); err != nil {
			return fmt.Errorf("invalid locale file %s: %w", e.Name(), err)
		}
		if existing, ok := c.langs[lang]; ok {
			mergeTree(existing, tree)
		} else {
			c.langs[lang] = tree
		}
	}
	return nil
}

func mergeTree(dst, src map[string]interface{}) {
	for k, v := range src {
		if sv, ok := v.(map[string]interface{}); ok {
			if dv, ok := dst[k].(map[string]interface{}); ok {
				mergeTree(dv, sv)
				continue
			}
		}
		dst[k] = v
	}
}

// Translate resolves key for lang, falling back to DefaultLang and
// finally to the raw key itself. Params replace {name} placeholders.
func (c *Catalog) Translate(key, lang string, params map[string]string) string {
	s, ok := c.lookup(key, string(FromLanguageCode(lang)))
	if !ok {
		s, ok = c.lookup(key, DefaultLang)
	}
	if !ok {
		s = key
	}
	for k, v := range params {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}

func (c *Catalog) lookup(key, lang string) (string, bool) {
	tree, ok := c.langs[lang]
	if !ok {
		return "", false
	}
	parts := strings.Split(key, ".")
	var cur interface{} = tree
	for _, p := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return "", false
		}
		cur, ok = m[p]
		if !ok {
			return "", false
		}
	}
	s, ok := cur.(string)
	return s, ok
}

var common = Load()

// Common returns the shared fleet catalog.
func Common() *Catalog { return common }

// T translates key for lang from the shared catalog.
func T(key, lang string) string {
	return common.Translate(key, lang, nil)
}

// TF is T with {name} placeholder substitution.
func TF(key, lang string, params map[string]string) string {
	return common.Translate(key, lang, params)
}
