package remedy

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/leafscan/internal/errors"
	"github.com/tphakala/leafscan/internal/logger"
)

//go:embed translations.yaml
var defaultTranslations []byte

// Phrase is one English phrase and its replacement.
type Phrase struct {
	English    string `yaml:"en"`
	Translated string `yaml:"tr"`
}

// Language is a phrase table for one language.
type Language struct {
	Name    string   `yaml:"name"`
	Code    string   `yaml:"code"`
	Phrases []Phrase `yaml:"phrases"`
}

// Translator performs literal phrase substitution. Phrases are applied in
// file order, so a full line listed before its fragment wins.
type Translator struct {
	languages []Language
	byName    map[string]int
	byCode    map[string]int
}

// NewTranslator parses a translations YAML document.
func NewTranslator(data []byte) (*Translator, error) {
	var doc struct {
		Languages []Language `yaml:"languages"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, translationError(fmt.Errorf("parse translations: %w", err))
	}

	tr := &Translator{
		languages: doc.Languages,
		byName:    make(map[string]int, len(doc.Languages)),
		byCode:    make(map[string]int, len(doc.Languages)),
	}
	for i, l := range doc.Languages {
		if l.Name == "" {
			return nil, translationError(fmt.Errorf("language %d has no name", i))
		}
		tr.byName[strings.ToLower(l.Name)] = i
		if l.Code != "" {
			tag, err := language.Parse(l.Code)
			if err != nil {
				return nil, translationError(fmt.Errorf("language %s: invalid code %q: %w", l.Name, l.Code, err))
			}
			base, _ := tag.Base()
			tr.byCode[base.String()] = i
		}
	}
	return tr, nil
}

// DefaultTranslator returns the translator for the built-in phrase tables.
func DefaultTranslator() *Translator {
	tr, err := NewTranslator(defaultTranslations)
	if err != nil {
		panic(fmt.Sprintf("embedded translations.yaml is invalid: %v", err))
	}
	return tr
}

// LoadTranslator reads phrase tables from path, or returns the built-in
// translator when path is empty.
func LoadTranslator(path string) (*Translator, error) {
	if path == "" {
		return DefaultTranslator(), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, errors.New(err).
			Component("remedy").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Build()
	}
	tr, err := NewTranslator(data)
	if err != nil {
		return nil, err
	}
	GetLogger().Info("translations loaded", logger.String("path", path), logger.Int("languages", len(tr.languages)))
	return tr, nil
}

// Languages returns the names of the supported languages in file order.
func (t *Translator) Languages() []string {
	names := make([]string, len(t.languages))
	for i, l := range t.languages {
		names[i] = l.Name
	}
	return names
}

// IsEnglish reports whether lang means "no translation": empty, "English"
// in any case, or an English language tag.
func IsEnglish(lang string) bool {
	lang = strings.TrimSpace(lang)
	if lang == "" || strings.EqualFold(lang, "english") {
		return true
	}
	if tag, err := language.Parse(lang); err == nil {
		base, _ := tag.Base()
		return base.String() == "en"
	}
	return false
}

// Resolve finds the phrase table for lang, accepting a language name or a
// BCP 47 tag such as "sw" or "sw-KE".
func (t *Translator) Resolve(lang string) (*Language, bool) {
	lang = strings.TrimSpace(lang)
	if i, ok := t.byName[strings.ToLower(lang)]; ok {
		return &t.languages[i], true
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return nil, false
	}
	base, _ := tag.Base()
	if i, ok := t.byCode[base.String()]; ok {
		return &t.languages[i], true
	}
	return nil, false
}

// Translate returns text with every known phrase replaced. Empty text,
// English and unsupported languages return text unchanged.
func (t *Translator) Translate(text, lang string) string {
	if text == "" || IsEnglish(lang) {
		return text
	}
	l, ok := t.Resolve(lang)
	if !ok {
		GetLogger().Debug("no translation table for language", logger.String("language", lang))
		return text
	}
	for _, p := range l.Phrases {
		text = strings.ReplaceAll(text, p.English, p.Translated)
	}
	return text
}

func translationError(err error) error {
	return errors.New(err).
		Component("remedy").
		Category(errors.CategoryTranslation).
		Build()
}
