package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"
)

//go:embed locales
var LocalesFS embed.FS

// DefaultLocale is used when a requested locale has no file.
const DefaultLocale = "pt"

type Translator struct {
	locale       string
	translations map[string]string
}

// NewTranslator loads locales/<langCode>.yaml from fsys, falling back to
// DefaultLocale when the file is missing.
func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	if langCode == "" {
		langCode = DefaultLocale
	}
	data, err := fs.ReadFile(fsys, path.Join("locales", langCode+".yaml"))
	if err != nil && langCode != DefaultLocale {
		langCode = DefaultLocale
		data, err = fs.ReadFile(fsys, path.Join("locales", langCode+".yaml"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file for %q: %w", langCode, err)
	}
	t, err := newTranslatorFromBytes(data)
	if err != nil {
		return nil, err
	}
	t.locale = langCode
	return t, nil
}

func newTranslatorFromBytes(data []byte) (*Translator, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}
	return &Translator{translations: translations}, nil
}

// Locale reports the locale actually loaded.
func (t *Translator) Locale() string { return t.locale }

// T returns the message for key formatted with args, or key itself when
// the message is missing.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}
