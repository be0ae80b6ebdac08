package i18n

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Translator renders the bot's messages in a single configured language.
type Translator struct {
	lang      language.Tag
	localizer *i18n.Localizer
	logger    zerolog.Logger
}

// New loads the embedded catalogues and returns a translator for lang.
func New(lang string, logger zerolog.Logger) (*Translator, error) {
	tag, err := language.Parse(lang)
	if err != nil {
		return nil, fmt.Errorf("parse language %q: %w", lang, err)
	}

	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, e.Name()); err != nil {
			return nil, fmt.Errorf("parse locale file %s: %w", e.Name(), err)
		}
	}

	supported := false
	for _, t := range bundle.LanguageTags() {
		base, _ := t.Base()
		want, _ := tag.Base()
		if base == want {
			supported = true
			break
		}
	}
	if !supported {
		return nil, fmt.Errorf("unsupported language %q", lang)
	}

	return &Translator{
		lang:      tag,
		localizer: i18n.NewLocalizer(bundle, tag.String(), language.English.String()),
		logger:    logger.With().Str("component", "i18n").Logger(),
	}, nil
}

// Language returns the configured language tag.
func (t *Translator) Language() language.Tag {
	return t.lang
}

// T translates a message by ID. Missing IDs are returned verbatim.
func (t *Translator) T(msgID string) string {
	return t.Td(msgID, nil)
}

// Td translates a message by ID with template data.
func (t *Translator) Td(msgID string, data map[string]any) string {
	s, err := t.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: data,
	})
	if err != nil {
		t.logger.Warn().Err(err).Str("id", msgID).Msg("missing translation")
		return msgID
	}
	return s
}
