// Package i18n provides the localized message table used in analysis reports.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sync"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// DefaultLanguage is used when a message is missing for the requested language.
const DefaultLanguage = "en-US"

// Sentinel message IDs. The text behind them stands in for a hypothesis when
// recognition produced nothing usable.
const (
	SentinelNoSpeech        = "sentinel.no_speech"
	SentinelFailed          = "sentinel.failed"
	SentinelUnavailable     = "sentinel.unavailable"
	SentinelAudioUnreadable = "sentinel.audio_unreadable"
)

var sentinelIDs = []string{SentinelNoSpeech, SentinelFailed, SentinelUnavailable, SentinelAudioUnreadable}

// Catalog looks up localized messages keyed by (language, message ID).
type Catalog struct {
	bundle *goi18n.Bundle

	mu         sync.Mutex
	localizers map[string]*goi18n.Localizer
}

// New loads the embedded message files.
func New() (*Catalog, error) {
	bundle := goi18n.NewBundle(language.AmericanEnglish)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	entries, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}
	for _, e := range entries {
		name := path.Join("locales", e.Name())
		buf, err := localeFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := bundle.ParseMessageFileBytes(buf, name); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
	}

	return &Catalog{
		bundle:     bundle,
		localizers: make(map[string]*goi18n.Localizer),
	}, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the process-wide catalog built from the embedded files.
// It panics if the embedded files are malformed.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := New()
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Message returns the text for id in lang, falling back to DefaultLanguage.
// Unknown IDs are returned unchanged.
func (c *Catalog) Message(lang, id string, data map[string]any) string {
	loc := c.localizer(lang)
	msg, err := loc.Localize(&goi18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if msg == "" && err != nil {
		return id
	}
	return msg
}

// Languages lists the tags that have a message file.
func (c *Catalog) Languages() []string {
	tags := c.bundle.LanguageTags()
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.String())
	}
	return out
}

// Sentinels returns every sentinel text across all loaded languages.
func (c *Catalog) Sentinels() []string {
	var out []string
	for _, lang := range c.Languages() {
		for _, id := range sentinelIDs {
			out = append(out, c.Message(lang, id, nil))
		}
	}
	return out
}

func (c *Catalog) localizer(lang string) *goi18n.Localizer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if loc, ok := c.localizers[lang]; ok {
		return loc
	}
	loc := goi18n.NewLocalizer(c.bundle, lang, DefaultLanguage)
	c.localizers[lang] = loc
	return loc
}
