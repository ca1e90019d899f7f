package i18n

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yml
var localesFS embed.FS

// Translations holds all translation strings organized by section
type Translations struct {
	Config       ConfigTranslations       `yaml:"config"`
	ConfigReview ConfigReviewTranslations `yaml:"config_review"`
	Help         HelpTranslations         `yaml:"help"`
	Resolve      ResolveTranslations      `yaml:"resolve"`
	Errors       ErrorTranslations        `yaml:"errors"`
	Server       ServerTranslations       `yaml:"server"`
}

type ConfigTranslations struct {
	StepOf         string `yaml:"step_of"`
	Language       string `yaml:"language"`
	LanguageDesc   string `yaml:"language_desc"`
	OutputDir      string `yaml:"output_dir"`
	OutputDirDesc  string `yaml:"output_dir_desc"`
	PartnerKey     string `yaml:"partner_key"`
	PartnerKeyDesc string `yaml:"partner_key_desc"`
	Timeout        string `yaml:"timeout"`
	TimeoutDesc    string `yaml:"timeout_desc"`
	Confirm        string `yaml:"confirm"`
	ConfirmDesc    string `yaml:"confirm_desc"`
	YesSave        string `yaml:"yes_save"`
	NoCancel       string `yaml:"no_cancel"`
	Recommended    string `yaml:"recommended"`
	NotSet         string `yaml:"not_set"`
}

type ConfigReviewTranslations struct {
	Language   string `yaml:"language"`
	OutputDir  string `yaml:"output_dir"`
	PartnerKey string `yaml:"partner_key"`
	Timeout    string `yaml:"timeout"`
}

type HelpTranslations struct {
	Back    string `yaml:"back"`
	Next    string `yaml:"next"`
	Select  string `yaml:"select"`
	Confirm string `yaml:"confirm"`
	Quit    string `yaml:"quit"`
}

// ResolveTranslations holds labels for printed results
type ResolveTranslations struct {
	Resolving    string `yaml:"resolving"`
	Platform     string `yaml:"platform"`
	Kind         string `yaml:"kind"`
	Title        string `yaml:"title"`
	MediaURL     string `yaml:"media_url"`
	Thumbnail    string `yaml:"thumbnail"`
	Items        string `yaml:"items"`
	Duration     string `yaml:"duration"`
	VideoFormats string `yaml:"video_formats"`
	AudioFormats string `yaml:"audio_formats"`
	BestAudio    string `yaml:"best_audio"`
	Streaming    string `yaml:"streaming"`
	SavedTo      string `yaml:"saved_to"`
	FallbackHint string `yaml:"fallback_hint"`
	BatchSummary string `yaml:"batch_summary"`
	Failed       string `yaml:"failed"`
	Speed        string `yaml:"speed"`
	Elapsed      string `yaml:"elapsed"`
	CancelHint   string `yaml:"cancel_hint"`
	Unknown      string `yaml:"unknown"`
}

type ErrorTranslations struct {
	ConfigNotFound      string `yaml:"config_not_found"`
	InvalidURL          string `yaml:"invalid_url"`
	UpstreamBlocked     string `yaml:"upstream_blocked"`
	ResourceUnavailable string `yaml:"resource_unavailable"`
	UpstreamTransient   string `yaml:"upstream_transient"`
	RelayAborted        string `yaml:"relay_aborted"`
	NoFormats           string `yaml:"no_formats"`
	Internal            string `yaml:"internal"`
}

// ServerTranslations holds translations for server messages
type ServerTranslations struct {
	NoConfigWarning string `yaml:"no_config_warning" json:"no_config_warning"`
	RunInitHint     string `yaml:"run_init_hint" json:"run_init_hint"`
	Unauthorized    string `yaml:"unauthorized" json:"unauthorized"`
	JobNotFound     string `yaml:"job_not_found" json:"job_not_found"`
	QueueFull       string `yaml:"queue_full" json:"queue_full"`
}

// Message returns the short user-facing message for an error code such
// as "invalid_url". Unknown codes get the generic message.
func (e ErrorTranslations) Message(code string) string {
	switch code {
	case "invalid_url":
		return e.InvalidURL
	case "upstream_blocked":
		return e.UpstreamBlocked
	case "resource_unavailable":
		return e.ResourceUnavailable
	case "upstream_transient":
		return e.UpstreamTransient
	case "relay_aborted":
		return e.RelayAborted
	case "no_formats":
		return e.NoFormats
	default:
		return e.Internal
	}
}

var (
	translationsCache = make(map[string]*Translations)
	cacheMutex        sync.RWMutex
	defaultLang       = "en"
)

// SupportedLanguages returns all available language codes
var SupportedLanguages = []struct {
	Code string
	Name string
}{
	{"en", "English"},
	{"zh", "中文"},
}

// GetTranslations returns translations for the specified language
func GetTranslations(lang string) *Translations {
	cacheMutex.RLock()
	if t, ok := translationsCache[lang]; ok {
		cacheMutex.RUnlock()
		return t
	}
	cacheMutex.RUnlock()

	t, err := loadTranslations(lang)
	if err != nil {
		// Fall back to English
		if lang != defaultLang {
			return GetTranslations(defaultLang)
		}
		return &Translations{}
	}

	cacheMutex.Lock()
	translationsCache[lang] = t
	cacheMutex.Unlock()

	return t
}

func loadTranslations(lang string) (*Translations, error) {
	filename := fmt.Sprintf("locales/%s.yml", lang)
	data, err := localesFS.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var t Translations
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}

	return &t, nil
}

// T is a convenience function for getting translations
func T(lang string) *Translations {
	return GetTranslations(lang)
}
