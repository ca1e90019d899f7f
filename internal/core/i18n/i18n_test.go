package i18n

import "testing"

func TestLocalesAreComplete(t *testing.T) {
	for _, lang := range SupportedLanguages {
		t.Run(lang.Code, func(t *testing.T) {
			tr, err := loadTranslations(lang.Code)
			if err != nil {
				t.Fatalf("failed to load %s: %v", lang.Code, err)
			}
			for _, code := range []string{"invalid_url", "upstream_blocked", "resource_unavailable", "upstream_transient", "relay_aborted", "no_formats", "unknown"} {
				if tr.Errors.Message(code) == "" {
					t.Errorf("missing error message for %s", code)
				}
			}
			if tr.Resolve.FallbackHint == "" || tr.Config.StepOf == "" {
				t.Error("missing resolve or config strings")
			}
		})
	}
}

func TestUnknownLanguageFallsBackToEnglish(t *testing.T) {
	got := GetTranslations("xx").Errors.InvalidURL
	want := GetTranslations("en").Errors.InvalidURL
	if got != want {
		t.Errorf("fallback = %q, want %q", got, want)
	}
}
