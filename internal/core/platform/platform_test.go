package platform

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Platform
	}{
		{"Instagram post", "https://www.instagram.com/p/ABC123/", Instagram},
		{"Instagram reel no scheme", "instagram.com/reel/xyz_-9", Instagram},
		{"StarMaker primary domain", "https://www.starmakerstudios.com/d/playrecording?recordingId=987654", StarMaker},
		{"StarMaker short domain", "https://m.starmaker.co/share?recordingId=1", StarMaker},
		{"YouTube watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", YouTube},
		{"YouTube short link", "https://youtu.be/dQw4w9WgXcQ", YouTube},
		{"YouTube music", "https://music.youtube.com/watch?v=abc", YouTube},
		{"Lookalike domain", "https://notyoutube.com/watch?v=abc", None},
		{"Unknown domain", "https://example.com/p/ABC123/", None},
		{"Empty", "", None},
		{"Garbage", "::::", None},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.input); got != tt.expected {
				t.Errorf("Classify(%q) = %q; want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		platform Platform
		expected bool
	}{
		{"Instagram post", "https://www.instagram.com/p/ABC123/", Instagram, true},
		{"Instagram reel", "https://instagram.com/reel/Cx9_-aB/", Instagram, true},
		{"Instagram reels", "https://www.instagram.com/reels/Cx9aB/", Instagram, true},
		{"Instagram story", "https://www.instagram.com/stories/some.user/3141592653/", Instagram, true},
		{"Instagram story without numeric id", "https://www.instagram.com/stories/some.user/abc/", Instagram, false},
		{"Instagram profile", "https://www.instagram.com/some.user/", Instagram, false},
		{"Instagram wrong root", "https://evil.com/instagram.com/p/ABC/", Instagram, false},
		{"StarMaker numeric id", "https://www.starmakerstudios.com/d/playrecording?app=sm&recordingId=987654", StarMaker, true},
		{"StarMaker non-numeric id", "https://www.starmakerstudios.com/d/playrecording?recordingId=abc", StarMaker, false},
		{"StarMaker missing id", "https://www.starmakerstudios.com/d/playrecording", StarMaker, false},
		{"StarMaker malformed", "%zz", StarMaker, false},
		{"YouTube with path", "https://www.youtube.com/watch?v=abc", YouTube, true},
		{"YouTube short with path", "youtu.be/abc", YouTube, true},
		{"YouTube bare host", "https://www.youtube.com/", YouTube, false},
		{"No platform", "https://www.instagram.com/p/ABC123/", None, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Validate(tt.input, tt.platform); got != tt.expected {
				t.Errorf("Validate(%q, %q) = %v; want %v", tt.input, tt.platform, got, tt.expected)
			}
		})
	}
}

func TestExtractIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		platform Platform
		expected string
	}{
		{"Instagram post", "https://www.instagram.com/p/ABC123/?igsh=xyz", Instagram, "ABC123"},
		{"Instagram reel", "https://www.instagram.com/reel/Cx9_-aB/", Instagram, "Cx9_-aB"},
		{"Instagram reels", "https://www.instagram.com/reels/DEF456", Instagram, "DEF456"},
		{"Instagram story", "https://www.instagram.com/stories/user_1/3141592653/", Instagram, "3141592653"},
		{"Instagram unsupported shape", "https://www.instagram.com/explore/", Instagram, ""},
		{"StarMaker recording", "https://www.starmakerstudios.com/d/playrecording?recordingId=987654", StarMaker, "987654"},
		{"StarMaker bad id", "https://www.starmakerstudios.com/d/playrecording?recordingId=98x", StarMaker, ""},
		{"YouTube passes URL through", " https://youtu.be/abc ", YouTube, "https://youtu.be/abc"},
		{"Unknown platform", "https://example.com", None, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractIdentifier(tt.input, tt.platform); got != tt.expected {
				t.Errorf("ExtractIdentifier(%q, %q) = %q; want %q", tt.input, tt.platform, got, tt.expected)
			}
		})
	}
}

func TestExtractIdentifierRoundTrip(t *testing.T) {
	inputs := []struct {
		url      string
		platform Platform
	}{
		{"https://www.instagram.com/p/ABC123/", Instagram},
		{"https://www.instagram.com/reel/Cx9_-aB/", Instagram},
		{"https://www.instagram.com/reels/DEF456/", Instagram},
		{"https://www.starmakerstudios.com/d/playrecording?recordingId=987654", StarMaker},
		{"https://m.starmaker.co/share?recordingId=42", StarMaker},
	}

	for _, in := range inputs {
		first := ExtractIdentifier(in.url, in.platform)
		if first == "" {
			t.Fatalf("ExtractIdentifier(%q) returned empty", in.url)
		}
		canonical := CanonicalURL(in.platform, first)
		if Classify(canonical) != in.platform {
			t.Errorf("CanonicalURL(%q) = %q classifies as %q", first, canonical, Classify(canonical))
		}
		if second := ExtractIdentifier(canonical, in.platform); second != first {
			t.Errorf("round trip of %q: got %q, want %q", in.url, second, first)
		}
	}
}

func TestSupportedHaveDisplayNames(t *testing.T) {
	for _, p := range Supported {
		if p.DisplayName() == "Unknown" {
			t.Errorf("%q has no display name", p)
		}
	}
	if None.DisplayName() != "Unknown" {
		t.Errorf("None.DisplayName() = %q", None.DisplayName())
	}
}
