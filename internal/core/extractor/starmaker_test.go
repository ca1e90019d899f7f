package extractor

import "testing"

func TestParsePageMeta(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantTitle string
		wantImage string
		wantErr   bool
	}{
		{
			name:      "Open Graph properties",
			body:      `<html><head><meta property="og:title" content=" Perfect - Ed Sheeran "><meta property="og:image" content="https://img/c.jpg"></head></html>`,
			wantTitle: "Perfect - Ed Sheeran",
			wantImage: "https://img/c.jpg",
		},
		{
			name:      "name attribute fallback",
			body:      `<html><head><meta name="og:title" content="Shallow"></head></html>`,
			wantTitle: "Shallow",
		},
		{
			name:    "No tags",
			body:    `<html><head><title>StarMaker</title></head></html>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, err := parsePageMeta([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", meta)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if meta.Title != tt.wantTitle || meta.Image != tt.wantImage {
				t.Errorf("got %+v", meta)
			}
		})
	}
}

func TestStarMakerStrategiesUseTemplates(t *testing.T) {
	strategies := starmakerStrategies(newFetcher(nil, 0, ""), StarMakerOptions{CDNSecondary: "https://mirror.test/{id}.mp4"})
	if len(strategies) != 2 {
		t.Fatalf("expected 2 strategies, got %d", len(strategies))
	}

	primary := strategies[0].(*cdnStrategy)
	secondary := strategies[1].(*cdnStrategy)
	if primary.template != DefaultStarMakerCDNPrimary {
		t.Errorf("primary template = %q", primary.template)
	}
	if secondary.template != "https://mirror.test/{id}.mp4" {
		t.Errorf("secondary template = %q", secondary.template)
	}
}
