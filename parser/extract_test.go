package parser

import (
	"regexp"
	"strings"
	"testing"

	"github.com/pbarros/go-watchex-export/models"
)

func TestExtractPrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		absent   bool
	}{
		{
			name:     "dollar prefix",
			input:    "[WTS] Seiko SKX007, asking $450 shipped",
			expected: "USD 450",
		},
		{
			name:     "dollar with cents",
			input:    "price is $1234.56 firm",
			expected: "USD 1234.56",
		},
		{
			name:     "usd suffix",
			input:    "looking for 300 USD or trade",
			expected: "USD 300",
		},
		{
			name:     "eur suffix",
			input:    "1200 EUR including fees",
			expected: "EUR 1200",
		},
		{
			name:     "euro prefix",
			input:    "asking €850 net to me",
			expected: "EUR 850",
		},
		{
			name:     "comma decimals stripped",
			input:    "899,50 EUR shipped",
			expected: "EUR 89950",
		},
		{
			name:     "first match wins",
			input:    "$100 OBO, was $150",
			expected: "USD 100",
		},
		{
			name:     "first currency wins across currencies",
			input:    "selling for 100 USD or €90",
			expected: "USD 100",
		},
		{
			name:   "no price",
			input:  "[WTT] trade only, no cash",
			absent: true,
		},
		{
			name:   "bare number without currency",
			input:  "reference 16610 from 1999",
			absent: true,
		},
		{
			name:   "empty text",
			input:  "",
			absent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractPrice(tt.input)
			if tt.absent {
				if got != nil {
					t.Fatalf("ExtractPrice(%q) = %q, want nil", tt.input, *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("ExtractPrice(%q) = nil, want %q", tt.input, tt.expected)
			}
			if *got != tt.expected {
				t.Fatalf("ExtractPrice(%q) = %q, want %q", tt.input, *got, tt.expected)
			}
		})
	}
}

func TestExtractPriceNormalizedShape(t *testing.T) {
	shape := regexp.MustCompile(`^(USD|EUR) \d+(\.\d{2})?$`)
	inputs := []string{
		"$45 obo",
		"asking $1234.56",
		"300 usd",
		"€99",
		"1000,00 eur shipped",
		"no price here",
		"",
	}
	for _, input := range inputs {
		if got := ExtractPrice(input); got != nil && !shape.MatchString(*got) {
			t.Fatalf("ExtractPrice(%q) = %q, not in normalized shape", input, *got)
		}
	}
}

func TestExtractLocation(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		body     string
		expected string
		absent   bool
	}{
		{
			name:     "country-state tag",
			title:    "[WTS] [USA-NY] Tudor Black Bay 58",
			expected: "USA-NY",
		},
		{
			name:     "bare state code after status tag",
			title:    "[WTS] [CA] Rolex Submariner",
			expected: "CA",
		},
		{
			name:     "slash tag",
			title:    "[WTB] [CAN/CONUS] Grand Seiko SBGA211",
			expected: "CAN/CONUS",
		},
		{
			name:     "body fallback",
			title:    "[WTS] Omega Speedmaster",
			body:     "Located in [EU], happy to ship",
			expected: "EU",
		},
		{
			name:   "status tag only",
			title:  "[WTS] Omega Speedmaster",
			body:   "no location anywhere",
			absent: true,
		},
		{
			name:   "lowercase two letters not a region code",
			title:  "[ca] something",
			absent: true,
		},
		{
			name:   "empty inputs",
			absent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractLocation(tt.title, tt.body)
			if tt.absent {
				if got != nil {
					t.Fatalf("ExtractLocation(%q, %q) = %q, want nil", tt.title, tt.body, *got)
				}
				return
			}
			if got == nil || *got != tt.expected {
				t.Fatalf("ExtractLocation(%q, %q) = %v, want %q", tt.title, tt.body, got, tt.expected)
			}
		})
	}
}

func TestExtractLocationPrefersTitle(t *testing.T) {
	got := ExtractLocation("[WTS] [USA-TX] Sinn 556", "shipping from [UK]")
	if got == nil || *got != "USA-TX" {
		t.Fatalf("location = %v, want USA-TX", got)
	}
}

func TestExtractShipDestinations(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		absent   bool
	}{
		{
			name:     "single hint",
			input:    "shipping to CONUS only",
			expected: "CONUS",
		},
		{
			name:     "multiple hints in declaration order",
			input:    "ships worldwide, EU and UK welcome",
			expected: "EU, UK, WORLDWIDE",
		},
		{
			name:     "conus plus canada",
			input:    "CONUS preferred, might do Canada at cost",
			expected: "CONUS, CANADA",
		},
		{
			name:     "case insensitive",
			input:    "happy to ship INTERNATIONAL",
			expected: "WORLDWIDE",
		},
		{
			name:     "us only phrase",
			input:    "sorry, US only",
			expected: "USA",
		},
		{
			name:   "no hints",
			input:  "pickup in person preferred",
			absent: true,
		},
		{
			name:   "empty text",
			input:  "",
			absent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractShipDestinations(tt.input)
			if tt.absent {
				if got != nil {
					t.Fatalf("ExtractShipDestinations(%q) = %q, want nil", tt.input, *got)
				}
				return
			}
			if got == nil || *got != tt.expected {
				t.Fatalf("ExtractShipDestinations(%q) = %v, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExtractShipDestinationsNoDuplicates(t *testing.T) {
	got := ExtractShipDestinations("worldwide shipping, truly worldwide, international too")
	if got == nil {
		t.Fatalf("expected a match")
	}
	if *got != "WORLDWIDE" {
		t.Fatalf("destinations = %q, want single WORLDWIDE", *got)
	}
	if strings.Count(*got, "WORLDWIDE") != 1 {
		t.Fatalf("tag repeated: %q", *got)
	}
}

func TestInferBuyerLabel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected models.LabelPolicy
	}{
		{name: "buyer provides", input: "buyer provides label", expected: models.LabelYes},
		{name: "buyer sends article", input: "Buyer sends a label please", expected: models.LabelYes},
		{name: "buyers label apostrophe", input: "ship on buyer's label", expected: models.LabelYes},
		{name: "seller supplies", input: "seller supplies a label", expected: models.LabelNo},
		{name: "shipping included", input: "Shipping included in price", expected: models.LabelNo},
		{name: "i will ship", input: "I will ship CONUS", expected: models.LabelNo},
		{name: "yes wins over no", input: "buyer provides label but shipping included", expected: models.LabelYes},
		{name: "no phrases", input: "great watch, barely worn", expected: models.LabelUnknown},
		{name: "empty text", input: "", expected: models.LabelUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferBuyerLabel(tt.input); got != tt.expected {
				t.Fatalf("InferBuyerLabel(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExtractBrandModel(t *testing.T) {
	tests := []struct {
		name  string
		title string
		brand string
		model string
	}{
		{
			name:  "brand and model",
			title: "[WTS] [USA-CA] Omega Seamaster 300",
			brand: "Omega",
			model: "Seamaster 300",
		},
		{
			name:  "single token",
			title: "[WTS] SoloToken",
			brand: "SoloToken",
		},
		{
			name:  "no tags",
			title: "Rolex Datejust 41 blue dial",
			brand: "Rolex",
			model: "Datejust 41 blue dial",
		},
		{
			name:  "tags only",
			title: "[WTS] [CA]",
		},
		{
			name:  "empty title",
			title: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			brand, model := ExtractBrandModel(tt.title)
			if tt.brand == "" {
				if brand != nil {
					t.Fatalf("brand = %q, want nil", *brand)
				}
			} else if brand == nil || *brand != tt.brand {
				t.Fatalf("brand = %v, want %q", brand, tt.brand)
			}
			if tt.model == "" {
				if model != nil {
					t.Fatalf("model = %q, want nil", *model)
				}
			} else if model == nil || *model != tt.model {
				t.Fatalf("model = %v, want %q", model, tt.model)
			}
		})
	}
}

func TestExtractBrandModelTruncates(t *testing.T) {
	title := "[WTS] Seiko " + strings.Repeat("x", 300)
	_, model := ExtractBrandModel(title)
	if model == nil {
		t.Fatalf("expected a model")
	}
	if got := len([]rune(*model)); got != 200 {
		t.Fatalf("model length = %d, want 200", got)
	}
}
