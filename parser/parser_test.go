package parser

import (
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-launches/models"
)

func TestValidateProduct(t *testing.T) {
	tests := []struct {
		name    string
		product *models.Product
		wantErr bool
	}{
		{
			name: "valid product",
			product: &models.Product{
				Name:        "Launchpad",
				Description: "Ship faster",
				Votes:       "412",
				URL:         "https://www.producthunt.com/posts/launchpad",
				ScrapedAt:   time.Now(),
			},
			wantErr: false,
		},
		{
			name:    "nil product",
			product: nil,
			wantErr: true,
		},
		{
			name: "missing name",
			product: &models.Product{
				Description: "Ship faster",
				Votes:       "412",
				URL:         "https://www.producthunt.com/posts/launchpad",
				ScrapedAt:   time.Now(),
			},
			wantErr: true,
		},
		{
			name: "blank votes",
			product: &models.Product{
				Name:        "Launchpad",
				Description: "Ship faster",
				Votes:       "   ",
				URL:         "https://www.producthunt.com/posts/launchpad",
				ScrapedAt:   time.Now(),
			},
			wantErr: true,
		},
		{
			name: "relative url",
			product: &models.Product{
				Name:        "Launchpad",
				Description: "Ship faster",
				Votes:       "412",
				URL:         "/posts/launchpad",
				ScrapedAt:   time.Now(),
			},
			wantErr: true,
		},
		{
			name: "missing timestamp",
			product: &models.Product{
				Name:        "Launchpad",
				Description: "Ship faster",
				Votes:       "412",
				URL:         "https://www.producthunt.com/posts/launchpad",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProduct(tt.product)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProduct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAbsoluteURL(t *testing.T) {
	const origin = "https://www.producthunt.com"
	tests := []struct {
		name     string
		href     string
		expected string
	}{
		{
			name:     "site relative",
			href:     "/posts/abc",
			expected: "https://www.producthunt.com/posts/abc",
		},
		{
			name:     "absolute passes through",
			href:     "https://example.com/launch",
			expected: "https://example.com/launch",
		},
		{
			name:     "scheme relative",
			href:     "//cdn.producthunt.com/posts/abc",
			expected: "https://cdn.producthunt.com/posts/abc",
		},
		{
			name:     "surrounding whitespace",
			href:     "  /products/abc ",
			expected: "https://www.producthunt.com/products/abc",
		},
		{
			name:     "path relative untouched",
			href:     "posts/abc",
			expected: "posts/abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AbsoluteURL(origin, tt.href); got != tt.expected {
				t.Errorf("AbsoluteURL(%q) = %q, want %q", tt.href, got, tt.expected)
			}
		})
	}
}

func TestAbsoluteURLOriginTrailingSlash(t *testing.T) {
	if got := AbsoluteURL("https://www.producthunt.com/", "/posts/abc"); got != "https://www.producthunt.com/posts/abc" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "  412  ", expected: "412"},
		{input: "\n\tShip faster\n", expected: "Ship faster"},
		{input: "", expected: ""},
	}

	for _, tt := range tests {
		if got := NormalizeText(tt.input); got != tt.expected {
			t.Errorf("NormalizeText(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
