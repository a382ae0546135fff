package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds scraper configuration.
type Config struct {
	BaseURL       string
	MaxProducts   int
	MaxRetries    int
	BackoffFactor float64
	RequestDelay  time.Duration
	JitterMin     time.Duration
	JitterMax     time.Duration
	Timeout       time.Duration
	UserAgents    []string
	Referer       string
	OutputFormat  string // text, json, or csv
	OutputFile    string // empty writes to stdout
	DebugDir      string
	DedupeMaxSize int
	MetricsAddr   string
	Verbose       bool
}

// DefaultConfig returns the fixed constants for the Product Hunt homepage.
func DefaultConfig() *Config {
	agents := make([]string, len(DefaultUserAgents))
	copy(agents, DefaultUserAgents)

	return &Config{
		BaseURL:       "https://www.producthunt.com",
		MaxProducts:   5,
		MaxRetries:    3,
		BackoffFactor: 2,
		RequestDelay:  3 * time.Second,
		JitterMin:     -1 * time.Second,
		JitterMax:     2 * time.Second,
		Timeout:       10 * time.Second,
		UserAgents:    agents,
		Referer:       "https://www.google.com/",
		OutputFormat:  "text",
		OutputFile:    "",
		DebugDir:      ".",
		DedupeMaxSize: 1024,
		MetricsAddr:   "",
		Verbose:       false,
	}
}

// Origin returns scheme://host of BaseURL.
func (c *Config) Origin() string {
	parsed, err := url.Parse(c.BaseURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("base URL scheme must be http or https, got %q", parsedURL.Scheme)
	}

	if c.MaxProducts <= 0 {
		return fmt.Errorf("max products must be positive")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive")
	}
	if c.BackoffFactor < 1 {
		return fmt.Errorf("backoff factor must be at least 1")
	}
	if c.RequestDelay < 0 {
		return fmt.Errorf("request delay cannot be negative")
	}
	if c.JitterMin > c.JitterMax {
		return fmt.Errorf("jitter min (%s) cannot exceed jitter max (%s)", c.JitterMin, c.JitterMax)
	}
	if c.RequestDelay+c.JitterMin < 0 {
		return fmt.Errorf("request delay (%s) plus jitter min (%s) cannot be negative", c.RequestDelay, c.JitterMin)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if len(c.UserAgents) == 0 {
		return fmt.Errorf("user agent pool cannot be empty")
	}
	for i, ua := range c.UserAgents {
		if ua == "" {
			return fmt.Errorf("user agent %d is empty", i)
		}
	}
	if c.OutputFormat != "text" && c.OutputFormat != "json" && c.OutputFormat != "csv" {
		return fmt.Errorf("output format must be text, json, or csv")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}

	return nil
}
