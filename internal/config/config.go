// Package config resolves the process-wide ProviderConfig from environment
// variables at startup: the builtin provider table, the custom-base-URL
// path, endpoint-kind classification, and API key selection.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

// EndpointKind is the upstream dialect the proxy must translate to/from.
type EndpointKind string

const (
	EndpointOpenAI     EndpointKind = "openai"
	EndpointAnthropic  EndpointKind = "anthropic"
	defaultAnthropicAPI             = "2023-06-01"
)

// builtinProvider describes one of the proxy's known upstream providers.
type builtinProvider struct {
	label        string
	baseURL      string
	kind         EndpointKind
	keyEnvVars   []string // checked in order, first non-empty wins
	extraHeaders func(cfg *ProviderConfig) map[string]string
}

var builtinProviders = []builtinProvider{
	{
		label:      "openrouter",
		baseURL:    "https://openrouter.ai/api/v1",
		kind:       EndpointOpenAI,
		keyEnvVars: []string{"OPENROUTER_API_KEY"},
		extraHeaders: func(cfg *ProviderConfig) map[string]string {
			h := map[string]string{}
			if v := os.Getenv("OPENROUTER_SITE_URL"); v != "" {
				h["HTTP-Referer"] = v
			}
			if v := os.Getenv("OPENROUTER_APP_TITLE"); v != "" {
				h["X-Title"] = v
			}
			return h
		},
	},
	{
		label:      "openai",
		baseURL:    "https://api.openai.com/v1",
		kind:       EndpointOpenAI,
		keyEnvVars: []string{"OPENAI_API_KEY"},
	},
	{
		label:      "together",
		baseURL:    "https://api.together.xyz/v1",
		kind:       EndpointOpenAI,
		keyEnvVars: []string{"TOGETHER_API_KEY"},
	},
	{
		label:      "deepseek",
		baseURL:    "https://api.deepseek.com/anthropic",
		kind:       EndpointAnthropic,
		keyEnvVars: []string{"DEEPSEEK_API_KEY"},
	},
	{
		label:      "glm",
		baseURL:    "https://open.bigmodel.cn/api/anthropic",
		kind:       EndpointAnthropic,
		keyEnvVars: []string{"GLM_API_KEY", "ZAI_API_KEY"},
	},
}

// ProviderConfig is the process-wide configuration, built once by Resolve
// and shared (read-only) across every request goroutine.
type ProviderConfig struct {
	BaseURL        string
	EndpointKind   EndpointKind
	ProviderLabel  string
	APIKey         string
	ExtraHeaders   map[string]string
	AuthHeaderName string // "Authorization" or "x-api-key"

	ReasoningModel  string
	CompletionModel string
	ValueModel      string

	AnthropicVersion string
	AnthropicBeta    string

	Debug         bool
	ForceXMLTools bool

	// requestCounter is the monotonic per-request counter used only for log
	// correlation. It has no invariant besides uniqueness.
	requestCounter atomic.Uint64
}

// NextRequestID returns a monotonically increasing counter value for log
// correlation. It is the only mutable state ProviderConfig exposes, and it
// carries no ordering guarantee beyond uniqueness.
func (c *ProviderConfig) NextRequestID() uint64 {
	return c.requestCounter.Add(1)
}

// HasKey reports whether an API key was resolved.
func (c *ProviderConfig) HasKey() bool {
	return c.APIKey != ""
}

// Resolve builds the ProviderConfig from environment inputs: a custom base
// URL wins over the provider-label lookup, and the key search runs explicit
// custom key, generic API_KEY, provider-specific vars, then the OpenRouter
// fallback.
func Resolve() *ProviderConfig {
	cfg := &ProviderConfig{
		ReasoningModel:   getenvDefault("REASONING_MODEL", "anthropic/claude-opus-4.5"),
		CompletionModel:  getenvDefault("COMPLETION_MODEL", "anthropic/claude-sonnet-4.5"),
		ValueModel:       getenvDefault("VALUE_MODEL", "anthropic/claude-haiku-4.5"),
		AnthropicVersion: getenvDefault("ANTHROPIC_VERSION", defaultAnthropicAPI),
		AnthropicBeta:    os.Getenv("ANTHROPIC_BETA"),
		Debug:            truthy(os.Getenv("DEBUG")),
		ForceXMLTools:    truthy(os.Getenv("FORCE_XML_TOOLS")),
		ExtraHeaders:     map[string]string{},
	}

	if customURL := os.Getenv("ANTHROPIC_PROXY_BASE_URL"); customURL != "" {
		cfg.BaseURL = strings.TrimRight(customURL, "/")
		cfg.ProviderLabel = getenvDefault("ANTHROPIC_PROXY_PROVIDER", "custom")
		cfg.EndpointKind = classifyEndpointKind(customURL)
		cfg.APIKey = firstNonEmpty(os.Getenv("CUSTOM_API_KEY"), os.Getenv("API_KEY"), os.Getenv("OPENROUTER_API_KEY"))
	} else {
		label := strings.ToLower(getenvDefault("ANTHROPIC_PROXY_PROVIDER", "openrouter"))
		bp := lookupBuiltin(label)
		cfg.BaseURL = bp.baseURL
		cfg.ProviderLabel = bp.label
		cfg.EndpointKind = bp.kind
		cfg.APIKey = resolveKey(bp)
		if bp.extraHeaders != nil {
			for k, v := range bp.extraHeaders(cfg) {
				cfg.ExtraHeaders[k] = v
			}
		}
	}

	if cfg.EndpointKind == EndpointAnthropic {
		cfg.AuthHeaderName = "x-api-key"
		cfg.ExtraHeaders["anthropic-version"] = cfg.AnthropicVersion
		if cfg.AnthropicBeta != "" {
			cfg.ExtraHeaders["anthropic-beta"] = cfg.AnthropicBeta
		}
	} else {
		cfg.AuthHeaderName = "Authorization"
	}

	log.Printf("anthropic-proxy: provider=%s endpoint=%s reasoning=%s completion=%s value=%s key_present=%t",
		cfg.ProviderLabel, cfg.EndpointKind, cfg.ReasoningModel, cfg.CompletionModel, cfg.ValueModel, cfg.HasKey())

	return cfg
}

func lookupBuiltin(label string) builtinProvider {
	for _, bp := range builtinProviders {
		if bp.label == label {
			return bp
		}
	}
	return builtinProviders[0]
}

func resolveKey(bp builtinProvider) string {
	if v := os.Getenv("CUSTOM_API_KEY"); v != "" {
		return v
	}
	if v := os.Getenv("API_KEY"); v != "" {
		return v
	}
	for _, envVar := range bp.keyEnvVars {
		if v := os.Getenv(envVar); v != "" {
			return v
		}
	}
	return os.Getenv("OPENROUTER_API_KEY")
}

// classifyEndpointKind infers the endpoint dialect from CUSTOM_ENDPOINT_KIND
// or, when that is "auto" (the default), from the base URL's path suffix.
func classifyEndpointKind(baseURL string) EndpointKind {
	switch strings.ToLower(os.Getenv("CUSTOM_ENDPOINT_KIND")) {
	case "openai":
		return EndpointOpenAI
	case "anthropic":
		return EndpointAnthropic
	}
	if strings.HasSuffix(strings.TrimRight(baseURL, "/"), "/anthropic") {
		return EndpointAnthropic
	}
	return EndpointOpenAI
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truthy(v string) bool {
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return strings.EqualFold(v, "yes") || strings.EqualFold(v, "on")
	}
	return b
}

// Port returns the listen port from PORT, defaulting to 3000.
func Port() string {
	if v := os.Getenv("PORT"); v != "" {
		return v
	}
	return "3000"
}

// ConfigError formats a consistent "no key" message for the caller that
// needs a proxyerr.Error without importing this package from proxyerr
// (avoids an import cycle — proxyerr stays dependency-free).
func ConfigError(label string) string {
	return fmt.Sprintf("No API key found for provider %s", label)
}
