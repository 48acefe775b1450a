package config

import "testing"

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("API_PORT", "")
	t.Setenv("OPENAI_BASE_URL", "")
	t.Setenv("OPENAI_EMBED_MODEL", "")
	t.Setenv("TERMINOLOGY_PATH", "")
	t.Setenv("NATS_SUBJECT", "")
	t.Setenv("DEFAULT_TOP_K", "")
	t.Setenv("AUDIT_ENABLED", "")
	t.Setenv("RETRY_MAX_ATTEMPTS", "")

	cfg := Load()
	if cfg.APIPort != "8080" {
		t.Fatalf("expected default api port 8080, got %q", cfg.APIPort)
	}
	if cfg.OpenAIBaseURL != "https://api.openai.com" {
		t.Fatalf("expected default openai base url, got %q", cfg.OpenAIBaseURL)
	}
	if cfg.OpenAIEmbedModel != "text-embedding-3-small" {
		t.Fatalf("expected default embed model, got %q", cfg.OpenAIEmbedModel)
	}
	if cfg.TerminologyPath != "./terminology_lookup.json" {
		t.Fatalf("expected default terminology path, got %q", cfg.TerminologyPath)
	}
	if cfg.NATSSubject != "codes.retrieval.audit" {
		t.Fatalf("expected default audit subject, got %q", cfg.NATSSubject)
	}
	if cfg.DefaultTopK != 20 {
		t.Fatalf("expected default top k 20, got %d", cfg.DefaultTopK)
	}
	if !cfg.AuditEnabled {
		t.Fatal("expected audit enabled by default")
	}
	if cfg.RetryMaxAttempts != 3 {
		t.Fatalf("expected default retry attempts 3, got %d", cfg.RetryMaxAttempts)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("OPENAI_EMBED_MODEL", "text-embedding-3-large")
	t.Setenv("DEFAULT_TOP_K", "35")
	t.Setenv("AUDIT_ENABLED", "false")
	t.Setenv("API_RATE_LIMIT_RPS", "50")
	t.Setenv("API_MAX_IN_FLIGHT", "128")
	t.Setenv("BREAKER_ENABLED", "false")

	cfg := Load()
	if cfg.OpenAIEmbedModel != "text-embedding-3-large" {
		t.Fatalf("expected embed model override, got %q", cfg.OpenAIEmbedModel)
	}
	if cfg.DefaultTopK != 35 {
		t.Fatalf("expected top k 35, got %d", cfg.DefaultTopK)
	}
	if cfg.AuditEnabled {
		t.Fatal("expected audit disabled")
	}
	if cfg.APIRateLimitRPS != 50 || cfg.APIMaxInFlight != 128 {
		t.Fatalf("unexpected traffic control config: %+v", cfg)
	}
	if cfg.BreakerEnabled {
		t.Fatal("expected breaker disabled")
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("DEFAULT_TOP_K", "not-a-number")
	t.Setenv("AUDIT_ENABLED", "not-a-bool")

	cfg := Load()
	if cfg.DefaultTopK != 20 {
		t.Fatalf("expected fallback top k 20, got %d", cfg.DefaultTopK)
	}
	if !cfg.AuditEnabled {
		t.Fatal("expected fallback audit enabled")
	}
}
