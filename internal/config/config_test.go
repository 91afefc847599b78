package config

import "testing"

func validBase() Config {
	cfg := Config{}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected Port=8080, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("expected driver=memory, got %q", cfg.Database.Driver)
	}
	if cfg.Pipeline.FrameIntervalMS != 200 {
		t.Errorf("expected FrameIntervalMS=200, got %d", cfg.Pipeline.FrameIntervalMS)
	}
	if cfg.Pipeline.Confidence != 0.35 {
		t.Errorf("expected Confidence=0.35, got %f", cfg.Pipeline.Confidence)
	}
	if cfg.Pipeline.StatsEvery != 100 {
		t.Errorf("expected StatsEvery=100, got %d", cfg.Pipeline.StatsEvery)
	}
	if cfg.Detectors.Backend != "sim" {
		t.Errorf("expected backend=sim, got %q", cfg.Detectors.Backend)
	}
	if cfg.Detectors.Guardian.BudgetMS != 100 {
		t.Errorf("expected guardian budget 100ms, got %d", cfg.Detectors.Guardian.BudgetMS)
	}
	if cfg.Detectors.Learner.BudgetMS != 150 {
		t.Errorf("expected learner budget 150ms, got %d", cfg.Detectors.Learner.BudgetMS)
	}
	if cfg.Detectors.Learner.VocabBudgetMS != 50 {
		t.Errorf("expected vocab budget 50ms, got %d", cfg.Detectors.Learner.VocabBudgetMS)
	}
	if cfg.Vocabulary.MaxEntries != 50 {
		t.Errorf("expected MaxEntries=50, got %d", cfg.Vocabulary.MaxEntries)
	}
	if cfg.Vocabulary.PruneAgeHours != 24 {
		t.Errorf("expected PruneAgeHours=24, got %d", cfg.Vocabulary.PruneAgeHours)
	}
	if cfg.Vocabulary.MinUseCount != 3 {
		t.Errorf("expected MinUseCount=3, got %d", cfg.Vocabulary.MinUseCount)
	}
	if cfg.Vocabulary.Path != "vocabulary.json" {
		t.Errorf("expected default vocabulary path, got %q", cfg.Vocabulary.Path)
	}
	if cfg.Embedding.Provider != "none" {
		t.Errorf("expected embedding=none, got %q", cfg.Embedding.Provider)
	}
	if cfg.Extractor.Provider != "none" {
		t.Errorf("expected extractor=none, got %q", cfg.Extractor.Provider)
	}
	if cfg.Journal.Path != "percept.db" {
		t.Errorf("expected journal path percept.db, got %q", cfg.Journal.Path)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:       HTTPConfig{Port: 9000, ReadTimeoutSec: 30},
		Database:   DatabaseConfig{Driver: "redis", Addrs: []string{"localhost:6379"}},
		Pipeline:   PipelineConfig{FrameIntervalMS: 50, Confidence: 0.5},
		Vocabulary: VocabularyConfig{MaxEntries: 10, PruneAgeHours: 48, MinUseCount: 2},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 9000 {
		t.Errorf("expected Port=9000, got %d", cfg.HTTP.Port)
	}
	if cfg.Database.Driver != "redis" {
		t.Errorf("expected driver=redis, got %q", cfg.Database.Driver)
	}
	if cfg.Pipeline.FrameIntervalMS != 50 {
		t.Errorf("expected FrameIntervalMS=50, got %d", cfg.Pipeline.FrameIntervalMS)
	}
	if cfg.Vocabulary.MaxEntries != 10 {
		t.Errorf("expected MaxEntries=10, got %d", cfg.Vocabulary.MaxEntries)
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := validBase()
	cfg.Database.Driver = "postgres"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown database driver")
	}
}

func TestValidate_RedisRequiresAddrs(t *testing.T) {
	cfg := validBase()
	cfg.Database.Driver = "redis"
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for redis driver without addrs")
	}
}

func TestValidate_HTTPBackendRequiresURLs(t *testing.T) {
	cfg := validBase()
	cfg.Detectors.Backend = "http"
	cfg.Detectors.Guardian.URL = "http://localhost:9001"
	// learner URL missing

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for http backend without learner url")
	}

	cfg.Detectors.Learner.URL = "http://localhost:9002"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error with both urls set: %v", err)
	}
}

func TestValidate_InvalidBudgetAction(t *testing.T) {
	cfg := validBase()
	cfg.Embedding.Budget.Action = "explode"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid budget action")
	}

	expected := `embedding.budget.action must be "warn" or "reject", got "explode"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_ValidBudgetActions(t *testing.T) {
	for _, action := range []string{"", "warn", "reject"} {
		t.Run("action="+action, func(t *testing.T) {
			cfg := validBase()
			cfg.Embedding.Budget.Action = action
			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for valid action %q: %v", action, err)
			}
		})
	}
}

func TestValidate_PromptTemplate(t *testing.T) {
	cfg := validBase()
	cfg.Detectors.Learner.PromptTemplate = "no verb here"

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for template without %%s")
	}

	cfg.Detectors.Learner.PromptTemplate = "a picture of a %s"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_ConfidenceRange(t *testing.T) {
	cfg := validBase()
	cfg.Pipeline.Confidence = 1.5

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for confidence > 1")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("PERCEPT_TEST_KEY", "secret")

	in := []byte("api_key: ${PERCEPT_TEST_KEY}\nmodel: ${PERCEPT_TEST_MODEL:-clip-vit}")
	out := string(expandEnvVars(in))

	if out != "api_key: secret\nmodel: clip-vit" {
		t.Errorf("unexpected expansion: %q", out)
	}
}
