package database

import "testing"

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.MaxOpenConns != 25 {
		t.Errorf("MaxOpenConns = %d, want 25", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns != 5 {
		t.Errorf("MaxIdleConns = %d, want 5", cfg.MaxIdleConns)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.MaxRetries)
	}
	if cfg.SlowQueryThreshold != "200ms" {
		t.Errorf("SlowQueryThreshold = %q, want 200ms", cfg.SlowQueryThreshold)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing dsn", func(c *Config) { c.DSN = "" }, true},
		{"idle exceeds open", func(c *Config) { c.MaxIdleConns = 50 }, true},
		{"bad lifetime", func(c *Config) { c.ConnMaxLifetime = "forever" }, true},
		{"bad slow threshold", func(c *Config) { c.SlowQueryThreshold = "fast" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{DSN: "postgres://localhost/companion"}
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
