package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// LoadEnvFiles merges flat JSON objects (e.g. env/dev.json,env/ci.json);
// later files win. Non-string values are coerced with fmt.Sprint.
func LoadEnvFiles(paths []string) (map[string]string, error) {
	out := map[string]string{}
	for _, p := range paths {
		if p == "" {
			continue
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		for k, v := range m {
			if s, ok := v.(string); ok {
				out[k] = s
				continue
			}
			out[k] = fmt.Sprint(v)
		}
	}
	return out, nil
}

// ApplyEnv overrides config fields from env-file keys. Unknown keys are
// ignored so one env file can serve several tools.
func (c *Config) ApplyEnv(vars map[string]string) error {
	set := func(key string, dst *string) {
		if v, ok := vars[key]; ok && v != "" {
			*dst = v
		}
	}
	set("BASE_URL", &c.BaseURL)
	set("AUTH_COOKIE", &c.AuthCookie)
	set("EMAIL", &c.Primary.Email)
	set("PASSWORD", &c.Primary.Password)
	set("STORE_NAME", &c.Primary.StoreName)
	set("SECOND_EMAIL", &c.Secondary.Email)
	set("SECOND_PASSWORD", &c.Secondary.Password)
	if v, ok := vars["REQUEST_TIMEOUT"]; ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return wrapValidation(fmt.Sprintf("REQUEST_TIMEOUT: %v", err))
		}
		c.RequestTimeout = d
	}
	return c.Validate()
}
