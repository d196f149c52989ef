// Package config handles loading and validating fetcher configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with FETCHER_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The Eufy password, Gemini key, InfluxDB token and JWT secret should be
//     set via environment variables (or a .env file), not committed YAML
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Eufy.Country)
package config
