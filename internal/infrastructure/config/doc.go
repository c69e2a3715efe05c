// Package config handles loading and validating intercom-core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (device password, broker password, tokens) should be
//     set via environment variables rather than committed to the config file
//   - The config file should have restricted permissions (0600)
//   - The JWT secret must be set before the daemon will start
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.Host)
package config
