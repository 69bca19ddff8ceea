// Package config loads the satpush YAML configuration.
//
// Load reads the file, fills defaults for anything left out, applies
// SATPUSH_* environment overrides and validates the result. Secrets such
// as the broker password and the InfluxDB token are best supplied through
// the environment, with the file itself kept at mode 0600.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
