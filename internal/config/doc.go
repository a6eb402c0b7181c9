// Package config reads the service configuration file and resolves the
// process-wide settings derived from it. Sources are applied with precedence:
// CLI flags > Environment variables (.env file as fallback) > YAML config.
// Keys the YAML file must define are never defaulted; a missing key fails Load.
package config
