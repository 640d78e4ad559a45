// Package config loads, validates, and normalizes the caseflow TOML
// configuration. A sample configuration documenting every key is embedded and
// written out by "caseflow config init".
package config
