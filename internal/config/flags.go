package config

import "github.com/spf13/pflag"

// flagSpec binds a command-line flag to a configuration key
type flagSpec struct {
	name  string
	key   string
	usage string
}

var flagSpecs = []flagSpec{
	{"server-issuer", "server.issuer", "absolute issuer URI of the server"},
	{"validation-issuer", "validation.issuer", "issuer expected by the validation component"},
	{"store-backend", "store.backend", "persistence backend: memory, sqlite or postgres"},
	{"store-dsn", "store.dsn", "SQL data source name"},
	{"store-key-type", "store.key_type", "entity identifier type: string or uuid"},
	{"certificates-root", "certificates.root", "directory holding the certificate stores"},
	{"log-level", "observability.log_level", "log level: debug, info, warn or error"},
	{"log-format", "observability.log_format", "log format: json or text"},
}

// RegisterFlags registers one string flag per overridable configuration key
func RegisterFlags(flags *pflag.FlagSet) {
	for _, f := range flagSpecs {
		flags.String(f.name, "", f.usage)
	}
	flags.Bool("store-auto-migrate", false, "apply pending SQL migrations on startup")
}

// GetFlagMapping maps flag names to configuration keys
func GetFlagMapping() map[string]string {
	m := make(map[string]string, len(flagSpecs)+1)
	for _, f := range flagSpecs {
		m[f.name] = f.key
	}
	m["store-auto-migrate"] = "store.auto_migrate"
	return m
}
