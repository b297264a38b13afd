package config

// Config is the root configuration
type Config struct {
	Server        ServerConfig         `koanf:"server"`
	Validation    ValidationConfig     `koanf:"validation"`
	Store         StoreConfig          `koanf:"store"`
	Certificates  CertificatesConfig   `koanf:"certificates"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

// ServerConfig configures the server builder
type ServerConfig struct {
	// Issuer is the absolute issuer URI; empty infers it per request
	Issuer string `koanf:"issuer"`

	// Endpoints maps endpoint names (token, authorization, jwks, ...) to their URIs
	Endpoints map[string][]string `koanf:"endpoints"`

	// Lifetimes maps artifact names (access_token, authorization_code,
	// identity_token, refresh_token, device_code, user_code) to a duration
	// such as "1h", or "none" for artifacts that never expire
	Lifetimes map[string]string `koanf:"lifetimes"`

	// Flows lists the built-in flows to enable (authorization_code,
	// client_credentials, device_authorization, implicit, password,
	// refresh_token); any other value is enabled as a custom grant type
	Flows []string `koanf:"flows"`

	Claims []string `koanf:"claims"`
	Scopes []string `koanf:"scopes"`

	DisableAccessTokenEncryption   bool `koanf:"disable_access_token_encryption"`
	DisableScopeValidation         bool `koanf:"disable_scope_validation"`
	DisableTokenStorage            bool `koanf:"disable_token_storage"`
	AcceptAnonymousClients         bool `koanf:"accept_anonymous_clients"`
	RequireProofKeyForCodeExchange bool `koanf:"require_pkce"`
	UseReferenceAccessTokens       bool `koanf:"use_reference_access_tokens"`

	SigningCredentials    []CredentialConfig `koanf:"signing_credentials"`
	EncryptionCredentials []CredentialConfig `koanf:"encryption_credentials"`

	Handlers HandlersConfig `koanf:"handlers"`
}

// ValidationConfig configures the validation builder
type ValidationConfig struct {
	Issuer    string   `koanf:"issuer"`
	Audiences []string `koanf:"audiences"`
	ClientID  string   `koanf:"client_id"`

	// Type is "direct" or "introspection"
	Type string `koanf:"type"`

	EnableAuthorizationEntryValidation bool `koanf:"enable_authorization_entry_validation"`
	EnableTokenEntryValidation         bool `koanf:"enable_token_entry_validation"`

	EncryptionCredentials []CredentialConfig `koanf:"encryption_credentials"`

	Handlers HandlersConfig `koanf:"handlers"`
}

// HandlersConfig adjusts the built-in handlers of a component
type HandlersConfig struct {
	// Disabled lists built-in handlers to remove, by type name (e.g. ValidateScopes)
	Disabled []string `koanf:"disabled"`

	// Filters maps built-in handler names to a CEL expression gating them.
	// A filtered handler is re-registered as a custom handler.
	Filters map[string]string `koanf:"filters"`
}

// CredentialConfig describes one signing or encryption credential
type CredentialConfig struct {
	// Type is one of:
	//   - ephemeral: a key generated at startup
	//   - file: a PEM bundle or PKCS#12 archive at Path
	//   - store: the certificate with Thumbprint in a certificate store
	//   - symmetric: a base64-encoded symmetric key in Key (encryption only)
	//   - persisted: a generated key saved under the directory at Path
	Type string `koanf:"type"`

	Path     string `koanf:"path"`
	Password string `koanf:"password"`

	Thumbprint    string `koanf:"thumbprint"`
	StoreName     string `koanf:"store_name"`
	StoreLocation string `koanf:"store_location"`

	Key string `koanf:"key"`

	// Name and KeyType select the persisted key; KeyType is one of
	// EC-P256, EC-P384, RSA-2048, RSA-4096 or AES-256
	Name    string `koanf:"name"`
	KeyType string `koanf:"key_type"`
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	// Backend is "memory", "sqlite" or "postgres"
	Backend string `koanf:"backend"`

	// DSN is the SQL data source name; unused by the memory backend
	DSN string `koanf:"dsn"`

	// KeyType is "string" or "uuid"
	KeyType string `koanf:"key_type"`

	// AutoMigrate applies pending SQL migrations when the backend is built
	AutoMigrate bool `koanf:"auto_migrate"`
}

// CertificatesConfig configures the directory-backed certificate stores
type CertificatesConfig struct {
	// Root holds the stores as <root>/<location>/<name>
	Root string `koanf:"root"`
}

// ObservabilityConfig configures logging and observers
type ObservabilityConfig struct {
	// Type is "logging" or "noop"
	Type string `koanf:"type"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// Per-event overrides
	HandlerRegistry *EventLoggingConfig `koanf:"handler_registry"`
	StoreResolution *EventLoggingConfig `koanf:"store_resolution"`
}

// EventLoggingConfig overrides logging for one event
type EventLoggingConfig struct {
	Enabled  *bool  `koanf:"enabled"`
	LogLevel string `koanf:"log_level"`
}
