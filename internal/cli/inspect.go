package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/project-kessel/oidcforge/internal/config"
	"github.com/project-kessel/oidcforge/internal/credentials"
	"github.com/project-kessel/oidcforge/internal/handler"
	"github.com/project-kessel/oidcforge/internal/options"
	"github.com/project-kessel/oidcforge/internal/store"
)

// NewInspectCmd creates the inspect command
func NewInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the materialized server and validation options",
		Long: `Build the server and validation options from configuration and print
them as JSON, together with the public JSON Web Key Set of the asymmetric
signing and encryption credentials.

Examples:
  # Inspect a config file
  oidcforge inspect --config ./oidcforge.yaml

  # Also count the entities of every store
  oidcforge inspect --config ./oidcforge.yaml --stores

  # Export the public key set
  oidcforge inspect --config ./oidcforge.yaml --jwks-out ./jwks.json`,
		RunE: runInspect,
	}

	config.RegisterFlags(cmd.Flags())
	cmd.Flags().Bool("stores", false, "count the entities of every store")
	cmd.Flags().String("jwks-out", "", "write the public JSON Web Key Set to this file")

	return cmd
}

type inspection struct {
	Server     serverSummary     `json:"server"`
	Validation validationSummary `json:"validation"`
	Stores     map[string]int64  `json:"stores,omitempty"`
	JWKS       json.RawMessage   `json:"jwks"`
}

type serverSummary struct {
	Issuer                string              `json:"issuer,omitempty"`
	Endpoints             map[string][]string `json:"endpoints,omitempty"`
	Lifetimes             map[string]string   `json:"lifetimes"`
	GrantTypes            []string            `json:"grant_types"`
	ResponseTypes         []string            `json:"response_types"`
	Claims                []string            `json:"claims"`
	Scopes                []string            `json:"scopes"`
	SigningCredentials    []credentialSummary `json:"signing_credentials"`
	EncryptionCredentials []credentialSummary `json:"encryption_credentials"`
	Flags                 map[string]bool     `json:"flags"`
	Handlers              handlerListsSummary `json:"handlers"`
}

type validationSummary struct {
	Issuer                string              `json:"issuer,omitempty"`
	Audiences             []string            `json:"audiences"`
	ClientID              string              `json:"client_id,omitempty"`
	Type                  string              `json:"type"`
	EncryptionCredentials []credentialSummary `json:"encryption_credentials"`
	Flags                 map[string]bool     `json:"flags"`
	Handlers              handlerListsSummary `json:"handlers"`
}

type credentialSummary struct {
	KeyID      string `json:"kid"`
	Algorithm  string `json:"alg"`
	Encryption string `json:"enc,omitempty"`
}

type handlerListsSummary struct {
	Custom   []handlerSummary `json:"custom"`
	Defaults []handlerSummary `json:"defaults"`
}

type handlerSummary struct {
	Service  string   `json:"service"`
	Context  string   `json:"context"`
	Lifetime string   `json:"lifetime"`
	Order    int      `json:"order"`
	Filters  []string `json:"filters,omitempty"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	provider, err := loadProvider(cmd)
	if err != nil {
		return err
	}
	defer provider.Close()

	server, err := provider.ServerOptions()
	if err != nil {
		return err
	}
	validation, err := provider.ValidationOptions()
	if err != nil {
		return err
	}

	jwks, err := credentials.PublicKeySet(server.SigningCredentials, server.EncryptionCredentials)
	if err != nil {
		return fmt.Errorf("failed to build the public key set: %w", err)
	}
	jwksJSON, err := json.MarshalIndent(jwks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode the public key set: %w", err)
	}

	result := inspection{
		Server:     summarizeServer(server),
		Validation: summarizeValidation(validation),
		JWKS:       jwksJSON,
	}

	if counts, _ := cmd.Flags().GetBool("stores"); counts {
		result.Stores, err = countEntities(ctx, provider)
		if err != nil {
			return err
		}
	}

	if path, _ := cmd.Flags().GetString("jwks-out"); path != "" {
		if err := provider.FileSystem().WriteFileAtomic(path, jwksJSON, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func countEntities(ctx context.Context, provider *config.Provider) (map[string]int64, error) {
	resolvers, err := provider.StoreResolvers(ctx)
	if err != nil {
		return nil, err
	}

	counters := []struct {
		kind  store.Kind
		count func() (int64, error)
	}{
		{store.KindApplication, countOf[store.Application](ctx, resolvers.Applications)},
		{store.KindAuthorization, countOf[store.Authorization](ctx, resolvers.Authorizations)},
		{store.KindScope, countOf[store.Scope](ctx, resolvers.Scopes)},
		{store.KindToken, countOf[store.Token](ctx, resolvers.Tokens)},
	}

	counts := make(map[string]int64, len(counters))
	for _, c := range counters {
		n, err := c.count()
		if err != nil {
			return nil, fmt.Errorf("failed to count %s entities: %w", c.kind, err)
		}
		counts[string(c.kind)] = n
	}
	return counts, nil
}

func countOf[T any](ctx context.Context, r *store.Resolver) func() (int64, error) {
	return func() (int64, error) {
		s, err := store.Get[T](r)
		if err != nil {
			return 0, err
		}
		return s.Count(ctx)
	}
}

func summarizeServer(o *options.ServerOptions) serverSummary {
	s := serverSummary{
		Issuer:        urlString(o.Issuer),
		Endpoints:     map[string][]string{},
		Lifetimes:     map[string]string{},
		GrantTypes:    nonNil(o.GrantTypes),
		ResponseTypes: nonNil(o.ResponseTypes),
		Claims:        nonNil(o.Claims),
		Scopes:        nonNil(o.Scopes),
		Flags: map[string]bool{
			"disable_access_token_encryption": o.DisableAccessTokenEncryption,
			"disable_scope_validation":        o.DisableScopeValidation,
			"disable_token_storage":           o.DisableTokenStorage,
			"accept_anonymous_clients":        o.AcceptAnonymousClients,
			"require_pkce":                    o.RequireProofKeyForCodeExchange,
			"use_reference_access_tokens":     o.UseReferenceAccessTokens,
		},
		Handlers: summarizeHandlers(o.HandlerLists),
	}

	for _, e := range options.Endpoints() {
		uris := *o.EndpointURIs(e)
		if len(uris) == 0 {
			continue
		}
		for _, u := range uris {
			s.Endpoints[e.String()] = append(s.Endpoints[e.String()], u.String())
		}
	}

	lifetimes := map[string]*time.Duration{
		"access_token":       o.AccessTokenLifetime,
		"authorization_code": o.AuthorizationCodeLifetime,
		"identity_token":     o.IdentityTokenLifetime,
		"refresh_token":      o.RefreshTokenLifetime,
		"device_code":        o.DeviceCodeLifetime,
		"user_code":          o.UserCodeLifetime,
	}
	for name, d := range lifetimes {
		if d == nil {
			s.Lifetimes[name] = "none"
			continue
		}
		s.Lifetimes[name] = d.String()
	}

	s.SigningCredentials = []credentialSummary{}
	for _, c := range o.SigningCredentials {
		s.SigningCredentials = append(s.SigningCredentials, credentialSummary{
			KeyID:     c.Key.KeyID(),
			Algorithm: c.Algorithm.String(),
		})
	}
	s.EncryptionCredentials = summarizeEncryption(o.EncryptionCredentials)
	return s
}

func summarizeValidation(o *options.ValidationOptions) validationSummary {
	return validationSummary{
		Issuer:                urlString(o.Issuer),
		Audiences:             nonNil(o.Audiences),
		ClientID:              o.ClientID,
		Type:                  o.ValidationType.String(),
		EncryptionCredentials: summarizeEncryption(o.EncryptionCredentials),
		Flags: map[string]bool{
			"enable_authorization_entry_validation": o.EnableAuthorizationEntryValidation,
			"enable_token_entry_validation":         o.EnableTokenEntryValidation,
		},
		Handlers: summarizeHandlers(o.HandlerLists),
	}
}

func summarizeEncryption(list []credentials.EncryptingCredential) []credentialSummary {
	out := []credentialSummary{}
	for _, c := range list {
		out = append(out, credentialSummary{
			KeyID:      c.Key.KeyID(),
			Algorithm:  c.KeyAlgorithm.String(),
			Encryption: c.ContentEncryption.String(),
		})
	}
	return out
}

func summarizeHandlers(l options.HandlerLists) handlerListsSummary {
	return handlerListsSummary{
		Custom:   summarizeDescriptors(l.CustomHandlers),
		Defaults: summarizeDescriptors(l.DefaultHandlers),
	}
}

func summarizeDescriptors(list []handler.Descriptor) []handlerSummary {
	out := []handlerSummary{}
	for _, d := range list {
		s := handlerSummary{
			Service:  d.ServiceType.String(),
			Context:  d.ContextType.String(),
			Lifetime: d.Lifetime.String(),
			Order:    d.Order,
		}
		for _, f := range d.Filters {
			if cel, ok := f.(*handler.CELFilter); ok {
				s.Filters = append(s.Filters, cel.Script())
				continue
			}
			s.Filters = append(s.Filters, fmt.Sprintf("%T", f))
		}
		out = append(out, s)
	}
	return out
}

func urlString(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
