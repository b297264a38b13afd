package store

import (
	"reflect"
	"time"
)

// Kind names an entity family
type Kind string

const (
	KindApplication   Kind = "application"
	KindAuthorization Kind = "authorization"
	KindScope         Kind = "scope"
	KindToken         Kind = "token"
)

// Kinds lists every entity family
func Kinds() []Kind {
	return []Kind{KindApplication, KindAuthorization, KindScope, KindToken}
}

// Entity is implemented by pointers to every base entity and to the types
// embedding one
type Entity interface {
	EntityID() string
	SetEntityID(id string)
}

// Application is the base application (client) entity
type Application struct {
	ID           string   `json:"id"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret,omitempty"`
	ClientType   string   `json:"client_type,omitempty"`
	DisplayName  string   `json:"display_name,omitempty"`
	RedirectURIs []string `json:"redirect_uris,omitempty"`
	Permissions  []string `json:"permissions,omitempty"`
}

func (a *Application) EntityID() string      { return a.ID }
func (a *Application) SetEntityID(id string) { a.ID = id }

// Authorization is the base authorization entity
type Authorization struct {
	ID            string     `json:"id"`
	ApplicationID string     `json:"application_id,omitempty"`
	Subject       string     `json:"subject"`
	Status        string     `json:"status,omitempty"`
	Type          string     `json:"type,omitempty"`
	Scopes        []string   `json:"scopes,omitempty"`
	CreationDate  *time.Time `json:"creation_date,omitempty"`
}

func (a *Authorization) EntityID() string      { return a.ID }
func (a *Authorization) SetEntityID(id string) { a.ID = id }

// Scope is the base scope entity
type Scope struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name,omitempty"`
	Description string   `json:"description,omitempty"`
	Resources   []string `json:"resources,omitempty"`
}

func (s *Scope) EntityID() string      { return s.ID }
func (s *Scope) SetEntityID(id string) { s.ID = id }

// Token is the base token entity
type Token struct {
	ID              string     `json:"id"`
	ApplicationID   string     `json:"application_id,omitempty"`
	AuthorizationID string     `json:"authorization_id,omitempty"`
	Subject         string     `json:"subject,omitempty"`
	Status          string     `json:"status,omitempty"`
	Type            string     `json:"type,omitempty"`
	ReferenceID     string     `json:"reference_id,omitempty"`
	Payload         string     `json:"payload,omitempty"`
	CreationDate    *time.Time `json:"creation_date,omitempty"`
	ExpirationDate  *time.Time `json:"expiration_date,omitempty"`
}

func (t *Token) EntityID() string      { return t.ID }
func (t *Token) SetEntityID(id string) { t.ID = id }

// DefaultEntities maps each family to the base entity shared by the bundled backends
func DefaultEntities() map[Kind]reflect.Type {
	return map[Kind]reflect.Type{
		KindApplication:   reflect.TypeFor[Application](),
		KindAuthorization: reflect.TypeFor[Authorization](),
		KindScope:         reflect.TypeFor[Scope](),
		KindToken:         reflect.TypeFor[Token](),
	}
}

// Compatible reports whether entity is base or a struct embedding base,
// directly or through other embedded structs. Pointer embedding does not count.
func Compatible(entity, base reflect.Type) bool {
	if entity == nil || base == nil {
		return false
	}
	if entity == base {
		return true
	}
	if entity.Kind() != reflect.Struct {
		return false
	}
	for i := range entity.NumField() {
		f := entity.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct && Compatible(f.Type, base) {
			return true
		}
	}
	return false
}
