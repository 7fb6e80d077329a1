package repository

import (
	"fmt"
	"os"

	"github.com/hypertrace/artifact-publisher/utils"
)

// Properties may also be provided the way Gradle reads project properties from the environment.
const GradleProjectEnvPrefix = "ORG_GRADLE_PROJECT_"

// CredentialRef names the properties holding the username and password of a target.
type CredentialRef struct {
	UsernameProperty string
	PasswordProperty string
}

func (ref CredentialRef) IsAnonymous() bool {
	return ref.UsernameProperty == "" && ref.PasswordProperty == ""
}

type Credentials struct {
	Username string
	Password string
}

func (c Credentials) IsEmpty() bool {
	return c.Username == "" && c.Password == ""
}

// CredentialSource looks up a credential property.
type CredentialSource interface {
	Lookup(property string) (string, bool)
}

// EnvCredentials reads properties from environment variables named PROPERTY or ORG_GRADLE_PROJECT_PROPERTY.
type EnvCredentials struct{}

func (EnvCredentials) Lookup(property string) (string, bool) {
	if value, ok := os.LookupEnv(property); ok && value != "" {
		return value, true
	}
	value, ok := os.LookupEnv(GradleProjectEnvPrefix + property)
	return value, ok && value != ""
}

// MapCredentials is a fixed set of properties.
type MapCredentials map[string]string

func (m MapCredentials) Lookup(property string) (string, bool) {
	value, ok := m[property]
	return value, ok && value != ""
}

// ResolveCredentials reads the referenced properties. Every referenced property must be present.
func ResolveCredentials(source CredentialSource, ref CredentialRef) (Credentials, error) {
	var credentials Credentials
	if ref.IsAnonymous() {
		return credentials, nil
	}
	for _, property := range []struct {
		name  string
		value *string
	}{{ref.UsernameProperty, &credentials.Username}, {ref.PasswordProperty, &credentials.Password}} {
		if property.name == "" {
			continue
		}
		value, ok := source.Lookup(property.name)
		if !ok {
			return Credentials{}, missingPropertyError(property.name)
		}
		*property.value = value
	}
	return credentials, nil
}

func missingPropertyError(property string) error {
	return &utils.ConfigurationError{
		Property: property,
		Message: fmt.Sprintf("missing expected property. It should be provided as the environment variable %s or %s%s",
			property, GradleProjectEnvPrefix, property),
	}
}
