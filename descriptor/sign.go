package descriptor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// Signer creates detached ASCII-armored PGP signatures with an in-memory private key.
type Signer struct {
	entity *openpgp.Entity
}

// NewSigner reads an armored private key. keyId is optional and selects the key in a keyring holding several keys;
// both the short (8 hex digits) and long (16 hex digits) forms are accepted.
func NewSigner(armoredKey, passphrase, keyId string) (*Signer, error) {
	keyRing, err := openpgp.ReadArmoredKeyRing(strings.NewReader(armoredKey))
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	entity, err := selectEntity(keyRing, keyId)
	if err != nil {
		return nil, err
	}
	if entity.PrivateKey == nil {
		return nil, errors.New("the signing key does not contain a private key")
	}
	if err = decryptEntity(entity, []byte(passphrase)); err != nil {
		return nil, err
	}
	return &Signer{entity: entity}, nil
}

func selectEntity(keyRing openpgp.EntityList, keyId string) (*openpgp.Entity, error) {
	if len(keyRing) == 0 {
		return nil, errors.New("no signing key found")
	}
	if keyId == "" {
		return keyRing[0], nil
	}
	keyId = strings.ToUpper(strings.TrimPrefix(keyId, "0x"))
	for _, entity := range keyRing {
		if matchesKeyId(entity.PrimaryKey.KeyIdString(), keyId) {
			return entity, nil
		}
		for _, subkey := range entity.Subkeys {
			if matchesKeyId(subkey.PublicKey.KeyIdString(), keyId) {
				return entity, nil
			}
		}
	}
	return nil, fmt.Errorf("signing key '%s' not found in the provided keyring", keyId)
}

func matchesKeyId(fullKeyId, keyId string) bool {
	return strings.HasSuffix(strings.ToUpper(fullKeyId), keyId)
}

func decryptEntity(entity *openpgp.Entity, passphrase []byte) error {
	if entity.PrivateKey.Encrypted {
		if err := entity.PrivateKey.Decrypt(passphrase); err != nil {
			return fmt.Errorf("failed to decrypt signing key: %w", err)
		}
	}
	for _, subkey := range entity.Subkeys {
		if subkey.PrivateKey != nil && subkey.PrivateKey.Encrypted {
			if err := subkey.PrivateKey.Decrypt(passphrase); err != nil {
				return fmt.Errorf("failed to decrypt signing subkey: %w", err)
			}
		}
	}
	return nil
}

func (s *Signer) KeyId() string {
	return s.entity.PrimaryKey.KeyIdString()
}

// Sign returns the armored detached signature of the content read from reader.
func (s *Signer) Sign(reader io.Reader) ([]byte, error) {
	var signature bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&signature, s.entity, reader, nil); err != nil {
		return nil, err
	}
	return signature.Bytes(), nil
}
