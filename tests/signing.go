package tests

import (
	"bytes"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/stretchr/testify/require"
)

// GenerateSigningKey returns a new armored private key without a passphrase, and the key ring to verify its signatures.
func GenerateSigningKey(t *testing.T) (string, openpgp.EntityList) {
	entity, err := openpgp.NewEntity("Hypertrace Release", "test", "release@hypertrace.org", nil)
	require.NoError(t, err)
	var armored bytes.Buffer
	writer, err := armor.Encode(&armored, openpgp.PrivateKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, entity.SerializePrivate(writer, nil))
	require.NoError(t, writer.Close())
	return armored.String(), openpgp.EntityList{entity}
}
