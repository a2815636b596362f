package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tobischo/gokeepasslib/v3"
	w "github.com/tobischo/gokeepasslib/v3/wrappers"
)

func mkValue(key, value string) gokeepasslib.ValueData {
	return gokeepasslib.ValueData{Key: key, Value: gokeepasslib.V{Content: value}}
}

func mkProtectedValue(key, value string) gokeepasslib.ValueData {
	return gokeepasslib.ValueData{
		Key:   key,
		Value: gokeepasslib.V{Content: value, Protected: w.NewBoolWrapper(true)},
	}
}

func writeKDBX(t *testing.T, passphrase string) string {
	t.Helper()

	entry := gokeepasslib.NewEntry()
	entry.Values = append(entry.Values,
		mkValue("Title", "creds"),
		mkValue("UserName", "svc-user"),
		mkProtectedValue("Password", "s3cr3t"),
		mkProtectedValue("token", "abc123"),
	)

	svc := gokeepasslib.NewGroup()
	svc.Name = "svc"
	svc.Entries = append(svc.Entries, entry)

	root := gokeepasslib.NewGroup()
	root.Name = "Vault"
	root.Groups = append(root.Groups, svc)

	db := &gokeepasslib.Database{
		Header:      gokeepasslib.NewHeader(),
		Credentials: gokeepasslib.NewPasswordCredentials(passphrase),
		Content: &gokeepasslib.DBContent{
			Meta: gokeepasslib.NewMetaData(),
			Root: &gokeepasslib.RootData{
				Groups: []gokeepasslib.Group{root},
			},
		},
	}
	require.NoError(t, db.LockProtectedEntries())

	path := filepath.Join(t.TempDir(), ".secrets.kdbx")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	require.NoError(t, gokeepasslib.NewEncoder(f).Encode(db))
	return path
}

func TestOpenKDBX(t *testing.T) {
	path := writeKDBX(t, "correct horse")

	tree, err := OpenKDBX(path, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "Vault", tree.Root.Name)

	got, ok := tree.Resolve("Vault/svc/creds/token")
	require.True(t, ok)
	assert.Equal(t, "abc123", got)

	got, ok = tree.Resolve("vault/SVC/Creds/PASSWORD")
	require.True(t, ok)
	assert.Equal(t, "s3cr3t", got)

	got, ok = tree.Resolve("Vault/svc/creds/username")
	require.True(t, ok)
	assert.Equal(t, "svc-user", got)

	_, ok = tree.Resolve("Vault/svc/creds")
	assert.False(t, ok)
}

func TestOpenKDBXWrongPassphrase(t *testing.T) {
	path := writeKDBX(t, "correct horse")
	_, err := OpenKDBX(path, "battery staple")
	require.Error(t, err)
}

func TestOpenKDBXMissingFile(t *testing.T) {
	_, err := OpenKDBX(filepath.Join(t.TempDir(), "none.kdbx"), "x")
	require.ErrorIs(t, err, os.ErrNotExist)
}
