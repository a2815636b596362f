package secrets

import (
	"fmt"
	"os"

	"github.com/tobischo/gokeepasslib/v3"
)

// TitleField is the KeePass field holding an entry's title.
const TitleField = "Title"

// OpenKDBX decrypts the KeePass database at path and returns its root group as a Tree.
// Protected values are unlocked in memory only.
func OpenKDBX(path, passphrase string) (*Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open kdbx file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	db := gokeepasslib.NewDatabase()
	db.Credentials = gokeepasslib.NewPasswordCredentials(passphrase)
	if err := gokeepasslib.NewDecoder(f).Decode(db); err != nil {
		return nil, fmt.Errorf("failed to decrypt kdbx file %s: %w", path, err)
	}
	if err := db.UnlockProtectedEntries(); err != nil {
		return nil, fmt.Errorf("failed to unlock protected values in %s: %w", path, err)
	}
	return treeFromDatabase(db)
}

func treeFromDatabase(db *gokeepasslib.Database) (*Tree, error) {
	if db.Content == nil || db.Content.Root == nil {
		return nil, fmt.Errorf("kdbx database has no root")
	}
	groups := db.Content.Root.Groups
	if len(groups) != 1 {
		return nil, fmt.Errorf("kdbx database has %d root groups, expected 1", len(groups))
	}
	return NewTree(convertGroup(&groups[0])), nil
}

func convertGroup(g *gokeepasslib.Group) *Group {
	out := &Group{
		Name:     g.Name,
		Children: make([]Node, 0, len(g.Entries)+len(g.Groups)),
	}
	for i := range g.Entries {
		out.Children = append(out.Children, convertEntry(&g.Entries[i]))
	}
	for i := range g.Groups {
		out.Children = append(out.Children, convertGroup(&g.Groups[i]))
	}
	return out
}

func convertEntry(e *gokeepasslib.Entry) *Entry {
	out := &Entry{Fields: make(map[string]string, len(e.Values))}
	for _, v := range e.Values {
		out.Fields[v.Key] = v.Value.Content
	}
	out.Title = out.Fields[TitleField]
	return out
}
