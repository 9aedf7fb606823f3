package patronlink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bodgit/patronlink/config"
	"github.com/bodgit/patronlink/roster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aliceProfile = "usr_11111111-2222-3333-4444-555555555555"
	bobProfile   = "usr_66666666-7777-8888-9999-000000000000"
)

const testMembers = `
members:
  - id: "1"
    name: alice#0001
    roles: ["100", "200"]
    profile:
      id: usr_11111111-2222-3333-4444-555555555555
      name: Alice
  - id: "2"
    name: bob#0002
    roles: ["101"]
    profile:
      id: https://vrchat.com/home/user/usr_66666666-7777-8888-9999-000000000000
      name: Bob
  - id: "3"
    name: carol#0003
    roles: ["200"]
  - id: "4"
    name: dave#0004
    roles: []
`

var testTiers = []config.Tier{
	{Name: "Gold", Roles: []string{"100", "101"}},
	{Name: "Silver", Roles: []string{"200"}},
	{Name: "Bronze", Roles: []string{"300"}},
}

func createTestDB(t *testing.T) *LinkDB {
	t.Helper()

	db, err := NewLinkDB(filepath.Join(t.TempDir(), "links.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func importMembers(t *testing.T, db *LinkDB, s string) {
	t.Helper()

	file := filepath.Join(t.TempDir(), "members.yaml")
	require.NoError(t, os.WriteFile(file, []byte(s), 0644))
	require.NoError(t, db.ImportYAML(file))
}

func TestImportYAML(t *testing.T) {
	db := createTestDB(t)
	importMembers(t, db, testMembers)

	for member, want := range map[string]LinkState{
		"1": Linked,
		"2": Linked,
		"3": NotInvited,
		"4": NotInvited,
		"5": NotInvited,
	} {
		state, err := db.LinkState(member)
		require.NoError(t, err)
		assert.Equal(t, want, state, member)
	}

	pending, err := db.Pending()
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "4"}, pending)
}

func TestImportKeepsState(t *testing.T) {
	db := createTestDB(t)
	importMembers(t, db, testMembers)

	require.NoError(t, db.SetLinkState("3", ConfirmSelect))

	// Dave leaves, Carol stays
	importMembers(t, db, `
members:
  - id: "1"
    name: alice#0001
    roles: ["100"]
  - id: "3"
    name: carol#0003
    roles: ["200"]
`)

	state, err := db.LinkState("3")
	require.NoError(t, err)
	assert.Equal(t, ConfirmSelect, state)

	state, err = db.LinkState("1")
	require.NoError(t, err)
	assert.Equal(t, Linked, state)

	counts, err := db.Counts()
	require.NoError(t, err)
	assert.Equal(t, map[LinkState]int{Linked: 1, ConfirmSelect: 1}, counts)

	assert.Equal(t, ErrUnknownMember, db.SetLinkState("4", Invited))
}

func TestImportManyMembers(t *testing.T) {
	db := createTestDB(t)
	importMembers(t, db, testMembers)

	// More members than SQLite allows bound variables in one statement
	const n = 40000

	var sb strings.Builder
	sb.WriteString("members:\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "  - id: \"m%05d\"\n    name: m%d\n", i, i)
	}
	sb.WriteString("  - id: \"1\"\n    name: alice#0001\n    roles: [\"100\"]\n")
	importMembers(t, db, sb.String())

	counts, err := db.Counts()
	require.NoError(t, err)
	assert.Equal(t, map[LinkState]int{NotInvited: n, Linked: 1}, counts)

	// Members missing from the import are removed
	assert.Equal(t, ErrUnknownMember, db.Unlink("2"))

	// A second import on the same database still works
	importMembers(t, db, testMembers)
	counts, err = db.Counts()
	require.NoError(t, err)
	assert.Equal(t, map[LinkState]int{NotInvited: 2, Linked: 2}, counts)
}

func TestImportBadProfile(t *testing.T) {
	db := createTestDB(t)

	file := filepath.Join(t.TempDir(), "members.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
members:
  - id: "1"
    name: alice#0001
    profile:
      id: nope
      name: Alice
`), 0644))
	assert.Error(t, db.ImportYAML(file))

	// Nothing was imported
	counts, err := db.Counts()
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestLinkStateTransitions(t *testing.T) {
	db := createTestDB(t)
	importMembers(t, db, testMembers)

	assert.Error(t, db.SetLinkState("3", Linked))

	require.NoError(t, db.SetLinkState("3", Invited))
	require.NoError(t, db.SetLinkState("3", ProvideNameOrID))
	require.NoError(t, db.SetLinkState("3", ConfirmSelect))
	require.NoError(t, db.Link("3", "usr_aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", "Carol"))

	state, err := db.LinkState("3")
	require.NoError(t, err)
	assert.Equal(t, Linked, state)

	assert.Error(t, db.Link("3", "Carol", "Carol"))
	assert.Equal(t, ErrUnknownMember, db.Link("9", "usr_aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", "Nobody"))

	require.NoError(t, db.Unlink("1"))
	state, err = db.LinkState("1")
	require.NoError(t, err)
	assert.Equal(t, Invited, state)
	assert.Equal(t, ErrUnknownMember, db.Unlink("9"))
}

func TestRoster(t *testing.T) {
	db := createTestDB(t)
	importMembers(t, db, testMembers)

	r, err := db.Roster(testTiers)
	require.NoError(t, err)
	assert.Equal(t, roster.Roster{
		{Name: "Gold", Members: []string{"Alice", "Bob"}},
		{Name: "Silver", Members: []string{"Alice"}},
		{Name: "Bronze"},
	}, r)

	s, ok := r.Serialize()
	require.True(t, ok)
	assert.Equal(t, "Gold.Alice.Bob\nSilver.Alice", s)

	// Carol links and appears in Silver
	require.NoError(t, db.Link("3", "usr_aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", "Carol"))
	r, err = db.Roster(testTiers)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Carol"}, r.Members("Silver"))

	// Unlinked members disappear
	require.NoError(t, db.Unlink("1"))
	r, err = db.Roster(testTiers)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob"}, r.Members("Gold"))
	assert.Equal(t, []string{"Carol"}, r.Members("Silver"))
}

func TestRosterEmpty(t *testing.T) {
	db := createTestDB(t)

	r, err := db.Roster(testTiers)
	require.NoError(t, err)

	_, ok := r.Serialize()
	assert.False(t, ok)
}

func TestParseProfileID(t *testing.T) {
	tables := map[string]struct {
		in, want string
		err      bool
	}{
		"id":         {in: aliceProfile, want: aliceProfile},
		"padded":     {in: "  " + bobProfile + "\n", want: bobProfile},
		"url":        {in: "https://vrchat.com/home/user/" + bobProfile, want: bobProfile},
		"legacy url": {in: "https://vrchat.com/home/user/AbCdE12345", want: "AbCdE12345"},
		"legacy":     {in: "AbCdE12345", err: true},
		"name":       {in: "Alice", err: true},
		"uppercase":  {in: "usr_11111111-2222-3333-4444-55555555555A", err: true},
	}

	for name, table := range tables {
		t.Run(name, func(t *testing.T) {
			id, err := ParseProfileID(table.in)
			if table.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, table.want, id)
		})
	}
}

func TestLinkStateString(t *testing.T) {
	assert.Equal(t, "not invited", NotInvited.String())
	assert.Equal(t, "linked", Linked.String())
	assert.Equal(t, "unknown", LinkState(42).String())
}
