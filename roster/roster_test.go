package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerialize(t *testing.T) {
	tables := map[string]struct {
		roster Roster
		want   string
		ok     bool
	}{
		"empty": {
			roster: nil,
		},
		"no members": {
			roster: Roster{{Name: "Gold"}, {Name: "Silver", Members: []string{}}},
		},
		"omits empty tier": {
			roster: Roster{
				{Name: "Gold", Members: []string{"Alice", "Bob"}},
				{Name: "Silver"},
			},
			want: "Gold.Alice.Bob",
			ok:   true,
		},
		"multiple tiers": {
			roster: Roster{
				{Name: "Gold", Members: []string{"Alice"}},
				{Name: "Silver", Members: []string{"Bob", "Carol"}},
				{Name: "Bronze"},
				{Name: "Copper", Members: []string{"Dave"}},
			},
			want: "Gold.Alice\nSilver.Bob.Carol\nCopper.Dave",
			ok:   true,
		},
		"unicode": {
			roster: Roster{{Name: "金", Members: []string{"Zoë", "ユーザー"}}},
			want:   "金.Zoë.ユーザー",
			ok:     true,
		},
	}

	for name, table := range tables {
		t.Run(name, func(t *testing.T) {
			s, ok := table.roster.Serialize()
			assert.Equal(t, table.ok, ok)
			assert.Equal(t, table.want, s)
		})
	}
}

func TestParse(t *testing.T) {
	r := Roster{
		{Name: "Gold", Members: []string{"Alice", "Bob"}},
		{Name: "Silver", Members: []string{"Carol"}},
	}
	s, ok := r.Serialize()
	assert.True(t, ok)
	assert.Equal(t, r, Parse(s))

	assert.Nil(t, Parse(""))
}

func TestAdd(t *testing.T) {
	var r Roster
	r.Add("Gold", "Alice")
	r.Add("Silver", "Bob")
	r.Add("Gold", "Carol")

	assert.Equal(t, Roster{
		{Name: "Gold", Members: []string{"Alice", "Carol"}},
		{Name: "Silver", Members: []string{"Bob"}},
	}, r)
}

func TestLookup(t *testing.T) {
	r := Parse("Gold.Alice.Bob\nSilver.Bob")

	assert.Equal(t, []string{"Alice", "Bob"}, r.Members("Gold"))
	assert.Nil(t, r.Members("Bronze"))
	assert.Equal(t, []string{"Gold", "Silver"}, r.Tiers("Bob"))
	assert.Equal(t, []string{"Gold"}, r.Tiers("Alice"))
	assert.Nil(t, r.Tiers("Mallory"))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("Alice"))
	assert.False(t, Valid("A.lice"))
	assert.False(t, Valid("Ali\nce"))
}
