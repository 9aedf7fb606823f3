package patronlink

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/bodgit/patronlink/config"
	"github.com/bodgit/patronlink/roster"
	_ "github.com/mattn/go-sqlite3"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownMember is returned when changing a member that isn't in
	// the database.
	ErrUnknownMember = errors.New("patronlink: unknown member")

	errSetLinked = errors.New("patronlink: cannot set link state to linked, use Link instead")
)

// LinkDB stores guild members, their roles and the state of linking each
// member to a profile.
type LinkDB struct {
	db *sql.DB
}

// NewLinkDB opens or creates the database in file.
func NewLinkDB(file string) (*LinkDB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on", file))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS member (id TEXT PRIMARY KEY NOT NULL, name TEXT NOT NULL, link_state INTEGER NOT NULL DEFAULT 0, profile_id TEXT, profile_name TEXT)"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS member_role (member_id TEXT NOT NULL, role_id TEXT NOT NULL, UNIQUE(member_id, role_id), FOREIGN KEY(member_id) REFERENCES member(id) ON DELETE CASCADE)"); err != nil {
		db.Close()
		return nil, err
	}

	return &LinkDB{
		db: db,
	}, nil
}

// Close closes the database.
func (db *LinkDB) Close() error {
	return db.db.Close()
}

type yamlMembers struct {
	Members []yamlMember `yaml:"members"`
}

type yamlMember struct {
	ID      string       `yaml:"id"`
	Name    string       `yaml:"name"`
	Roles   []string     `yaml:"roles"`
	Profile *yamlProfile `yaml:"profile,omitempty"`
}

type yamlProfile struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// ImportYAML replaces the stored members and roles with those exported from
// the guild in file. Members that are still present keep their link state.
// A member with a profile in the file is marked as linked to it.
func (db *LinkDB) ImportYAML(file string) error {
	b, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	var y yamlMembers
	if err := yaml.Unmarshal(b, &y); err != nil {
		return err
	}

	tx, err := db.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.Exec("DELETE FROM member_role"); err != nil {
		return err
	}

	// Temporary tables belong to the connection, which may be reused
	if _, err = tx.Exec("CREATE TEMP TABLE IF NOT EXISTS import_id (id TEXT PRIMARY KEY NOT NULL)"); err != nil {
		return err
	}
	if _, err = tx.Exec("DELETE FROM import_id"); err != nil {
		return err
	}

	for _, m := range y.Members {
		if m.ID == "" {
			return errors.New("patronlink: member without id")
		}
		if _, err = tx.Exec("INSERT OR IGNORE INTO import_id (id) VALUES (?)", m.ID); err != nil {
			return err
		}
	}

	if _, err = tx.Exec("DELETE FROM member WHERE id NOT IN (SELECT id FROM import_id)"); err != nil {
		return err
	}

	for _, m := range y.Members {
		if _, err = tx.Exec("INSERT INTO member (id, name) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET name = excluded.name", m.ID, m.Name); err != nil {
			return err
		}

		if m.Profile != nil {
			id, err := ParseProfileID(m.Profile.ID)
			if err != nil {
				return fmt.Errorf("member %s: %w", m.ID, err)
			}
			if _, err = tx.Exec("UPDATE member SET link_state = ?, profile_id = ?, profile_name = ? WHERE id = ?", Linked, id, m.Profile.Name, m.ID); err != nil {
				return err
			}
		}

		for _, r := range m.Roles {
			if _, err = tx.Exec("INSERT OR IGNORE INTO member_role (member_id, role_id) VALUES (?, ?)", m.ID, r); err != nil {
				return err
			}
		}
	}

	if _, err = tx.Exec("DROP TABLE temp.import_id"); err != nil {
		return err
	}

	return tx.Commit()
}

// LinkState returns the link state of a member. Unknown members haven't been
// invited.
func (db *LinkDB) LinkState(member string) (LinkState, error) {
	var state LinkState
	switch err := db.db.QueryRow("SELECT link_state FROM member WHERE id = ?", member).Scan(&state); err {
	case sql.ErrNoRows:
		return NotInvited, nil
	case nil:
		return state, nil
	default:
		return NotInvited, err
	}
}

func (db *LinkDB) update(query string, args ...any) error {
	result, err := db.db.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUnknownMember
	}
	return nil
}

// SetLinkState moves a member to state, which can't be Linked.
func (db *LinkDB) SetLinkState(member string, state LinkState) error {
	if state == Linked {
		return errSetLinked
	}
	return db.update("UPDATE member SET link_state = ? WHERE id = ?", state, member)
}

// Link marks a member as linked to a profile.
func (db *LinkDB) Link(member, profileID, profileName string) error {
	id, err := ParseProfileID(profileID)
	if err != nil {
		return err
	}
	return db.update("UPDATE member SET link_state = ?, profile_id = ?, profile_name = ? WHERE id = ?", Linked, id, profileName, member)
}

// Unlink forgets the profile of a member and moves them back to Invited.
func (db *LinkDB) Unlink(member string) error {
	return db.update("UPDATE member SET link_state = ?, profile_id = NULL, profile_name = NULL WHERE id = ?", Invited, member)
}

// Pending returns the members that haven't been invited yet.
func (db *LinkDB) Pending() ([]string, error) {
	rows, err := db.db.Query("SELECT id FROM member WHERE link_state = ? ORDER BY id", NotInvited)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

// Counts returns the number of members in each link state.
func (db *LinkDB) Counts() (map[LinkState]int, error) {
	rows, err := db.db.Query("SELECT link_state, COUNT(*) FROM member GROUP BY link_state")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[LinkState]int)
	for rows.Next() {
		var state LinkState
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

// Roster builds the roster of linked members. Tiers appear in the given
// order and a member appears in every tier they hold at least one role for,
// at most once per tier.
func (db *LinkDB) Roster(tiers []config.Tier) (roster.Roster, error) {
	rows, err := db.db.Query("SELECT m.id, m.profile_name, r.role_id FROM member AS m JOIN member_role AS r ON r.member_id = m.id WHERE m.link_state = ? AND m.profile_name IS NOT NULL ORDER BY m.id, r.role_id", Linked)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type member struct {
		name  string
		roles map[string]struct{}
	}

	var members []*member
	var last string
	for rows.Next() {
		var id, name, role string
		if err := rows.Scan(&id, &name, &role); err != nil {
			return nil, err
		}
		if len(members) == 0 || id != last {
			members = append(members, &member{name: name, roles: make(map[string]struct{})})
			last = id
		}
		members[len(members)-1].roles[role] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r := make(roster.Roster, 0, len(tiers))
	for _, t := range tiers {
		tier := roster.Tier{Name: t.Name}
		for _, m := range members {
			for _, role := range t.Roles {
				if _, ok := m.roles[role]; ok {
					tier.Members = append(tier.Members, m.name)
					break
				}
			}
		}
		r = append(r, tier)
	}

	return r, nil
}
