/*
Package roster implements the plain text form of the patron roster.

Each tier is written on its own line as the tier name followed by the display
name of every member, all separated by periods. Tiers without any members are
left out. Names that themselves contain a period or a newline cannot be
represented.
*/
package roster

import "strings"

const (
	// Separator separates the tier name and member names on a line.
	Separator = "."
	// LineSeparator separates tiers.
	LineSeparator = "\n"
)

// Tier is a named group of members.
type Tier struct {
	Name    string
	Members []string
}

// Roster is an ordered list of tiers.
type Roster []Tier

// Add appends member to the named tier, creating the tier at the end of the
// roster if it doesn't exist yet.
func (r *Roster) Add(tier, member string) {
	for i := range *r {
		if (*r)[i].Name == tier {
			(*r)[i].Members = append((*r)[i].Members, member)
			return
		}
	}
	*r = append(*r, Tier{Name: tier, Members: []string{member}})
}

// Members returns the members of the named tier.
func (r Roster) Members(tier string) []string {
	for _, t := range r {
		if t.Name == tier {
			return t.Members
		}
	}
	return nil
}

// Tiers returns the names of every tier member belongs to.
func (r Roster) Tiers(member string) []string {
	var tiers []string
	for _, t := range r {
		for _, m := range t.Members {
			if m == member {
				tiers = append(tiers, t.Name)
				break
			}
		}
	}
	return tiers
}

// Serialize returns the text form of the roster. It returns false if no tier
// has any members, in which case there is nothing to export.
func (r Roster) Serialize() (string, bool) {
	var lines []string
	for _, t := range r {
		if len(t.Members) == 0 {
			continue
		}
		lines = append(lines, t.Name+Separator+strings.Join(t.Members, Separator))
	}
	if len(lines) == 0 {
		return "", false
	}
	return strings.Join(lines, LineSeparator), true
}

// Parse is the inverse of Serialize.
func Parse(s string) Roster {
	var r Roster
	for _, line := range strings.Split(s, LineSeparator) {
		if line == "" {
			continue
		}
		fields := strings.Split(line, Separator)
		r = append(r, Tier{Name: fields[0], Members: fields[1:]})
	}
	return r
}

// Valid reports whether name can be stored without corrupting the text form.
func Valid(name string) bool {
	return !strings.ContainsAny(name, Separator+LineSeparator)
}
