package patronlink

// LinkState is where a member is in the process of linking their profile.
type LinkState int

const (
	// NotInvited members haven't been sent an invite yet.
	NotInvited LinkState = iota
	// Invited members have been sent an invite but haven't started linking.
	Invited
	// ProvideNameOrID members have been asked for their profile name or ID.
	ProvideNameOrID
	// ConfirmSelect members have been asked to confirm a profile.
	ConfirmSelect
	// Linked members have a confirmed profile.
	Linked
)

var linkStateNames = [...]string{
	NotInvited:      "not invited",
	Invited:         "invited",
	ProvideNameOrID: "provide name or id",
	ConfirmSelect:   "confirm select",
	Linked:          "linked",
}

func (s LinkState) String() string {
	if s < 0 || int(s) >= len(linkStateNames) {
		return "unknown"
	}
	return linkStateNames[s]
}
