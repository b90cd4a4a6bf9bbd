package core

// ListMyGroups returns the groups whose user set contains userID, in store
// order. A group id listed twice is returned once.
func ListMyGroups(groups []Group, userID string) []Group {
	out := make([]Group, 0)
	seen := make(map[string]struct{})
	for _, g := range groups {
		if !g.HasMember(userID) {
			continue
		}
		if _, ok := seen[g.ID]; ok {
			continue
		}
		seen[g.ID] = struct{}{}
		out = append(out, g)
	}
	return out
}

// MembershipIndex returns the ids of the groups in gs as a set.
func MembershipIndex(gs []Group) map[string]struct{} {
	idx := make(map[string]struct{}, len(gs))
	for _, g := range gs {
		idx[g.ID] = struct{}{}
	}
	return idx
}
