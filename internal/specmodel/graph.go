package specmodel

import "sort"

// link computes back-references once every entity exists: each operation's
// reachable component set (direct uses plus the transitive closure over
// component references) and the inverse edges on components.
func (b *builder) link(m *Model) {
	usedBy := map[ComponentKey][]string{}
	for _, op := range m.Operations {
		reach := keySet{}
		queue := append([]ComponentKey(nil), op.Components...)
		for len(queue) > 0 {
			key := queue[0]
			queue = queue[1:]
			if _, seen := reach[key]; seen {
				continue
			}
			reach.add(key)
			if c, ok := m.components[key]; ok {
				queue = append(queue, c.References...)
			}
		}
		op.Reaches = reach.sorted()
		for _, key := range op.Reaches {
			usedBy[key] = append(usedBy[key], op.ID)
		}
	}

	referencedBy := map[ComponentKey]keySet{}
	for _, c := range m.Components {
		for _, target := range c.References {
			if referencedBy[target] == nil {
				referencedBy[target] = keySet{}
			}
			referencedBy[target].add(c.Key)
		}
	}

	for _, c := range m.Components {
		ids := usedBy[c.Key]
		sort.Strings(ids)
		c.UsedBy = ids
		if set, ok := referencedBy[c.Key]; ok {
			c.ReferencedBy = set.sorted()
		}
	}
}
