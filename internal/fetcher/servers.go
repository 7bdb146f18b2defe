package fetcher

import (
	"fmt"
	"sort"
	"strings"
)

// Servers maps FFXI server names to the numeric sid the auction house
// site expects in its server-selector form.
var Servers = map[string]int{
	"Bahamut":      1,
	"Shiva":        2,
	"Phoenix":      5,
	"Carbuncle":    6,
	"Fenrir":       7,
	"Sylph":        8,
	"Valefor":      9,
	"Leviathan":    11,
	"Odin":         12,
	"Quetzalcoatl": 16,
	"Siren":        17,
	"Ragnarok":     20,
	"Cerberus":     23,
	"Bismarck":     25,
	"Lakshmi":      27,
	"Asura":        28,
}

// ResolveServers maps a selection of server names to their numeric ids,
// rejecting names absent from the static table. Matching is
// case-insensitive; the result carries the canonical names.
func ResolveServers(names []string) (map[string]int, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no servers selected")
	}
	resolved := make(map[string]int, len(names))
	for _, name := range names {
		canonical, id, ok := lookupServer(name)
		if !ok {
			return nil, fmt.Errorf("unknown server %q", name)
		}
		resolved[canonical] = id
	}
	return resolved, nil
}

func lookupServer(name string) (string, int, bool) {
	if id, ok := Servers[name]; ok {
		return name, id, true
	}
	for canonical, id := range Servers {
		if strings.EqualFold(canonical, name) {
			return canonical, id, true
		}
	}
	return "", 0, false
}

// SortedServerNames returns the selection in lexicographic order. That
// order is the fixed iteration order everywhere results must be
// deterministic: validation-server choice and comparison tie-breaks.
func SortedServerNames(servers map[string]int) []string {
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
