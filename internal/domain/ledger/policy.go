package ledger

import (
	"fmt"
	"strings"
)

// PolicyFromNames resolves the config substitution table (service type names)
// into IDs using the catalog's name index. Unknown names are configuration
// mistakes and fail loudly at startup.
func PolicyFromNames(names map[string][]string, idsByName map[string]int64) (SubstitutionPolicy, error) {
	policy := make(SubstitutionPolicy, len(names))
	for requested, substitutes := range names {
		reqID, ok := idsByName[strings.ToLower(requested)]
		if !ok {
			return nil, fmt.Errorf("ledger: unknown service type %q in substitution config", requested)
		}
		ids := make([]int64, 0, len(substitutes))
		for _, sub := range substitutes {
			subID, ok := idsByName[strings.ToLower(sub)]
			if !ok {
				return nil, fmt.Errorf("ledger: unknown substitute %q for %q in substitution config", sub, requested)
			}
			if subID == reqID {
				continue
			}
			ids = append(ids, subID)
		}
		policy[reqID] = ids
	}
	return policy, nil
}
