package query

import (
	"github.com/sells-group/leadhunter/internal/model"
	"github.com/sells-group/leadhunter/internal/normalize"
)

type dedupKey struct {
	seen map[string]bool
	key  string
}

// Dedup drops leads that repeat an earlier one. Two leads are the same when
// they share a source and external identifier, a registration identifier,
// or a phone number. The first occurrence wins and order is preserved.
func Dedup(items []*model.Business) []*model.Business {
	var (
		byExternal = make(map[string]bool)
		byReg      = make(map[string]bool)
		byPhone    = make(map[string]bool)
		out        = make([]*model.Business, 0, len(items))
	)
	for _, b := range items {
		var keys []dedupKey
		if b.ExternalID != "" {
			keys = append(keys, dedupKey{byExternal, string(b.Source) + "|" + b.ExternalID})
		}
		if b.RegistrationID != nil && *b.RegistrationID != "" {
			keys = append(keys, dedupKey{byReg, *b.RegistrationID})
		}
		if b.Phone != nil {
			if p := normalize.CompactPhone(*b.Phone); len(p) >= 6 {
				keys = append(keys, dedupKey{byPhone, p})
			}
		}

		dup := false
		for _, k := range keys {
			if k.seen[k.key] {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		for _, k := range keys {
			k.seen[k.key] = true
		}
		out = append(out, b)
	}
	return out
}
