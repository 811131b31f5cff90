package brand

import (
	"fmt"
	"strings"

	"brand-relay/internal/domain"
	"brand-relay/internal/persona"
)

// rule maps site keywords to a brand. Rules are evaluated in order and the
// first rule with a matching keyword wins.
type rule struct {
	keywords []string
	brand    domain.Brand
}

var rules = []rule{
	{keywords: []string{"everrank"}, brand: domain.BrandEverRank},
	{keywords: []string{"next-scanner", "nextscanner"}, brand: domain.BrandNextScanner},
	{keywords: []string{"renterrate"}, brand: domain.BrandRenterRate},
}

// Resolver selects a BrandProfile for a caller-supplied site string.
// It holds only immutable data and is safe for concurrent use.
type Resolver struct {
	profiles map[domain.Brand]domain.BrandProfile
}

// NewResolver builds the profile table from persona texts.
func NewResolver(texts persona.Texts) *Resolver {
	base := func(b domain.Brand) domain.BrandProfile {
		return domain.BrandProfile{
			Brand:        b,
			SystemPrompt: texts.SystemPrompt,
			Restrictions: texts.Restrictions,
		}
	}
	return &Resolver{profiles: map[domain.Brand]domain.BrandProfile{
		domain.BrandTxchyon: base(domain.BrandTxchyon),
		domain.BrandEverRank: {
			Brand:             domain.BrandEverRank,
			SystemPrompt:      texts.EverRankSystemPrompt,
			Restrictions:      texts.Restrictions,
			BrandRestrictions: texts.EverRankRestrictions,
		},
		domain.BrandNextScanner: base(domain.BrandNextScanner),
		domain.BrandRenterRate:  base(domain.BrandRenterRate),
	}}
}

// Resolve never fails: unknown and empty sites fall through to Txchyon.
func (r *Resolver) Resolve(site string) domain.BrandProfile {
	return r.profiles[match(site)]
}

func match(site string) domain.Brand {
	lower := strings.ToLower(site)
	for _, rl := range rules {
		for _, kw := range rl.keywords {
			if strings.Contains(lower, kw) {
				return rl.brand
			}
		}
	}
	return domain.BrandTxchyon
}

// Compose joins the persona sections and the brand directive, separated by
// blank lines. The brand restrictions slot stays in place even when empty.
func Compose(profile domain.BrandProfile, site string) string {
	return strings.Join([]string{
		profile.SystemPrompt,
		profile.Restrictions,
		profile.BrandRestrictions,
		directive(profile.Name(), site),
	}, "\n\n")
}

func directive(brandName, site string) string {
	return fmt.Sprintf(
		"[CORE_LOGIC: You are currently active on %s. Hostname: %s. Always identify as the assistant for %s in this conversation.]",
		brandName, site, brandName,
	)
}
