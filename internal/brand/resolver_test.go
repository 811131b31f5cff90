package brand

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"brand-relay/internal/domain"
	"brand-relay/internal/persona"
)

func testTexts() persona.Texts {
	return persona.Texts{
		SystemPrompt:         "default system",
		Restrictions:         "default restrictions",
		EverRankSystemPrompt: "everrank system",
		EverRankRestrictions: "everrank restrictions",
	}
}

func TestResolve_KeywordPolicy(t *testing.T) {
	r := NewResolver(testTexts())

	cases := []struct {
		site  string
		brand domain.Brand
	}{
		{"everrank.app", domain.BrandEverRank},
		{"billing.everrank.app", domain.BrandEverRank},
		{"EVERRANK.APP", domain.BrandEverRank},
		{"https://EverRank.app/pricing", domain.BrandEverRank},
		{"next-scanner.io", domain.BrandNextScanner},
		{"NextScanner.com", domain.BrandNextScanner},
		{"renterrate.com", domain.BrandRenterRate},
		{"app.RenterRate.com", domain.BrandRenterRate},
		{"Txchya.com", domain.BrandTxchyon},
		{"txchyon.com", domain.BrandTxchyon},
		{"", domain.BrandTxchyon},
		{"example.org", domain.BrandTxchyon},
		{"next scanner", domain.BrandTxchyon},
	}
	for _, tc := range cases {
		t.Run(tc.site, func(t *testing.T) {
			require.Equal(t, tc.brand, r.Resolve(tc.site).Brand)
		})
	}
}

func TestResolve_FirstRuleWins(t *testing.T) {
	r := NewResolver(testTexts())
	require.Equal(t, domain.BrandEverRank, r.Resolve("renterrate.everrank.app").Brand)
	require.Equal(t, domain.BrandNextScanner, r.Resolve("nextscanner.renterrate.com").Brand)
}

func TestResolve_ProfileContents(t *testing.T) {
	r := NewResolver(testTexts())

	ever := r.Resolve("everrank.app")
	require.Equal(t, "everrank system", ever.SystemPrompt)
	require.Equal(t, "default restrictions", ever.Restrictions)
	require.NotEmpty(t, ever.BrandRestrictions)

	for _, site := range []string{"next-scanner.io", "renterrate.com", "txchya.com"} {
		p := r.Resolve(site)
		require.Equal(t, "default system", p.SystemPrompt, site)
		require.Equal(t, "default restrictions", p.Restrictions, site)
		require.Empty(t, p.BrandRestrictions, site)
	}
}

func TestCompose_OrderAndDirective(t *testing.T) {
	r := NewResolver(testTexts())
	site := "Billing.EverRank.app"

	out := Compose(r.Resolve(site), site)
	require.Equal(t,
		"everrank system\n\ndefault restrictions\n\neverrank restrictions\n\n"+
			"[CORE_LOGIC: You are currently active on EverRank. Hostname: Billing.EverRank.app. "+
			"Always identify as the assistant for EverRank in this conversation.]",
		out,
	)
}

func TestCompose_EmptyBrandRestrictionsKeepsSlot(t *testing.T) {
	r := NewResolver(testTexts())
	out := Compose(r.Resolve("renterrate.com"), "renterrate.com")
	require.True(t, strings.HasPrefix(out, "default system\n\ndefault restrictions\n\n\n\n[CORE_LOGIC:"))
}

func TestCompose_ContainsBrandAndSiteVerbatim(t *testing.T) {
	r := NewResolver(persona.Embedded())
	for _, site := range []string{"", "Txchya.com", "weird site <>{}", "next-scanner.io/a?b=c"} {
		p := r.Resolve(site)
		out := Compose(p, site)
		require.Contains(t, out, p.Name())
		require.Contains(t, out, "Hostname: "+site+".")
	}
}
