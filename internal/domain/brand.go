package domain

// Brand identifies one of the sites the relay answers for.
type Brand string

const (
	BrandTxchyon     Brand = "Txchyon"
	BrandEverRank    Brand = "EverRank"
	BrandNextScanner Brand = "Next Scanner"
	BrandRenterRate  Brand = "RenterRate"
)

// BrandProfile is the persona configuration selected for a request.
// Profiles are built once at startup and never mutated.
type BrandProfile struct {
	Brand             Brand
	SystemPrompt      string
	Restrictions      string
	BrandRestrictions string
}

// Name returns the display name used in prompts.
func (p BrandProfile) Name() string {
	return string(p.Brand)
}
