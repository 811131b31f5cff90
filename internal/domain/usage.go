package domain

// UsageRecord is one ledger entry per relayed request. It never carries the
// user's message or the model's reply.
type UsageRecord struct {
	PK            string
	SK            string
	RequestID     string
	Brand         string
	Site          string
	Kind          string
	Status        int
	OriginAllowed bool
	LatencyMs     int64
	CreatedAt     string
	TTL           int64
}
