package feed

// Filter is the composite subscription filter §4.2 describes: account
// ownership, an explicit transaction-include set, and byte-offset memcmp
// matches. Program ids and mints are carried here as configuration, not
// source-embedded (§6).
type Filter struct {
	OwnerPrograms       []string
	Accounts            []string
	TransactionIncludes []string
	Memcmp              []MemcmpFilter
}

// MemcmpFilter matches Offset bytes of account data against Bytes.
type MemcmpFilter struct {
	Offset int
	Bytes  []byte
}
