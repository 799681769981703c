// Package decode turns opaque account/transaction payloads from the feed
// into the normalized records the Reconciler understands. Decoders are pure
// functions: bytes plus a venue context in, a tagged record out, never a
// Store call.
package decode

import "token-ingest-engine/internal/store"

// RecordKind tags the variant carried by a Record, replacing the
// duck-typed/reflection-based dispatch of the source decoders with an
// explicit sum type consumers switch on.
type RecordKind int

const (
	KindUnknown RecordKind = iota
	KindTokenCreated
	KindPoolCreated
	KindPoolStateUpdate
	KindTradeRecord
	KindBondingCurveComplete
	KindGraduated
)

// TokenCreated is emitted by a mint-detection consumer.
type TokenCreated struct {
	Mint         string
	Creator      string
	CreationSig  string
	CreationTime int64
	Venue        store.Venue
	Decimals     int
}

// PoolCreated is emitted by a pool-creation consumer (launchpad init, or a
// PumpSwap pool opened for a graduated token).
type PoolCreated struct {
	PoolAddress string
	BaseMint    string
	QuoteMint   string
	TokenMint   string
	Venue       store.Venue
	LpMint      string
}

// PoolStateUpdate carries a reserve/progress snapshot for an existing pool.
// Progress is nil when the venue has no bonding-curve concept (raydium/pumpswap AMM pools post-graduation).
type PoolStateUpdate struct {
	PoolAddress          string
	VirtualBaseReserves  *uint64
	VirtualQuoteReserves *uint64
	RealBaseReserves     *uint64
	RealQuoteReserves    *uint64
	Status               store.PoolStatus
	Progress             *float64
}

// TradeRecord is a decoded buy/sell event. Amounts are taken from
// the event payload when present, never derived from balance deltas or
// instruction bounds (§4.3.1).
type TradeRecord struct {
	Signature        string
	BlockTime        int64
	Slot             uint64
	PoolAddress      string
	Mint             string
	Type             store.TxType
	User             string
	SolAmount        uint64
	TokenAmount      uint64
	PreBaseReserve   uint64
	PreQuoteReserve  uint64
	PostBaseReserve  uint64
	PostQuoteReserve uint64
	FeeLamports      uint64
	Success          bool
	RawMetadata      []byte
}

// BondingCurveComplete marks a PumpFun bonding curve that has hit its
// completion flag; it is the trigger for graduation detection upstream.
type BondingCurveComplete struct {
	BondingCurveAddr     string
	FinalBaseReserve     uint64
	FinalQuoteReserve    uint64
}

// Graduated is emitted by the GraduationDetector once a migration
// transaction for a mint is observed.
type Graduated struct {
	Mint           string
	GraduationSig  string
	GraduationTime int64
	TargetAmm      store.Venue
}

// IdentityMode records whether a venue's pool address doubles as its
// identity address. The Reconciler does not read it: ID resolution looks a
// pool up by its address and otherwise takes the token's oldest pool.
type IdentityMode int

const (
	// IdentityModeDistinct is the default: pool address and bonding-curve
	// (or identity) address are separate, looked up independently.
	IdentityModeDistinct IdentityMode = iota
	// IdentityModeIdentity means the venue's bonding-curve address is
	// itself the pool address (PumpFun): a single lookup resolves both.
	IdentityModeIdentity
)

// VenueConfig pairs a Venue with its identity-resolution mode; which mode
// a venue uses is operator configuration
// describing the venue's account model, not code.
type VenueConfig struct {
	Venue        store.Venue
	IdentityMode IdentityMode
}

// DefaultVenueConfigs is the fixed pumpfun/raydium/pumpswap identity-mode
// table: bonding-curve-address-doubles-as-pool-address is a property of how
// PumpFun structures its accounts, not something that varies by
// deployment, so unlike program ids (§6) this table is not env-configurable.
var DefaultVenueConfigs = []VenueConfig{
	{Venue: store.VenuePumpFun, IdentityMode: IdentityModeIdentity},
	{Venue: store.VenueRaydiumLaunchpad, IdentityMode: IdentityModeDistinct},
	{Venue: store.VenuePumpSwap, IdentityMode: IdentityModeDistinct},
	{Venue: store.VenueRaydium, IdentityMode: IdentityModeDistinct},
}

// Record is the tagged union a decoder returns; the pointer field matching
// Kind is always populated. A KindTokenCreated record may also carry the
// new pool's PoolCreated, and a KindTradeRecord record the post-trade
// PoolStateUpdate; the Reconciler's Emit writes both. Kind == KindUnknown
// means the payload was recognized but irrelevant (decode skip, not an
// error).
type Record struct {
	Kind RecordKind

	TokenCreated         *TokenCreated
	PoolCreated          *PoolCreated
	PoolStateUpdate      *PoolStateUpdate
	TradeRecord          *TradeRecord
	BondingCurveComplete *BondingCurveComplete
	Graduated            *Graduated
}
