package store

import "github.com/shopspring/decimal"

// Venue identifies the launch program responsible for a pool.
type Venue string

const (
	VenuePumpFun          Venue = "pumpfun"
	VenueRaydiumLaunchpad Venue = "raydiumLaunchpad"
	VenuePumpSwap         Venue = "pumpswap"
	VenueRaydium          Venue = "raydium"
)

// PoolStatus is the lifecycle state of a Pool (§3).
type PoolStatus string

const (
	PoolStatusActive    PoolStatus = "active"
	PoolStatusGraduated PoolStatus = "graduated"
	PoolStatusClosed    PoolStatus = "closed"
	PoolStatusFailed    PoolStatus = "failed"
)

// TxType distinguishes a buy from a sell transaction.
type TxType string

const (
	TxBuy  TxType = "buy"
	TxSell TxType = "sell"
)

// WSOLMint is the wrapped-SOL mint address used as the default quote mint.
const WSOLMint = "So11111111111111111111111111111111111111112"

// Token is the entity row for a launched fungible token (§3).
type Token struct {
	ID             int64
	MintAddress    string
	Symbol         string
	Name           string
	Decimals       int
	Venue          Venue
	CreationSig    string
	CreationTime   int64
	Creator        string
	IsGraduated    bool
	GraduationSig  string
	GraduationTime int64
}

// TokenFields is the partial-update payload accepted by UpsertToken.
// Zero-value fields are left untouched on an existing row, except for the
// booleans/pointers which are only applied when non-nil.
type TokenFields struct {
	Symbol         string
	Name           string
	Decimals       int
	Venue          Venue
	CreationSig    string
	CreationTime   int64
	Creator        string
	IsGraduated    *bool
	GraduationSig  string
	GraduationTime int64
}

// Pool is the entity row for a token's trading venue (§3).
type Pool struct {
	ID                   int64
	PoolAddress          string
	TokenID              int64
	BaseMint             string
	QuoteMint            string
	Venue                Venue
	Status               PoolStatus
	VirtualBaseReserves  decimal.Decimal
	VirtualQuoteReserves decimal.Decimal
	RealBaseReserves     decimal.Decimal
	RealQuoteReserves    decimal.Decimal
	BondingCurveProgress *float64
	LatestPrice          decimal.Decimal
	LatestPriceUsd       decimal.Decimal
	UpdatedAt            int64
}

// PoolFields is the partial-update payload accepted by UpsertPool.
type PoolFields struct {
	TokenID   int64
	BaseMint  string
	QuoteMint string
	Venue     Venue
	Status    PoolStatus
}

// ReserveUpdate is the partial-update payload for UpdatePoolReserves; nil
// fields are left untouched.
type ReserveUpdate struct {
	VirtualBaseReserves  *decimal.Decimal
	VirtualQuoteReserves *decimal.Decimal
	RealBaseReserves     *decimal.Decimal
	RealQuoteReserves    *decimal.Decimal
	Price                *decimal.Decimal
	PriceUsd             *decimal.Decimal
	Progress             *float64
}

// Transaction is an append-only trade event (§3).
type Transaction struct {
	Signature        string
	BlockTime        int64
	PoolID           int64
	TokenID          int64
	Slot             uint64
	Type             TxType
	User             string
	SolAmount        uint64
	TokenAmount      uint64
	PricePerToken    decimal.Decimal
	PreBaseReserve   decimal.Decimal
	PreQuoteReserve  decimal.Decimal
	PostBaseReserve  decimal.Decimal
	PostQuoteReserve decimal.Decimal
	FeeLamports      uint64
	Success          bool
	RawMetadata      []byte
}

// Candle is a 1-minute OHLCV aggregation of Transactions (§4.1 derived view
// contract).
type Candle struct {
	TokenID     int64
	Minute      int64
	Open        decimal.Decimal
	High        decimal.Decimal
	Low         decimal.Decimal
	Close       decimal.Decimal
	VolumeSol   uint64
	VolumeToken uint64
	TradeCount  int
	BuyerCount  int
	SellerCount int
}

// SolUsdPrice is a reference-price row (§3); the newest row answers
// "current SOL price".
type SolUsdPrice struct {
	PriceTime int64
	PriceUsd  decimal.Decimal
}

// HolderScore is a snapshot of the holder-analysis sub-scores (§4.5.2).
type HolderScore struct {
	TokenID             int64
	ScoreTime           int64
	DistributionScore   int
	QualityScore        int
	ActivityScore       int
	TotalScore          int
	Gini                decimal.Decimal
	Top1PctConcentration decimal.Decimal
	HolderCount         int
	BotRatio            decimal.Decimal
	SmartMoneyRatio     decimal.Decimal
	CreditsUsed         int64
}

// WalletAnalysis is the upserted per-wallet enrichment record (§3).
type WalletAnalysis struct {
	WalletAddress string
	CreatedAt     int64
	LastActive    int64
	TxCount       int64
	SolBalance    uint64
	WalletAgeDays int
	IsBot         bool
	IsSmartMoney  bool
	RiskScore     float64
	LastAnalyzed  int64
}
