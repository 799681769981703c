package score

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"token-ingest-engine/internal/store"
)

// cacheTier is one of the §4.5.2 wallet-enrichment tiers. Hits are
// promoted to the next tier up on access; a wallet that keeps getting
// looked up naturally migrates from hot toward permanent.
type cacheTier int

const (
	tierHot cacheTier = iota
	tierWarm
	tierCold
	tierPermanent
)

const (
	hotTTL  = 5 * time.Minute
	warmTTL = 30 * time.Minute
	coldTTL = 2 * time.Hour
	// permanent entries (known bots/smart money) are refreshed once a day
	// rather than kept forever, so a reclassification eventually lands.
	permanentTTL = 24 * time.Hour
)

// WalletCache is the tiered lookup-or-fetch cache in front of per-wallet
// enrichment: hot/warm/cold promote on every hit, matching the teacher's
// keycache lookup-or-fetch shape but layered across four expirable LRUs
// instead of one, since each tier needs its own TTL.
type WalletCache struct {
	mu    sync.Mutex
	tiers [4]*lru.LRU[string, store.WalletAnalysis]
}

func NewWalletCache(size int) *WalletCache {
	return &WalletCache{
		tiers: [4]*lru.LRU[string, store.WalletAnalysis]{
			lru.NewLRU[string, store.WalletAnalysis](size, nil, hotTTL),
			lru.NewLRU[string, store.WalletAnalysis](size, nil, warmTTL),
			lru.NewLRU[string, store.WalletAnalysis](size, nil, coldTTL),
			lru.NewLRU[string, store.WalletAnalysis](size, nil, permanentTTL),
		},
	}
}

// Get checks every tier hot-to-cold; a hit is promoted one tier up
// (capped at permanent) so frequently-revisited wallets settle into the
// longest-lived tier over time.
func (c *WalletCache) Get(wallet string) (store.WalletAnalysis, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for tier := tierHot; tier <= tierPermanent; tier++ {
		if w, ok := c.tiers[tier].Get(wallet); ok {
			if tier < tierPermanent {
				c.tiers[tier+1].Add(wallet, w)
			}
			return w, true
		}
	}
	return store.WalletAnalysis{}, false
}

// Put classifies a fresh lookup straight into permanent if it is a known
// bot or smart-money wallet (§4.5.2 "permanent (24h for known bots/smart
// money)"), otherwise into hot as the entry point of the promotion chain.
func (c *WalletCache) Put(w store.WalletAnalysis) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if w.IsBot || w.IsSmartMoney {
		c.tiers[tierPermanent].Add(w.WalletAddress, w)
		return
	}
	c.tiers[tierHot].Add(w.WalletAddress, w)
}
