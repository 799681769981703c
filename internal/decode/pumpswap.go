package decode

import "token-ingest-engine/internal/store"

// DecodePumpSwapPoolCreation handles PumpSwapPoolCreation updates: an AMM
// pool opened for a graduated token (§4.3 item 7, venue=pumpswap).
func DecodePumpSwapPoolCreation(tx *TransactionUpdate) Record {
	if _, ok := tx.instructionNamed("createPool", "initialize"); !ok {
		return Record{Kind: KindUnknown}
	}

	pool, _ := tx.accountByRole("pool")
	baseMint, _ := tx.accountByRole("baseMint", "mint")
	quoteMint, _ := tx.accountByRole("quoteMint")
	if quoteMint == "" {
		quoteMint = store.WSOLMint
	}
	lpMint, _ := tx.accountByRole("lpMint")

	return Record{
		Kind: KindPoolCreated,
		PoolCreated: &PoolCreated{
			PoolAddress: pool,
			BaseMint:    baseMint,
			QuoteMint:   quoteMint,
			TokenMint:   baseMint,
			Venue:       store.VenuePumpSwap,
			LpMint:      lpMint,
		},
	}
}

// DecodePumpSwapTrade handles PumpSwapTrade updates, emitting a TradeRecord
// and a price-only PoolStateUpdate derived from post-swap reserves (§4.3
// item 7: "PriceUpdate derived from post-swap reserves"). PumpSwap pools
// are full AMMs post-graduation, so Progress is left nil.
func DecodePumpSwapTrade(tx *TransactionUpdate) Record {
	ix, ok := tx.instructionNamed("buy", "sell", "swap")
	if !ok {
		return Record{Kind: KindUnknown}
	}

	pool, _ := tx.accountByRole("pool")
	mint, _ := tx.accountByRole("baseMint", "mint")
	user, _ := tx.accountByRole("user", "payer")

	txType := store.TxBuy
	if ix.Name == "sell" {
		txType = store.TxSell
	}

	postBase := fieldUint64(ix.Fields, "baseReserveAfter")
	postQuote := fieldUint64(ix.Fields, "quoteReserveAfter")

	trade := &TradeRecord{
		Signature:        tx.Signature,
		BlockTime:        tx.BlockTime,
		Slot:             tx.Slot,
		PoolAddress:      pool,
		Mint:             mint,
		Type:             txType,
		User:             user,
		SolAmount:        fieldUint64(ix.Fields, "quoteAmount"),
		TokenAmount:      fieldUint64(ix.Fields, "baseAmount"),
		PreBaseReserve:   fieldUint64(ix.Fields, "baseReserveBefore"),
		PreQuoteReserve:  fieldUint64(ix.Fields, "quoteReserveBefore"),
		PostBaseReserve:  postBase,
		PostQuoteReserve: postQuote,
		FeeLamports:      tx.FeeLamports,
		Success:          tx.Success,
	}

	state := &PoolStateUpdate{
		PoolAddress:          pool,
		VirtualBaseReserves:  &postBase,
		VirtualQuoteReserves: &postQuote,
		Status:               store.PoolStatusActive,
	}

	return Record{Kind: KindTradeRecord, TradeRecord: trade, PoolStateUpdate: state}
}

// DecodeGraduation handles GraduationDetector updates: a migration
// transaction for a mint, resolved to the §4.3.1 mint-extraction contract
// (parsed role first, first non-system account as fallback).
func DecodeGraduation(tx *TransactionUpdate, targetAmm store.Venue) Record {
	mint, ok := tx.accountByRole("mint", "tokenMint", "baseMint")
	if !ok {
		mint, ok = tx.firstNonSystemAccount()
		if !ok {
			return Record{Kind: KindUnknown}
		}
	}

	return Record{
		Kind: KindGraduated,
		Graduated: &Graduated{
			Mint:           mint,
			GraduationSig:  tx.Signature,
			GraduationTime: tx.BlockTime,
			TargetAmm:      targetAmm,
		},
	}
}
