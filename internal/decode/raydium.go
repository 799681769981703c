package decode

import "token-ingest-engine/internal/store"

// DecodeRaydiumMint handles MintDetector(Raydium) updates: `initialize`
// instructions in the launchpad program (§4.3 item 1).
func DecodeRaydiumMint(tx *TransactionUpdate) Record {
	ix, ok := tx.instructionNamed("initialize")
	if !ok {
		return Record{Kind: KindUnknown}
	}

	mint, ok := tx.accountByRole("mint", "tokenMint", "baseMint")
	if !ok {
		mint, ok = tx.firstNonSystemAccount()
		if !ok {
			return Record{Kind: KindUnknown}
		}
	}
	creator, _ := tx.accountByRole("creator", "payer")
	poolAddr, _ := tx.accountByRole("pool", "poolState")
	baseMint, _ := tx.accountByRole("baseMint")
	if baseMint == "" {
		baseMint = mint
	}
	quoteMint, _ := tx.accountByRole("quoteMint")
	if quoteMint == "" {
		quoteMint = store.WSOLMint
	}
	lpMint, _ := tx.accountByRole("lpMint")

	return Record{
		Kind: KindTokenCreated,
		TokenCreated: &TokenCreated{
			Mint:         mint,
			Creator:      creator,
			CreationSig:  tx.Signature,
			CreationTime: tx.BlockTime,
			Venue:        store.VenueRaydiumLaunchpad,
			Decimals:     int(fieldUint64(ix.Fields, "decimals")),
		},
		PoolCreated: &PoolCreated{
			PoolAddress: poolAddr,
			BaseMint:    baseMint,
			QuoteMint:   quoteMint,
			TokenMint:   mint,
			Venue:       store.VenueRaydiumLaunchpad,
			LpMint:      lpMint,
		},
	}
}

// DecodeRaydiumLaunchpadAccount handles LaunchpadAccount updates: pool state
// owned by the launchpad program, applying the SOL-raised-based progress
// formula (§4.3 item 2).
func DecodeRaydiumLaunchpadAccount(acc *AccountUpdate) Record {
	realQuote := fieldUint64(acc.Parsed, "realQuoteReserve")
	realBase := fieldUint64(acc.Parsed, "realBaseReserve")
	virtualQuote := fieldUint64(acc.Parsed, "virtualQuoteReserve")
	virtualBase := fieldUint64(acc.Parsed, "virtualBaseReserve")
	if !fieldBool(acc.Parsed, "initialized") && realQuote == 0 && realBase == 0 {
		return Record{Kind: KindUnknown}
	}

	progress := RaydiumProgress(realQuote)
	status := store.PoolStatusActive
	if fieldBool(acc.Parsed, "migrated") {
		status = store.PoolStatusGraduated
	}

	return Record{
		Kind: KindPoolStateUpdate,
		PoolStateUpdate: &PoolStateUpdate{
			PoolAddress:          acc.Address,
			VirtualBaseReserves:  &virtualBase,
			VirtualQuoteReserves: &virtualQuote,
			RealBaseReserves:     &realBase,
			RealQuoteReserves:    &realQuote,
			Status:               status,
			Progress:             &progress,
		},
	}
}

// DecodeRaydiumLaunchpadTransaction handles LaunchpadTransactions updates:
// buy and sell instructions, preferring event payloads for exact amounts
// over instruction bounds (§4.3 item 3, §4.3.1). Add-liquidity and
// remove-liquidity instructions are not decoded and yield KindUnknown.
func DecodeRaydiumLaunchpadTransaction(tx *TransactionUpdate) Record {
	ix, ok := tx.instructionNamed("buy", "sell")
	if !ok {
		return Record{Kind: KindUnknown}
	}

	pool, _ := tx.accountByRole("pool", "poolState")
	mint, _ := tx.accountByRole("baseMint", "mint")
	user, _ := tx.accountByRole("user", "payer")

	txType := store.TxBuy
	if ix.Name == "sell" {
		txType = store.TxSell
	}

	return Record{
		Kind: KindTradeRecord,
		TradeRecord: &TradeRecord{
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
			PostBaseReserve:  fieldUint64(ix.Fields, "baseReserveAfter"),
			PostQuoteReserve: fieldUint64(ix.Fields, "quoteReserveAfter"),
			FeeLamports:      tx.FeeLamports,
			Success:          tx.Success,
		},
	}
}
