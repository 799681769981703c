package decode

import "token-ingest-engine/internal/store"

// DecodePumpFunTrade handles PumpFunTrade consumer updates: buy/sell events
// on the pumpfun program, emitting both a TradeRecord and the
// PoolStateUpdate carrying the tokens-sold-based progress formula (§4.3
// item 4).
func DecodePumpFunTrade(tx *TransactionUpdate) Record {
	ix, ok := tx.instructionNamed("buy", "sell")
	if !ok {
		return Record{Kind: KindUnknown}
	}

	mint, _ := tx.accountByRole("mint")
	bondingCurve, _ := tx.accountByRole("bondingCurve")
	user, _ := tx.accountByRole("user")

	txType := store.TxBuy
	if ix.Name == "sell" {
		txType = store.TxSell
	}

	trade := &TradeRecord{
		Signature:        tx.Signature,
		BlockTime:        tx.BlockTime,
		Slot:             tx.Slot,
		PoolAddress:      bondingCurve,
		Mint:             mint,
		Type:             txType,
		User:             user,
		SolAmount:        fieldUint64(ix.Fields, "solAmount"),
		TokenAmount:      fieldUint64(ix.Fields, "tokenAmount"),
		PreBaseReserve:   fieldUint64(ix.Fields, "virtualTokenReservesBefore"),
		PreQuoteReserve:  fieldUint64(ix.Fields, "virtualSolReservesBefore"),
		PostBaseReserve:  fieldUint64(ix.Fields, "virtualTokenReservesAfter"),
		PostQuoteReserve: fieldUint64(ix.Fields, "virtualSolReservesAfter"),
		FeeLamports:      tx.FeeLamports,
		Success:          tx.Success,
	}

	virtualTokenAfter := trade.PostBaseReserve
	progress := PumpFunProgress(virtualTokenAfter)
	state := &PoolStateUpdate{
		PoolAddress:          bondingCurve,
		VirtualBaseReserves:  &trade.PostBaseReserve,
		VirtualQuoteReserves: &trade.PostQuoteReserve,
		Status:               store.PoolStatusActive,
		Progress:             &progress,
	}

	return Record{Kind: KindTradeRecord, TradeRecord: trade, PoolStateUpdate: state}
}

// DecodePumpFunBondingCurveAccount handles account updates for PumpFun
// bonding curve PDAs; a set `complete` flag triggers BondingCurveComplete
// (§4.3 item 5), the upstream signal a GraduationDetector watches for.
func DecodePumpFunBondingCurveAccount(acc *AccountUpdate) Record {
	if !fieldBool(acc.Parsed, "complete") {
		return Record{Kind: KindUnknown}
	}

	return Record{
		Kind: KindBondingCurveComplete,
		BondingCurveComplete: &BondingCurveComplete{
			BondingCurveAddr:  acc.Address,
			FinalBaseReserve:  fieldUint64(acc.Parsed, "virtualTokenReserves"),
			FinalQuoteReserve: fieldUint64(acc.Parsed, "virtualSolReserves"),
		},
	}
}
