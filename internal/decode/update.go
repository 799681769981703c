package decode

// AccountUpdate is the opaque envelope the FeedClient delivers for an
// account-ownership subscription (§1: "treated as opaque producers of
// AccountUpdate ... records keyed by program id"). Decoders never see wire
// bytes directly beyond Data; the byte layout itself is out of scope.
type AccountUpdate struct {
	ProgramID string
	Address   string
	Slot      uint64
	Lamports  uint64
	Data      []byte
	// Parsed carries whatever fields the feed's own decoder already
	// extracted (mirrors Solana's jsonParsed account subscriptions) so a
	// venue decoder does not need to re-derive reserve/flag bytes from Data
	// when the feed already did it.
	Parsed map[string]any
}

// TransactionUpdate is the opaque envelope for a transaction-include
// subscription. Accounts is message-order role-tagged account keys;
// Instructions is parsed instruction/event data in program order.
type TransactionUpdate struct {
	Signature    string
	Slot         uint64
	BlockTime    int64
	Success      bool
	FeeLamports  uint64
	Accounts     []AccountRole
	Instructions []ParsedInstruction
	Logs         []string
}

// AccountRole names a transaction account by the role the venue's IDL gives
// it, letting decoders look up "mint" or "baseMint" without knowing the
// positional layout (§4.3.1 mint-extraction contract).
type AccountRole struct {
	Role    string
	Pubkey  string
	Signer  bool
	Writable bool
}

// ParsedInstruction is one instruction or inner event, already demarshaled
// by the feed producer (out of scope here) into a named-field map. Event
// records set IsEvent=true; §4.3.1 requires decoders prefer event amounts
// over instruction args whenever both are present.
type ParsedInstruction struct {
	ProgramID string
	Name      string
	IsEvent   bool
	Fields    map[string]any
}

func (t *TransactionUpdate) accountByRole(roles ...string) (string, bool) {
	for _, want := range roles {
		for _, acc := range t.Accounts {
			if acc.Role == want {
				return acc.Pubkey, true
			}
		}
	}
	return "", false
}

// firstNonSystemAccount is the §4.3.1 mint-extraction fallback: the first
// account that isn't the system program or a signer-only fee payer role.
func (t *TransactionUpdate) firstNonSystemAccount() (string, bool) {
	for _, acc := range t.Accounts {
		if acc.Role == "system" || acc.Role == "feePayer" {
			continue
		}
		return acc.Pubkey, true
	}
	return "", false
}

func (t *TransactionUpdate) instructionNamed(names ...string) (ParsedInstruction, bool) {
	// Prefer events over instructions when both are present for the same
	// name, per §4.3.1 ("tokenAmount/solAmount are taken from the event").
	var fallback ParsedInstruction
	found := false
	for _, ix := range t.Instructions {
		for _, want := range names {
			if ix.Name != want {
				continue
			}
			if ix.IsEvent {
				return ix, true
			}
			if !found {
				fallback = ix
				found = true
			}
		}
	}
	return fallback, found
}

func fieldUint64(f map[string]any, key string) uint64 {
	switch v := f[key].(type) {
	case uint64:
		return v
	case int64:
		return uint64(v)
	case float64:
		return uint64(v)
	}
	return 0
}

func fieldString(f map[string]any, key string) string {
	if v, ok := f[key].(string); ok {
		return v
	}
	return ""
}

func fieldBool(f map[string]any, key string) bool {
	if v, ok := f[key].(bool); ok {
		return v
	}
	return false
}
