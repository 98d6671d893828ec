package ledger

// Block is a ledger block as served by the remote node.
type Block struct {
	Index        uint64        `json:"index"`
	Hash         string        `json:"hash"`
	PreviousHash string        `json:"previous_hash"`
	Timestamp    float64       `json:"timestamp"`
	Miner        string        `json:"miner"`
	Difficulty   int           `json:"difficulty"`
	Nonce        int64         `json:"nonce"`
	Reward       float64       `json:"reward"`
	Transactions []Transaction `json:"transactions"`
}

// Transaction is a ledger transaction as consumed from blocks and the
// mempool, and as produced for broadcast. The remote service emits both
// from/to and sender/receiver field names depending on the endpoint;
// FromAddress and ToAddress resolve the aliases.
type Transaction struct {
	Hash      string  `json:"hash,omitempty"`
	Type      string  `json:"type,omitempty"`
	From      string  `json:"from,omitempty"`
	Sender    string  `json:"sender,omitempty"`
	To        string  `json:"to,omitempty"`
	Receiver  string  `json:"receiver,omitempty"`
	Amount    float64 `json:"amount"`
	Fee       float64 `json:"fee,omitempty"`
	Nonce     int64   `json:"nonce,omitempty"`
	Timestamp float64 `json:"timestamp,omitempty"`
	Memo      string  `json:"memo,omitempty"`
	Signature string  `json:"signature,omitempty"`
}

// FromAddress returns the sending address, whichever alias is populated.
func (t *Transaction) FromAddress() string {
	if t.From != "" {
		return t.From
	}
	return t.Sender
}

// ToAddress returns the receiving address, whichever alias is populated.
func (t *Transaction) ToAddress() string {
	if t.To != "" {
		return t.To
	}
	return t.Receiver
}
