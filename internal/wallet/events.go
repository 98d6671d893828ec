package wallet

// Events is the callback surface the wallet components report through.
// Implementations are injected at construction; GUI layers subscribe
// here and never poll. Callbacks may arrive from background goroutines
// and must not block.
type Events interface {
	BalanceChanged()
	TransactionReceived()
	SyncProgress(percent int, message string)
	SyncComplete()
	Error(message string)
}

// NopEvents discards all events. Useful for tests and headless runs.
type NopEvents struct{}

func (NopEvents) BalanceChanged()          {}
func (NopEvents) TransactionReceived()     {}
func (NopEvents) SyncProgress(int, string) {}
func (NopEvents) SyncComplete()            {}
func (NopEvents) Error(string)             {}
