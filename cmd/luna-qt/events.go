package main

import (
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// Frontend event names.
const (
	evtBalanceChanged = "wallet:balance-changed"
	evtTxReceived     = "wallet:transaction-received"
	evtSyncProgress   = "wallet:sync-progress"
	evtSyncComplete   = "wallet:sync-complete"
	evtError          = "wallet:error"
)

// frontendEvents forwards wallet events to the frontend event bus.
// Callbacks can fire before startup completes, so a nil ctx is skipped.
type frontendEvents struct {
	app *App
}

func (e *frontendEvents) BalanceChanged() {
	e.emit(evtBalanceChanged)
}

func (e *frontendEvents) TransactionReceived() {
	e.emit(evtTxReceived)
	sendOSNotification("Luna Wallet", "Incoming transaction received")
}

func (e *frontendEvents) SyncProgress(percent int, message string) {
	e.emit(evtSyncProgress, map[string]interface{}{
		"percent": percent,
		"message": message,
	})
}

func (e *frontendEvents) SyncComplete() {
	e.emit(evtSyncComplete)
}

func (e *frontendEvents) Error(message string) {
	e.emit(evtError, message)
}

func (e *frontendEvents) emit(name string, data ...interface{}) {
	if e.app.ctx == nil {
		return
	}
	runtime.EventsEmit(e.app.ctx, name, data...)
}
