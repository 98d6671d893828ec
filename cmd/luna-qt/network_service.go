package main

import (
	"fmt"

	"github.com/luna-coin/luna-wallet/internal/ledger"
)

// NetworkService exposes node and mempool queries to the frontend.
type NetworkService struct {
	app *App
}

// NodeStatus describes the remote node from the wallet's view.
type NodeStatus struct {
	URL       string `json:"url"`
	Reachable bool   `json:"reachable"`
	Height    uint64 `json:"height"`
}

// MempoolContent lists the node's unconfirmed transactions.
type MempoolContent struct {
	Count int                  `json:"count"`
	Txs   []ledger.Transaction `json:"txs"`
}

// GetNodeStatus returns reachability and height of the configured node.
func (n *NetworkService) GetNodeStatus() *NodeStatus {
	status := &NodeStatus{URL: n.app.nodeURL}
	sess := n.app.session
	if sess == nil {
		return status
	}
	status.Reachable = sess.TestConnection()
	if height, err := sess.Height(); err == nil {
		status.Height = height
	}
	return status
}

// GetMempool returns the node's pending transactions.
func (n *NetworkService) GetMempool() (*MempoolContent, error) {
	if n.app.session == nil {
		return nil, fmt.Errorf("session not ready")
	}
	txs, err := n.app.session.Mempool()
	if err != nil {
		return nil, err
	}
	return &MempoolContent{Count: len(txs), Txs: txs}, nil
}
