// luna-cli is a command-line client for the Luna wallet.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/luna-coin/luna-wallet/config"
	"github.com/luna-coin/luna-wallet/internal/session"
	"github.com/luna-coin/luna-wallet/internal/wallet"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// Parse global flags that appear before the subcommand.
	cfg := config.Default()
	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--node" && len(args) > 1:
			cfg.Node.URL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--node="):
			cfg.Node.URL = args[0][len("--node="):]
			args = args[1:]
		case args[0] == "--datadir" && len(args) > 1:
			cfg.DataDir = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--datadir="):
			cfg.DataDir = args[0][len("--datadir="):]
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	if values, err := config.LoadFile(cfg.ConfigFile()); err == nil {
		if err := config.ApplyFileConfig(cfg, values); err != nil {
			fatal("config file: %v", err)
		}
	}
	cfg.Log.Level = "warn" // keep CLI output clean

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "status":
		cmdStatus(cfg)
	case "init":
		cmdInit(cfg, cmdArgs)
	case "create":
		cmdCreate(cfg, cmdArgs)
	case "import":
		cmdImport(cfg, cmdArgs)
	case "export":
		cmdExport(cfg, cmdArgs)
	case "balance":
		cmdBalance(cfg)
	case "send":
		cmdSend(cfg, cmdArgs)
	case "history":
		cmdHistory(cfg, cmdArgs)
	case "scan":
		cmdScan(cfg, cmdArgs)
	case "mempool":
		cmdMempool(cfg)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: luna-cli [global flags] <command> [flags]

Global flags:
  --node <url>        Ledger node endpoint (default: %s)
  --datadir <path>    Data directory (default: %s)

Commands:
  status                          Show node and wallet store status
  init [--label <name>]           Create the encrypted wallet store
  create --label <name>           Create an additional wallet
  import --key <hex> [--label <name>]
                                  Import a wallet from a private key
  export --address <addr>         Export a wallet's private key
  balance                         Scan and show wallet balances
  send --to <addr> --amount <amt> [--memo <text>]
                                  Send from the primary wallet
  history [--address <addr>]      Show transaction history
  scan [--full]                   Scan the chain for transactions
  mempool                         Show pending network transactions
`, config.Default().Node.URL, config.DefaultDataDir())
}

// openSession builds a session without starting background loops;
// CLI commands are one-shot.
func openSession(cfg *config.Config) *session.Session {
	sess, err := session.New(cfg, wallet.NopEvents{})
	if err != nil {
		fatal("%v", err)
	}
	return sess
}

// unlockedSession prompts for the password and opens the store.
func unlockedSession(cfg *config.Config) *session.Session {
	sess := openSession(cfg)
	if !sess.Exists() {
		sess.Stop()
		fatal("no wallet store found; run 'luna-cli init' first")
	}
	password, err := readPassword("Password: ")
	if err != nil {
		sess.Stop()
		fatal("read password: %v", err)
	}
	if err := sess.Unlock(string(password)); err != nil {
		sess.Stop()
		fatal("%v", err)
	}
	return sess
}

func cmdStatus(cfg *config.Config) {
	sess := openSession(cfg)
	defer sess.Stop()

	fmt.Printf("Node:        %s\n", cfg.Node.URL)
	if sess.TestConnection() {
		fmt.Printf("Reachable:   yes\n")
		if height, err := sess.Height(); err == nil {
			fmt.Printf("Height:      %d\n", height)
		}
	} else {
		fmt.Printf("Reachable:   no\n")
	}
	if sess.Exists() {
		fmt.Printf("Wallet:      initialized (%s)\n", cfg.WalletDir())
	} else {
		fmt.Printf("Wallet:      not initialized\n")
	}
}

func cmdInit(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	label := fs.String("label", "Primary", "label for the first wallet")
	fs.Parse(args)

	sess := openSession(cfg)
	defer sess.Stop()
	if sess.Exists() {
		fatal("wallet store already exists at %s", cfg.WalletDir())
	}

	password, err := readPassword("New password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	if string(password) != string(confirm) {
		fatal("passwords do not match")
	}

	mnemonic, addr, err := sess.Initialize(string(password), *label)
	if err != nil {
		fatal("%v", err)
	}

	fmt.Printf("Wallet created: %s\n\n", addr)
	fmt.Println("Recovery phrase (write this down, it is shown only once):")
	fmt.Printf("\n  %s\n\n", mnemonic)
}

func cmdCreate(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	label := fs.String("label", "", "wallet label")
	fs.Parse(args)
	if *label == "" {
		fatal("--label is required")
	}

	sess := unlockedSession(cfg)
	defer sess.Stop()

	info, mnemonic, err := sess.CreateWallet(*label)
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Wallet created: %s\n\n", info.Address)
	fmt.Println("Recovery phrase (write this down, it is shown only once):")
	fmt.Printf("\n  %s\n\n", mnemonic)
}

func cmdImport(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	key := fs.String("key", "", "hex private key")
	label := fs.String("label", "Imported", "wallet label")
	fs.Parse(args)
	if *key == "" {
		fatal("--key is required")
	}

	sess := unlockedSession(cfg)
	defer sess.Stop()

	info, err := sess.ImportWallet(*key, *label)
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Wallet imported: %s\n", info.Address)
}

func cmdExport(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	address := fs.String("address", "", "wallet address")
	fs.Parse(args)
	if *address == "" {
		fatal("--address is required")
	}

	sess := unlockedSession(cfg)
	defer sess.Stop()

	priv, err := sess.ExportWallet(*address)
	if err != nil {
		fatal("%v", err)
	}
	fmt.Println(priv)
}

func cmdBalance(cfg *config.Config) {
	sess := unlockedSession(cfg)
	defer sess.Stop()

	sess.ScanNow(false)
	for _, info := range sess.WalletInfo() {
		fmt.Printf("%s  %s\n", info.Address, info.Label)
		fmt.Printf("  balance:   %s %s\n", formatAmount(info.Balance), config.Symbol)
		if info.PendingSend > 0 {
			fmt.Printf("  reserved:  %s %s\n", formatAmount(info.PendingSend), config.Symbol)
			fmt.Printf("  available: %s %s\n", formatAmount(info.Available), config.Symbol)
		}
	}
}

func cmdSend(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	to := fs.String("to", "", "destination address")
	amountStr := fs.String("amount", "", "amount to send")
	memo := fs.String("memo", "", "optional memo")
	fs.Parse(args)
	if *to == "" || *amountStr == "" {
		fatal("--to and --amount are required")
	}
	amount, err := strconv.ParseFloat(*amountStr, 64)
	if err != nil || amount <= 0 {
		fatal("invalid amount %q", *amountStr)
	}

	sess := unlockedSession(cfg)
	defer sess.Stop()

	rec, err := sess.Send(*to, amount, *memo)
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Transaction broadcast: %s\n", rec.Hash)
	fmt.Printf("  amount: %s %s (+ %s fee)\n",
		formatAmount(rec.Amount), config.Symbol, formatAmount(rec.Fee))
}

func cmdHistory(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	address := fs.String("address", "", "wallet address (default: primary)")
	fs.Parse(args)

	sess := unlockedSession(cfg)
	defer sess.Stop()

	addr := *address
	if addr == "" {
		infos := sess.WalletInfo()
		if len(infos) == 0 {
			fatal("no wallets")
		}
		addr = infos[0].Address
	}

	history, err := sess.History(addr)
	if err != nil {
		fatal("%v", err)
	}
	if len(history) == 0 {
		fmt.Println("No transactions.")
		return
	}
	for _, rec := range history {
		ts := time.Unix(int64(rec.Timestamp), 0).Format("2006-01-02 15:04")
		dir := "in "
		if wallet.SameAddress(rec.From, addr) {
			dir = "out"
		}
		height := "pending"
		if rec.BlockHeight != nil {
			height = fmt.Sprintf("#%d", *rec.BlockHeight)
		}
		fmt.Printf("%s  %s  %-9s %12s %s  %s  %s\n",
			ts, dir, rec.Status, formatAmount(rec.Amount), config.Symbol, height, rec.Hash)
	}
}

func cmdScan(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	full := fs.Bool("full", false, "rescan from genesis")
	fs.Parse(args)

	sess := unlockedSession(cfg)
	defer sess.Stop()

	if !sess.ScanNow(*full) {
		fatal("scan failed")
	}
	fmt.Println("Scan complete.")
	for _, info := range sess.WalletInfo() {
		fmt.Printf("%s  %s %s\n", info.Address, formatAmount(info.Balance), config.Symbol)
	}
}

func cmdMempool(cfg *config.Config) {
	sess := openSession(cfg)
	defer sess.Stop()

	txs, err := sess.Mempool()
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Pending transactions: %d\n", len(txs))
	for _, tx := range txs {
		fmt.Printf("  %s  %s -> %s  %s %s\n",
			tx.Hash, tx.FromAddress(), tx.ToAddress(), formatAmount(tx.Amount), config.Symbol)
	}
}

// formatAmount renders ledger units, trimming trailing zeros.
func formatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', 8, 64)
	s = strings.TrimRight(s, "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
