// Command triestore-cli is a small debug tool for inspecting a trie
// store's data directory: fetching a raw node by hash, reading a key
// against a root, or seeding a fresh genesis root. It carries no
// execution-engine logic of its own.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/casper-network/triestore/history"
	stlog "github.com/casper-network/triestore/log"
	"github.com/casper-network/triestore/store"
	"github.com/casper-network/triestore/store/lmdb"
	"github.com/casper-network/triestore/store/memory"
	"github.com/casper-network/triestore/trie"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		usage()
		return 2
	}

	switch args[0] {
	case "get_node":
		return runGetNode(args[1:])
	case "read":
		return runRead(args[1:])
	case "genesis":
		return runGenesis(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", args[0])
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: triestore-cli <subcommand> [flags]

subcommands:
  get_node  -datadir DIR -hash HEX             print the raw bytes of one node
  read      -datadir DIR -root HEX -key HEX    read a key against a root
  genesis   -datadir DIR                       create the empty root, print its hash`)
}

func openEnv(datadir string) (store.Environment, error) {
	if datadir == "" {
		return memory.New(), nil
	}
	return lmdb.Open(lmdb.Options{Path: datadir})
}

func runGetNode(args []string) int {
	fs := flag.NewFlagSet("get_node", flag.ContinueOnError)
	datadir := fs.String("datadir", "", "data directory (empty selects an in-memory store)")
	hashHex := fs.String("hash", "", "32-byte node hash, hex-encoded")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	h, err := parseHash(*hashHex)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	env, err := openEnv(*datadir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer env.Close()

	ctx := context.Background()
	rtx, err := env.BeginRead(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer rtx.Close()

	data, ok, err := rtx.Get(h)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	if !ok {
		fmt.Fprintln(os.Stderr, "not found")
		return 1
	}
	fmt.Println(hex.EncodeToString(data))
	return 0
}

func runRead(args []string) int {
	fs := flag.NewFlagSet("read", flag.ContinueOnError)
	datadir := fs.String("datadir", "", "data directory (empty selects an in-memory store)")
	rootHex := fs.String("root", "", "trie root hash, hex-encoded")
	keyHex := fs.String("key", "", "key to read, hex-encoded")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	root, err := parseHash(*rootHex)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	key, err := hex.DecodeString(*keyHex)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: invalid -key:", err)
		return 1
	}

	env, err := openEnv(*datadir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer env.Close()

	h := history.NewHistory(env, 0, nil)
	ctx := context.Background()
	tc, ok, err := h.Checkout(ctx, root)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	if !ok {
		fmt.Fprintln(os.Stderr, "root not found")
		return 1
	}
	v, found, err := tc.Read(history.Key(key))
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	if !found {
		fmt.Fprintln(os.Stderr, "key not found")
		return 1
	}
	fmt.Printf("%s\n", describeValue(v))
	return 0
}

func runGenesis(args []string) int {
	fs := flag.NewFlagSet("genesis", flag.ContinueOnError)
	datadir := fs.String("datadir", "", "data directory (empty selects an in-memory store)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	env, err := openEnv(*datadir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer env.Close()

	root, err := history.CreateEmptyRoot(context.Background(), env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	stlog.Info("created empty root", "root", root.Hex())
	fmt.Println(root.Hex())
	return 0
}

func parseHash(s string) (trie.Hash, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return trie.Hash{}, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(raw) != trie.HashLength {
		return trie.Hash{}, fmt.Errorf("hash %q must be %d bytes, got %d", s, trie.HashLength, len(raw))
	}
	return trie.BytesToHash(raw), nil
}

func describeValue(v history.StoredValue) string {
	switch v.Kind {
	case history.KindBytes:
		return hex.EncodeToString(v.Bytes)
	case history.KindInt32:
		return fmt.Sprintf("%d", v.Int32)
	case history.KindUInt64:
		return fmt.Sprintf("%d", v.UInt64)
	case history.KindUInt512:
		return v.UInt512.String()
	case history.KindNamedKeys:
		return fmt.Sprintf("%d named keys", len(v.NamedKeys))
	default:
		return "<unknown>"
	}
}
