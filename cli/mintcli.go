// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/project-illium/mintd/mint"
	"github.com/project-illium/mintd/repo"
	mintds "github.com/project-illium/mintd/repo/datastore"
)

type options struct {
	ShowVersion bool   `short:"v" long:"version" description:"Display version information and exit"`
	DataDir     string `short:"d" long:"datadir" description:"The mintd data directory. The daemon must not be running."`
	Threshold   uint16 `long:"threshold" description:"The number of signature shares needed to finalize an output" default:"3"`
	Peers       uint16 `long:"peers" description:"The number of peers in the federation" default:"4"`
	Federation  string `long:"federation" description:"Use a preset federation [mainnet, devnet, regtest] instead of --threshold and --peers"`

	out io.Writer
}

func main() {
	if len(os.Args) == 2 && os.Args[1] == "-v" {
		fmt.Println(repo.VersionString())
		return
	}

	opts := options{
		DataDir: repo.DefaultHomeDir,
		out:     os.Stdout,
	}
	parser := newParser(&opts)
	if _, err := parser.Parse(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			fmt.Println(err)
			os.Exit(0)
		}
		log.Fatal(err)
	}
}

func newParser(opts *options) *flags.Parser {
	parser := flags.NewNamedParser("mintcli", flags.HelpFlag)
	parser.AddGroup("Datastore options", "Configuration options for opening the mint datastore", opts)

	parser.AddCommand("audit", "Audits the issuance and redemption ledger", "Recomputes the issuance and redemption sums from the individual ledger items and compares them with the stored totals.", &Audit{opts: opts})
	parser.AddCommand("lastepoch", "Returns the last applied consensus epoch", "Returns the last applied consensus epoch", &LastEpoch{opts: opts})
	parser.AddCommand("dump", "Dumps every entry of a namespace", "Decodes and prints every entry of the given namespace in key order. Valid namespaces: "+namespaceList(), &Dump{opts: opts})
	parser.AddCommand("getoutcome", "Returns the status and outcome of an output", "Returns the lifecycle status of an output and its outcome if it has one", &GetOutcome{opts: opts})
	parser.AddCommand("getpendingshares", "Returns the shares received for an output", "Returns the signature shares received so far for an output, keyed by peer", &GetPendingShares{opts: opts})
	parser.AddCommand("getproposedshares", "Returns our own shares waiting for consensus", "Returns this peer's signature shares that consensus has not yet delivered back", &GetProposedShares{opts: opts})
	parser.AddCommand("isspent", "Returns whether a note nonce has been spent", "Returns whether a note nonce has been spent", &IsSpent{opts: opts})
	parser.AddCommand("getbackup", "Returns the latest backup stored for an id", "Returns the latest backup snapshot stored for the given backup id", &GetBackup{opts: opts})
	return parser
}

// openMint opens the datastore and a read only mint over it. The caller
// must call the returned close func.
func openMint(opts *options) (*mint.Mint, func() error, error) {
	fed := repo.FederationOptions{
		Preset:    opts.Federation,
		Threshold: opts.Threshold,
		Peers:     opts.Peers,
	}
	fedParams, err := fed.Params()
	if err != nil {
		return nil, nil, err
	}
	dataDir := filepath.Join(repo.CleanAndExpandPath(opts.DataDir), "db")
	if _, err := os.Stat(dataDir); err != nil {
		return nil, nil, fmt.Errorf("no datastore at %s: %w", dataDir, err)
	}
	ds, err := mintds.NewMintDatastore(dataDir)
	if err != nil {
		return nil, nil, err
	}
	m, err := mint.NewMint(
		mint.Params(fedParams),
		mint.Datastore(ds),
		mint.ReadOnly(),
	)
	if err != nil {
		ds.Close()
		return nil, nil, err
	}
	return m, ds.Close, nil
}

func printJSON(w io.Writer, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func namespaceList() string {
	var s string
	for i, tag := range repo.Namespaces() {
		if i > 0 {
			s += ", "
		}
		s += repo.NamespaceName(tag)
	}
	return s
}
