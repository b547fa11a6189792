// Copyright (c) 2022 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/project-illium/mintd/mint"
	"github.com/project-illium/mintd/params"
	"github.com/project-illium/mintd/repo"
	mintds "github.com/project-illium/mintd/repo/datastore"
	"github.com/project-illium/mintd/repo/mock"
	"github.com/project-illium/mintd/types"
	"go.uber.org/zap"
)

var log = zap.S()

// Server is the main class that brings all the constituent parts together
// into a mint node. Consensus glue running in the same process drives it
// through Mint().ApplyBatch.
type Server struct {
	config *repo.Config
	params *params.FederationParams
	ds     repo.Datastore
	mint   *mint.Mint
}

// BuildServer is the constructor for the server. We pass in the config file here
// and use it to configure all the various parts of the Server. If combiner
// is nil the mint is opened read only.
func BuildServer(config *repo.Config, combiner mint.Combiner) (*Server, error) {
	// Logging
	if err := setupLogging(config.LogDir, config.LogLevel, config.DevMode); err != nil {
		return nil, err
	}

	// Parameter selection
	fedParams, err := config.Federation.Params()
	if err != nil {
		return nil, err
	}

	// Datastore
	var ds repo.Datastore
	if config.InMemory {
		ds = mock.NewBTreeDatastore()
	} else {
		var opts []mintds.Option
		if config.LowMemory {
			opts = append(opts, mintds.WithLowMemory())
		}
		ds, err = mintds.NewMintDatastore(config.DataDir, opts...)
		if err != nil {
			return nil, err
		}
	}

	mintOpts := []mint.Option{
		mint.Params(fedParams),
		mint.Datastore(ds),
		mint.OurPeerID(types.PeerID(config.Federation.PeerID)),
		mint.MaxNonces(config.Mint.MaxNonces),
		mint.MaxBackupSize(config.Mint.MaxBackupSize),
		mint.PruneShares(!config.Mint.KeepShares),
	}
	if combiner != nil {
		mintOpts = append(mintOpts, mint.SignatureCombiner(combiner))
	} else {
		log.Warn("No signature combiner configured. The mint is read only.")
		mintOpts = append(mintOpts, mint.ReadOnly())
	}
	m, err := mint.NewMint(mintOpts...)
	if err != nil {
		ds.Close()
		return nil, err
	}

	s := &Server{
		config: config,
		params: fedParams,
		ds:     ds,
		mint:   m,
	}
	m.Subscribe(s.handleMintNotification)

	report, err := m.Audit()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("auditing mint state: %w", err)
	}
	if !report.Consistent {
		log.Errorf("Audit ledger is inconsistent: totals %+v, sums issued %d redeemed %d",
			report.Totals, report.IssuanceSum, report.RedemptionSum)
	}

	epoch, _, err := m.LastEpoch()
	if err != nil {
		s.Close()
		return nil, err
	}
	log.Infof("Mint peer %d of %s federation ready at epoch %d. Tolerating %d faulty peers. Issued %d, redeemed %d.",
		config.Federation.PeerID, fedParams.Name, epoch, fedParams.MaxFaulty(), report.Totals.Issued, report.Totals.Redeemed)
	return s, nil
}

// Mint returns the mint driven by this server.
func (s *Server) Mint() *mint.Mint {
	return s.mint
}

func (s *Server) handleMintNotification(n *mint.Notification) {
	switch n.Type {
	case mint.NTOutputFinalized:
		if data, ok := n.Data.(*mint.OutcomeNotification); ok {
			log.Debugf("Output %s finalized for %d", data.OutPoint, data.Outcome.Amount)
		}
	case mint.NTOutputFailed:
		if data, ok := n.Data.(*mint.OutcomeNotification); ok {
			log.Warnf("Output %s failed: %s (culprits %v)", data.OutPoint, data.Outcome.Reason, data.Outcome.Culprits)
		}
	case mint.NTBatchApplied:
		if result, ok := n.Data.(*mint.BatchResult); ok {
			log.Debugf("Applied epoch %d with %d items", result.Epoch, len(result.Items))
		}
	}
}

// Close shuts down all the parts of the server and blocks until
// they finish closing.
func (s *Server) Close() error {
	if err := s.ds.Close(); err != nil {
		return err
	}
	return nil
}
