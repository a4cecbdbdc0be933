/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package border

import (
	"sync"
	"time"

	"rlogborder/internal/config"
	"rlogborder/internal/errors"
	"rlogborder/internal/logging"
	"rlogborder/internal/transport"
)

// phaseKey indexes the per-phase vote logs (prepareLog, commitLog) by
// (sequence_number, block_hash), matching the reference implementation's
// nested dict.
type phaseKey struct {
	seq  uint64
	hash string
}

// Node is one member of a BOrder cluster.
type Node struct {
	id        string
	peers     map[string]string // peer id -> address
	primaryID string
	cfg       *config.Config
	client    *transport.Client
	server    *transport.Server
	logger    *logging.Logger
	f         int // Byzantine fault tolerance: floor((N-1)/3)
	quorum    int // 2f+1

	mu sync.Mutex

	role           Role
	viewNumber     uint64
	sequenceNumber uint64

	blockchain []Block
	pending    *Block

	preprepareLog map[uint64]Block
	prepareLog    map[phaseKey]map[string]bool
	commitLog     map[phaseKey]map[string]bool

	isMalicious   bool
	maliciousType MaliciousType

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a BOrder node from cfg. N is the total cluster size
// including self, used to derive f and the quorum size Q = 2f+1.
func New(cfg *config.Config, logger *logging.Logger) *Node {
	peers := make(map[string]string, len(cfg.Peers))
	for _, p := range cfg.Peers {
		peers[p.ID] = p.Addr
	}

	role := Replica
	primaryID := ""
	if cfg.IsPrimary {
		role = Primary
		primaryID = cfg.NodeID
	}

	n := len(peers) + 1
	f := (n - 1) / 3

	return &Node{
		id:            cfg.NodeID,
		peers:         peers,
		primaryID:     primaryID,
		cfg:           cfg,
		client:        transport.NewClient(cfg.RPCTimeout),
		logger:        logger,
		f:             f,
		quorum:        2*f + 1,
		role:          role,
		blockchain:    []Block{genesisBlock()},
		preprepareLog: make(map[uint64]Block),
		prepareLog:    make(map[phaseKey]map[string]bool),
		commitLog:     make(map[phaseKey]map[string]bool),
		stopCh:        make(chan struct{}),
	}
}

// Start binds the listening socket and registers RPC handlers.
func (n *Node) Start() error {
	srv, err := transport.Listen(n.cfg.ListenAddr)
	if err != nil {
		return err
	}
	n.server = srv
	n.registerHandlers()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		srv.Serve()
	}()

	n.logger.Info("border node started on %s, role=%s, f=%d, Q=%d", n.cfg.ListenAddr, n.role, n.f, n.quorum)
	return nil
}

// Stop shuts the node's transport down and waits for in-flight
// background broadcasts to finish.
func (n *Node) Stop() error {
	close(n.stopCh)
	var err error
	if n.server != nil {
		err = n.server.Close()
	}
	n.wg.Wait()
	return err
}

func (n *Node) lastBlockLocked() Block {
	return n.blockchain[len(n.blockchain)-1]
}

// GetNodeStatus handles §6 GetNodeStatus.
func (n *Node) GetNodeStatus() GetNodeStatusReply {
	n.mu.Lock()
	defer n.mu.Unlock()

	malicious := string(n.maliciousType)
	if malicious == "" {
		malicious = "none"
	}
	return GetNodeStatusReply{
		NodeID:           n.id,
		IsPrimary:        n.role == Primary,
		ViewNumber:       n.viewNumber,
		CurrentSequence:  n.sequenceNumber,
		BlockchainHeight: int64(len(n.blockchain)) - 1,
		IsMalicious:      n.isMalicious,
		MaliciousType:    malicious,
	}
}

// GetBlockchain handles §6 GetBlockchain.
func (n *Node) GetBlockchain() GetBlockchainReply {
	n.mu.Lock()
	defer n.mu.Unlock()

	blocks := make([]Block, len(n.blockchain))
	copy(blocks, n.blockchain)
	return GetBlockchainReply{Blocks: blocks, ChainLength: len(blocks)}
}

// SetMaliciousBehavior handles §6 SetMaliciousBehavior. double_send and
// random are accepted (they are reserved names in spec §4.2) but carry
// no behavior beyond being recorded.
func (n *Node) SetMaliciousBehavior(enable bool, malType string) SetMaliciousBehaviorReply {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.isMalicious = enable
	if enable {
		n.maliciousType = MaliciousType(malType)
	} else {
		n.maliciousType = MaliciousNone
	}

	status := "DISABLED"
	msg := "Malicious behavior " + status
	if n.isMalicious {
		msg = "Malicious behavior ENABLED (type: " + string(n.maliciousType) + ")"
	}
	n.logger.Info("%s", msg)
	return SetMaliciousBehaviorReply{Success: true, Message: msg}
}

// ClientSubmitBlock handles §6 ClientSubmitBlock, spec §4.2's block
// construction step. Only the Primary may initiate consensus.
func (n *Node) ClientSubmitBlock(data string) ClientSubmitBlockReply {
	n.mu.Lock()

	if n.role != Primary {
		n.mu.Unlock()
		return ClientSubmitBlockReply{
			Success:     false,
			Message:     errors.NotPrimary(n.primaryID).Error(),
			BlockHeight: -1,
		}
	}

	last := n.lastBlockLocked()
	block := Block{
		BlockHeight:    last.BlockHeight + 1,
		PreviousHash:   last.BlockHash,
		Timestamp:      time.Now().Unix(),
		Data:           data,
		ViewNumber:     n.viewNumber,
		SequenceNumber: n.sequenceNumber + 1,
	}
	block.BlockHash = computeHash(block.Data, block.PreviousHash, block.BlockHeight)

	if n.isMalicious && n.maliciousType == MaliciousWrongHash {
		block.BlockHash = "malicious_hash_" + block.BlockHash[:40]
		n.logger.Info("malicious: creating block with wrong hash")
	}

	n.sequenceNumber++
	n.pending = &block
	n.logger.Info("primary: initiating consensus for block %d", block.BlockHeight)
	n.mu.Unlock()

	n.wg.Add(1)
	go n.broadcastPrePrepare(block)

	return ClientSubmitBlockReply{Success: true, Message: "Consensus initiated", BlockHeight: block.BlockHeight}
}

// PrePrepare handles an incoming PrePrepare RPC per spec §4.2.
func (n *Node) PrePrepare(args PrePrepareArgs) PrePrepareReply {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.isMalicious && n.maliciousType == MaliciousSilent {
		n.logger.Info("malicious: ignoring pre-prepare")
		return PrePrepareReply{Accepted: false, NodeID: n.id, Reason: "Silent node"}
	}

	if args.ViewNumber != n.viewNumber {
		return PrePrepareReply{Accepted: false, NodeID: n.id, Reason: "view mismatch"}
	}
	if args.SequenceNumber != n.sequenceNumber+1 {
		return PrePrepareReply{Accepted: false, NodeID: n.id, Reason: "sequence mismatch"}
	}

	ok, reason := verifyBlock(args.Block, n.lastBlockLocked())
	if !ok {
		return PrePrepareReply{Accepted: false, NodeID: n.id, Reason: errors.InvalidBlock(reason).Error()}
	}

	n.preprepareLog[args.SequenceNumber] = args.Block
	block := args.Block
	n.pending = &block
	n.sequenceNumber = args.SequenceNumber

	n.logger.Info("pre-prepare accepted (seq=%d)", args.SequenceNumber)

	n.wg.Add(1)
	go n.broadcastPrepare(block)

	return PrePrepareReply{Accepted: true, NodeID: n.id, Reason: "Accepted"}
}

// Prepare handles an incoming Prepare RPC per spec §4.2.
func (n *Node) Prepare(args PrepareArgs) PrepareReply {
	n.mu.Lock()
	defer n.mu.Unlock()

	if args.ViewNumber != n.viewNumber || args.SequenceNumber != n.sequenceNumber {
		return PrepareReply{Accepted: false, NodeID: n.id}
	}

	key := phaseKey{seq: args.SequenceNumber, hash: args.BlockHash}
	if n.prepareLog[key] == nil {
		n.prepareLog[key] = make(map[string]bool)
	}
	n.prepareLog[key][args.NodeID] = true
	count := len(n.prepareLog[key])

	n.logger.Debug("prepare received from %s (%d/%d)", args.NodeID, count, n.quorum)

	if count >= n.quorum && n.pending != nil && n.pending.BlockHash == args.BlockHash {
		block := *n.pending
		n.wg.Add(1)
		go n.broadcastCommit(block)
	}

	return PrepareReply{Accepted: true, NodeID: n.id}
}

// Commit handles an incoming Commit RPC per spec §4.2.
func (n *Node) Commit(args CommitArgs) CommitReply {
	n.mu.Lock()
	defer n.mu.Unlock()

	if args.ViewNumber != n.viewNumber || args.SequenceNumber != n.sequenceNumber {
		return CommitReply{Accepted: false, NodeID: n.id}
	}

	key := phaseKey{seq: args.SequenceNumber, hash: args.BlockHash}
	if n.commitLog[key] == nil {
		n.commitLog[key] = make(map[string]bool)
	}
	n.commitLog[key][args.NodeID] = true
	count := len(n.commitLog[key])

	n.logger.Debug("commit received from %s (%d/%d)", args.NodeID, count, n.quorum)

	if count >= n.quorum && n.pending != nil && n.pending.BlockHash == args.BlockHash {
		n.executeBlockLocked(*n.pending)
	}

	return CommitReply{Accepted: true, NodeID: n.id}
}

// executeBlockLocked appends block to the chain (idempotent on a
// hash already present) and clears pending_block.
func (n *Node) executeBlockLocked(block Block) {
	for _, b := range n.blockchain {
		if b.BlockHash == block.BlockHash {
			return
		}
	}
	n.blockchain = append(n.blockchain, block)
	n.pending = nil
	n.logger.Info("block committed: height=%d data=%q", block.BlockHeight, block.Data)
}
