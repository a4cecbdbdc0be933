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
	"io"
	"testing"

	"rlogborder/internal/config"
	"rlogborder/internal/logging"
)

func testNode(id string, isPrimary bool, peers []config.Peer) *Node {
	cfg := config.DefaultConfig()
	cfg.Protocol = config.ProtocolBOrder
	cfg.NodeID = id
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.IsPrimary = isPrimary
	cfg.Peers = peers
	logger := logging.New(io.Discard, logging.ERROR, false, id)
	return New(cfg, logger)
}

func fourPeers() []config.Peer {
	return []config.Peer{
		{ID: "n2", Addr: "127.0.0.1:9101"},
		{ID: "n3", Addr: "127.0.0.1:9102"},
		{ID: "n4", Addr: "127.0.0.1:9103"},
	}
}

func TestNewNodeHasGenesisBlock(t *testing.T) {
	n := testNode("n1", true, fourPeers())
	chain := n.GetBlockchain()
	if chain.ChainLength != 1 {
		t.Fatalf("chain length = %d, want 1", chain.ChainLength)
	}
	g := chain.Blocks[0]
	if g.BlockHeight != 0 || g.Data != "Genesis Block" || g.PreviousHash != zeroHash {
		t.Fatalf("unexpected genesis block: %+v", g)
	}
	if g.BlockHash != computeHash("genesis", zeroHash, 0) {
		t.Fatalf("genesis hash mismatch")
	}
}

func TestQuorumIsTwoFPlusOne(t *testing.T) {
	// 4 total nodes -> f = 1 -> Q = 3
	n := testNode("n1", true, fourPeers())
	if n.f != 1 || n.quorum != 3 {
		t.Fatalf("f=%d quorum=%d, want f=1 quorum=3", n.f, n.quorum)
	}
}

func TestClientSubmitBlockRequiresPrimary(t *testing.T) {
	n := testNode("n1", false, fourPeers())
	reply := n.ClientSubmitBlock("Tx-1")
	if reply.Success {
		t.Fatal("expected failure: not primary")
	}
	if reply.BlockHeight != -1 {
		t.Fatalf("block height = %d, want -1", reply.BlockHeight)
	}
}

func TestClientSubmitBlockBuildsValidBlock(t *testing.T) {
	n := testNode("n1", true, nil) // no peers: broadcast goroutine has nothing to dial
	reply := n.ClientSubmitBlock("Tx-1")
	if !reply.Success {
		t.Fatalf("expected success, got message %q", reply.Message)
	}
	if reply.BlockHeight != 1 {
		t.Fatalf("block height = %d, want 1", reply.BlockHeight)
	}
	n.mu.Lock()
	pending := n.pending
	seq := n.sequenceNumber
	n.mu.Unlock()
	if pending == nil || pending.BlockHeight != 1 {
		t.Fatalf("pending block = %+v, want height 1", pending)
	}
	if seq != 1 {
		t.Fatalf("sequence_number = %d, want 1", seq)
	}
	n.Stop()
}

func TestPrePrepareRejectsSilentNode(t *testing.T) {
	n := testNode("n2", false, fourPeers())
	n.SetMaliciousBehavior(true, "silent")

	reply := n.PrePrepare(PrePrepareArgs{ViewNumber: 0, SequenceNumber: 1, Block: Block{}, PrimaryID: "n1"})
	if reply.Accepted {
		t.Fatal("expected a silent node to reject pre-prepare")
	}
	if reply.Reason != "Silent node" {
		t.Fatalf("reason = %q, want %q", reply.Reason, "Silent node")
	}
}

func TestPrePrepareRejectsBadSequence(t *testing.T) {
	n := testNode("n2", false, fourPeers())
	reply := n.PrePrepare(PrePrepareArgs{ViewNumber: 0, SequenceNumber: 5, Block: Block{}, PrimaryID: "n1"})
	if reply.Accepted {
		t.Fatal("expected rejection for sequence mismatch")
	}
}

func TestPrePrepareAcceptsValidBlock(t *testing.T) {
	n := testNode("n2", false, nil)
	last := genesisBlock()
	block := Block{
		BlockHeight:    1,
		PreviousHash:   last.BlockHash,
		Data:           "Tx-1",
		ViewNumber:     0,
		SequenceNumber: 1,
	}
	block.BlockHash = computeHash(block.Data, block.PreviousHash, block.BlockHeight)

	reply := n.PrePrepare(PrePrepareArgs{ViewNumber: 0, SequenceNumber: 1, Block: block, PrimaryID: "n1"})
	if !reply.Accepted {
		t.Fatalf("expected acceptance, got reason %q", reply.Reason)
	}
	n.mu.Lock()
	pending := n.pending
	n.mu.Unlock()
	if pending == nil || pending.BlockHash != block.BlockHash {
		t.Fatal("expected pending block to be set to the accepted block")
	}
	n.Stop()
}

func TestPrepareReachesQuorumAndTriggersCommit(t *testing.T) {
	n := testNode("n1", false, fourPeers())
	block := Block{BlockHeight: 1, BlockHash: "h1", SequenceNumber: 1}
	n.mu.Lock()
	n.pending = &block
	n.sequenceNumber = 1
	n.mu.Unlock()

	n.Prepare(PrepareArgs{ViewNumber: 0, SequenceNumber: 1, BlockHash: "h1", NodeID: "n2"})
	n.Prepare(PrepareArgs{ViewNumber: 0, SequenceNumber: 1, BlockHash: "h1", NodeID: "n3"})
	reply := n.Prepare(PrepareArgs{ViewNumber: 0, SequenceNumber: 1, BlockHash: "h1", NodeID: "n4"})
	if !reply.Accepted {
		t.Fatal("expected accepted reply")
	}

	n.mu.Lock()
	count := len(n.prepareLog[phaseKey{seq: 1, hash: "h1"}])
	n.mu.Unlock()
	if count != 3 {
		t.Fatalf("prepare count = %d, want 3 (quorum)", count)
	}
	n.Stop()

	// reaching quorum launches broadcastCommit, which delivers its Commit to self
	n.mu.Lock()
	selfCommit := n.commitLog[phaseKey{seq: 1, hash: "h1"}]["n1"]
	n.mu.Unlock()
	if !selfCommit {
		t.Fatal("expected prepare quorum to trigger a commit recorded for self")
	}
}

func TestCommitExecutesBlockOnQuorum(t *testing.T) {
	n := testNode("n1", false, fourPeers())
	block := Block{BlockHeight: 1, PreviousHash: zeroHash, Data: "Tx-1", BlockHash: "h1", SequenceNumber: 1}
	n.mu.Lock()
	n.pending = &block
	n.sequenceNumber = 1
	n.mu.Unlock()

	n.Commit(CommitArgs{ViewNumber: 0, SequenceNumber: 1, BlockHash: "h1", NodeID: "n2"})
	n.Commit(CommitArgs{ViewNumber: 0, SequenceNumber: 1, BlockHash: "h1", NodeID: "n3"})
	n.Commit(CommitArgs{ViewNumber: 0, SequenceNumber: 1, BlockHash: "h1", NodeID: "n4"})

	chain := n.GetBlockchain()
	if chain.ChainLength != 2 {
		t.Fatalf("chain length = %d, want 2 after quorum commit", chain.ChainLength)
	}
	if chain.Blocks[1].BlockHash != "h1" {
		t.Fatalf("committed block hash = %q, want h1", chain.Blocks[1].BlockHash)
	}
}

func TestExecuteBlockIsIdempotent(t *testing.T) {
	n := testNode("n1", false, nil)
	block := Block{BlockHeight: 1, BlockHash: "h1", Data: "Tx-1"}
	n.mu.Lock()
	n.executeBlockLocked(block)
	n.executeBlockLocked(block)
	length := len(n.blockchain)
	n.mu.Unlock()

	if length != 2 {
		t.Fatalf("chain length = %d, want 2 (idempotent re-execute)", length)
	}
}

func TestWrongHashPrimaryCorruptsBlockHash(t *testing.T) {
	n := testNode("n1", true, nil)
	n.SetMaliciousBehavior(true, "wrong_hash")

	reply := n.ClientSubmitBlock("Tx-1")
	if !reply.Success {
		t.Fatal("expected success even while malicious")
	}
	n.mu.Lock()
	hash := n.pending.BlockHash
	n.mu.Unlock()
	if len(hash) < 15 || hash[:15] != "malicious_hash_" {
		t.Fatalf("expected corrupted hash with malicious_hash_ prefix, got %q", hash)
	}
	n.Stop()
}

func TestVerifyBlockDetectsHashMismatch(t *testing.T) {
	last := genesisBlock()
	block := Block{BlockHeight: 1, PreviousHash: last.BlockHash, Data: "Tx-1", BlockHash: "not-the-real-hash"}
	ok, reason := verifyBlock(block, last)
	if ok {
		t.Fatal("expected verifyBlock to reject a wrong hash")
	}
	if reason == "" {
		t.Fatal("expected a non-empty rejection reason")
	}
}
