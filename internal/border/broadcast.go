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
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"
)

// preBroadcastDelay mirrors the reference implementation's 100ms
// pre-broadcast sleep - legibility only, not protocol-essential
// (spec §4.2's "Broadcast mechanics").
const preBroadcastDelay = 100 * time.Millisecond

// broadcastPrePrepare fans a Pre-prepare out to every peer. The
// Primary does not deliver the Pre-prepare to itself (ClientSubmitBlock
// has already advanced its sequence number and set the pending block);
// once the peers have answered it starts its own Prepare broadcast
// directly from this background goroutine, without holding the node's
// lock.
func (n *Node) broadcastPrePrepare(block Block) {
	defer n.wg.Done()
	time.Sleep(preBroadcastDelay)

	n.mu.Lock()
	view := n.viewNumber
	n.mu.Unlock()

	args := PrePrepareArgs{
		ViewNumber:     view,
		SequenceNumber: block.SequenceNumber,
		Block:          block,
		PrimaryID:      n.id,
		Signature:      n.id,
	}
	payload, err := json.Marshal(args)
	if err != nil {
		n.logger.Error("marshal PrePrepare: %v", err)
		return
	}

	g, _ := errgroup.WithContext(context.Background())
	for id, addr := range n.peers {
		id, addr := id, addr
		g.Go(func() error {
			reply, err := n.client.Call(addr, KindPrePrepare, payload, n.cfg.RPCTimeout)
			if err != nil {
				n.logger.Debug("pre-prepare to %s failed: %v", id, err)
				return nil
			}
			var pr PrePrepareReply
			if json.Unmarshal(reply, &pr) == nil {
				if pr.Accepted {
					n.logger.Debug("pre-prepare accepted by %s", id)
				} else {
					n.logger.Debug("pre-prepare rejected by %s: %s", id, pr.Reason)
				}
			}
			return nil
		})
	}
	g.Wait()

	// Primary also participates in the prepare phase.
	n.wg.Add(1)
	n.broadcastPrepare(block)
}

// broadcastPrepare fans a Prepare out to every peer and to self,
// substituting the zero hash whenever this node is in wrong_hash mode,
// whether it is a Replica or the Primary (spec §4.2's Byzantine-behavior
// knob).
func (n *Node) broadcastPrepare(block Block) {
	defer n.wg.Done()
	time.Sleep(preBroadcastDelay)

	n.mu.Lock()
	view := n.viewNumber
	hash := block.BlockHash
	if n.isMalicious && n.maliciousType == MaliciousWrongHash {
		hash = zeroHash
		n.logger.Info("malicious: sending wrong hash in prepare")
	}
	n.mu.Unlock()

	args := PrepareArgs{
		ViewNumber:     view,
		SequenceNumber: block.SequenceNumber,
		BlockHash:      hash,
		NodeID:         n.id,
		Signature:      n.id,
	}
	payload, err := json.Marshal(args)
	if err != nil {
		n.logger.Error("marshal Prepare: %v", err)
		return
	}

	g, _ := errgroup.WithContext(context.Background())
	for id, addr := range n.peers {
		id, addr := id, addr
		g.Go(func() error {
			if _, err := n.client.Call(addr, KindPrepare, payload, n.cfg.RPCTimeout); err != nil {
				n.logger.Debug("prepare to %s failed: %v", id, err)
			}
			return nil
		})
	}
	g.Wait()

	n.Prepare(args)
}

// broadcastCommit fans a Commit out to every peer and to self.
func (n *Node) broadcastCommit(block Block) {
	defer n.wg.Done()
	time.Sleep(preBroadcastDelay)

	n.mu.Lock()
	view := n.viewNumber
	n.mu.Unlock()

	args := CommitArgs{
		ViewNumber:     view,
		SequenceNumber: block.SequenceNumber,
		BlockHash:      block.BlockHash,
		NodeID:         n.id,
		Signature:      n.id,
	}
	payload, err := json.Marshal(args)
	if err != nil {
		n.logger.Error("marshal Commit: %v", err)
		return
	}

	g, _ := errgroup.WithContext(context.Background())
	for id, addr := range n.peers {
		id, addr := id, addr
		g.Go(func() error {
			if _, err := n.client.Call(addr, KindCommit, payload, n.cfg.RPCTimeout); err != nil {
				n.logger.Debug("commit to %s failed: %v", id, err)
			}
			return nil
		})
	}
	g.Wait()

	n.Commit(args)
}
