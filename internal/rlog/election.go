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

package rlog

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"
)

// runElectionWatcher waits on the election timer and starts an
// election each time it fires, until Stop is called. A grace period
// after node startup (spec §4.1's election_grace) suppresses the very
// first elections so a freshly-launched cluster can finish dialing
// before anyone times out on silence.
func (n *Node) runElectionWatcher() {
	defer n.wg.Done()

	for {
		select {
		case <-n.stopCh:
			return
		case <-n.electionTm.C:
			if time.Since(n.startTime) < n.cfg.ElectionGrace {
				continue
			}
			n.mu.Lock()
			role := n.role
			n.mu.Unlock()
			if role == Leader {
				continue
			}
			n.startElection()
		}
	}
}

// startElection runs one election round per spec §4.1: become
// Candidate, vote for self, broadcast RequestVote to every
// non-blocked peer, and become Leader on a majority of granted votes.
func (n *Node) startElection() {
	n.mu.Lock()
	n.setRoleLocked(Candidate)
	n.currentTerm++
	n.votedFor = n.id
	term := n.currentTerm
	lastIdx := int64(len(n.log)) - 1
	lastTerm := uint64(0)
	if lastIdx >= 0 {
		lastTerm = n.log[lastIdx].Term
	}
	peerIDs := make([]string, 0, len(n.peers))
	for id := range n.peers {
		if !n.isBlockedLocked(id) {
			peerIDs = append(peerIDs, id)
		}
	}
	n.mu.Unlock()

	n.logger.Info("starting election for term %d", term)

	args := RequestVoteArgs{
		Term:         term,
		CandidateID:  n.id,
		LastLogIndex: lastIdx,
		LastLogTerm:  lastTerm,
	}
	payload, err := json.Marshal(args)
	if err != nil {
		n.logger.Error("marshal RequestVote: %v", err)
		return
	}

	votes := 1 // self
	for _, id := range peerIDs {
		addr := n.peers[id]
		reply, err := n.client.Call(addr, KindRequestVote, payload, n.cfg.RPCTimeout)
		if err != nil {
			n.logger.Debug("RequestVote to %s failed: %v", id, err)
			continue
		}
		var rv RequestVoteReply
		if err := json.Unmarshal(reply, &rv); err != nil {
			continue
		}

		n.mu.Lock()
		if rv.Term > n.currentTerm {
			n.becomeFollowerLocked(rv.Term, "")
			n.mu.Unlock()
			return
		}
		stillCandidate := n.role == Candidate && n.currentTerm == term
		n.mu.Unlock()
		if !stillCandidate {
			return
		}
		if rv.VoteGranted {
			votes++
		}
	}

	majority := (len(n.peers)+1)/2 + 1
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.role != Candidate || n.currentTerm != term {
		return
	}
	if votes >= majority {
		n.becomeLeaderLocked()
	}
}

// becomeLeaderLocked transitions to Leader, resets per-peer replication
// progress, and launches the heartbeat loop for this term.
func (n *Node) becomeLeaderLocked() {
	n.setRoleLocked(Leader)
	n.leaderID = n.id
	n.logger.Info("elected leader for term %d", n.currentTerm)

	nextIdx := int64(len(n.log))
	n.nextIndex = make(map[string]int64, len(n.peers))
	n.matchIndex = make(map[string]int64, len(n.peers))
	for id := range n.peers {
		n.nextIndex[id] = nextIdx
		n.matchIndex[id] = -1
	}

	gen := n.heartbeatGen
	n.wg.Add(1)
	go n.runHeartbeatLoop(gen)
}

// runHeartbeatLoop broadcasts AppendEntries on cfg.HeartbeatInterval
// while this node remains Leader for generation gen. gen is bumped by
// setRoleLocked whenever the node steps down from Leader, which is how
// a stale loop from a prior term learns to exit.
func (n *Node) runHeartbeatLoop(gen int) {
	defer n.wg.Done()

	ticker := time.NewTicker(n.cfg.HeartbeatInterval)
	defer ticker.Stop()

	n.broadcastAppendEntries()
	for {
		select {
		case <-n.stopCh:
			return
		case <-ticker.C:
			n.mu.Lock()
			active := n.role == Leader && n.heartbeatGen == gen
			n.mu.Unlock()
			if !active {
				return
			}
			n.broadcastAppendEntries()
		}
	}
}

// broadcastAppendEntries fans AppendEntries out to every non-blocked
// peer concurrently via errgroup, bounded by the peer count.
func (n *Node) broadcastAppendEntries() {
	n.mu.Lock()
	if n.role != Leader {
		n.mu.Unlock()
		return
	}
	peerIDs := make([]string, 0, len(n.peers))
	for id := range n.peers {
		if !n.isBlockedLocked(id) {
			peerIDs = append(peerIDs, id)
		}
	}
	n.mu.Unlock()

	g, _ := errgroup.WithContext(context.Background())
	for _, id := range peerIDs {
		id := id
		g.Go(func() error {
			n.sendAppendEntriesToPeer(id)
			return nil
		})
	}
	g.Wait()
}

// sendAppendEntriesToPeer replicates the leader's log tail to one
// peer, advancing nextIndex/matchIndex on success and retreating
// nextIndex by one on a log-inconsistency rejection, per spec §4.1.
func (n *Node) sendAppendEntriesToPeer(peerID string) {
	n.mu.Lock()
	if n.role != Leader {
		n.mu.Unlock()
		return
	}
	addr := n.peers[peerID]
	next := n.nextIndex[peerID]
	prevIdx := next - 1
	prevTerm := uint64(0)
	if prevIdx >= 0 && prevIdx < int64(len(n.log)) {
		prevTerm = n.log[prevIdx].Term
	}
	var entries []LogEntry
	if next >= 0 && next < int64(len(n.log)) {
		entries = append(entries, n.log[next:]...)
	}
	args := AppendEntriesArgs{
		Term:         n.currentTerm,
		LeaderID:     n.id,
		PrevLogIndex: prevIdx,
		PrevLogTerm:  prevTerm,
		Entries:      entries,
		LeaderCommit: n.commitIndex,
	}
	term := n.currentTerm
	n.mu.Unlock()

	payload, err := json.Marshal(args)
	if err != nil {
		n.logger.Error("marshal AppendEntries: %v", err)
		return
	}

	reply, err := n.client.Call(addr, KindAppendEntries, payload, n.cfg.RPCTimeout)
	if err != nil {
		n.logger.Debug("AppendEntries to %s failed: %v", peerID, err)
		return
	}
	var ae AppendEntriesReply
	if err := json.Unmarshal(reply, &ae); err != nil {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.role != Leader || n.currentTerm != term {
		return
	}
	if ae.Term > n.currentTerm {
		n.becomeFollowerLocked(ae.Term, "")
		return
	}
	if ae.Success {
		n.matchIndex[peerID] = prevIdx + int64(len(entries))
		n.nextIndex[peerID] = n.matchIndex[peerID] + 1
		n.updateCommitIndexLocked()
	} else if n.nextIndex[peerID] > 0 {
		n.nextIndex[peerID]--
	}
}
