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
	"sort"
	"sync"
	"time"

	"rlogborder/internal/clock"
	"rlogborder/internal/config"
	"rlogborder/internal/errors"
	"rlogborder/internal/logging"
	"rlogborder/internal/transport"
)

// Node is one member of an RLog cluster. All mutable consensus state
// described in spec §3 is guarded by mu; handlers and timer-driven
// transitions hold mu only for the duration of their read-modify-write
// and never across peer I/O (spec §5).
type Node struct {
	id         string
	peers      map[string]string // peer id -> address
	cfg        *config.Config
	client     *transport.Client
	server     *transport.Server
	logger     *logging.Logger
	startTime  time.Time
	electionTm *clock.ElectionTimer

	mu sync.Mutex

	currentTerm uint64
	votedFor    string
	log         []LogEntry
	commitIndex int64
	lastApplied int64
	role        Role
	leaderID    string

	nextIndex  map[string]int64
	matchIndex map[string]int64

	kvStore map[string]string

	blockedPeers map[string]bool // blocked peer addresses

	lastHeartbeat time.Time

	heartbeatGen int // bumped on every step-down from Leader to stop stale heartbeat loops

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates an RLog node from cfg. The node starts as a Follower
// with an empty log and commit_index/last_applied at -1 per spec §3.
func New(cfg *config.Config, logger *logging.Logger) *Node {
	peers := make(map[string]string, len(cfg.Peers))
	for _, p := range cfg.Peers {
		peers[p.ID] = p.Addr
	}

	return &Node{
		id:           cfg.NodeID,
		peers:        peers,
		cfg:          cfg,
		client:       transport.NewClient(cfg.RPCTimeout),
		logger:       logger,
		commitIndex:  -1,
		lastApplied:  -1,
		role:         Follower,
		nextIndex:    make(map[string]int64),
		matchIndex:   make(map[string]int64),
		kvStore:      make(map[string]string),
		blockedPeers: make(map[string]bool),
		stopCh:       make(chan struct{}),
	}
}

// Start binds the listening socket, registers RPC handlers, and
// starts the election watcher. It returns once the socket is bound;
// bind failure is the one globally fatal condition per spec §7.
func (n *Node) Start() error {
	srv, err := transport.Listen(n.cfg.ListenAddr)
	if err != nil {
		return err
	}
	n.server = srv
	n.registerHandlers()

	n.startTime = time.Now()
	n.electionTm = clock.NewElectionTimer(n.cfg.ElectionTimeoutLo, n.cfg.ElectionTimeoutHi)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		srv.Serve()
	}()

	n.wg.Add(1)
	go n.runElectionWatcher()

	n.logger.Info("rlog node started on %s, peers=%d", n.cfg.ListenAddr, len(n.peers))
	return nil
}

// Stop shuts the node down: the transport is closed, in-flight
// handlers are expected to complete or be abandoned (no durability
// implications since all state is in memory, per spec §5).
func (n *Node) Stop() error {
	close(n.stopCh)
	if n.electionTm != nil {
		n.electionTm.Stop()
	}
	var err error
	if n.server != nil {
		err = n.server.Close()
	}
	n.wg.Wait()
	return err
}

// GetState reports the node's current role, term, and leader id.
func (n *Node) GetState() (Role, uint64, string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.role, n.currentTerm, n.leaderID
}

// setRoleLocked transitions the role and, when leaving Leader, bumps
// heartbeatGen so any heartbeat loop started under the old term exits
// on its next tick.
func (n *Node) setRoleLocked(role Role) {
	if n.role == Leader && role != Leader {
		n.heartbeatGen++
	}
	n.role = role
}

// becomeFollowerLocked adopts term, clears votedFor, and reverts to
// Follower - the common reaction to seeing a higher term anywhere.
func (n *Node) becomeFollowerLocked(term uint64, leaderID string) {
	n.currentTerm = term
	n.votedFor = ""
	n.setRoleLocked(Follower)
	if leaderID != "" {
		n.leaderID = leaderID
	}
}

// isBlockedLocked resolves peerID to its configured address and
// reports whether that address is currently blocked. This is the
// node-layer partition check spec §4.1 describes: blocking is keyed by
// logical peer id, not by the raw TCP source address a bare listener
// would see (see internal/transport's design note).
func (n *Node) isBlockedLocked(peerID string) bool {
	addr, ok := n.peers[peerID]
	if !ok {
		return false
	}
	return n.blockedPeers[addr]
}

// RequestVote handles an incoming RequestVote RPC per spec §4.1.
//
// Note: this does not compare (last_log_term, last_log_index) against
// the voter's own log before granting a vote. Spec §4.1/§9 call this
// out explicitly as a design gap in the reference implementation that
// a faithful reimplementation may choose to close; this node mirrors
// the reference exactly instead (see DESIGN.md's Open Questions).
func (n *Node) RequestVote(args RequestVoteArgs) RequestVoteReply {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.isBlockedLocked(args.CandidateID) {
		return RequestVoteReply{Term: n.currentTerm, VoteGranted: false}
	}

	if args.Term > n.currentTerm {
		n.becomeFollowerLocked(args.Term, "")
	}
	if args.Term < n.currentTerm {
		return RequestVoteReply{Term: n.currentTerm, VoteGranted: false}
	}

	if n.votedFor == "" || n.votedFor == args.CandidateID {
		n.votedFor = args.CandidateID
		if n.electionTm != nil {
			n.electionTm.Reset()
		}
		return RequestVoteReply{Term: n.currentTerm, VoteGranted: true}
	}
	return RequestVoteReply{Term: n.currentTerm, VoteGranted: false}
}

// AppendEntries handles an incoming AppendEntries RPC per spec §4.1
// steps 1-7.
func (n *Node) AppendEntries(args AppendEntriesArgs) AppendEntriesReply {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.isBlockedLocked(args.LeaderID) {
		return AppendEntriesReply{Term: n.currentTerm, Success: false}
	}

	if args.Term < n.currentTerm {
		return AppendEntriesReply{Term: n.currentTerm, Success: false}
	}

	if args.Term > n.currentTerm {
		n.currentTerm = args.Term
		n.votedFor = ""
	}
	n.setRoleLocked(Follower)
	n.leaderID = args.LeaderID
	n.lastHeartbeat = time.Now()
	if n.electionTm != nil {
		n.electionTm.Reset()
	}

	if args.PrevLogIndex >= 0 {
		if args.PrevLogIndex >= int64(len(n.log)) || n.log[args.PrevLogIndex].Term != args.PrevLogTerm {
			return AppendEntriesReply{Term: n.currentTerm, Success: false}
		}
	}

	idx := args.PrevLogIndex + 1
	for _, entry := range args.Entries {
		if idx < int64(len(n.log)) {
			if n.log[idx].Term != entry.Term {
				n.log = append(n.log[:idx:idx], entry)
			}
		} else {
			n.log = append(n.log, entry)
		}
		idx++
	}

	if args.LeaderCommit > n.commitIndex {
		lastIdx := int64(len(n.log)) - 1
		if args.LeaderCommit < lastIdx {
			n.commitIndex = args.LeaderCommit
		} else {
			n.commitIndex = lastIdx
		}
		n.applyCommittedLocked()
	}

	return AppendEntriesReply{Term: n.currentTerm, Success: true}
}

// ClientSet handles §6 ClientSet: append to the leader's log if this
// node is Leader, otherwise fail. The entry only becomes observable
// via ClientGet once applied (spec §4.1).
func (n *Node) ClientSet(key, value string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.role != Leader {
		return false
	}
	n.log = append(n.log, LogEntry{Term: n.currentTerm, Key: key, Value: value})
	n.logger.Info("client set %s=%s at index %d (term %d)", key, value, len(n.log)-1, n.currentTerm)
	return true
}

// ClientGet handles §6 ClientGet: returns the current kv_store value,
// or a NotLeader error if this node isn't the leader.
func (n *Node) ClientGet(key string) (value string, found bool, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.role != Leader {
		return "", false, errors.NotLeader(n.bestLeaderLocked())
	}
	v, ok := n.kvStore[key]
	return v, ok, nil
}

// bestLeaderLocked returns the best-known leader id, falling back to
// self when none is known, matching GetLeader's fallback rule.
func (n *Node) bestLeaderLocked() string {
	if n.leaderID != "" {
		return n.leaderID
	}
	return n.id
}

// GetLeader handles §6 GetLeader.
func (n *Node) GetLeader() (isLeader bool, leaderID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.role == Leader, n.bestLeaderLocked()
}

// GetLog returns a snapshot of the committed log and the current term,
// for operator tooling such as rlog-dump. It does not expose entries
// beyond commit_index, since those may still be rolled back.
func (n *Node) GetLog() (entries []LogEntry, commitIndex int64, term uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	entries = make([]LogEntry, n.commitIndex+1)
	copy(entries, n.log[:n.commitIndex+1])
	return entries, n.commitIndex, n.currentTerm
}

// SetPartition handles §6 SetPartition: atomically replaces the set of
// blocked peer addresses.
func (n *Node) SetPartition(blockedAddresses []string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	blocked := make(map[string]bool, len(blockedAddresses))
	for _, a := range blockedAddresses {
		blocked[a] = true
	}
	n.blockedPeers = blocked
	n.logger.Info("partition set, blocking %d address(es)", len(blocked))
	return true
}

// applyCommittedLocked advances last_applied to commit_index, applying
// each newly committed entry to kv_store in index order.
func (n *Node) applyCommittedLocked() {
	for n.lastApplied < n.commitIndex {
		n.lastApplied++
		entry := n.log[n.lastApplied]
		n.kvStore[entry.Key] = entry.Value
		n.logger.Debug("applied index %d: %s=%s", n.lastApplied, entry.Key, entry.Value)
	}
}

// updateCommitIndexLocked implements spec §4.1's commit advancement:
// find the highest index replicated on a strict majority (leader
// counts itself via len(log)-1) whose entry is from the current term,
// and commit through it.
func (n *Node) updateCommitIndexLocked() {
	matched := make([]int64, 0, len(n.peers)+1)
	matched = append(matched, int64(len(n.log))-1)
	for _, idx := range n.matchIndex {
		matched = append(matched, idx)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i] < matched[j] })

	majority := matched[(len(matched)-1)/2]
	if majority < 0 || majority <= n.commitIndex {
		return
	}
	if n.log[majority].Term != n.currentTerm {
		return
	}
	n.commitIndex = majority
	n.applyCommittedLocked()
}
