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
	"io"
	"testing"
	"time"

	"rlogborder/internal/config"
	"rlogborder/internal/logging"
)

func testNode(id string, peers []config.Peer) *Node {
	cfg := config.DefaultConfig()
	cfg.NodeID = id
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.Peers = peers
	cfg.ElectionGrace = time.Hour // keep the watcher quiet in unit tests
	logger := logging.New(io.Discard, logging.ERROR, false, id)
	return New(cfg, logger)
}

func TestNewNodeStartsAsFollower(t *testing.T) {
	n := testNode("n1", nil)
	role, term, leader := n.GetState()
	if role != Follower {
		t.Fatalf("role = %v, want Follower", role)
	}
	if term != 0 {
		t.Fatalf("term = %d, want 0", term)
	}
	if leader != "" {
		t.Fatalf("leader = %q, want empty", leader)
	}
	if n.commitIndex != -1 || n.lastApplied != -1 {
		t.Fatalf("commitIndex/lastApplied = %d/%d, want -1/-1", n.commitIndex, n.lastApplied)
	}
}

func TestRequestVoteGrantsFirstComer(t *testing.T) {
	n := testNode("n1", []config.Peer{{ID: "n2", Addr: "127.0.0.1:9001"}})

	reply := n.RequestVote(RequestVoteArgs{Term: 1, CandidateID: "n2", LastLogIndex: -1, LastLogTerm: 0})
	if !reply.VoteGranted {
		t.Fatal("expected vote granted on first request at higher term")
	}
	if reply.Term != 1 {
		t.Fatalf("reply term = %d, want 1", reply.Term)
	}

	// a second candidate in the same term must be refused
	reply2 := n.RequestVote(RequestVoteArgs{Term: 1, CandidateID: "n3", LastLogIndex: -1, LastLogTerm: 0})
	if reply2.VoteGranted {
		t.Fatal("expected vote refused: already voted this term")
	}
}

func TestRequestVoteRejectsStaleTerm(t *testing.T) {
	n := testNode("n1", nil)
	n.mu.Lock()
	n.currentTerm = 5
	n.mu.Unlock()

	reply := n.RequestVote(RequestVoteArgs{Term: 3, CandidateID: "n2"})
	if reply.VoteGranted {
		t.Fatal("expected vote refused for stale term")
	}
	if reply.Term != 5 {
		t.Fatalf("reply term = %d, want 5", reply.Term)
	}
}

func TestRequestVoteBlockedCandidateRefused(t *testing.T) {
	n := testNode("n1", []config.Peer{{ID: "n2", Addr: "127.0.0.1:9002"}})
	n.SetPartition([]string{"127.0.0.1:9002"})

	reply := n.RequestVote(RequestVoteArgs{Term: 1, CandidateID: "n2"})
	if reply.VoteGranted {
		t.Fatal("expected vote refused from a blocked candidate")
	}
}

func TestAppendEntriesHeartbeatAdvancesTermAndRole(t *testing.T) {
	n := testNode("n1", []config.Peer{{ID: "n2", Addr: "127.0.0.1:9003"}})
	n.mu.Lock()
	n.setRoleLocked(Candidate)
	n.mu.Unlock()

	reply := n.AppendEntries(AppendEntriesArgs{Term: 1, LeaderID: "n2", PrevLogIndex: -1, PrevLogTerm: 0, LeaderCommit: -1})
	if !reply.Success {
		t.Fatal("expected heartbeat success")
	}
	role, term, leader := n.GetState()
	if role != Follower {
		t.Fatalf("role = %v, want Follower after AppendEntries", role)
	}
	if term != 1 {
		t.Fatalf("term = %d, want 1", term)
	}
	if leader != "n2" {
		t.Fatalf("leader = %q, want n2", leader)
	}
}

func TestAppendEntriesRejectsLogInconsistency(t *testing.T) {
	n := testNode("n1", nil)
	reply := n.AppendEntries(AppendEntriesArgs{
		Term:         1,
		LeaderID:     "n2",
		PrevLogIndex: 3,
		PrevLogTerm:  1,
		LeaderCommit: -1,
	})
	if reply.Success {
		t.Fatal("expected failure: prev_log_index beyond the follower's log")
	}
}

func TestAppendEntriesReplicatesAndCommits(t *testing.T) {
	n := testNode("n1", nil)
	reply := n.AppendEntries(AppendEntriesArgs{
		Term:         1,
		LeaderID:     "n2",
		PrevLogIndex: -1,
		PrevLogTerm:  0,
		Entries:      []LogEntry{{Term: 1, Key: "a", Value: "1"}, {Term: 1, Key: "b", Value: "2"}},
		LeaderCommit: 1,
	})
	if !reply.Success {
		t.Fatal("expected success")
	}
	if len(n.log) != 2 {
		t.Fatalf("log len = %d, want 2", len(n.log))
	}
	if n.kvStore["a"] != "1" || n.kvStore["b"] != "2" {
		t.Fatalf("kvStore = %v, want a=1 b=2", n.kvStore)
	}
}

func TestAppendEntriesTruncatesConflictingTail(t *testing.T) {
	n := testNode("n1", nil)
	n.AppendEntries(AppendEntriesArgs{
		Term: 1, LeaderID: "n2", PrevLogIndex: -1, PrevLogTerm: 0,
		Entries:      []LogEntry{{Term: 1, Key: "a", Value: "1"}, {Term: 1, Key: "b", Value: "stale"}},
		LeaderCommit: -1,
	})
	// a new leader in term 2 overwrites index 1 with a different entry
	reply := n.AppendEntries(AppendEntriesArgs{
		Term: 2, LeaderID: "n3", PrevLogIndex: 0, PrevLogTerm: 1,
		Entries:      []LogEntry{{Term: 2, Key: "b", Value: "fresh"}},
		LeaderCommit: 1,
	})
	if !reply.Success {
		t.Fatal("expected success")
	}
	if n.log[1].Value != "fresh" {
		t.Fatalf("log[1].Value = %q, want fresh", n.log[1].Value)
	}
	if n.kvStore["b"] != "fresh" {
		t.Fatalf("kvStore[b] = %q, want fresh", n.kvStore["b"])
	}
}

func TestClientSetRequiresLeader(t *testing.T) {
	n := testNode("n1", nil)
	if n.ClientSet("k", "v") {
		t.Fatal("expected ClientSet to fail on a follower")
	}

	n.mu.Lock()
	n.setRoleLocked(Leader)
	n.mu.Unlock()
	if !n.ClientSet("k", "v") {
		t.Fatal("expected ClientSet to succeed on a leader")
	}
	if len(n.log) != 1 || n.log[0].Key != "k" {
		t.Fatalf("log = %+v, want one entry for k", n.log)
	}
}

func TestClientGetReturnsNotLeaderError(t *testing.T) {
	n := testNode("n1", nil)
	_, _, err := n.ClientGet("k")
	if err == nil {
		t.Fatal("expected NotLeader error on a follower")
	}
}

func TestClientGetReadsAppliedValue(t *testing.T) {
	n := testNode("n1", nil)
	n.mu.Lock()
	n.setRoleLocked(Leader)
	n.kvStore["k"] = "v"
	n.mu.Unlock()

	value, found, err := n.ClientGet("k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found || value != "v" {
		t.Fatalf("got found=%v value=%q, want true/v", found, value)
	}
}

func TestGetLogReturnsOnlyCommittedEntries(t *testing.T) {
	n := testNode("n1", nil)
	n.mu.Lock()
	n.log = append(n.log, LogEntry{Term: 1, Key: "a", Value: "1"}, LogEntry{Term: 1, Key: "b", Value: "2"})
	n.commitIndex = 0
	n.currentTerm = 1
	n.mu.Unlock()

	entries, commitIndex, term := n.GetLog()
	if commitIndex != 0 || term != 1 {
		t.Fatalf("got commitIndex=%d term=%d, want 0/1", commitIndex, term)
	}
	if len(entries) != 1 || entries[0].Key != "a" {
		t.Fatalf("got entries=%v, want only the committed entry", entries)
	}
}

func TestGetLeaderFallsBackToSelf(t *testing.T) {
	n := testNode("n1", nil)
	isLeader, leaderID := n.GetLeader()
	if isLeader {
		t.Fatal("expected isLeader=false for a follower with no known leader")
	}
	if leaderID != "n1" {
		t.Fatalf("leaderID = %q, want self id n1", leaderID)
	}
}

func TestUpdateCommitIndexRequiresCurrentTermEntry(t *testing.T) {
	n := testNode("n1", []config.Peer{{ID: "n2", Addr: "a"}, {ID: "n3", Addr: "b"}})
	n.mu.Lock()
	n.currentTerm = 2
	n.log = []LogEntry{{Term: 1, Key: "a", Value: "1"}}
	n.matchIndex["n2"] = 0
	n.matchIndex["n3"] = 0
	n.updateCommitIndexLocked()
	committed := n.commitIndex
	n.mu.Unlock()

	if committed != -1 {
		t.Fatalf("commitIndex = %d, want -1: entry is from an earlier term", committed)
	}
}

func TestUpdateCommitIndexAdvancesOnMajority(t *testing.T) {
	n := testNode("n1", []config.Peer{{ID: "n2", Addr: "a"}, {ID: "n3", Addr: "b"}})
	n.mu.Lock()
	n.currentTerm = 1
	n.log = []LogEntry{{Term: 1, Key: "a", Value: "1"}, {Term: 1, Key: "b", Value: "2"}}
	n.matchIndex["n2"] = 1
	n.matchIndex["n3"] = -1
	n.updateCommitIndexLocked()
	committed := n.commitIndex
	n.mu.Unlock()

	if committed != 1 {
		t.Fatalf("commitIndex = %d, want 1 (leader + n2 agree)", committed)
	}
}

func TestSetPartitionBlocksFutureRPCs(t *testing.T) {
	n := testNode("n1", []config.Peer{{ID: "n2", Addr: "127.0.0.1:9010"}})
	if !n.SetPartition([]string{"127.0.0.1:9010"}) {
		t.Fatal("expected SetPartition to report success")
	}
	n.mu.Lock()
	blocked := n.isBlockedLocked("n2")
	n.mu.Unlock()
	if !blocked {
		t.Fatal("expected n2 to be blocked after SetPartition")
	}
}
