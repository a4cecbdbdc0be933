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

import "encoding/json"

// registerHandlers wires each RPC kind to a handler that unmarshals
// the request, calls the corresponding Node method, and marshals the
// reply - the JSON glue between internal/transport's opaque frames and
// Node's typed API.
func (n *Node) registerHandlers() {
	n.server.Handle(KindRequestVote, func(payload []byte) ([]byte, error) {
		var args RequestVoteArgs
		if err := json.Unmarshal(payload, &args); err != nil {
			return nil, err
		}
		return json.Marshal(n.RequestVote(args))
	})

	n.server.Handle(KindAppendEntries, func(payload []byte) ([]byte, error) {
		var args AppendEntriesArgs
		if err := json.Unmarshal(payload, &args); err != nil {
			return nil, err
		}
		return json.Marshal(n.AppendEntries(args))
	})

	n.server.Handle(KindClientSet, func(payload []byte) ([]byte, error) {
		var args ClientSetArgs
		if err := json.Unmarshal(payload, &args); err != nil {
			return nil, err
		}
		ok := n.ClientSet(args.Key, args.Value)
		return json.Marshal(ClientSetReply{Success: ok})
	})

	n.server.Handle(KindClientGet, func(payload []byte) ([]byte, error) {
		var args ClientGetArgs
		if err := json.Unmarshal(payload, &args); err != nil {
			return nil, err
		}
		value, found, err := n.ClientGet(args.Key)
		reply := ClientGetReply{Found: found, Value: value}
		if err != nil {
			reply.Error = err.Error()
		}
		return json.Marshal(reply)
	})

	n.server.Handle(KindGetLeader, func(payload []byte) ([]byte, error) {
		isLeader, leaderID := n.GetLeader()
		return json.Marshal(GetLeaderReply{IsLeader: isLeader, LeaderID: leaderID})
	})

	n.server.Handle(KindSetPartition, func(payload []byte) ([]byte, error) {
		var args SetPartitionArgs
		if err := json.Unmarshal(payload, &args); err != nil {
			return nil, err
		}
		ok := n.SetPartition(args.BlockedAddresses)
		return json.Marshal(SetPartitionReply{Success: ok})
	})

	n.server.Handle(KindGetLog, func(payload []byte) ([]byte, error) {
		entries, commitIndex, term := n.GetLog()
		return json.Marshal(GetLogReply{Entries: entries, CommitIndex: commitIndex, Term: term})
	})
}
