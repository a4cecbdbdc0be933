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

import "encoding/json"

// registerHandlers wires each RPC kind to a handler that unmarshals
// the request, calls the corresponding Node method, and marshals the
// reply.
func (n *Node) registerHandlers() {
	n.server.Handle(KindPrePrepare, func(payload []byte) ([]byte, error) {
		var args PrePrepareArgs
		if err := json.Unmarshal(payload, &args); err != nil {
			return nil, err
		}
		return json.Marshal(n.PrePrepare(args))
	})

	n.server.Handle(KindPrepare, func(payload []byte) ([]byte, error) {
		var args PrepareArgs
		if err := json.Unmarshal(payload, &args); err != nil {
			return nil, err
		}
		return json.Marshal(n.Prepare(args))
	})

	n.server.Handle(KindCommit, func(payload []byte) ([]byte, error) {
		var args CommitArgs
		if err := json.Unmarshal(payload, &args); err != nil {
			return nil, err
		}
		return json.Marshal(n.Commit(args))
	})

	n.server.Handle(KindClientSubmitBlock, func(payload []byte) ([]byte, error) {
		var args ClientSubmitBlockArgs
		if err := json.Unmarshal(payload, &args); err != nil {
			return nil, err
		}
		return json.Marshal(n.ClientSubmitBlock(args.Data))
	})

	n.server.Handle(KindGetBlockchain, func(payload []byte) ([]byte, error) {
		return json.Marshal(n.GetBlockchain())
	})

	n.server.Handle(KindGetNodeStatus, func(payload []byte) ([]byte, error) {
		return json.Marshal(n.GetNodeStatus())
	})

	n.server.Handle(KindSetMaliciousBehavior, func(payload []byte) ([]byte, error) {
		var args SetMaliciousBehaviorArgs
		if err := json.Unmarshal(payload, &args); err != nil {
			return nil, err
		}
		return json.Marshal(n.SetMaliciousBehavior(args.EnableMalicious, args.MaliciousType))
	})
}
