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

// Command border-cli is the interactive operator driver for a BOrder
// cluster: primary, submit, blockchain, status, malicious, honest, exit.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"rlogborder/internal/border"
	"rlogborder/internal/transport"
	"rlogborder/pkg/cli"
)

const rpcTimeout = 2 * time.Second

func main() {
	nodesFlag := flag.String("nodes", "", "comma-separated id=addr pairs, e.g. n1=localhost:7101,n2=localhost:7102")
	target := flag.String("target", "", "id of the node to address by default (defaults to the first --nodes entry)")
	flag.Parse()

	nodes, order, err := parseNodes(*nodesFlag)
	if err != nil {
		cli.NewCLIError("invalid --nodes").WithDetail(err.Error()).Exit()
	}
	if len(nodes) == 0 {
		cli.NewCLIError("missing --nodes").WithSuggestion("pass --nodes n1=host:port,n2=host:port,...").Exit()
	}

	current := *target
	if current == "" {
		current = order[0]
	}
	if _, ok := nodes[current]; !ok {
		cli.NewCLIError(fmt.Sprintf("unknown target node %q", current)).Exit()
	}

	client := transport.NewClient(rpcTimeout)

	rl, err := readline.New("border> ")
	if err != nil {
		cli.NewCLIError("failed to start readline").WithDetail(err.Error()).Exit()
	}
	defer rl.Close()

	cli.PrintInfo("connected to %d node(s); current target is %s", len(nodes), current)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "exit", "quit":
			return
		case "target":
			if len(fields) != 2 {
				cli.PrintError("usage: target <node_id>")
				continue
			}
			if _, ok := nodes[fields[1]]; !ok {
				cli.PrintError("unknown node %q", fields[1])
				continue
			}
			current = fields[1]
		case "primary":
			status(client, nodes[current])
		case "submit":
			if len(fields) < 2 {
				cli.PrintError("usage: submit <data>")
				continue
			}
			submit(client, nodes[current], strings.Join(fields[1:], " "))
		case "blockchain":
			id := current
			if len(fields) == 2 {
				id = fields[1]
			}
			addr, ok := nodes[id]
			if !ok {
				cli.PrintError("unknown node %q", id)
				continue
			}
			blockchain(client, addr)
		case "status":
			status(client, nodes[current])
		case "malicious":
			if len(fields) != 3 {
				cli.PrintError("usage: malicious <node_id> <silent|wrong_hash>")
				continue
			}
			addr, ok := nodes[fields[1]]
			if !ok {
				cli.PrintError("unknown node %q", fields[1])
				continue
			}
			if !cli.Confirm(fmt.Sprintf("enable %s malicious behavior on %s", fields[2], fields[1])) {
				continue
			}
			setMalicious(client, addr, true, fields[2])
		case "honest":
			if len(fields) != 2 {
				cli.PrintError("usage: honest <node_id>")
				continue
			}
			addr, ok := nodes[fields[1]]
			if !ok {
				cli.PrintError("unknown node %q", fields[1])
				continue
			}
			setMalicious(client, addr, false, "")
		case "help":
			printHelp()
		default:
			cli.ErrInvalidCommand(fields[0]).Print()
		}
	}
}

func parseNodes(spec string) (map[string]string, []string, error) {
	nodes := make(map[string]string)
	var order []string
	if spec == "" {
		return nodes, order, nil
	}
	for _, pair := range strings.Split(spec, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, nil, fmt.Errorf("malformed node entry %q, want id=addr", pair)
		}
		nodes[parts[0]] = parts[1]
		order = append(order, parts[0])
	}
	return nodes, order, nil
}

func call(client *transport.Client, addr string, kind transport.Kind, args, reply interface{}) error {
	payload, err := json.Marshal(args)
	if err != nil {
		return err
	}
	respBytes, err := client.Call(addr, kind, payload, rpcTimeout)
	if err != nil {
		return err
	}
	return json.Unmarshal(respBytes, reply)
}

func status(client *transport.Client, addr string) {
	var reply border.GetNodeStatusReply
	if err := call(client, addr, border.KindGetNodeStatus, struct{}{}, &reply); err != nil {
		cli.ErrConnectionFailed(addr, err).Print()
		return
	}
	role := "replica"
	if reply.IsPrimary {
		role = "primary"
	}
	cli.PrintInfo("node=%s role=%s view=%d seq=%d height=%d malicious=%v(%s)",
		reply.NodeID, role, reply.ViewNumber, reply.CurrentSequence, reply.BlockchainHeight, reply.IsMalicious, reply.MaliciousType)
}

func submit(client *transport.Client, addr, data string) {
	var reply border.ClientSubmitBlockReply
	args := border.ClientSubmitBlockArgs{Data: data}
	if err := call(client, addr, border.KindClientSubmitBlock, args, &reply); err != nil {
		cli.ErrConnectionFailed(addr, err).Print()
		return
	}
	if !reply.Success {
		cli.ErrRedirect(reply.Message).Print()
		return
	}
	cli.PrintSuccess("%s (height=%d) - poll blockchain to confirm commit", reply.Message, reply.BlockHeight)
}

func blockchain(client *transport.Client, addr string) {
	var reply border.GetBlockchainReply
	if err := call(client, addr, border.KindGetBlockchain, struct{}{}, &reply); err != nil {
		cli.ErrConnectionFailed(addr, err).Print()
		return
	}
	table := cli.NewTable("height", "data", "block_hash", "previous_hash")
	for _, b := range reply.Blocks {
		table.AddRow(fmt.Sprintf("%d", b.BlockHeight), b.Data, shorten(b.BlockHash), shorten(b.PreviousHash))
	}
	table.Print()
}

func setMalicious(client *transport.Client, addr string, enable bool, malType string) {
	var reply border.SetMaliciousBehaviorReply
	args := border.SetMaliciousBehaviorArgs{EnableMalicious: enable, MaliciousType: malType}
	if err := call(client, addr, border.KindSetMaliciousBehavior, args, &reply); err != nil {
		cli.ErrConnectionFailed(addr, err).Print()
		return
	}
	cli.PrintSuccess("%s", reply.Message)
}

func shorten(hash string) string {
	if len(hash) <= 10 {
		return hash
	}
	return hash[:10] + "..."
}

func printHelp() {
	fmt.Println("primary                        show current status (primary/replica, view, sequence, height)")
	fmt.Println("submit <data>                   submit data as the next block (primary only)")
	fmt.Println("blockchain [node_id]            show the chain at the current target or the named node")
	fmt.Println("status                         alias for primary")
	fmt.Println("malicious <node_id> <type>      enable silent|wrong_hash on the named node (asks for confirmation)")
	fmt.Println("honest <node_id>                disable malicious behavior on the named node")
	fmt.Println("target <node_id>                change which node subsequent commands address")
	fmt.Println("exit                           quit")
}
