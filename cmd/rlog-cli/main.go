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

// Command rlog-cli is the interactive operator driver for an RLog
// cluster: getleader, set, get, partition, clear_partition, exit.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"rlogborder/internal/rlog"
	"rlogborder/internal/transport"
	"rlogborder/pkg/cli"
)

const rpcTimeout = 2 * time.Second

func main() {
	nodesFlag := flag.String("nodes", "", "comma-separated id=addr pairs, e.g. n1=localhost:7001,n2=localhost:7002")
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

	rl, err := readline.New("rlog> ")
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
		case "getleader":
			getLeader(client, nodes[current])
		case "set":
			if len(fields) != 3 {
				cli.PrintError("usage: set <key> <value>")
				continue
			}
			clientSet(client, nodes[current], fields[1], fields[2])
		case "get":
			if len(fields) != 2 {
				cli.PrintError("usage: get <key>")
				continue
			}
			clientGet(client, nodes[current], fields[1])
		case "partition":
			if len(fields) < 3 {
				cli.PrintError("usage: partition <target_id> <blocked_id...>")
				continue
			}
			setPartition(client, nodes, fields[1], fields[2:])
		case "clear_partition":
			if len(fields) != 2 {
				cli.PrintError("usage: clear_partition <target_id>")
				continue
			}
			setPartition(client, nodes, fields[1], nil)
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

func getLeader(client *transport.Client, addr string) {
	var reply rlog.GetLeaderReply
	if err := call(client, addr, rlog.KindGetLeader, struct{}{}, &reply); err != nil {
		cli.ErrConnectionFailed(addr, err).Print()
		return
	}
	cli.PrintInfo("leader_id=%s is_leader=%v", reply.LeaderID, reply.IsLeader)
}

func clientSet(client *transport.Client, addr, key, value string) {
	var reply rlog.ClientSetReply
	args := rlog.ClientSetArgs{Key: key, Value: value}
	if err := call(client, addr, rlog.KindClientSet, args, &reply); err != nil {
		cli.ErrConnectionFailed(addr, err).Print()
		return
	}
	if reply.Success {
		cli.PrintSuccess("set %s=%s", key, value)
	} else {
		cli.ErrRedirect("not leader").Print()
	}
}

func clientGet(client *transport.Client, addr, key string) {
	var reply rlog.ClientGetReply
	args := rlog.ClientGetArgs{Key: key}
	if err := call(client, addr, rlog.KindClientGet, args, &reply); err != nil {
		cli.ErrConnectionFailed(addr, err).Print()
		return
	}
	if reply.Error != "" {
		cli.ErrRedirect(reply.Error).Print()
		return
	}
	if !reply.Found {
		cli.PrintWarning("key %q not found", key)
		return
	}
	cli.PrintSuccess("%s=%s", key, reply.Value)
}

func setPartition(client *transport.Client, nodes map[string]string, targetID string, blockedIDs []string) {
	targetAddr, ok := nodes[targetID]
	if !ok {
		cli.PrintError("unknown target node %q", targetID)
		return
	}
	var blocked []string
	for _, id := range blockedIDs {
		addr, ok := nodes[id]
		if !ok {
			cli.PrintError("unknown node %q in blocked list", id)
			return
		}
		blocked = append(blocked, addr)
	}

	var reply rlog.SetPartitionReply
	args := rlog.SetPartitionArgs{BlockedAddresses: blocked}
	if err := call(client, targetAddr, rlog.KindSetPartition, args, &reply); err != nil {
		cli.ErrConnectionFailed(targetAddr, err).Print()
		return
	}
	cli.PrintSuccess("%s now blocks %d address(es)", targetID, len(blocked))
}

func printHelp() {
	fmt.Println("getleader                          show the best-known leader")
	fmt.Println("set <key> <value>                  append a key/value to the current target's log")
	fmt.Println("get <key>                           read a key from the current target")
	fmt.Println("target <id>                         change which node subsequent commands address")
	fmt.Println("partition <id> <blocked_id...>       block the named peers at node <id>")
	fmt.Println("clear_partition <id>                 clear all blocks at node <id>")
	fmt.Println("exit                                 quit")
}
