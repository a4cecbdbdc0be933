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

/*
Command rlog-discover finds RLog nodes advertising themselves on the
local network via mDNS. Useful for assembling a --nodes list for
rlog-cli without hand-copying addresses.

Usage:

	rlog-discover                 # discover nodes (5 second timeout)
	rlog-discover --timeout 10    # custom timeout in seconds
	rlog-discover --json          # output as JSON
	rlog-discover --quiet         # only output addresses (for scripting)
*/
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"rlogborder/internal/discovery"
	"rlogborder/pkg/cli"
)

func main() {
	timeout := flag.Int("timeout", 5, "discovery timeout in seconds")
	jsonOutput := flag.Bool("json", false, "output as JSON")
	quiet := flag.Bool("quiet", false, "only output addresses (for scripting)")
	flag.Parse()

	log.SetOutput(io.Discard) // mdns logs benign IPv6 lookup errors

	if !*quiet && !*jsonOutput {
		cli.PrintInfo("scanning for RLog nodes (timeout: %ds)...", *timeout)
	}

	nodes, err := discovery.Discover("rlog", time.Duration(*timeout)*time.Second)
	if err != nil {
		if !*quiet {
			cli.PrintError("discovery failed: %v", err)
		}
		os.Exit(1)
	}

	if len(nodes) == 0 {
		if !*quiet && !*jsonOutput {
			cli.PrintWarning("no RLog nodes found on the network")
		}
		return
	}

	switch {
	case *jsonOutput:
		data, _ := json.MarshalIndent(nodes, "", "  ")
		fmt.Println(string(data))
	case *quiet:
		addrs := make([]string, len(nodes))
		for i, n := range nodes {
			addrs[i] = n.NodeID + "=" + n.Addr
		}
		fmt.Println(strings.Join(addrs, ","))
	default:
		cli.PrintSuccess("found %d node(s)", len(nodes))
		table := cli.NewTable("node_id", "address")
		for _, n := range nodes {
			table.AddRow(n.NodeID, n.Addr)
		}
		table.Print()
	}
}
