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
Command border-dump snapshots a running node's blockchain to an
lz4-compressed file, or reads back a snapshot taken earlier.

Usage:

	border-dump -addr localhost:7101 -out snapshot.border.lz4
	border-dump -in snapshot.border.lz4
*/
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/pierrec/lz4/v4"

	"rlogborder/internal/border"
	"rlogborder/internal/transport"
	"rlogborder/pkg/cli"
)

const rpcTimeout = 2 * time.Second

// snapshot is the on-disk shape written by -out and read by -in.
type snapshot struct {
	NodeAddr string         `json:"node_addr"`
	Blocks   []border.Block `json:"blocks"`
}

func main() {
	addr := flag.String("addr", "", "address of the node to snapshot")
	out := flag.String("out", "", "write a compressed snapshot to this file")
	in := flag.String("in", "", "read back a previously written snapshot")
	flag.Parse()

	switch {
	case *in != "":
		show(*in)
	case *addr != "" && *out != "":
		dump(*addr, *out)
	default:
		cli.NewCLIError("nothing to do").
			WithSuggestion("pass -addr and -out to snapshot a node, or -in to read a snapshot back").
			Exit()
	}
}

func dump(addr, out string) {
	client := transport.NewClient(rpcTimeout)
	payload, err := json.Marshal(struct{}{})
	if err != nil {
		cli.NewCLIError("failed to encode request").WithDetail(err.Error()).Exit()
	}

	spinner := cli.NewSpinner("fetching blockchain from " + addr)
	spinner.Start()
	respBytes, err := client.Call(addr, border.KindGetBlockchain, payload, rpcTimeout)
	if err != nil {
		spinner.StopWithError(err.Error())
		os.Exit(1)
	}
	spinner.Stop()

	var reply border.GetBlockchainReply
	if err := json.Unmarshal(respBytes, &reply); err != nil {
		cli.NewCLIError("failed to decode reply").WithDetail(err.Error()).Exit()
	}

	snap := snapshot{NodeAddr: addr, Blocks: reply.Blocks}
	raw, err := json.Marshal(snap)
	if err != nil {
		cli.NewCLIError("failed to encode snapshot").WithDetail(err.Error()).Exit()
	}

	f, err := os.Create(out)
	if err != nil {
		cli.NewCLIError("failed to create output file").WithDetail(err.Error()).Exit()
	}
	defer f.Close()

	w := lz4.NewWriter(f)
	if _, err := w.Write(raw); err != nil {
		cli.NewCLIError("failed to write snapshot").WithDetail(err.Error()).Exit()
	}
	if err := w.Close(); err != nil {
		cli.NewCLIError("failed to flush snapshot").WithDetail(err.Error()).Exit()
	}

	cli.PrintSuccess("wrote %d block(s) from %s to %s", len(snap.Blocks), addr, out)
}

func show(in string) {
	f, err := os.Open(in)
	if err != nil {
		cli.NewCLIError("failed to open snapshot").WithDetail(err.Error()).Exit()
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, lz4.NewReader(f)); err != nil {
		cli.NewCLIError("failed to decompress snapshot").WithDetail(err.Error()).Exit()
	}

	var snap snapshot
	if err := json.Unmarshal(buf.Bytes(), &snap); err != nil {
		cli.NewCLIError("failed to decode snapshot").WithDetail(err.Error()).Exit()
	}

	cli.PrintInfo("node=%s blocks=%d", snap.NodeAddr, len(snap.Blocks))
	table := cli.NewTable("height", "data", "block_hash", "previous_hash")
	for _, b := range snap.Blocks {
		table.AddRow(strconv.FormatInt(b.BlockHeight, 10), b.Data, shorten(b.BlockHash), shorten(b.PreviousHash))
	}
	table.Print()
}

func shorten(hash string) string {
	if len(hash) <= 10 {
		return hash
	}
	return hash[:10] + "..."
}
