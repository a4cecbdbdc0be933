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
Package discovery advertises and finds RLog/BOrder nodes on the local
network via mDNS, so an operator's CLI can locate a running cluster
without hand-copying addresses. This is purely an operator convenience
- neither protocol's core consensus logic depends on it.
*/
package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/hashicorp/mdns"
)

// Node describes one discovered cluster member.
type Node struct {
	NodeID   string
	Protocol string
	Addr     string
}

// serviceName returns the mDNS service type for a protocol, e.g.
// "_rlog._tcp" or "_border._tcp".
func serviceName(protocol string) string {
	return fmt.Sprintf("_%s._tcp", protocol)
}

// Advertise registers nodeID as an mDNS service for protocol on port
// and returns the running server. Callers should Shutdown it on exit.
func Advertise(protocol, nodeID string, port int) (*mdns.Server, error) {
	svc, err := mdns.NewMDNSService(nodeID, serviceName(protocol), "", "", port, nil, []string{
		"node_id=" + nodeID,
		"protocol=" + protocol,
	})
	if err != nil {
		return nil, err
	}

	return mdns.NewServer(&mdns.Config{Zone: svc})
}

// Discover browses the local network for protocol nodes for timeout,
// returning whatever responds before it elapses.
func Discover(protocol string, timeout time.Duration) ([]Node, error) {
	entriesCh := make(chan *mdns.ServiceEntry, 16)
	var nodes []Node

	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entriesCh {
			nodes = append(nodes, Node{
				NodeID:   entry.Name,
				Protocol: protocol,
				Addr:     net.JoinHostPort(entry.AddrV4.String(), strconv.Itoa(entry.Port)),
			})
		}
	}()

	err := mdns.Query(&mdns.QueryParam{
		Service: serviceName(protocol),
		Domain:  "local",
		Timeout: timeout,
		Entries: entriesCh,
	})
	close(entriesCh)
	<-done

	if err != nil {
		return nil, err
	}
	return nodes, nil
}
