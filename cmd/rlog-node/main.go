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

// Command rlog-node starts one member of an RLog cluster.
package main

import (
	"flag"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"rlogborder/internal/config"
	"rlogborder/internal/discovery"
	"rlogborder/internal/logging"
	"rlogborder/internal/rlog"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON config file")
	nodeID := flag.String("id", "", "node id (overrides config)")
	listenAddr := flag.String("listen", "", "listen address (overrides config)")
	advertise := flag.Bool("advertise", false, "advertise this node on the local network via mDNS")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg = config.DefaultConfig()
		cfg.Protocol = config.ProtocolRLog
	}
	if err != nil {
		logging.Default("rlog-node").Error("failed to load config: %v", err)
		os.Exit(1)
	}

	if *nodeID != "" {
		cfg.NodeID = *nodeID
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if err := cfg.Validate(); err != nil {
		logging.Default("rlog-node").Error("invalid config: %v", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, logging.ParseLevel(cfg.LogLevel), cfg.LogJSON, cfg.NodeID)
	node := rlog.New(cfg, logger)

	if err := node.Start(); err != nil {
		logger.Error("failed to start: %v", err)
		os.Exit(1)
	}

	if *advertise {
		if _, portStr, err := net.SplitHostPort(cfg.ListenAddr); err == nil {
			if port, err := strconv.Atoi(portStr); err == nil {
				if mdnsServer, err := discovery.Advertise("rlog", cfg.NodeID, port); err != nil {
					logger.Warn("mDNS advertise failed: %v", err)
				} else {
					defer mdnsServer.Shutdown()
				}
			}
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	node.Stop()
}
