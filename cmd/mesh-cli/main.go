// mesh-cli is a command-line client for interacting with a meshd node.
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Klingon-tech/klingnet-mesh/internal/rpcclient"
	"github.com/Klingon-tech/klingnet-mesh/pkg/crypto"
	"github.com/Klingon-tech/klingnet-mesh/pkg/types"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// Parse global flags that appear before the subcommand.
	rpcURL := "http://127.0.0.1:7470"

	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--rpc" && len(args) > 1:
			rpcURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--rpc="):
			rpcURL = args[0][len("--rpc="):]
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	client := rpcclient.New(rpcURL)
	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "send":
		cmdSend(client, cmdArgs)
	case "broadcast":
		cmdBroadcast(client, cmdArgs)
	case "peers":
		cmdPeers(client)
	case "stats":
		cmdStats(client)
	case "connect":
		cmdConnect(client, cmdArgs)
	case "status":
		cmdStatus(client)
	case "keygen":
		cmdKeygen(cmdArgs)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: mesh-cli [global flags] <command> [flags]

Global flags:
  --rpc <url>         RPC endpoint (default: http://127.0.0.1:7470)

Commands:
  send --to <hex> --message <text>   Send a unicast message
  broadcast --message <text>         Broadcast a message to all peers
  peers                              List known peers
  stats                              Show network statistics
  connect --address <ip:port> [--node-id <hex>]
                                     Connect to a peer
  status                             Show node status
  keygen [--mnemonic "..."]          Generate or recover mesh keys
`)
}

// parseFlag extracts --name <value> or --name=<value> from args.
func parseFlag(args []string, name string) (string, bool) {
	flag := "--" + name
	for i := 0; i < len(args); i++ {
		if args[i] == flag && i+1 < len(args) {
			return args[i+1], true
		}
		if strings.HasPrefix(args[i], flag+"=") {
			return args[i][len(flag)+1:], true
		}
	}
	return "", false
}

func fail(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", a...)
	os.Exit(1)
}

func cmdSend(client *rpcclient.Client, args []string) {
	to, ok := parseFlag(args, "to")
	if !ok || to == "" {
		fail("--to is required for send")
	}
	message, ok := parseFlag(args, "message")
	if !ok {
		fail("--message is required for send")
	}
	if _, err := types.HexToNodeID(to); err != nil {
		fail("invalid node id: %v", err)
	}

	msgID, err := client.Send(to, message)
	if err != nil {
		fail("send: %v", err)
	}
	fmt.Printf("Message sent (id %d)\n", msgID)
}

func cmdBroadcast(client *rpcclient.Client, args []string) {
	message, ok := parseFlag(args, "message")
	if !ok {
		fail("--message is required for broadcast")
	}

	msgID, err := client.Broadcast(message)
	if err != nil {
		fail("broadcast: %v", err)
	}
	fmt.Printf("Message broadcast (id %d)\n", msgID)
}

func cmdPeers(client *rpcclient.Client) {
	result, err := client.Peers()
	if err != nil {
		fail("peers: %v", err)
	}

	if len(result.Peers) == 0 && len(result.Discovered) == 0 {
		fmt.Println("No peers")
		return
	}

	now := uint64(time.Now().Unix())
	for _, p := range result.Peers {
		state := "disconnected"
		if p.Connected {
			state = "connected"
		}
		fmt.Printf("%s  %-12s  last seen %ds ago  %s\n",
			p.ID.Short(), state, now-p.LastSeen, strings.Join(p.Addresses, ","))
	}
	for _, p := range result.Discovered {
		fmt.Printf("%s  %-12s  last seen %ds ago  %s\n",
			p.ID.Short(), "discovered", now-p.LastSeen, strings.Join(p.Addresses, ","))
	}
}

func cmdStats(client *rpcclient.Client) {
	mesh, protocols, err := client.Stats()
	if err != nil {
		fail("stats: %v", err)
	}

	out, _ := json.MarshalIndent(struct {
		Mesh      any `json:"mesh"`
		Protocols any `json:"protocols"`
	}{mesh, protocols}, "", "  ")
	fmt.Println(string(out))
}

func cmdConnect(client *rpcclient.Client, args []string) {
	address, ok := parseFlag(args, "address")
	if !ok || address == "" {
		fail("--address is required for connect")
	}
	nodeID, _ := parseFlag(args, "node-id")

	peerID, err := client.Connect(address, nodeID)
	if err != nil {
		fail("connect: %v", err)
	}
	fmt.Printf("Connected to peer %s\n", peerID)
}

func cmdStatus(client *rpcclient.Client) {
	status, err := client.Status()
	if err != nil {
		fail("status: %v", err)
	}
	fmt.Printf("Node:     %s\n", status.NodeID)
	fmt.Printf("Address:  %s\n", status.Addr)
	fmt.Printf("Protocol: %s\n", status.Protocol)
	fmt.Printf("Running:  %v\n", status.Running)
}

// cmdKeygen generates a fresh node identity and a mesh master key
// derived from a new or supplied mnemonic. Keys are printed, never
// stored.
func cmdKeygen(args []string) {
	mnemonic, provided := parseFlag(args, "mnemonic")
	passphrase, _ := parseFlag(args, "passphrase")

	var err error
	if !provided {
		mnemonic, err = crypto.GenerateMnemonic()
		if err != nil {
			fail("keygen: %v", err)
		}
	} else if !crypto.ValidateMnemonic(mnemonic) {
		fail("invalid mnemonic")
	}

	nodeID := types.NewNodeID()
	master, encKey, _, err := crypto.NodeKeysFromMnemonic(mnemonic, passphrase, nodeID)
	if err != nil {
		fail("keygen: %v", err)
	}

	fmt.Printf("Node ID:    %s\n", nodeID)
	fmt.Printf("Mnemonic:   %s\n", mnemonic)
	fmt.Printf("Master key: %s\n", hex.EncodeToString(master))
	fmt.Printf("Enc key:    %s\n", hex.EncodeToString(encKey))
	fmt.Println("\nStart the node with:")
	fmt.Printf("  meshd --node-id %s --master-key %s --enable-encryption\n",
		nodeID, hex.EncodeToString(master))
}
