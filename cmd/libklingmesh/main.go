// Package main builds the C ABI embedding surface for the mesh node.
//
// Build with:
//
//	go build -buildmode=c-shared -o libklingmesh.so ./cmd/libklingmesh
//
// Handles passed across the boundary are opaque int64 ids into
// Go-side registries; Go pointers never cross the ABI.
package main

/*
#include <stdint.h>
#include <stdlib.h>
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/Klingon-tech/klingnet-mesh/config"
	"github.com/Klingon-tech/klingnet-mesh/internal/node"
	"github.com/Klingon-tech/klingnet-mesh/pkg/mesherr"
	"github.com/Klingon-tech/klingnet-mesh/pkg/types"
)

// Error codes mirrored by the C header.
const (
	meshSuccess         = 0
	meshErrInvalidParam = -1
	meshErrOutOfMemory  = -2
	meshErrNetwork      = -3
	meshErrCrypto       = -4
	meshErrTimeout      = -5
	meshErrPeerNotFound = -6
	meshErrProtocol     = -7
	meshErrInternal     = -8
)

// errCode maps a Go error onto the flat C error enum.
func errCode(err error) C.int {
	if err == nil {
		return meshSuccess
	}
	switch mesherr.KindOf(err) {
	case mesherr.KindInvalidParameter:
		return meshErrInvalidParam
	case mesherr.KindNetwork, mesherr.KindConnectionClosed:
		return meshErrNetwork
	case mesherr.KindCrypto, mesherr.KindAuthenticationFailed:
		return meshErrCrypto
	case mesherr.KindTimeout:
		return meshErrTimeout
	case mesherr.KindPeerNotFound:
		return meshErrPeerNotFound
	case mesherr.KindProtocol:
		return meshErrProtocol
	case mesherr.KindResourceExhausted:
		return meshErrOutOfMemory
	default:
		return meshErrInternal
	}
}

// registry is a process-wide handle table.
type registry[T any] struct {
	mu     sync.Mutex
	next   int64
	values map[int64]T
}

func newRegistry[T any]() *registry[T] {
	return &registry[T]{values: make(map[int64]T)}
}

func (r *registry[T]) put(v T) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.values[r.next] = v
	return r.next
}

func (r *registry[T]) get(h int64) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[h]
	return v, ok
}

func (r *registry[T]) drop(h int64) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[h]
	delete(r.values, h)
	return v, ok
}

var (
	initMu      sync.Mutex
	initialized bool

	configs  = newRegistry[*config.Config]()
	nodes    = newRegistry[*node.Node]()
	messages = newRegistry[*types.Message]()
)

// mesh_init initializes the embedding runtime. Idempotent.
//
//export mesh_init
func mesh_init() C.int {
	initMu.Lock()
	defer initMu.Unlock()
	initialized = true
	return meshSuccess
}

// mesh_shutdown stops every outstanding node and tears the runtime
// down. Idempotent.
//
//export mesh_shutdown
func mesh_shutdown() C.int {
	initMu.Lock()
	defer initMu.Unlock()
	if !initialized {
		return meshSuccess
	}

	nodes.mu.Lock()
	for h, n := range nodes.values {
		n.Stop()
		delete(nodes.values, h)
	}
	nodes.mu.Unlock()

	initialized = false
	return meshSuccess
}

func ensureInit() bool {
	initMu.Lock()
	defer initMu.Unlock()
	return initialized
}

// mesh_config_new creates a config handle with defaults.
//
//export mesh_config_new
func mesh_config_new() C.int64_t {
	if !ensureInit() {
		return 0
	}
	return C.int64_t(configs.put(config.Default()))
}

// mesh_config_free releases a config handle.
//
//export mesh_config_free
func mesh_config_free(h C.int64_t) {
	configs.drop(int64(h))
}

// mesh_config_set_listen_addr sets the listen endpoint.
//
//export mesh_config_set_listen_addr
func mesh_config_set_listen_addr(h C.int64_t, addr *C.char) C.int {
	cfg, ok := configs.get(int64(h))
	if !ok || addr == nil {
		return meshErrInvalidParam
	}
	cfg.Mesh.ListenAddr = C.GoString(addr)
	return meshSuccess
}

// mesh_config_set_protocol selects the dissemination protocol
// ("flooding", "gossip", or "consensus").
//
//export mesh_config_set_protocol
func mesh_config_set_protocol(h C.int64_t, protocol *C.char) C.int {
	cfg, ok := configs.get(int64(h))
	if !ok || protocol == nil {
		return meshErrInvalidParam
	}
	p := C.GoString(protocol)
	switch p {
	case "flooding", "gossip", "consensus":
		cfg.Mesh.Protocol = p
		return meshSuccess
	default:
		return meshErrInvalidParam
	}
}

// mesh_config_set_encryption toggles payload encryption.
//
//export mesh_config_set_encryption
func mesh_config_set_encryption(h C.int64_t, enabled C.int) C.int {
	cfg, ok := configs.get(int64(h))
	if !ok {
		return meshErrInvalidParam
	}
	cfg.Mesh.EnableEncryption = enabled != 0
	return meshSuccess
}

// mesh_node_new creates a node from a config handle.
//
//export mesh_node_new
func mesh_node_new(cfgHandle C.int64_t, out *C.int64_t) C.int {
	if !ensureInit() || out == nil {
		return meshErrInvalidParam
	}
	cfg, ok := configs.get(int64(cfgHandle))
	if !ok {
		return meshErrInvalidParam
	}
	n, err := node.New(cfg)
	if err != nil {
		return errCode(err)
	}
	*out = C.int64_t(nodes.put(n))
	return meshSuccess
}

// mesh_node_start brings a node online.
//
//export mesh_node_start
func mesh_node_start(h C.int64_t) C.int {
	n, ok := nodes.get(int64(h))
	if !ok {
		return meshErrInvalidParam
	}
	return errCode(n.Start())
}

// mesh_node_stop requests cooperative shutdown.
//
//export mesh_node_stop
func mesh_node_stop(h C.int64_t) C.int {
	n, ok := nodes.get(int64(h))
	if !ok {
		return meshErrInvalidParam
	}
	return errCode(n.Stop())
}

// mesh_node_free stops and releases a node handle.
//
//export mesh_node_free
func mesh_node_free(h C.int64_t) {
	if n, ok := nodes.drop(int64(h)); ok {
		n.Stop()
	}
}

// mesh_message_new creates a broadcast message handle owned by the
// given node, carrying a copy of the payload.
//
//export mesh_message_new
func mesh_message_new(nodeHandle C.int64_t, payload unsafe.Pointer, payloadLen C.size_t, out *C.int64_t) C.int {
	if out == nil {
		return meshErrInvalidParam
	}
	n, ok := nodes.get(int64(nodeHandle))
	if !ok {
		return meshErrInvalidParam
	}
	var data []byte
	if payload != nil && payloadLen > 0 {
		data = C.GoBytes(payload, C.int(payloadLen))
	}
	*out = C.int64_t(messages.put(types.NewBroadcast(n.NodeID(), data)))
	return meshSuccess
}

// mesh_message_set_to addresses a message to a node id (hex string).
//
//export mesh_message_set_to
func mesh_message_set_to(h C.int64_t, toHex *C.char) C.int {
	m, ok := messages.get(int64(h))
	if !ok || toHex == nil {
		return meshErrInvalidParam
	}
	id, err := types.HexToNodeID(C.GoString(toHex))
	if err != nil {
		return meshErrInvalidParam
	}
	m.To = &id
	m.Kind = types.KindUnicast
	return meshSuccess
}

// mesh_message_free releases a message handle.
//
//export mesh_message_free
func mesh_message_free(h C.int64_t) {
	messages.drop(int64(h))
}

// mesh_send_message ships a message handle through a node.
//
//export mesh_send_message
func mesh_send_message(nodeHandle, msgHandle C.int64_t) C.int {
	n, ok := nodes.get(int64(nodeHandle))
	if !ok {
		return meshErrInvalidParam
	}
	m, ok := messages.get(int64(msgHandle))
	if !ok {
		return meshErrInvalidParam
	}
	return errCode(n.SendMessage(m))
}

func main() {}
