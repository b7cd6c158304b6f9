// Package node implements the network manager of a qgossip node.
//
// The Manager keeps a bounded mesh of peer connections to the Qubic network
// and floods accepted frames between them.
//
// Peer pool
//
// Every IP the node has heard of lives in a Registry with one of three
// memberships. Known IPs are idle and may be dialed. Active IPs have a dial
// pending or a live connection. Forgotten IPs failed at dial, handshake or
// protocol level. IPs enter the registry from the bootstrap list, from the
// pool persisted at the previous stop and from ExchangePublicPeers messages.
//
// Connections
//
// ConnectToPeer holds one slot of a weighted semaphore for the lifetime of a
// peer, so that dials and live connections together never exceed MaxPeers.
// Inbound connections, when the stream layer listens, take a slot only if one
// is free. Once a peer terminates its error decides the fate of the IP:
// outbound dial, handshake and format failures forget it, anything else
// returns it to Known.
//
// Every LoopInterval the manager checks the mesh. When two peers or fewer are
// connected and no dial is pending it redials the Known pool, after folding
// the Forgotten IPs back in if the pool itself has two entries or fewer.
//
// Relay
//
// Frames accepted by a peer are written verbatim to every other connected
// peer. A bounded cache of frame digests keeps a frame from being relayed
// twice.
package node
