// Package trust adapts the cryptographic collaborator consumed by the gossip
// layer: KangarooTwelve hashing, SchnorrQ signature verification and
// identity derivation. Nothing here signs on behalf of the node.
package trust
