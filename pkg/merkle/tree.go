// Package merkle implements the fixed-arity binary Merkle tree backing
// state commitments: account balances, UTXO/nullifier sets, and the
// state-update witnesses pkg/proof folds into recursive transition
// proofs.
package merkle

import (
	"errors"

	"github.com/zhtp/zhtp/pkg/crypto"
)

// Node is a node in the Merkle tree. Leaf nodes carry the original
// key/value; interior nodes only carry the folded hash.
type Node struct {
	Left   *Node
	Right  *Node
	Hash   []byte
	IsLeaf bool
	Key    []byte
	Value  []byte
}

// Tree is a Merkle tree over a fixed key-value set, rebuilt whenever
// the underlying state changes.
type Tree struct {
	Root  *Node
	leafs []*Node
}

// NewTree creates a new Merkle tree from a map of key-value pairs,
// with leaves ordered by key so that two trees over the same data
// always produce the same root hash.
func NewTree(data map[string][]byte) (*Tree, error) {
	if len(data) == 0 {
		return nil, errors.New("merkle: cannot create tree with no data")
	}

	leafs := make([]*Node, 0, len(data))
	for k, v := range data {
		leafs = append(leafs, &Node{
			Hash:   hash(append([]byte(k), v...)),
			IsLeaf: true,
			Key:    []byte(k),
			Value:  v,
		})
	}

	sortNodes(leafs)
	root := buildTree(leafs)

	return &Tree{Root: root, leafs: leafs}, nil
}

// buildTree recursively folds a level of nodes into their parents,
// duplicating the last node of an odd-sized level so every level pairs
// cleanly.
func buildTree(nodes []*Node) *Node {
	if len(nodes) == 1 {
		return nodes[0]
	}

	newLevel := make([]*Node, 0, (len(nodes)+1)/2)
	for i := 0; i < len(nodes); i += 2 {
		left := nodes[i]
		right := left
		if i+1 < len(nodes) {
			right = nodes[i+1]
		}

		newLevel = append(newLevel, &Node{
			Left:  left,
			Right: right,
			Hash:  hash(append(append([]byte{}, left.Hash...), right.Hash...)),
		})
	}

	return buildTree(newLevel)
}

// GetProof returns the Merkle proof (sibling hashes from leaf to root)
// for a given key.
func (t *Tree) GetProof(key []byte) ([][]byte, error) {
	var targetNode *Node
	for _, node := range t.leafs {
		if string(node.Key) == string(key) {
			targetNode = node
			break
		}
	}
	if targetNode == nil {
		return nil, errors.New("merkle: key not found in tree")
	}

	var proof [][]byte
	current := targetNode
	for current != t.Root {
		parent := t.findParent(current)
		if parent == nil {
			break
		}
		if parent.Left == current {
			proof = append(proof, parent.Right.Hash)
		} else {
			proof = append(proof, parent.Left.Hash)
		}
		current = parent
	}

	return proof, nil
}

// VerifyProof verifies a Merkle proof for a key-value pair against a
// claimed root hash.
func VerifyProof(rootHash []byte, key, value []byte, proof [][]byte) bool {
	h := hash(append([]byte{}, append(key, value...)...))
	for _, sibling := range proof {
		h = hash(append(append([]byte{}, h...), sibling...))
	}
	return string(h) == string(rootHash)
}

// findParent finds the parent of a node in the tree.
func (t *Tree) findParent(node *Node) *Node {
	if t.Root == nil || node == t.Root {
		return nil
	}
	return t.findParentHelper(t.Root, node)
}

func (t *Tree) findParentHelper(current, target *Node) *Node {
	if current == nil {
		return nil
	}
	if current.Left == target || current.Right == target {
		return current
	}
	if parent := t.findParentHelper(current.Left, target); parent != nil {
		return parent
	}
	return t.findParentHelper(current.Right, target)
}

// hash computes the BLAKE3 digest of data, matching the hash primitive
// used throughout the rest of the module.
func hash(data []byte) []byte {
	h := crypto.SumHash(data)
	return h.Bytes()
}

// sortNodes orders leaves by key for deterministic tree construction.
//
// TODO: switch to sort.Slice once leaf counts regularly exceed a few
// thousand; this stays a plain insertion sort for the state-update
// batch sizes pkg/proof currently produces.
func sortNodes(nodes []*Node) {
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && string(nodes[j-1].Key) > string(nodes[j].Key); j-- {
			nodes[j-1], nodes[j] = nodes[j], nodes[j-1]
		}
	}
}

// RootHash returns the hex-encoded root hash of the tree.
func (t *Tree) RootHash() string {
	if t.Root == nil {
		return ""
	}
	h, _ := crypto.HashFromBytes(t.Root.Hash)
	return h.String()
}

// RootHashBytes returns the raw root hash bytes, used where callers
// need a crypto.Hash rather than its hex string.
func (t *Tree) RootHashBytes() []byte {
	if t.Root == nil {
		return nil
	}
	return t.Root.Hash
}

// Get returns the value for a given key if it exists in the tree.
func (t *Tree) Get(key []byte) ([]byte, bool) {
	for _, node := range t.leafs {
		if string(node.Key) == string(key) {
			return node.Value, true
		}
	}
	return nil, false
}

// Keys returns the leaf keys in sorted order, used by pkg/proof to
// iterate a state-update witness deterministically.
func (t *Tree) Keys() [][]byte {
	keys := make([][]byte, len(t.leafs))
	for i, n := range t.leafs {
		keys[i] = n.Key
	}
	return keys
}
