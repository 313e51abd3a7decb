// Copyright 2017 Cameron Bergoon
// https://github.com/cbergoon/merkletree
// Licensed under the MIT License, see LICENCE file for details.
// This code has been cleaned up, refactored, and turned into generics.

// Package merkle provides an implementation of a merkle tree used to produce
// an integrity root over the blocks of a chain snapshot.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"hash"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Hashable represents the behavior concrete data must exhibit to be used in
// the merkle tree.
type Hashable interface {
	Hash() ([]byte, error)
}

// =============================================================================

// Tree represents a merkle tree that uses data of some type T that exhibits the
// behavior defined by the Hashable constraint. Levels[0] holds the leaf hashes
// and the last level holds the root.
type Tree[T Hashable] struct {
	Values       []T
	Levels       [][][]byte
	MerkleRoot   []byte
	hashStrategy func() hash.Hash
}

// WithHashStrategy is used to change the default hash strategy of using sha256
// when constructing a new tree.
func WithHashStrategy[T Hashable](hashStrategy func() hash.Hash) func(t *Tree[T]) {
	return func(t *Tree[T]) {
		t.hashStrategy = hashStrategy
	}
}

// NewTree constructs a new merkle tree that uses data of some type T that
// exhibits the behavior defined by the Hashable interface.
func NewTree[T Hashable](values []T, options ...func(t *Tree[T])) (*Tree[T], error) {
	t := Tree[T]{
		hashStrategy: sha256.New,
	}

	for _, option := range options {
		option(&t)
	}

	if err := t.generate(values); err != nil {
		return nil, err
	}

	return &t, nil
}

// RootHex converts the merkle root byte hash to a hex encoded string.
func (t *Tree[T]) RootHex() string {
	return hexutil.Encode(t.MerkleRoot)
}

// Verify recalculates every level of the tree from the values and checks the
// result against the stored root.
func (t *Tree[T]) Verify() error {
	cpy := Tree[T]{hashStrategy: t.hashStrategy}
	if err := cpy.generate(t.Values); err != nil {
		return err
	}

	if !bytes.Equal(cpy.MerkleRoot, t.MerkleRoot) {
		return errors.New("merkle root is invalid")
	}

	return nil
}

// generate constructs the leafs and levels of the tree from the specified
// data. When a level holds an odd number of nodes, the last node is paired
// with itself.
func (t *Tree[T]) generate(values []T) error {
	if len(values) == 0 {
		return errors.New("cannot construct tree with no content")
	}

	leafs := make([][]byte, len(values))
	for i, value := range values {
		h, err := value.Hash()
		if err != nil {
			return err
		}
		leafs[i] = h
	}

	levels := [][][]byte{leafs}
	for level := leafs; len(level) > 1; {
		next := make([][]byte, 0, (len(level)+1)/2)

		for i := 0; i < len(level); i += 2 {
			left, right := level[i], level[i]
			if i+1 < len(level) {
				right = level[i+1]
			}

			h := t.hashStrategy()
			if _, err := h.Write(append(append([]byte{}, left...), right...)); err != nil {
				return err
			}
			next = append(next, h.Sum(nil))
		}

		levels = append(levels, next)
		level = next
	}

	t.Values = values
	t.Levels = levels
	t.MerkleRoot = levels[len(levels)-1][0]

	return nil
}
