package private

import "github.com/ardanlabs/powchain/foundation/blockchain/database"

type mined struct {
	Added bool   `json:"added"`
	Hash  string `json:"hash,omitempty"`
}

type pruned struct {
	From int `json:"pruned_from"`
	To   int `json:"to"`
}

type replaceChain struct {
	Blocks []database.Block `json:"blocks" validate:"required,min=1"`
}

type replacedChain struct {
	Replaced bool `json:"replaced"`
}
