package public

import "github.com/ardanlabs/powchain/foundation/blockchain/database"

type status struct {
	Index uint64 `json:"index"`
	Hash  string `json:"hash"`
}

type addPeer struct {
	Host string `json:"host" validate:"notblank,max=256"`
}

type added struct {
	Added bool `json:"added"`
}

type chain struct {
	Blocks []database.Block `json:"blocks"`
}

type health struct {
	Status string `json:"status"`
}

type redisHealth struct {
	Redis string `json:"redis"`
}
