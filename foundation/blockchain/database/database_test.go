package database_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

func Test_Genesis(t *testing.T) {
	t.Log("Given the need to start a chain from the genesis block.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen constructing a new chain.", testID)
		{
			chain := database.NewChain()

			if chain.Len() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould have exactly one block, got %d.", failed, testID, chain.Len())
			}
			t.Logf("\t%s\tTest %d:\tShould have exactly one block.", success, testID)

			tip := chain.Tip()
			if tip.Index != 0 || tip.PrevHash != "0" || tip.Data != "GENESIS" || tip.Nonce != 0 || tip.Timestamp != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould have the sentinel genesis fields: %+v", failed, testID, tip)
			}
			t.Logf("\t%s\tTest %d:\tShould have the sentinel genesis fields.", success, testID)

			if tip.Hash != database.Digest(0, 0, "0", "GENESIS", 0) {
				t.Fatalf("\t%s\tTest %d:\tShould have a hash derived from the genesis fields.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould have a hash derived from the genesis fields.", success, testID)

			other := database.NewChain()
			if tip != other.Tip() {
				t.Fatalf("\t%s\tTest %d:\tShould produce the same genesis every time.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould produce the same genesis every time.", success, testID)
		}
	}
}

func Test_Digest(t *testing.T) {
	type table struct {
		name string
		a    [2]uint64
		b    [2]uint64
		same bool
	}

	tt := []table{
		{name: "ambiguous", a: [2]uint64{1, 23}, b: [2]uint64{12, 3}, same: true},
		{name: "distinct", a: [2]uint64{1, 23}, b: [2]uint64{1, 24}, same: false},
	}

	t.Log("Given the need to hash block fields without delimiters.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen hashing index/timestamp %v and %v.", testID, tst.a, tst.b)
			{
				f := func(t *testing.T) {
					h1 := database.Digest(tst.a[0], tst.a[1], "prev", "data", 7)
					h2 := database.Digest(tst.b[0], tst.b[1], "prev", "data", 7)

					if (h1 == h2) != tst.same {
						t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, h1)
						t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, h2)
						t.Fatalf("\t%s\tTest %d:\tShould compare hashes as expected, same=%v.", failed, testID, tst.same)
					}
					t.Logf("\t%s\tTest %d:\tShould compare hashes as expected, same=%v.", success, testID, tst.same)

					if len(h1) != 64 {
						t.Fatalf("\t%s\tTest %d:\tShould produce a 64 character hex hash.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould produce a 64 character hex hash.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_MeetsDifficulty(t *testing.T) {
	tt := map[string]bool{
		"0000abcdef": true,
		"00000000ff": true,
		"000abcdef0": false,
		"a000000000": false,
		"000":        false,
		"":           false,
	}

	for hash, exp := range tt {
		if got := database.MeetsDifficulty(hash); got != exp {
			t.Errorf("\t%s\tShould report %v for hash %q, got %v.", failed, exp, hash, got)
		}
	}
}

func Test_Mine(t *testing.T) {
	t.Log("Given the need to mine a block on top of genesis.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen mining payload \"x\".", testID)
		{
			chain := database.NewChain()
			genesis := chain.Tip()

			block := chain.Mine("x")

			if block.Index != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould have index 1, got %d.", failed, testID, block.Index)
			}
			t.Logf("\t%s\tTest %d:\tShould have index 1.", success, testID)

			if block.PrevHash != genesis.Hash {
				t.Fatalf("\t%s\tTest %d:\tShould link to the genesis hash.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould link to the genesis hash.", success, testID)

			if !database.MeetsDifficulty(block.Hash) {
				t.Fatalf("\t%s\tTest %d:\tShould meet the difficulty: %s", failed, testID, block.Hash)
			}
			t.Logf("\t%s\tTest %d:\tShould meet the difficulty.", success, testID)

			if block.Hash != database.Digest(block.Index, block.Timestamp, block.PrevHash, block.Data, block.Nonce) {
				t.Fatalf("\t%s\tTest %d:\tShould carry a hash derived from its fields.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould carry a hash derived from its fields.", success, testID)

			if chain.Len() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould not modify the chain while mining.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not modify the chain while mining.", success, testID)

			if err := chain.AddBlock(block); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to add the mined block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to add the mined block.", success, testID)
		}
	}
}

func Test_AddBlock(t *testing.T) {
	chain := database.NewChain()
	tip := chain.Tip()
	good := database.MineNext(tip, "payload", 1000)

	// A sealed block with the right link that has not been mined.
	unsolved := database.Seal(1, 1000, tip.Hash, "payload", 0)
	for nonce := uint64(1); database.MeetsDifficulty(unsolved.Hash); nonce++ {
		unsolved = database.Seal(1, 1000, tip.Hash, "payload", nonce)
	}

	forged := good
	forged.Data = "changed"

	type table struct {
		name  string
		block database.Block
		err   error
	}

	tt := []table{
		{name: "linkmismatch", block: database.MineNext(database.Seal(0, 0, "x", "y", 0), "payload", 1000), err: database.ErrLinkMismatch},
		{name: "unsolved", block: unsolved, err: database.ErrProofOfWorkInvalid},
		{name: "forged", block: forged, err: database.ErrProofOfWorkInvalid},
	}

	t.Log("Given the need to reject invalid blocks.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen adding a %s block.", testID, tst.name)
			{
				f := func(t *testing.T) {
					c := database.LoadChain(chain.Blocks())

					err := c.AddBlock(tst.block)
					if !errors.Is(err, tst.err) {
						t.Fatalf("\t%s\tTest %d:\tShould reject with %v, got %v.", failed, testID, tst.err, err)
					}
					t.Logf("\t%s\tTest %d:\tShould reject with %v.", success, testID, tst.err)

					if c.Len() != 1 || c.Tip() != tip {
						t.Fatalf("\t%s\tTest %d:\tShould leave the chain untouched.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould leave the chain untouched.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_ReplaceIfLonger(t *testing.T) {
	t.Log("Given the need to adopt longer chains.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen offered chains of different lengths.", testID)
		{
			chain := database.NewChain()
			chain.AddBlock(chain.Mine("one"))

			// The candidate is longer but carries garbage blocks.
			invalid := []database.Block{
				{Index: 7, Hash: "not-a-hash"},
				{Index: 9, Hash: "still-not-a-hash"},
				{Index: 3, Hash: "nope"},
			}

			if chain.ReplaceIfLonger(invalid[:2]) {
				t.Fatalf("\t%s\tTest %d:\tShould not adopt a chain of equal length.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not adopt a chain of equal length.", success, testID)

			if !chain.ReplaceIfLonger(invalid) {
				t.Fatalf("\t%s\tTest %d:\tShould adopt a longer chain without validating it.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould adopt a longer chain without validating it.", success, testID)

			if chain.Len() != 3 || chain.Tip().Hash != "nope" {
				t.Fatalf("\t%s\tTest %d:\tShould hold the adopted blocks.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould hold the adopted blocks.", success, testID)

			if err := database.VerifyBlocks(invalid); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould report the adopted blocks as invalid when verified.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould report the adopted blocks as invalid when verified.", success, testID)
		}
	}
}

func Test_Prune(t *testing.T) {
	chain := database.NewChain()
	for i := 0; i < 5; i++ {
		if err := chain.AddBlock(chain.Mine(strings.Repeat("d", i+1))); err != nil {
			t.Fatalf("\t%s\tShould be able to build the chain: %v", failed, err)
		}
	}
	original := chain.Blocks()

	type table struct {
		name   string
		retain int
		exp    []database.Block
	}

	tt := []table{
		{name: "noop-larger", retain: 10, exp: original},
		{name: "noop-equal", retain: 6, exp: original},
		{name: "prune", retain: 2, exp: original[4:]},
		{name: "one", retain: 1, exp: original[5:]},
	}

	t.Log("Given the need to retain only the most recent blocks.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen retaining %d blocks.", testID, tst.retain)
			{
				f := func(t *testing.T) {
					c := database.LoadChain(original)
					dropped := c.Prune(tst.retain)

					if dropped != len(original)-len(tst.exp) {
						t.Fatalf("\t%s\tTest %d:\tShould drop %d blocks, got %d.", failed, testID, len(original)-len(tst.exp), dropped)
					}
					t.Logf("\t%s\tTest %d:\tShould drop the right number of blocks.", success, testID)

					got := c.Blocks()
					if len(got) != len(tst.exp) {
						t.Fatalf("\t%s\tTest %d:\tShould keep %d blocks, got %d.", failed, testID, len(tst.exp), len(got))
					}
					for i := range got {
						if got[i] != tst.exp[i] {
							t.Fatalf("\t%s\tTest %d:\tShould keep blocks in their original order.", failed, testID)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould keep the last blocks in their original order.", success, testID)

					if err := database.VerifyBlocks(got); err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould still verify from the new first block: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould still verify from the new first block.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_FindBlock(t *testing.T) {
	chain := database.NewChain()
	block := chain.Mine("hello world")
	if err := chain.AddBlock(block); err != nil {
		t.Fatalf("\t%s\tShould be able to add block: %v", failed, err)
	}

	if _, ok := chain.FindBlock(block.Hash, ""); !ok {
		t.Errorf("\t%s\tShould find the block by hash.", failed)
	}
	if _, ok := chain.FindBlock(block.Hash, "world"); !ok {
		t.Errorf("\t%s\tShould find the block when the filter matches.", failed)
	}
	if _, ok := chain.FindBlock(block.Hash, "mars"); ok {
		t.Errorf("\t%s\tShould filter out the block when the filter does not match.", failed)
	}
	if _, ok := chain.FindBlock("unknown", ""); ok {
		t.Errorf("\t%s\tShould not find an unknown hash.", failed)
	}
}

func Test_ValidatePayload(t *testing.T) {
	type table struct {
		name string
		data string
		err  error
	}

	tt := []table{
		{name: "empty", data: "", err: database.ErrPayloadEmpty},
		{name: "whitespace", data: "  \n\t", err: database.ErrPayloadEmpty},
		{name: "max", data: strings.Repeat("a", 1024), err: nil},
		{name: "oversized", data: strings.Repeat("a", 1025), err: database.ErrPayloadTooLarge},
		{name: "multibyte", data: strings.Repeat("é", 513), err: database.ErrPayloadTooLarge},
	}

	for _, tst := range tt {
		if err := database.ValidatePayload(tst.data); !errors.Is(err, tst.err) {
			t.Errorf("\t%s\t%s: Should get %v, got %v.", failed, tst.name, tst.err, err)
		}
	}
}

func Test_TipPanicsOnEmptyChain(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("\t%s\tShould panic when the chain has no blocks.", failed)
		}
	}()

	var chain database.Chain
	chain.Tip()
}
