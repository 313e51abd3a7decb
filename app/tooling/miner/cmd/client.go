package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// Ways a mined block can be handed to the node.
const (
	SubmitBlock = "block"
	SubmitMine  = "mine"
)

// Result describes what the node did with a submission.
type Result struct {
	Block  database.Block
	Status int
	Body   string
}

// FetchTip reads the current tip from the node.
func FetchTip(client *http.Client, node string) (database.Block, error) {
	resp, err := client.Get(strings.TrimSuffix(node, "/") + "/tip")
	if err != nil {
		return database.Block{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return database.Block{}, fmt.Errorf("fetching tip: status %d", resp.StatusCode)
	}

	var tip database.Block
	if err := json.NewDecoder(resp.Body).Decode(&tip); err != nil {
		return database.Block{}, fmt.Errorf("decoding tip: %w", err)
	}

	return tip, nil
}

// MineAndSubmit solves a block holding data on top of the node's tip and
// submits it. With SubmitBlock the solved block is posted as if gossiped by
// a peer. With SubmitMine the data is posted to the protected mine route and
// the node does its own search, the local block is then only informational.
func MineAndSubmit(client *http.Client, node string, key string, data string, submit string) (Result, error) {
	if submit != SubmitBlock && submit != SubmitMine {
		return Result{}, fmt.Errorf("unknown submit mode %q", submit)
	}

	if err := database.ValidatePayload(data); err != nil {
		return Result{}, err
	}
	node = strings.TrimSuffix(node, "/")

	tip, err := FetchTip(client, node)
	if err != nil {
		return Result{}, err
	}

	block := database.MineNext(tip, data, database.NowMillis())

	var req *http.Request
	switch submit {
	case SubmitBlock:
		req, err = newRequest(node+"/block", block)
	case SubmitMine:
		req, err = newRequest(node+"/mine", data)
		if req != nil {
			req.Header.Set("X-API-Key", key)
		}
	}
	if err != nil {
		return Result{}, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{Block: block}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return Result{Block: block}, err
	}

	res := Result{
		Block:  block,
		Status: resp.StatusCode,
		Body:   string(bytes.TrimSpace(body)),
	}

	return res, nil
}

func newRequest(url string, v any) (*http.Request, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return req, nil
}
