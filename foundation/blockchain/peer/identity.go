package peer

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
)

// Fallback is the host used when the public address can't be resolved.
const Fallback = "127.0.0.1"

// ResolveIdentity asks the lookup service for this node's public address.
// Any failure resolves to the loopback fallback. The result is meant to be
// resolved once at startup and handed to the registry.
func ResolveIdentity(ctx context.Context, client *http.Client, lookupURL string, port string) Identity {
	id := Identity{
		Host: Fallback,
		Port: port,
	}

	if lookupURL == "" {
		return id
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return id
	}

	resp, err := client.Do(req)
	if err != nil {
		return id
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return id
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return id
	}

	ip := net.ParseIP(strings.TrimSpace(string(body)))
	if ip == nil {
		return id
	}

	id.Host = ip.String()
	return id
}
