package positions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

// IndexerClient is the narrow surface every adapter's indexer path needs: a
// single GraphQL query with variables, decoded into out. It is deliberately
// this small so tests can supply a fake without standing up an HTTP server,
// per spec §4.H's indexer/RPC duality.
type IndexerClient interface {
	Query(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error
}

// GraphClient is an HTTP+JSON IndexerClient backed by a single GraphQL
// endpoint (e.g. a subgraph gateway), gated behind the USE_GRAPH_ADAPTERS
// feature flag at the call site rather than inside the client itself.
type GraphClient struct {
	Endpoint string
	APIKey   string
	HTTP     *http.Client
}

func NewGraphClient(endpoint, apiKey string) *GraphClient {
	return &GraphClient{Endpoint: endpoint, APIKey: apiKey, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

type graphRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (g *GraphClient) Query(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(graphRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.APIKey)
	}

	resp, err := g.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("graphql request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("graphql endpoint returned status %d", resp.StatusCode)
	}

	var parsed graphResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode graphql response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", parsed.Errors[0].Message)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(parsed.Data, out)
}

// indexerPositionsQuery is the one query shape every adapter's indexer path
// shares: this wallet's positions in one protocol on one chain.
const indexerPositionsQuery = `query($wallet: String!, $chainId: Int!, $protocol: String!) {
	positions(wallet: $wallet, chainId: $chainId, protocol: $protocol) {
		kind token symbol balance balanceRaw apy
	}
}`

type indexerPosition struct {
	Kind       string   `json:"kind"`
	Token      string   `json:"token"`
	Symbol     string   `json:"symbol"`
	Balance    float64  `json:"balance"`
	BalanceRaw string   `json:"balanceRaw"`
	APY        *float64 `json:"apy"`
}

type indexerPositionsResponse struct {
	Positions []indexerPosition `json:"positions"`
}

// queryIndexerPositions is the indexer half of every adapter's indexer/RPC
// duality (spec §4.H): a nil indexer, a query error, or a null "positions"
// field all mean "no indexer answer", and the caller must fall back to its
// own RPC read — only a non-nil positions slice (including an empty one)
// counts as an authoritative answer.
func queryIndexerPositions(ctx context.Context, indexer IndexerClient, protocol string, chainID int64, wallet common.Address) ([]Position, bool) {
	if indexer == nil {
		return nil, false
	}

	vars := map[string]interface{}{
		"wallet":   wallet.Hex(),
		"chainId":  chainID,
		"protocol": protocol,
	}
	var resp indexerPositionsResponse
	if err := indexer.Query(ctx, indexerPositionsQuery, vars, &resp); err != nil {
		log.Warn().Str("protocol", protocol).Err(err).Msg("indexer query failed, falling back to RPC")
		return nil, false
	}
	if resp.Positions == nil {
		return nil, false
	}

	out := make([]Position, 0, len(resp.Positions))
	for _, p := range resp.Positions {
		raw, ok := new(big.Int).SetString(p.BalanceRaw, 10)
		if !ok {
			raw = big.NewInt(0)
		}
		out = append(out, Position{
			Protocol:   protocol,
			ChainID:    chainID,
			Kind:       Kind(p.Kind),
			Token:      common.HexToAddress(p.Token),
			Symbol:     p.Symbol,
			BalanceRaw: raw,
			Balance:    p.Balance,
			APY:        p.APY,
		})
	}
	return out, true
}
