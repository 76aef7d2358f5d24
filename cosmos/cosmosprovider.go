package cosmos

import (
	"time"

	rpcclient "github.com/cometbft/cometbft/rpc/client"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	libclient "github.com/cometbft/cometbft/rpc/jsonrpc/client"
)

type CosmosProvider struct {
	RPCClient rpcclient.Client
}

// NewProvider instantiates a CosmosProvider backed by a CometBFT rpc client
func NewProvider(rpcURL string) (*CosmosProvider, error) {
	rpcClient, err := newRPCClient(rpcURL, 5*time.Second)
	if err != nil {
		return nil, err
	}

	return &CosmosProvider{
		RPCClient: rpcClient,
	}, nil
}

// NewRPCClient initializes a new tendermint RPC client connected to the specified address.
func newRPCClient(addr string, timeout time.Duration) (*rpchttp.HTTP, error) {
	httpClient, err := libclient.DefaultHTTPClient(addr)
	if err != nil {
		return nil, err
	}
	httpClient.Timeout = timeout
	rpcClient, err := rpchttp.NewWithClient(addr, "/websocket", httpClient)
	if err != nil {
		return nil, err
	}
	return rpcClient, nil
}
