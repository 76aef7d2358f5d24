package circle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

const (
	statusComplete     = "complete"
	attestationPending = "PENDING"
)

// Client polls Circle's v2 messages api for the attestation of a burn transaction.
type Client struct {
	baseURL string
	http    *http.Client
	logger  log.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger log.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "attestation"),
	}
}

// Poll performs a single lookup. A nil error with Ready false means the
// attestation is still pending. A 404 is a terminal not found error; rate
// limiting, server errors and network failures are transient.
func (c *Client) Poll(ctx context.Context, domain types.Domain, txHash string) (*types.Attestation, error) {
	if !strings.HasPrefix(txHash, "0x") {
		txHash = "0x" + txHash
	}
	endpoint := fmt.Sprintf("%s/v2/messages/%d?transactionHash=%s", c.baseURL, domain, url.QueryEscape(txHash))
	c.logger.Debug("Checking attestation", "domain", domain, "tx", txHash)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, types.NewTerminalError(err, "failed to build attestation request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, types.NewTransientError(err, "attestation request for %s failed", txHash)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, types.NewTerminalError(types.ErrNotFound, "attestation service has no message for %s on domain %d", txHash, domain)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, types.NewTransientError(fmt.Errorf("status %d", resp.StatusCode), "attestation service unavailable")
	default:
		return nil, types.NewTerminalError(fmt.Errorf("status %d", resp.StatusCode), "attestation service rejected lookup for %s", txHash)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewTransientError(err, "unable to read attestation response")
	}
	var response types.AttestationResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, types.NewTransientError(err, "unable to decode attestation response")
	}

	if len(response.Messages) == 0 {
		return &types.Attestation{}, nil
	}
	msg := response.Messages[0]
	if msg.Status != statusComplete || msg.Attestation == "" || msg.Attestation == attestationPending {
		c.logger.Debug("Attestation pending", "tx", txHash, "status", msg.Status)
		return &types.Attestation{}, nil
	}

	c.logger.Info("Attestation found", "domain", domain, "tx", txHash, "nonce", msg.EventNonce)
	return &types.Attestation{Ready: true, Message: msg.Message, Proof: msg.Attestation}, nil
}
