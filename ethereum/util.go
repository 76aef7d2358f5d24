package ethereum

import (
	"crypto/ecdsa"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

type JsonError interface {
	Error() string
	ErrorCode() int
	ErrorData() interface{}
}

// revert code used by geth compatible nodes for failed execution
const executionRevertedCode = 3

var (
	nonceTooLowRegex = regexp.MustCompile("nonce too low: next nonce ([0-9]+), tx nonce [0-9]+")
)

// GetEcdsaKeyAddress returns the public ecdsa key and address given the private key
func GetEcdsaKeyAddress(privateKey string) (*ecdsa.PrivateKey, string, error) {
	privEcdsaKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return nil, "", errors.New("unable to convert private key hex to ecdsa")
	}

	publicKey := privEcdsaKey.Public()
	publicKeyECDSA, ok := publicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, "", errors.New("error casting public key to ECDSA")
	}

	return privEcdsaKey, crypto.PubkeyToAddress(*publicKeyECDSA).Hex(), nil
}

// classifyBroadcastError maps a node error onto the orchestrator's error kinds.
// A vault manager refusing an attested message with "Nonce already used"
// means the message was already received on this chain.
func classifyBroadcastError(chain string, err error) error {
	var parsedErr JsonError
	if errors.As(err, &parsedErr) && parsedErr.ErrorCode() == executionRevertedCode {
		if strings.Contains(parsedErr.Error(), "Nonce already used") {
			return types.ErrAlreadyProcessed
		}
		return types.NewTerminalError(err, "transaction reverted on %s", chain)
	}
	if strings.Contains(err.Error(), "insufficient funds") {
		return types.NewTerminalError(err, "signer cannot pay for gas on %s", chain)
	}
	return types.NewTransientError(err, "broadcast to %s failed", chain)
}

// parseNextNonce extracts the account nonce from a "nonce too low" rejection.
func parseNextNonce(err error) (uint64, bool) {
	match := nonceTooLowRegex.FindStringSubmatch(err.Error())
	if len(match) != 2 {
		return 0, false
	}
	next, parseErr := strconv.ParseUint(match[1], 10, 64)
	if parseErr != nil {
		return 0, false
	}
	return next, true
}
