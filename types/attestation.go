package types

// AttestationResponse is the response received from Circle's v2 messages api
// Example: https://iris-api-sandbox.circle.com/v2/messages/0?transactionHash=0x912f22a13e9ccb979b621500f6952b2afd6e75be7eadaed93fc2625fe11c52a2
type AttestationResponse struct {
	Messages []AttestationMessage `json:"messages"`
}

type AttestationMessage struct {
	Attestation string `json:"attestation"`
	Message     string `json:"message"`
	EventNonce  string `json:"eventNonce"`
	Status      string `json:"status"`
}

// Attestation is the normalized result of one attestation poll. Message and
// Proof are hex encoded and passed through to the destination chain untouched.
type Attestation struct {
	Ready   bool
	Message string
	Proof   string
}
