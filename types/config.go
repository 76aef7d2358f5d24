package types

// Config is the parsed application config. Chains keep their file order,
// which is the order the position locator scans them in.
type Config struct {
	Chains          []ChainEntry      `yaml:"chains" json:"chains"`
	SettlementChain string            `yaml:"settlement-chain" json:"settlement-chain"`
	Circle          CircleSettings    `yaml:"circle" json:"circle"`
	Scheduler       SchedulerSettings `yaml:"scheduler" json:"scheduler"`
	Database        DatabaseSettings  `yaml:"database" json:"database"`
	Events          EventsSettings    `yaml:"events" json:"events"`

	ProcessorWorkerCount uint32      `yaml:"processor-worker-count" json:"processor-worker-count"`
	ProcessorQueueSize   uint32      `yaml:"processor-queue-size" json:"processor-queue-size"`
	PositionReadTimeout  int         `yaml:"position-read-timeout" json:"position-read-timeout"`
	API                  APISettings `yaml:"api" json:"api"`
}

// ConfigWrapper is the raw file shape. Each chain is decoded into its
// concrete ChainConfig after its name is known.
type ConfigWrapper struct {
	Chains          []RawChainEntry   `yaml:"chains"`
	SettlementChain string            `yaml:"settlement-chain"`
	Circle          CircleSettings    `yaml:"circle"`
	Scheduler       SchedulerSettings `yaml:"scheduler"`
	Database        DatabaseSettings  `yaml:"database"`
	Events          EventsSettings    `yaml:"events"`

	ProcessorWorkerCount uint32      `yaml:"processor-worker-count"`
	ProcessorQueueSize   uint32      `yaml:"processor-queue-size"`
	PositionReadTimeout  int         `yaml:"position-read-timeout"`
	API                  APISettings `yaml:"api"`
}

type ChainEntry struct {
	Name   string      `yaml:"name" json:"name"`
	Config ChainConfig `yaml:"config" json:"config"`
}

type RawChainEntry struct {
	Name   string         `yaml:"name"`
	Config map[string]any `yaml:"config"`
}

type CircleSettings struct {
	AttestationBaseURL string `yaml:"attestation-base-url" json:"attestation-base-url"`
	FetchRetries       int    `yaml:"fetch-retries" json:"fetch-retries"`
	FetchRetryInterval int    `yaml:"fetch-retry-interval" json:"fetch-retry-interval"`
	RequestTimeout     int    `yaml:"request-timeout" json:"request-timeout"`
}

type SchedulerSettings struct {
	Interval   string      `yaml:"interval" json:"interval"`
	BatchSize  int         `yaml:"batch-size" json:"batch-size"`
	Directions []Direction `yaml:"directions" json:"directions"`
}

type DatabaseSettings struct {
	URL                  string `yaml:"url" json:"-"`
	MaxConns             int32  `yaml:"max-conns" json:"max-conns"`
	ConnectRetries       int    `yaml:"connect-retries" json:"connect-retries"`
	ConnectRetryInterval int    `yaml:"connect-retry-interval" json:"connect-retry-interval"`
}

type EventsSettings struct {
	AMQPURL  string `yaml:"amqp-url" json:"-"`
	Exchange string `yaml:"exchange" json:"exchange"`
}

type APISettings struct {
	ListenAddr     string   `yaml:"listen-addr" json:"listen-addr"`
	TrustedProxies []string `yaml:"trusted-proxies" json:"trusted-proxies"`
}

type ChainConfig interface {
	Chain(name string) (SourceChain, error)
}
