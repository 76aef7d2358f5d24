package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/docker/go-connections/nat"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/events"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

func requireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("CCTP_INTEGRATION") == "" {
		t.Skip("set CCTP_INTEGRATION=1 to run end to end tests against docker")
	}
}

func startContainer(t *testing.T, ctx context.Context, req testcontainers.ContainerRequest, port string) (host, mapped string) {
	t.Helper()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start %s", req.Image)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err = container.Host(ctx)
	require.NoError(t, err)
	p, err := container.MappedPort(ctx, nat.Port(port))
	require.NoError(t, err)
	return host, p.Port()
}

func startPostgres(t *testing.T, ctx context.Context) string {
	host, port := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        "postgres:15",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "cctp",
			"POSTGRES_PASSWORD": "cctp",
			"POSTGRES_DB":       "cctp",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}, "5432")
	return fmt.Sprintf("postgres://cctp:cctp@%s:%s/cctp?sslmode=disable", host, port)
}

func startRabbitMQ(t *testing.T, ctx context.Context) string {
	host, port := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        "rabbitmq:3-management",
		ExposedPorts: []string{"5672/tcp"},
		WaitingFor:   wait.ForLog("Server startup complete"),
	}, "5672")
	return fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port)
}

// eventLog collects the routing keys published per transfer.
type eventLog struct {
	mu   sync.Mutex
	keys map[string][]string
}

func (l *eventLog) keysFor(id string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.keys[id]...)
}

func consumeEvents(t *testing.T, url string) *eventLog {
	t.Helper()
	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ch, err := conn.Channel()
	require.NoError(t, err)
	// same declaration as the publisher so the bind never races it
	require.NoError(t, ch.ExchangeDeclare(events.DefaultExchange, "topic", true, false, false, false, nil))
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, "transfer.#", events.DefaultExchange, false, nil))
	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	require.NoError(t, err)

	log := &eventLog{keys: map[string][]string{}}
	go func() {
		for msg := range msgs {
			var rec types.TransferRecord
			if err := json.Unmarshal(msg.Body, &rec); err != nil {
				continue
			}
			log.mu.Lock()
			log.keys[rec.ID] = append(log.keys[rec.ID], msg.RoutingKey)
			log.mu.Unlock()
		}
	}()
	return log
}

// circleStub answers every attestation lookup with a complete attestation.
func circleStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := types.AttestationResponse{Messages: []types.AttestationMessage{{
			Attestation: fmt.Sprintf("0x%0130x", 7),
			Message:     fmt.Sprintf("0x%0248x", 9),
			EventNonce:  "1",
			Status:      "complete",
		}}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}
