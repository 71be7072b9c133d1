package rabbitmq

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	skipRabbitMQTestsEnv = "SKIP_RABBITMQ_TESTS"
	testRabbitMQURLEnv   = "TEST_RABBITMQ_URL"
	amqpPort             = nat.Port("5672/tcp")
)

// amqpURI возвращает адрес брокера: внешний из TEST_RABBITMQ_URL или контейнер.
func amqpURI(t *testing.T) string {
	t.Helper()
	if os.Getenv(skipRabbitMQTestsEnv) == "true" || testing.Short() {
		t.Skip("skipping RabbitMQ tests")
	}
	if uri := os.Getenv(testRabbitMQURLEnv); uri != "" {
		return uri
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3-management",
			ExposedPorts: []string{string(amqpPort)},
			Env: map[string]string{
				"RABBITMQ_DEFAULT_USER": "guest",
				"RABBITMQ_DEFAULT_PASS": "guest",
			},
			WaitingFor: wait.ForListeningPort(amqpPort).WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate rabbitmq container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, amqpPort)
	require.NoError(t, err)

	return fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())
}
