//go:build integration

// Package integration exercises kubeclient against a live API server. The
// tests are skipped unless KUBECLIENT_API points at a cluster.
package integration

import (
	"context"
	"os"
	"testing"

	"github.com/tintoy/kubeclient/pkg/kubeclient"
)

// TestConfig holds configuration for integration tests.
type TestConfig struct {
	APIEndpoint   string
	Token         string
	Namespace     string
	SkipTLSVerify bool
	Verbose       bool
}

// LoadTestConfig loads configuration from environment variables.
func LoadTestConfig() *TestConfig {
	namespace := os.Getenv("KUBECLIENT_TEST_NAMESPACE")
	if namespace == "" {
		namespace = "default"
	}

	return &TestConfig{
		APIEndpoint:   os.Getenv("KUBECLIENT_API"),
		Token:         os.Getenv("KUBECLIENT_TOKEN"),
		Namespace:     namespace,
		SkipTLSVerify: os.Getenv("KUBECLIENT_SKIP_SSL_VALIDATION") == "true",
		Verbose:       os.Getenv("KUBECLIENT_VERBOSE") == "true",
	}
}

// NewClient creates a client from the test configuration or skips the test.
func (c *TestConfig) NewClient(t *testing.T) *kubeclient.Client {
	t.Helper()

	if c.APIEndpoint == "" {
		t.Skip("KUBECLIENT_API environment variable not set, skipping integration tests")
	}

	config := kubeclient.DefaultConfig()
	config.APIEndpoint = c.APIEndpoint
	config.AccessToken = c.Token
	config.SkipTLSVerify = c.SkipTLSVerify
	config.Debug = c.Verbose

	client, err := kubeclient.New(context.Background(), config)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	t.Cleanup(func() { _ = client.Close() })

	return client
}
