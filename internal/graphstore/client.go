// Package graphstore adapts the typed entity/relation model to a
// Cypher-capable property graph, hiding query-language specifics behind
// two capability interfaces: GraphReader and GraphWriter.
package graphstore

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	neo4jconfig "github.com/neo4j/neo4j-go-driver/v5/neo4j/config"

	"litkg/internal/resilience"
)

// Neo4jConfig holds Neo4j connection configuration.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
	Timeout  time.Duration
}

// DefaultNeo4jConfig returns default Neo4j configuration from environment
// variables.
func DefaultNeo4jConfig() Neo4jConfig {
	cfg := Neo4jConfig{
		URI:      getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Username: getEnv("NEO4J_USERNAME", "neo4j"),
		Password: getEnv("NEO4J_PASSWORD", "password"),
		Database: getEnv("NEO4J_DATABASE", "neo4j"),
		Timeout:  10 * time.Second,
	}
	if timeoutStr := os.Getenv("NEO4J_TIMEOUT_MS"); timeoutStr != "" {
		if ms, err := strconv.Atoi(timeoutStr); err == nil && ms > 0 {
			cfg.Timeout = time.Duration(ms) * time.Millisecond
		}
	}
	return cfg
}

// Client manages the pooled Neo4j driver connection. Every transaction runs
// through guard when one is supplied, so the bolt connection is subject to
// the same rate limiting and circuit breaking as the LLM and embedding
// endpoints (spec section 4.11 scopes one pair per outbound endpoint, and
// the graph store is as much an outbound network hop as either of those).
type Client struct {
	driver  neo4j.DriverWithContext
	timeout time.Duration
	guard   *resilience.Guard
}

// NewClient creates a new Neo4j client with connection pooling and verifies
// connectivity before returning. guard may be nil, in which case calls are
// unrestricted (used by tests and other trusted in-process callers).
func NewClient(cfg Neo4jConfig, guard *resilience.Guard) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4jconfig.Config) {
			c.MaxConnectionPoolSize = 50
			c.ConnectionAcquisitionTimeout = cfg.Timeout
			c.SocketConnectTimeout = cfg.Timeout
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	client := &Client{driver: driver, timeout: cfg.Timeout, guard: guard}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify neo4j connectivity: %w", err)
	}

	return client, nil
}

// Close releases the driver's pooled connections.
func (c *Client) Close(ctx context.Context) error {
	if c.driver != nil {
		return c.driver.Close(ctx)
	}
	return nil
}

// ExecuteWrite runs work within a write transaction, through the guard if
// one is configured.
func (c *Client) ExecuteWrite(ctx context.Context, database string, work neo4j.ManagedTransactionWork) (any, error) {
	run := func(ctx context.Context) (any, error) {
		session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: database, AccessMode: neo4j.AccessModeWrite})
		defer func() { _ = session.Close(ctx) }()
		return session.ExecuteWrite(ctx, work)
	}
	if c.guard != nil {
		return c.guard.Call(ctx, run)
	}
	return run(ctx)
}

// ExecuteRead runs work within a read transaction, through the guard if one
// is configured.
func (c *Client) ExecuteRead(ctx context.Context, database string, work neo4j.ManagedTransactionWork) (any, error) {
	run := func(ctx context.Context) (any, error) {
		session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: database, AccessMode: neo4j.AccessModeRead})
		defer func() { _ = session.Close(ctx) }()
		return session.ExecuteRead(ctx, work)
	}
	if c.guard != nil {
		return c.guard.Call(ctx, run)
	}
	return run(ctx)
}

// VerifyConnectivity checks whether the driver can still reach the server.
func (c *Client) VerifyConnectivity(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
