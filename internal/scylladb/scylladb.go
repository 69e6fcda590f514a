package scylladb

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"
)

type ScyllaDB struct {
	Session  *gocql.Session
	keyspace string
}

// Connect bootstraps the keyspace with a keyspace-less session, then opens
// the session used by the job store.
func Connect(keyspace string, logger *zap.Logger, hosts ...string) (*ScyllaDB, error) {
	bootstrap := gocql.NewCluster(hosts...)
	bootstrap.Consistency = gocql.One
	bootstrap.Timeout = 5 * time.Second

	session, err := bootstrap.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ScyllaDB: %w", err)
	}
	err = session.Query(fmt.Sprintf(`
		CREATE KEYSPACE IF NOT EXISTS %s
		WITH REPLICATION = {
			'class': 'SimpleStrategy',
			'replication_factor': 1
		}
	`, keyspace)).Exec()
	session.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to create keyspace %s: %w", keyspace, err)
	}

	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 5 * time.Second

	session, err = cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to open ScyllaDB session: %w", err)
	}

	scylla := &ScyllaDB{
		Session:  session,
		keyspace: keyspace,
	}

	if err := createTables(func(stmt string) error { return session.Query(stmt).Exec() }); err != nil {
		session.Close()
		return nil, err
	}
	logger.Info("ScyllaDB schema ready", zap.String("keyspace", keyspace))

	return scylla, nil
}

var tableStatements = []string{`
	CREATE TABLE IF NOT EXISTS jobs (
		job_id text PRIMARY KEY,
		status text,
		user_id text,
		exam_id text,
		exam_name text,
		error text,
		updated_at timestamp
	)
`}

// createTables runs every table statement through exec and stops at the
// first failure.
func createTables(exec func(stmt string) error) error {
	for _, stmt := range tableStatements {
		if err := exec(stmt); err != nil {
			return fmt.Errorf("failed to create ScyllaDB tables: %w", err)
		}
	}
	return nil
}

func (s *ScyllaDB) HealthCheck(ctx context.Context) error {
	var now time.Time
	if err := s.Session.Query(`SELECT now() FROM system.local`).WithContext(ctx).Scan(&now); err != nil {
		return fmt.Errorf("scylladb health check failed: %w", err)
	}
	return nil
}

func (s *ScyllaDB) Close() {
	if s.Session != nil {
		s.Session.Close()
	}
}
