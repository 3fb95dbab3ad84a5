// Package bugzilla reads the records to migrate from a Bugzilla MySQL database.
package bugzilla

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/danielolaszy/bz2jira/internal/config"
	"github.com/danielolaszy/bz2jira/internal/errs"
	"github.com/danielolaszy/bz2jira/internal/logging"
	"github.com/go-sql-driver/mysql"
)

const (
	dialTimeout = 10 * time.Second
	pingTimeout = 15 * time.Second
)

// DSN returns the MySQL data source name for cfg.
func DSN(cfg config.BugzillaConfig) string {
	return mysqlConfig(cfg).FormatDSN()
}

func mysqlConfig(cfg config.BugzillaConfig) *mysql.Config {
	c := mysql.NewConfig()
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.DBName = cfg.Database
	c.ParseTime = true
	c.Timeout = dialTimeout
	return c
}

// Open connects to the Bugzilla database and checks that it answers.
func Open(ctx context.Context, cfg config.BugzillaConfig) (*sql.DB, error) {
	connector, err := mysql.NewConnector(mysqlConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid bugzilla settings: %w", errs.ErrConnection, err)
	}

	logging.Info("connecting to bugzilla database",
		"host", cfg.Host,
		"port", cfg.Port,
		"user", cfg.User,
		"database", cfg.Database)

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: bugzilla at %s:%d: %w", errs.ErrConnection, cfg.Host, cfg.Port, err)
	}

	logging.Info("connected to bugzilla database")
	return db, nil
}
