package db

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"

	"cronq/internal/constants"
	"cronq/internal/lock"
)

const (
	baseDir = "./migrations"
	schema  = "cronq_schema"
)

// Init connects to Postgres and bootstraps the jobs/instances schema. The
// migration lock ensures only one instance runs the scripts at a time; the
// connection is scoped to this call and closed before returning.
func Init(postgresURL string, distributedLock lock.DistributedLockManager) error {
	db, err := sql.Open("postgres", postgresURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err = distributedLock.Acquire(constants.MigrationLock); err != nil {
		return err
	}
	defer distributedLock.Release(constants.MigrationLock)

	if err = db.Ping(); err != nil {
		return err
	}

	_, err = db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema))
	if err != nil {
		return err
	}

	scripts, err := readSQLScripts()
	if err != nil {
		return err
	}
	for _, script := range scripts {
		if _, err := db.Exec(script); err != nil {
			log.Println("db: migration failed:", err)
			return err
		}
	}

	return nil
}

func readSQLScripts() ([]string, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, err
	}

	var scripts []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(baseDir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		scripts = append(scripts, string(content))
	}

	return scripts, nil
}
