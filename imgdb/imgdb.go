// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package imgdb gives access to the database of stream images and board
// profiles of the ADRV903X boards.
package imgdb // import "github.com/go-lpc/adrv903x/imgdb"

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-lpc/adrv903x/radio"
	_ "github.com/go-sql-driver/mysql"
)

var (
	host = "localhost"
	usr  = "username"
	pwd  = "s3cr3t"

	drvName = "mysql"
)

// ErrNotFound is returned when a query yields no row.
var ErrNotFound = errors.New("imgdb: not found")

// DB exposes convenience methods to retrieve and store stream images and
// board profiles.
type DB struct {
	db   *sql.DB
	name string
}

// Image is a stream image stored in the database.
type Image struct {
	Board   string
	Name    string
	Version radio.Version
	Created time.Time
	Data    []byte
}

// Open opens a connection to the database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("imgdb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("imgdb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

const imageCols = "board, name, version, datetime, data"

// LastStreamImage returns the most recent stream image registered for board.
func (db *DB) LastStreamImage(ctx context.Context, board string) (Image, error) {
	return db.image(ctx,
		"SELECT "+imageCols+" FROM stream_images WHERE board=? ORDER BY datetime DESC LIMIT 1",
		board,
	)
}

// StreamImage returns the most recent stream image of board with the given name.
func (db *DB) StreamImage(ctx context.Context, board, name string) (Image, error) {
	return db.image(ctx,
		"SELECT "+imageCols+" FROM stream_images WHERE board=? AND name=? ORDER BY datetime DESC LIMIT 1",
		board, name,
	)
}

func (db *DB) image(ctx context.Context, query string, args ...interface{}) (Image, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var img Image
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return img, fmt.Errorf("imgdb: could not query stream image: %w", err)
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var vers string
		err = rows.Scan(&img.Board, &img.Name, &vers, &img.Created, &img.Data)
		if err != nil {
			return img, fmt.Errorf("imgdb: could not get stream image value: %w", err)
		}
		img.Version, err = radio.ParseVersion(vers)
		if err != nil {
			return img, fmt.Errorf("imgdb: invalid version of stream image %q: %w", img.Name, err)
		}
		found = true
	}

	if err := rows.Err(); err != nil {
		return img, fmt.Errorf("imgdb: could not scan db for stream image: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return img, fmt.Errorf("imgdb: context error while retrieving stream image: %w", err)
	}

	if !found {
		return img, fmt.Errorf("imgdb: no stream image for %q: %w", args[0], ErrNotFound)
	}

	return img, nil
}

// AddStreamImage registers a new stream image.
func (db *DB) AddStreamImage(ctx context.Context, img Image) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if img.Created.IsZero() {
		img.Created = time.Now().UTC()
	}

	_, err := db.db.ExecContext(
		ctx,
		"INSERT INTO stream_images ("+imageCols+") VALUES (?, ?, ?, ?, ?)",
		img.Board, img.Name, img.Version.String(), img.Created, img.Data,
	)
	if err != nil {
		return fmt.Errorf("imgdb: could not insert stream image %q: %w", img.Name, err)
	}
	return nil
}

// LastProfile returns the most recent YAML profile of board.
func (db *DB) LastProfile(ctx context.Context, board string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var prof []byte
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT profile FROM boards WHERE name=? ORDER BY datetime DESC LIMIT 1",
		board,
	)
	if err != nil {
		return nil, fmt.Errorf("imgdb: could not query board profile: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&prof)
		if err != nil {
			return nil, fmt.Errorf("imgdb: could not get board profile value: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("imgdb: could not scan db for board profile: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("imgdb: context error while retrieving board profile: %w", err)
	}

	if prof == nil {
		return nil, fmt.Errorf("imgdb: no profile for board %q: %w", board, ErrNotFound)
	}

	return prof, nil
}
