package store

import (
	"context"
	"database/sql"

	"github.com/dannyrandall/movies-realtime/internal/movies"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

//go:generate mockgen -source=store.go -destination=mock/store.go -package=mock

// Store is the movies table.
type Store interface {
	List(ctx context.Context) ([]movies.Movie, error)
	Get(ctx context.Context, id int64) (movies.Movie, error)
	Insert(ctx context.Context, title string, year int) (int64, error)
	Update(ctx context.Context, id int64, title string, year int) (bool, error)
	Delete(ctx context.Context, id int64) (movies.Movie, bool, error)
}

// Supported database/sql driver names.
const (
	Postgres = "postgres"
	SQLite   = "sqlite3"
)

// Primary keys are allocated by the engine; there is no sequence
// management here.
var schemas = map[string]string{
	Postgres: `CREATE TABLE IF NOT EXISTS movies (
		id SERIAL PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		year INTEGER NOT NULL
	)`,
	SQLite: `CREATE TABLE IF NOT EXISTS movies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title VARCHAR(255) NOT NULL,
		year INTEGER NOT NULL
	)`,
}

// SQL is a Store backed by a relational database. Queries use $N
// placeholders, which both lib/pq and go-sqlite3 accept.
type SQL struct {
	db     *sql.DB
	driver string
}

// Open connects to the database at url using driver, which must be one of
// Postgres or SQLite.
func Open(ctx context.Context, driver, url string) (*SQL, error) {
	if _, ok := schemas[driver]; !ok {
		return nil, errors.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, url)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", driver)
	}

	s, err := New(db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}

	if err := s.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already opened database handle.
func New(db *sql.DB, driver string) (*SQL, error) {
	if _, ok := schemas[driver]; !ok {
		return nil, errors.Errorf("unsupported database driver %q", driver)
	}

	if driver == SQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}
	return &SQL{db: db, driver: driver}, nil
}

// Migrate creates the movies table if it doesn't exist yet.
func (s *SQL) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemas[s.driver]); err != nil {
		return errors.Wrap(err, "create movies table")
	}
	return nil
}

func (s *SQL) Ping(ctx context.Context) error {
	return errors.Wrap(s.db.PingContext(ctx), "ping database")
}

func (s *SQL) Close() error {
	return s.db.Close()
}

func (s *SQL) List(ctx context.Context) ([]movies.Movie, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, year FROM movies ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "query movies")
	}
	defer rows.Close()

	list := []movies.Movie{}
	for rows.Next() {
		var m movies.Movie
		if err := rows.Scan(&m.ID, &m.Title, &m.Year); err != nil {
			return nil, errors.Wrap(err, "scan movie")
		}
		list = append(list, m)
	}
	return list, errors.Wrap(rows.Err(), "iterate movies")
}

func (s *SQL) Get(ctx context.Context, id int64) (movies.Movie, error) {
	m := movies.Movie{}
	err := s.db.QueryRowContext(ctx, `SELECT id, title, year FROM movies WHERE id = $1`, id).
		Scan(&m.ID, &m.Title, &m.Year)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return movies.Movie{}, movies.ErrNotFound
	case err != nil:
		return movies.Movie{}, errors.Wrapf(err, "get movie %d", id)
	}
	return m, nil
}

func (s *SQL) Insert(ctx context.Context, title string, year int) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `INSERT INTO movies (title, year) VALUES ($1, $2) RETURNING id`, title, year).
		Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "insert movie")
	}
	return id, nil
}

func (s *SQL) Update(ctx context.Context, id int64, title string, year int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE movies SET title = $1, year = $2 WHERE id = $3`, title, year, id)
	if err != nil {
		return false, errors.Wrapf(err, "update movie %d", id)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrapf(err, "update movie %d", id)
	}
	return n > 0, nil
}

func (s *SQL) Delete(ctx context.Context, id int64) (movies.Movie, bool, error) {
	m := movies.Movie{}
	err := s.db.QueryRowContext(ctx, `DELETE FROM movies WHERE id = $1 RETURNING id, title, year`, id).
		Scan(&m.ID, &m.Title, &m.Year)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return movies.Movie{}, false, nil
	case err != nil:
		return movies.Movie{}, false, errors.Wrapf(err, "delete movie %d", id)
	}
	return m, true, nil
}
