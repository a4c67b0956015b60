package utils

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// ColormapStore reads named colormaps from a PostgreSQL table
//
//	colormap_stops(name text, key double precision,
//	               red integer, green integer, blue integer)
type ColormapStore struct {
	db *sql.DB
}

// OpenColormapStore connects lazily; errors surface on the first query.
func OpenColormapStore(dsn string) (*ColormapStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &ColormapStore{db: db}, nil
}

func NewColormapStore(db *sql.DB) *ColormapStore {
	return &ColormapStore{db: db}
}

func (s *ColormapStore) Close() error {
	return s.db.Close()
}

// Colormap loads the stops registered under name.
func (s *ColormapStore) Colormap(name string) (*Colormap, error) {
	rows, err := s.db.Query(
		`select key, red, green, blue from colormap_stops where name = $1 order by key`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("colormap %q query error: %v", name, err)
	}
	defer rows.Close()

	var stops []ColormapStop
	for rows.Next() {
		var key float64
		var ch [3]int
		if err := rows.Scan(&key, &ch[0], &ch[1], &ch[2]); err != nil {
			return nil, fmt.Errorf("colormap %q scan error: %v", name, err)
		}
		stop, err := stopFromChannels(key, ch)
		if err != nil {
			return nil, fmt.Errorf("colormap %q: %w", name, err)
		}
		stops = append(stops, stop)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("colormap %q query error: %v", name, err)
	}

	return NewColormap(stops)
}

func stopFromChannels(key float64, ch [3]int) (ColormapStop, error) {
	for _, c := range ch {
		if c < 0 || c > 255 {
			return ColormapStop{}, fmt.Errorf("%w: channel %d at key %v outside [0,255]", ErrInvalidColormap, c, key)
		}
	}
	return ColormapStop{Key: key, Colour: RGB{uint8(ch[0]), uint8(ch[1]), uint8(ch[2])}}, nil
}
