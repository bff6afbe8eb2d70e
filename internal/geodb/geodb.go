// Package geodb queries the external spatial database that backs the
// terrain and building processors: opaque, per-feature-class SQL
// statements parameterized with the area-of-interest polygon, plus the
// bounding-box aggregate both processors need before fetching assets.
package geodb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"

	"cs2bim-go/internal/cserr"
)

// Client wraps the spatial-database connection pool. Client never
// constructs SQL beyond the one bounding-box aggregate; every
// feature-class query is supplied verbatim by configuration and
// treated as opaque.
type Client struct {
	db *sql.DB
}

// Config holds the connection parameters, mirroring
// config.DatabaseConfig field-for-field so callers can pass it
// straight through.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// Connect opens (and pings) the spatial database connection.
func Connect(cfg Config) (*Client, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, cserr.Wrap(cserr.UpstreamError, "geodb.Connect", err)
	}
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(30)
	if err := db.Ping(); err != nil {
		return nil, cserr.Wrap(cserr.UpstreamError, "geodb.Connect", err)
	}
	return &Client{db: db}, nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// Row is one result row from a feature-class query: a WKT geometry
// column plus whatever other columns the query selected, keyed by
// column name and carried as strings (attributes, properties, and
// group columns are all string-valued downstream).
type Row struct {
	WKT     string
	Columns map[string]string
}

// Query runs sqlText (one feature class's configured SQL file content)
// with polygonWKT bound to its single $1 placeholder, and returns every
// row with its `wkt` column pulled out as Row.WKT and every other
// column captured in Row.Columns. Fails with DataError if the query
// returns no columns at all — a misconfigured SQL file, not an empty
// result set.
func (c *Client) Query(ctx context.Context, sqlText string, polygonWKT string) ([]Row, error) {
	rows, err := c.db.QueryContext(ctx, sqlText, polygonWKT)
	if err != nil {
		return nil, cserr.Wrap(cserr.UpstreamError, "geodb.Client.Query", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, cserr.Wrap(cserr.UpstreamError, "geodb.Client.Query", err)
	}
	if len(cols) == 0 {
		return nil, cserr.New(cserr.DataError, "geodb.Client.Query", "query returned no columns")
	}

	var out []Row
	for rows.Next() {
		scan := make([]interface{}, len(cols))
		for i := range scan {
			scan[i] = new(sql.NullString)
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, cserr.Wrap(cserr.DataError, "geodb.Client.Query", err)
		}

		r := Row{Columns: make(map[string]string, len(cols))}
		for i, name := range cols {
			val := scan[i].(*sql.NullString)
			if name == "wkt" || name == "geom" {
				r.WKT = val.String
				continue
			}
			r.Columns[name] = val.String
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, cserr.Wrap(cserr.DataError, "geodb.Client.Query", err)
	}
	return out, nil
}

// BuildingIdentifiers runs sqlText and returns the `id` column of every
// matched row — the per-feature-class building-identifier query
// BuildingProcessor uses to decide which CityGML buildings to keep.
func (c *Client) BuildingIdentifiers(ctx context.Context, sqlText string, polygonWKT string) ([]string, error) {
	rows, err := c.Query(ctx, sqlText, polygonWKT)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if id, ok := r.Columns["id"]; ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// BoundingBox is a 2D envelope in the input plane's projected CRS
// (west, south, east, north as MinX, MinY, MaxX, MaxY in that CRS's
// units, not necessarily degrees — callers re-project it to WGS84 with
// geo.FromLV95Envelope before querying the catalog).
type BoundingBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// CollectBoundingBox computes the minimal bounding box covering every
// given WKT geometry, via `ST_AsText(ST_Envelope(ST_Collect(...)))`
// parsed back into four floats. The geometries are passed as bind
// parameters rather than interpolated, one ST_GeomFromText per
// placeholder.
func (c *Client) CollectBoundingBox(ctx context.Context, wkts []string) (BoundingBox, error) {
	if len(wkts) == 0 {
		return BoundingBox{}, cserr.New(cserr.BadInput, "geodb.Client.CollectBoundingBox", "no geometries to collect")
	}

	placeholders := make([]string, len(wkts))
	args := make([]interface{}, len(wkts))
	for i, w := range wkts {
		placeholders[i] = fmt.Sprintf("ST_GeomFromText($%d)", i+1)
		args[i] = w
	}
	query := fmt.Sprintf("select ST_AsText(ST_Envelope(ST_Collect(ARRAY[%s])))", strings.Join(placeholders, ","))

	var wktBox sql.NullString
	row := c.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&wktBox); err != nil {
		return BoundingBox{}, cserr.Wrap(cserr.UpstreamError, "geodb.Client.CollectBoundingBox", err)
	}
	if !wktBox.Valid || wktBox.String == "" {
		return BoundingBox{}, cserr.New(cserr.DataError, "geodb.Client.CollectBoundingBox", "envelope query returned no geometry")
	}
	return parseEnvelopeWKT(wktBox.String)
}

// parseEnvelopeWKT parses the `POLYGON((minx miny, maxx miny, maxx
// maxy, minx maxy, minx miny))` text ST_Envelope emits into its four
// corner floats.
func parseEnvelopeWKT(wktText string) (BoundingBox, error) {
	inner := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(wktText), "POLYGON(("), "))")
	if inner == wktText {
		return BoundingBox{}, cserr.New(cserr.DataError, "geodb.parseEnvelopeWKT", "malformed envelope WKT: "+wktText)
	}

	var bbox BoundingBox
	first := true
	for _, pair := range strings.Split(inner, ",") {
		fields := strings.Fields(strings.TrimSpace(pair))
		if len(fields) != 2 {
			continue
		}
		x, errX := strconv.ParseFloat(fields[0], 64)
		y, errY := strconv.ParseFloat(fields[1], 64)
		if errX != nil || errY != nil {
			continue
		}
		if first {
			bbox = BoundingBox{MinX: x, MinY: y, MaxX: x, MaxY: y}
			first = false
			continue
		}
		if x < bbox.MinX {
			bbox.MinX = x
		}
		if x > bbox.MaxX {
			bbox.MaxX = x
		}
		if y < bbox.MinY {
			bbox.MinY = y
		}
		if y > bbox.MaxY {
			bbox.MaxY = y
		}
	}
	if first {
		return BoundingBox{}, cserr.New(cserr.DataError, "geodb.parseEnvelopeWKT", "no coordinate pairs in envelope WKT: "+wktText)
	}
	return bbox, nil
}
