package config

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/chrissnell/pvestimate/pkg/migrate"
)

//go:embed migrations/*.sql
var migrations embed.FS

// NewMigrator returns a migrator for the configuration schema embedded in this package.
func NewMigrator(db *sql.DB) *migrate.Migrator {
	return migrate.NewMigrator(db, migrate.NewFSProvider(migrations, "migrations", ""))
}

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider opens dbPath, creating it when absent, and brings the schema up to date
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if err := NewMigrator(db).MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate SQLite database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	sites, err := s.GetSites()
	if err != nil {
		return nil, fmt.Errorf("failed to load sites: %w", err)
	}
	config.Sites = sites

	settings, err := s.GetSettings()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	config.SettingsData = *settings

	config.ApplyDefaults()
	return config, nil
}

const siteColumns = `id, name, latitude, longitude, altitude, timezone, albedo, location_class, linke_turbidity`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (int64, SiteData, error) {
	var id int64
	var site SiteData
	var timezone, locationClass sql.NullString
	var albedo, linke sql.NullFloat64

	err := row.Scan(&id, &site.Name, &site.Latitude, &site.Longitude, &site.Altitude,
		&timezone, &albedo, &locationClass, &linke)
	if err != nil {
		return 0, site, err
	}

	// Nullable columns stay at their zero value
	site.Timezone = timezone.String
	site.LocationClass = locationClass.String
	site.Albedo = albedo.Float64
	site.LinkeTurbidity = linke.Float64
	return id, site, nil
}

// GetSites returns site configurations with their arrays, ordered by name
func (s *SQLiteProvider) GetSites() ([]SiteData, error) {
	rows, err := s.db.Query(`SELECT ` + siteColumns + ` FROM sites ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	defer rows.Close()

	var ids []int64
	var sites []SiteData
	for rows.Next() {
		id, site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan site row: %w", err)
		}
		ids = append(ids, id)
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error: %w", err)
	}
	rows.Close()

	for i, id := range ids {
		arrays, err := s.getArrays(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load arrays of site %s: %w", sites[i].Name, err)
		}
		sites[i].Arrays = arrays
	}
	return sites, nil
}

// GetSite returns a single site by name
func (s *SQLiteProvider) GetSite(name string) (*SiteData, error) {
	row := s.db.QueryRow(`SELECT `+siteColumns+` FROM sites WHERE name = ?`, name)
	id, site, err := scanSite(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSite, name)
		}
		return nil, fmt.Errorf("failed to get site %s: %w", name, err)
	}

	if site.Arrays, err = s.getArrays(id); err != nil {
		return nil, err
	}
	return &site, nil
}

func (s *SQLiteProvider) getArrays(siteID int64) ([]ArrayData, error) {
	query := `
		SELECT name, tilt, azimuth, dc_rating, ac_rating, gamma, inverter_efficiency,
		       temp_model, u0, u1, noct, eta_stc
		FROM arrays
		WHERE site_id = ?
		ORDER BY name
	`
	rows, err := s.db.Query(query, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to query arrays: %w", err)
	}
	defer rows.Close()

	var arrays []ArrayData
	for rows.Next() {
		var a ArrayData
		var acRating, gamma, efficiency, u0, u1, noct, eta sql.NullFloat64
		var tempModel sql.NullString

		err := rows.Scan(&a.Name, &a.Tilt, &a.Azimuth, &a.DCRating, &acRating, &gamma,
			&efficiency, &tempModel, &u0, &u1, &noct, &eta)
		if err != nil {
			return nil, fmt.Errorf("failed to scan array row: %w", err)
		}

		a.ACRating = acRating.Float64
		a.Gamma = gamma.Float64
		a.InverterEfficiency = efficiency.Float64
		a.TempModel = tempModel.String
		a.U0 = u0.Float64
		a.U1 = u1.Float64
		a.NOCT = noct.Float64
		a.EtaSTC = eta.Float64
		arrays = append(arrays, a)
	}
	return arrays, rows.Err()
}

// settingsSections maps each settings section to its destination in SettingsData
func settingsSections(d *SettingsData) map[string]any {
	return map[string]any{
		"models":    &d.Models,
		"turbidity": &d.Turbidity,
		"constants": &d.Constants,
		"server":    &d.Server,
		"logging":   &d.Logging,
	}
}

// GetSettings returns the stored settings. Absent sections are left zero, except that
// turbidity interpolation stays on unless stored as false.
func (s *SQLiteProvider) GetSettings() (*SettingsData, error) {
	rows, err := s.db.Query(`SELECT section, body FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	settings := &SettingsData{Turbidity: TurbidityData{Interpolate: true}}
	sections := settingsSections(settings)
	for rows.Next() {
		var section, body string
		if err := rows.Scan(&section, &body); err != nil {
			return nil, fmt.Errorf("failed to scan settings row: %w", err)
		}
		dst, ok := sections[section]
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(body), dst); err != nil {
			return nil, fmt.Errorf("failed to decode %s settings: %w", section, err)
		}
	}
	return settings, rows.Err()
}

// IsReadOnly returns false since SQLite supports write operations
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Write methods for configuration management

// SaveConfig replaces the stored configuration with configData
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, query := range []string{"DELETE FROM arrays", "DELETE FROM sites", "DELETE FROM settings"} {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to clear existing config: %w", err)
		}
	}

	for i := range configData.Sites {
		if err := insertSite(tx, &configData.Sites[i]); err != nil {
			return fmt.Errorf("failed to insert site %s: %w", configData.Sites[i].Name, err)
		}
	}

	if err := saveSettings(tx, &configData.SettingsData); err != nil {
		return err
	}

	return tx.Commit()
}

// SaveSettings replaces only the settings sections
func (s *SQLiteProvider) SaveSettings(settings *SettingsData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := saveSettings(tx, settings); err != nil {
		return err
	}
	return tx.Commit()
}

func saveSettings(tx *sql.Tx, settings *SettingsData) error {
	for section, v := range settingsSections(settings) {
		body, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode %s settings: %w", section, err)
		}
		_, err = tx.Exec(`INSERT OR REPLACE INTO settings (section, body, updated_at) VALUES (?, ?, datetime('now'))`,
			section, string(body))
		if err != nil {
			return fmt.Errorf("failed to save %s settings: %w", section, err)
		}
	}
	return nil
}

func insertSite(tx *sql.Tx, site *SiteData) error {
	query := `
		INSERT INTO sites (
			name, latitude, longitude, altitude, timezone, albedo, location_class, linke_turbidity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := tx.Exec(query,
		site.Name, site.Latitude, site.Longitude, site.Altitude,
		nullString(site.Timezone), nullFloat64(site.Albedo),
		nullString(site.LocationClass), nullFloat64(site.LinkeTurbidity),
	)
	if err != nil {
		return err
	}
	siteID, err := result.LastInsertId()
	if err != nil {
		return err
	}

	for i := range site.Arrays {
		if err := insertArray(tx, siteID, &site.Arrays[i]); err != nil {
			return fmt.Errorf("failed to insert array %s: %w", site.Arrays[i].Name, err)
		}
	}
	return nil
}

func insertArray(tx *sql.Tx, siteID int64, a *ArrayData) error {
	query := `
		INSERT INTO arrays (
			site_id, name, tilt, azimuth, dc_rating, ac_rating, gamma,
			inverter_efficiency, temp_model, u0, u1, noct, eta_stc
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := tx.Exec(query,
		siteID, a.Name, a.Tilt, a.Azimuth, a.DCRating, nullFloat64(a.ACRating),
		nullFloat64(a.Gamma), nullFloat64(a.InverterEfficiency), nullString(a.TempModel),
		nullFloat64(a.U0), nullFloat64(a.U1), nullFloat64(a.NOCT), nullFloat64(a.EtaSTC),
	)
	return err
}

// AddSite adds a new site with its arrays
func (s *SQLiteProvider) AddSite(site *SiteData) error {
	if _, err := s.GetSite(site.Name); err == nil {
		return fmt.Errorf("site %s already exists", site.Name)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertSite(tx, site); err != nil {
		return fmt.Errorf("failed to insert site: %w", err)
	}
	return tx.Commit()
}

// DeleteSite removes a site and its arrays
func (s *SQLiteProvider) DeleteSite(name string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM arrays WHERE site_id IN (SELECT id FROM sites WHERE name = ?)`, name); err != nil {
		return fmt.Errorf("failed to delete arrays: %w", err)
	}
	result, err := tx.Exec(`DELETE FROM sites WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete site: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %q", ErrUnknownSite, name)
	}

	return tx.Commit()
}

// Helper functions for handling nullable fields
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat64(f float64) sql.NullFloat64 {
	if f == 0 {
		return sql.NullFloat64{Valid: false}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}
