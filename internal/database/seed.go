package database

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// starterPage is the homepage shown before anything has been generated.
const starterPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Welcome</title>
<style>
body { font-family: system-ui, sans-serif; display: flex; align-items: center; justify-content: center; min-height: 100vh; margin: 0; background: #f4f4f5; }
main { text-align: center; }
button { background: #16a34a; color: #fff; border: 0; border-radius: 6px; padding: 0.6rem 1.2rem; font-size: 1rem; }
</style>
</head>
<body>
<main>
<h1>Welcome</h1>
<p>Describe the page you want and SmartBuilder will build it.</p>
<button type="button">Get started</button>
</main>
</body>
</html>`

// Seed populates the database with initial development data. It inserts a
// starter homepage version if the versions table is empty. The starter is
// not published, so the public site stays empty until a publish.
func Seed(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM versions").Scan(&count); err != nil {
		return fmt.Errorf("seed check versions: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	_, err := db.Exec(`
		INSERT INTO versions (prompt, page_route, html_preview)
		VALUES ($1, $2, $3)
	`, "Starter homepage", "homepage", starterPage)
	if err != nil {
		return fmt.Errorf("seed insert starter version: %w", err)
	}

	slog.Info("database seeded with starter homepage version")
	return nil
}
