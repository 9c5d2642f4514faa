// Package main hosts the internship scraper entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes the index, /scrape, health, readiness and metrics endpoints. A GET on
//     /scrape runs one scrape synchronously and always answers with the JSON envelope {success, count | error}.
//   - Fetch: the Colly fetcher downloads the listing page. source.mode=headless renders it with Chromedp instead, and
//     source.mode=auto re-fetches with Chromedp when the heuristic detector sees a client-rendered shell.
//   - Extract & persist: goquery finds the internship cards, and the batch is written in one transaction to the
//     configured listing store (Firestore, Postgres, MongoDB or memory). The store is opened on the first scrape.
//   - Side effects: the raw page can be archived to GCS and a completion event published to Pub/Sub. Both are
//     best-effort and never fail a scrape.
//   - Configuration & plumbing: Viper reads config from file and SCRAPER_* env vars (PORT and FIREBASE_* are honored
//     too); godotenv loads a local .env first; zap provides structured logging; Prometheus metrics are exported on
//     /metrics.
//
// Quick checklist:
//   - Configure FIREBASE_PROJECT_ID and the FIREBASE_* service account fields, or rely on application default
//     credentials.
//   - Run locally: go run ./cmd/scraper -config config.yaml (or rely solely on env overrides).
//   - Cloud Run: the container listens on PORT and shuts down cleanly on SIGTERM.
package main
