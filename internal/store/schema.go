package store

const schema = `
CREATE TABLE IF NOT EXISTS activities (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    start_time   REAL NOT NULL,
    end_time     REAL NOT NULL,
    app_name     TEXT NOT NULL,
    bundle_id    TEXT NOT NULL,
    window_title TEXT,
    url          TEXT,
    website_host TEXT
);
CREATE INDEX IF NOT EXISTS idx_activities_start_time   ON activities(start_time);
CREATE INDEX IF NOT EXISTS idx_activities_app_name     ON activities(app_name);
CREATE INDEX IF NOT EXISTS idx_activities_website_host ON activities(website_host);
`
