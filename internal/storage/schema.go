package storage

const Schema = `
-- Pages: one row per document; parent_id/depth form the spanning tree
CREATE TABLE IF NOT EXISTS pages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	locator TEXT UNIQUE NOT NULL,
	stable_id TEXT UNIQUE,
	title TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL DEFAULT '',
	depth INTEGER NOT NULL CHECK (depth >= 0),
	parent_id INTEGER REFERENCES pages(id),
	status TEXT NOT NULL CHECK (status IN ('ok', 'empty', 'error')),
	ingested_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pages_parent ON pages(parent_id, id);
CREATE INDEX IF NOT EXISTS idx_pages_depth ON pages(depth);

-- Edges: cross references between committed pages
CREATE TABLE IF NOT EXISTS edges (
	from_id INTEGER NOT NULL REFERENCES pages(id),
	to_id INTEGER NOT NULL REFERENCES pages(id),
	link_text TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (from_id, to_id)
);
CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_id);

-- Discovered links: every outbound link of a committed page, followed or not
CREATE TABLE IF NOT EXISTS discovered_links (
	from_id INTEGER NOT NULL REFERENCES pages(id),
	to_locator TEXT NOT NULL,
	to_stable_id TEXT,
	link_text TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL,
	PRIMARY KEY (from_id, to_locator)
);
CREATE INDEX IF NOT EXISTS idx_discovered_locator ON discovered_links(to_locator);
CREATE INDEX IF NOT EXISTS idx_discovered_stable ON discovered_links(to_stable_id);

-- Postings: stemmed term frequencies, rewritten with every page write
CREATE TABLE IF NOT EXISTS postings (
	term TEXT NOT NULL,
	page_id INTEGER NOT NULL REFERENCES pages(id),
	tf INTEGER NOT NULL,
	PRIMARY KEY (term, page_id)
);
CREATE INDEX IF NOT EXISTS idx_postings_page ON postings(page_id);

CREATE TABLE IF NOT EXISTS doc_stats (
	page_id INTEGER PRIMARY KEY REFERENCES pages(id),
	doc_length INTEGER NOT NULL
);
`
