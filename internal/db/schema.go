package db

import "fmt"

const schemaTemplate = `
    DEFINE TABLE IF NOT EXISTS frame_spec SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS content ON frame_spec TYPE string;
    DEFINE FIELD IF NOT EXISTS embedding ON frame_spec TYPE array<float>;
    DEFINE FIELD IF NOT EXISTS frame_id ON frame_spec TYPE string;
    DEFINE FIELD IF NOT EXISTS frame_name ON frame_spec TYPE string;
    DEFINE FIELD IF NOT EXISTS job_id ON frame_spec TYPE string;
    DEFINE FIELD IF NOT EXISTS file_key ON frame_spec TYPE string;
    DEFINE FIELD IF NOT EXISTS metadata ON frame_spec TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS indexed_at ON frame_spec TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS frame_spec_file ON frame_spec FIELDS file_key;
    DEFINE INDEX IF NOT EXISTS frame_spec_job ON frame_spec FIELDS job_id;
    DEFINE INDEX IF NOT EXISTS frame_spec_embedding ON frame_spec FIELDS embedding HNSW DIMENSION %d DIST COSINE TYPE F32;
`

// SchemaSQL returns the schema statements for an index of the given embedding dimension.
// Changing the dimension of an existing database requires dropping frame_spec_embedding first.
func SchemaSQL(dimension int) string {
	return fmt.Sprintf(schemaTemplate, dimension)
}
