package models

import "time"

// DocumentKind distinguishes generated document flavors.
type DocumentKind string

const (
	DocumentKindConvention  DocumentKind = "CONVENTION"
	DocumentKindAttestation DocumentKind = "ATTESTATION"
)

// Document records an issued PDF for an approved request.
type Document struct {
	ID          string       `db:"id" json:"id"`
	RequestID   string       `db:"request_id" json:"requestId"`
	Kind        DocumentKind `db:"kind" json:"kind"`
	FilePath    string       `db:"file_path" json:"-"`
	FileSize    int64        `db:"file_size" json:"fileSize"`
	GeneratedBy string       `db:"generated_by" json:"generatedBy"`
	GeneratedAt time.Time    `db:"generated_at" json:"generatedAt"`
}
