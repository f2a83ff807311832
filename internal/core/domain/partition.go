package domain

import "time"

// SharedPartition holds the clinical reference library visible to every
// patient. Request paths read it; only the out-of-band loader writes it.
const SharedPartition = "shared"

// PatientPartition names the private partition owned by one patient.
func PatientPartition(patientID string) string {
	return "patient_" + patientID
}

// DocumentChunk is one indexed fragment of an extracted report.
type DocumentChunk struct {
	Text           string    `json:"text"`
	SourceFile     string    `json:"source_file"`
	ChunkIndex     int       `json:"chunk_index"`
	OwnerPartition string    `json:"owner_partition"`
	IndexedAt      time.Time `json:"indexed_at"`
}

type RetrievedChunk struct {
	Text           string  `json:"text"`
	SourceFile     string  `json:"source_file"`
	ChunkIndex     int     `json:"chunk_index"`
	OwnerPartition string  `json:"owner_partition"`
	Score          float64 `json:"score"`
}

// SourceRef is the attribution string surfaced to callers for one chunk.
func (c RetrievedChunk) SourceRef() string {
	return c.OwnerPartition + "/" + c.SourceFile
}
