package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Chunk is an immutable slice of a source. Offsets are character (rune)
// offsets into the decoded source, half-open [StartOffset, EndOffset).
type Chunk struct {
	ID              string
	Source          string
	StartOffset     int
	EndOffset       int
	StartLine       int
	EndLine         int
	Text            string
	OverlapWithPrev int
	OverlapWithNext int
	SyntaxAware     bool
	Oversized       bool
	Language        string
	Kind            string
	Names           []string
	SHA256          string
}

// Size returns the chunk length in characters.
func (c Chunk) Size() int {
	return c.EndOffset - c.StartOffset
}

type UnitKind string

const (
	UnitFunction UnitKind = "function"
	UnitClass    UnitKind = "class"
	UnitModule   UnitKind = "module"
	UnitBlock    UnitKind = "block"
)

// SyntaxUnit is a syntactically coherent region of a source file. Byte
// offsets are half-open. Children are nested strictly inside the parent.
type SyntaxUnit struct {
	Kind      UnitKind
	Name      string
	NodeType  string
	StartByte int
	EndByte   int
	StartLine int
	EndLine   int
	Children  []SyntaxUnit
}

type CharRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type ChunkIndexEntry struct {
	ChunkID    string    `json:"chunk_id"`
	SourcePath string    `json:"source_path"`
	CharRange  CharRange `json:"char_range"`
	Size       int       `json:"size"`
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Rank orders confidences; unknown values rank below low.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

func (c Confidence) Valid() bool {
	return c.Rank() > 0
}

type Evidence struct {
	Source   string `json:"source"`
	Location string `json:"location"`
	Quote    string `json:"quote,omitempty"`
}

type Claim struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Evidence   []Evidence `json:"evidence"`
	Confidence Confidence `json:"confidence"`
}

// Answer is a claim as reported by the analysis of a single chunk.
type Answer struct {
	Claim      string     `json:"claim"`
	Evidence   []Evidence `json:"evidence"`
	Confidence Confidence `json:"confidence"`
}

type ContradictionOrigin string

const (
	OriginReported ContradictionOrigin = "reported"
	OriginDetected ContradictionOrigin = "detected"
)

type Contradiction struct {
	ID       string              `json:"id"`
	ClaimA   string              `json:"claim_a"`
	ClaimB   string              `json:"claim_b"`
	Evidence []Evidence          `json:"evidence"`
	Origin   ContradictionOrigin `json:"origin"`
}

type Missing struct {
	ChunkID         string `json:"chunk_id,omitempty"`
	Question        string `json:"question"`
	SuggestedSearch string `json:"suggested_search,omitempty"`
}

// ChunkResult is what the per-chunk analysis returns for one chunk.
type ChunkResult struct {
	ChunkID        string          `json:"chunk_id"`
	Answers        []Answer        `json:"answers"`
	Contradictions []Contradiction `json:"contradictions"`
	Missing        []Missing       `json:"missing"`
}

// Key identifies a stored result by its chunk id and a digest of its
// content. Keys sort by chunk id first. Results for the same chunk share
// a key only when they are identical.
func (r ChunkResult) Key() string {
	data, _ := json.Marshal(r)
	sum := sha256.Sum256(data)
	return r.ChunkID + "\x00" + hex.EncodeToString(sum[:8])
}

// AnalysisRequest is what the per-chunk analysis consumes.
type AnalysisRequest struct {
	ChunkID   string   `json:"chunk_id"`
	Text      string   `json:"text"`
	Questions []string `json:"questions"`
}

// LedgerReport is the finalized, deterministic view of a ledger.
type LedgerReport struct {
	Claims         []Claim         `json:"claims"`
	Contradictions []Contradiction `json:"contradictions"`
	Missing        []Missing       `json:"missing"`
}
