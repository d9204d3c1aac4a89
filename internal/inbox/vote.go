package inbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/Iron-Ham/quorum/internal/consensus"
	"github.com/Iron-Ham/quorum/internal/errors"
)

// VoteFile is the on-disk form of a vote dropped into the inbox.
type VoteFile struct {
	TaskID     string   `json:"task_id"`
	VoterID    string   `json:"voter_id"`
	Approved   *bool    `json:"approved"`
	Confidence *float64 `json:"confidence,omitempty"`
	Comment    string   `json:"comment,omitempty"`
}

// NewVoteFile builds a VoteFile from a task ID and a vote.
func NewVoteFile(taskID string, v consensus.Vote) VoteFile {
	approved, confidence := v.Approved, v.Confidence
	return VoteFile{
		TaskID:     taskID,
		VoterID:    v.VoterID,
		Approved:   &approved,
		Confidence: &confidence,
		Comment:    v.Comment,
	}
}

// Vote validates f and converts it to a consensus vote. A missing
// confidence counts as 1.
func (f VoteFile) Vote() (string, consensus.Vote, error) {
	switch {
	case strings.TrimSpace(f.TaskID) == "":
		return "", consensus.Vote{}, errors.NewValidationError("task_id is required").WithField("task_id")
	case strings.TrimSpace(f.VoterID) == "":
		return "", consensus.Vote{}, errors.NewValidationError("voter_id is required").WithField("voter_id")
	case f.Approved == nil:
		return "", consensus.Vote{}, errors.NewValidationError("approved is required").WithField("approved")
	}

	v := consensus.Vote{
		VoterID:    f.VoterID,
		Approved:   *f.Approved,
		Confidence: 1,
		Comment:    f.Comment,
	}
	if f.Confidence != nil {
		v.Confidence = *f.Confidence
	}
	return f.TaskID, v, nil
}

// ParseVoteFile decodes and validates an inbox file's contents.
func ParseVoteFile(data []byte) (string, consensus.Vote, error) {
	var f VoteFile
	if err := json.Unmarshal(data, &f); err != nil {
		return "", consensus.Vote{}, errors.NewValidationError("malformed vote file").WithCause(err)
	}
	return f.Vote()
}

// WriteVote drops a vote into dir and returns the file path. The file is
// written under a hidden temporary name and renamed into place so the
// watcher never observes a partial vote.
func WriteVote(dir, taskID string, v consensus.Vote) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create inbox dir: %w", err)
	}

	data, err := json.MarshalIndent(NewVoteFile(taskID, v), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal vote: %w", err)
	}

	name := ulid.Make().String() + voteFileExt
	target := filepath.Join(dir, name)
	tmp := filepath.Join(dir, "."+name+".tmp")

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return "", fmt.Errorf("rename temp file: %w", err)
	}
	return target, nil
}
