package adapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Verdict parsing errors
var (
	ErrNoVerdict      = errors.New("no <verdict> tag found in output")
	ErrInvalidVerdict = errors.New("invalid JSON in verdict")
)

// Verdict is a reviewer's decision as written in its output.
type Verdict struct {
	Approved   bool    `json:"approved"`
	Confidence float64 `json:"confidence"`
	Comment    string  `json:"comment,omitempty"`
}

var verdictTagRegex = regexp.MustCompile(`(?s)<verdict>\s*(.*?)\s*</verdict>`)

// ParseVerdict extracts the last <verdict>{json}</verdict> block from
// output. A verdict without a confidence field gets confidence 1.
func ParseVerdict(output string) (Verdict, error) {
	matches := verdictTagRegex.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return Verdict{}, ErrNoVerdict
	}
	body := strings.TrimSpace(matches[len(matches)-1][1])
	if body == "" {
		return Verdict{}, ErrNoVerdict
	}

	var raw struct {
		Approved   *bool    `json:"approved"`
		Confidence *float64 `json:"confidence"`
		Comment    string   `json:"comment"`
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrInvalidVerdict, err)
	}
	if raw.Approved == nil {
		return Verdict{}, fmt.Errorf("%w: missing \"approved\"", ErrInvalidVerdict)
	}

	v := Verdict{Approved: *raw.Approved, Confidence: 1, Comment: raw.Comment}
	if raw.Confidence != nil {
		v.Confidence = *raw.Confidence
	}
	return v, nil
}

// FormatVerdict renders v in the form ParseVerdict reads.
func FormatVerdict(v Verdict) string {
	data, _ := json.Marshal(v)
	return "<verdict>" + string(data) + "</verdict>"
}
